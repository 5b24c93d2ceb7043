package services

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"txsummary/internal/core"
)

// TransactionInserter is the slice of storage the ingest pipeline needs.
type TransactionInserter interface {
	InsertTransactions(ctx context.Context, batch []core.Transaction) (int64, error)
}

// UploadEventPublisher announces completed uploads. Publish failures are
// logged, never surfaced: the rows are already committed.
type UploadEventPublisher interface {
	PublishUploadIngested(ctx context.Context, filename string, rows int64) error
}

// IngestService runs the CSV upload pipeline: extension check, staging,
// column validation, cast into a typed batch, set-based insert.
type IngestService struct {
	store  TransactionInserter
	events UploadEventPublisher
}

// NewIngestService creates the pipeline. events may be nil when no
// broker is configured.
func NewIngestService(store TransactionInserter, events UploadEventPublisher) *IngestService {
	return &IngestService{
		store:  store,
		events: events,
	}
}

// IngestCSV validates and loads one uploaded file, returning the number
// of rows inserted. A single bad row rejects the entire upload; no
// partial insert occurs.
func (s *IngestService) IngestCSV(ctx context.Context, filename string, file io.Reader) (int64, error) {
	// Wrong extension is rejected before any staging happens.
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return 0, core.ErrInvalidFormat
	}

	stagedPath, err := stage(file)
	if err != nil {
		return 0, err
	}
	// Removal failure has no bearing on the already-determined response.
	defer func() {
		if err := os.Remove(stagedPath); err != nil {
			slog.WarnContext(ctx, "Failed to remove staged upload", "path", stagedPath, "error", err)
		}
	}()

	batch, err := parseStagedCSV(stagedPath)
	if err != nil {
		return 0, err
	}

	inserted, err := s.store.InsertTransactions(ctx, batch)
	if err != nil {
		return 0, err
	}

	s.publishIngested(ctx, filepath.Base(filename), inserted)

	slog.InfoContext(ctx, "CSV upload ingested", "filename", filename, "rows", inserted)
	return inserted, nil
}

// stage persists the upload's full byte content to a temporary file
// exclusively owned by this request.
func stage(file io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "txsummary-upload-*.csv")
	if err != nil {
		return "", &core.StagingError{Err: err}
	}
	path := tmp.Name()

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(path)
		return "", &core.StagingError{Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return "", &core.StagingError{Err: err}
	}

	return path, nil
}

// parseStagedCSV scans the entire staged file and casts it into a typed
// batch. The first record is the header; the whole file is read so
// column problems cannot hide past a sampling prefix.
func parseStagedCSV(path string) ([]core.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &core.StagingError{Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err == io.EOF {
		// No header at all: every required column is missing.
		missing := append([]string(nil), core.RequiredColumns...)
		sort.Strings(missing)
		return nil, &core.MissingColumnsError{Columns: missing}
	}
	if err != nil {
		return nil, &core.ConversionError{Line: 1, Err: err}
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		colIndex[name] = i
	}

	var missing []string
	for _, required := range core.RequiredColumns {
		if _, ok := colIndex[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &core.MissingColumnsError{Columns: missing}
	}

	var batch []core.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &core.ConversionError{Line: line, Err: err}
		}

		t, convErr := castRecord(record, colIndex, line)
		if convErr != nil {
			return nil, convErr
		}
		batch = append(batch, t)
	}

	return batch, nil
}

func castRecord(record []string, colIndex map[string]int, line int) (core.Transaction, *core.ConversionError) {
	fail := func(column, value string, err error) *core.ConversionError {
		return &core.ConversionError{Line: line, Column: column, Value: value, Err: err}
	}

	var t core.Transaction
	t.TransactionID = record[colIndex["transaction_id"]]

	userID, err := core.CastInt(record[colIndex["user_id"]])
	if err != nil {
		return core.Transaction{}, fail("user_id", record[colIndex["user_id"]], err)
	}
	t.UserID = userID

	productID, err := core.CastInt(record[colIndex["product_id"]])
	if err != nil {
		return core.Transaction{}, fail("product_id", record[colIndex["product_id"]], err)
	}
	t.ProductID = productID

	ts, err := core.CastTimestamp(record[colIndex["timestamp"]])
	if err != nil {
		return core.Transaction{}, fail("timestamp", record[colIndex["timestamp"]], err)
	}
	t.Timestamp = ts

	amount, err := core.CastAmount(record[colIndex["transaction_amount"]])
	if err != nil {
		return core.Transaction{}, fail("transaction_amount", record[colIndex["transaction_amount"]], err)
	}
	t.Amount = amount

	return t, nil
}

func (s *IngestService) publishIngested(ctx context.Context, filename string, rows int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishUploadIngested(ctx, filename, rows); err != nil {
		slog.ErrorContext(ctx, "Failed to publish upload ingested message",
			"filename", filename, "rows", rows, "error", err)
	}
}

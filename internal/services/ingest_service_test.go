package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"txsummary/internal/core"
	"txsummary/internal/storage"
)

const validHeader = "transaction_id,user_id,product_id,timestamp,transaction_amount\n"

type recordingPublisher struct {
	filename string
	rows     int64
	calls    int
	err      error
}

func (p *recordingPublisher) PublishUploadIngested(ctx context.Context, filename string, rows int64) error {
	p.calls++
	p.filename = filename
	p.rows = rows
	return p.err
}

func newIngestFixture(t *testing.T) (*IngestService, *storage.SQLiteRepository, *recordingPublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "transactions.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	pub := &recordingPublisher{}
	return NewIngestService(repo, pub), repo, pub
}

func userCount(t *testing.T, repo *storage.SQLiteRepository, userID int64) int64 {
	t.Helper()
	res, err := repo.AggregateByUser(context.Background(), userID, nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	return res.Count
}

func TestIngestCSV_Success(t *testing.T) {
	svc, repo, pub := newIngestFixture(t)

	body := validHeader +
		"t1,1,10,2025-01-01 10:00:00,100.0\n" +
		"t2,1,11,2025-01-02 11:30:00,50.5\n"

	n, err := svc.IngestCSV(context.Background(), "batch.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d rows, want 2", n)
	}
	if got := userCount(t, repo, 1); got != 2 {
		t.Fatalf("stored rows = %d, want 2", got)
	}
	if pub.calls != 1 || pub.filename != "batch.csv" || pub.rows != 2 {
		t.Fatalf("publisher not notified correctly: %+v", pub)
	}
}

func TestIngestCSV_HeaderOnly(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	n, err := svc.IngestCSV(context.Background(), "empty.csv", strings.NewReader(validHeader))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 0 {
		t.Fatalf("inserted %d rows, want 0 for header-only input", n)
	}
}

func TestIngestCSV_WrongExtension(t *testing.T) {
	svc, _, pub := newIngestFixture(t)

	for _, name := range []string{"data.txt", "data.csv.gz", "data"} {
		_, err := svc.IngestCSV(context.Background(), name, strings.NewReader(validHeader))
		if !errors.Is(err, core.ErrInvalidFormat) {
			t.Fatalf("%s: expected ErrInvalidFormat, got %v", name, err)
		}
	}
	if pub.calls != 0 {
		t.Fatalf("publisher must not be notified for rejected uploads")
	}

	// Suffix check is case-insensitive.
	if _, err := svc.IngestCSV(context.Background(), "DATA.CSV", strings.NewReader(validHeader)); err != nil {
		t.Fatalf("uppercase extension rejected: %v", err)
	}
}

func TestIngestCSV_MissingColumns(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	body := "transaction_id,timestamp\nt1,2025-01-01\n"
	_, err := svc.IngestCSV(context.Background(), "partial.csv", strings.NewReader(body))

	var missingErr *core.MissingColumnsError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	want := []string{"product_id", "transaction_amount", "user_id"}
	if len(missingErr.Columns) != len(want) {
		t.Fatalf("missing = %v, want %v", missingErr.Columns, want)
	}
	for i, col := range want {
		if missingErr.Columns[i] != col {
			t.Fatalf("missing = %v, want sorted %v", missingErr.Columns, want)
		}
	}
}

func TestIngestCSV_ExtraColumnsIgnored(t *testing.T) {
	svc, repo, _ := newIngestFixture(t)

	body := "extra,transaction_id,user_id,product_id,timestamp,transaction_amount\n" +
		"x,t1,4,10,2025-01-01 10:00:00,5.0\n"
	n, err := svc.IngestCSV(context.Background(), "extra.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1", n)
	}
	if got := userCount(t, repo, 4); got != 1 {
		t.Fatalf("stored rows = %d, want 1", got)
	}
}

func TestIngestCSV_BadValueRejectsWholeBatch(t *testing.T) {
	svc, repo, pub := newIngestFixture(t)

	body := validHeader +
		"t1,1,10,2025-01-01 10:00:00,100.0\n" +
		"t2,not-an-int,11,2025-01-02 11:30:00,50.5\n"

	_, err := svc.IngestCSV(context.Background(), "bad.csv", strings.NewReader(body))
	var convErr *core.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Column != "user_id" || convErr.Line != 3 {
		t.Fatalf("unexpected conversion error detail: %+v", convErr)
	}

	// No partial insert: the valid first row must not be stored.
	if got := userCount(t, repo, 1); got != 0 {
		t.Fatalf("stored rows = %d, want 0 after rejected batch", got)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher must not be notified for rejected uploads")
	}
}

func TestIngestCSV_NonNumericAmountRejected(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	body := validHeader + "t1,1,10,2025-01-01,ten\n"
	_, err := svc.IngestCSV(context.Background(), "bad.csv", strings.NewReader(body))

	var convErr *core.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Column != "transaction_amount" {
		t.Fatalf("column = %s, want transaction_amount", convErr.Column)
	}
}

func TestIngestCSV_WhitespacePaddedNumerics(t *testing.T) {
	svc, repo, _ := newIngestFixture(t)

	body := validHeader + "t1, 60 , 42.0 ,2025-01-01 10:00:00, 42.0 \n"
	n, err := svc.IngestCSV(context.Background(), "padded.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1", n)
	}

	res, err := repo.AggregateByUser(context.Background(), 60, nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Count != 1 || !res.Min.Valid || res.Min.Float64 != 42.0 {
		t.Fatalf("stored value mismatch: %+v", res)
	}
}

func TestIngestCSV_EmptyAmountInsertsNull(t *testing.T) {
	svc, repo, _ := newIngestFixture(t)

	body := validHeader + "t1,9,10,2025-01-01 10:00:00,\n"
	n, err := svc.IngestCSV(context.Background(), "null.csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1", n)
	}

	res, err := repo.AggregateByUser(context.Background(), 9, nil, nil)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if res.Count != 1 {
		t.Fatalf("count = %d, want 1 (NULL amount still counts)", res.Count)
	}
	if res.Min.Valid || res.Max.Valid || res.Mean.Valid {
		t.Fatalf("expected absent stats over NULL-only amounts, got %+v", res)
	}
}

func TestIngestCSV_RaggedRowRejected(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	body := validHeader + "t1,1,10\n"
	_, err := svc.IngestCSV(context.Background(), "ragged.csv", strings.NewReader(body))

	var convErr *core.ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError for ragged row, got %v", err)
	}
}

func TestIngestCSV_EmptyFileReportsAllColumnsMissing(t *testing.T) {
	svc, _, _ := newIngestFixture(t)

	_, err := svc.IngestCSV(context.Background(), "empty.csv", strings.NewReader(""))
	var missingErr *core.MissingColumnsError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if len(missingErr.Columns) != len(core.RequiredColumns) {
		t.Fatalf("missing = %v, want all %d required columns", missingErr.Columns, len(core.RequiredColumns))
	}
}

func TestIngestCSV_PublishFailureDoesNotFailUpload(t *testing.T) {
	svc, _, pub := newIngestFixture(t)
	pub.err = errors.New("broker down")

	n, err := svc.IngestCSV(context.Background(), "ok.csv",
		strings.NewReader(validHeader+"t1,1,10,2025-01-01,1.0\n"))
	if err != nil {
		t.Fatalf("ingest must succeed despite publish failure: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1", n)
	}
}

func TestIngestCSV_ReuploadAppends(t *testing.T) {
	svc, repo, _ := newIngestFixture(t)

	body := validHeader + "t1,2,10,2025-01-01,1.0\n"
	for i := 0; i < 2; i++ {
		if _, err := svc.IngestCSV(context.Background(), "again.csv", strings.NewReader(body)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}
	if got := userCount(t, repo, 2); got != 2 {
		t.Fatalf("stored rows = %d, want 2 (append-only, no dedup)", got)
	}
}

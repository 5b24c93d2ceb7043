package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"txsummary/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the connection to the on-disk transactions
// dataset. The schema is created idempotently when the repository is
// constructed.
type SQLiteRepository struct {
	db *sql.DB
}

// AggregateResult carries raw aggregate values from the engine. Min, Max
// and Mean are invalid when Count is 0 or when every matched amount is
// NULL; Count is row presence, not non-NULL-amount presence.
type AggregateResult struct {
	Count int64
	Min   sql.NullFloat64
	Max   sql.NullFloat64
	Mean  sql.NullFloat64
}

// IngestAudit is one recorded upload, written by the audit worker.
type IngestAudit struct {
	ID           int64
	Filename     string
	RowsInserted int64
	ReceivedAt   time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite does not benefit from multiple writer connections; one
	// connection also keeps concurrent request writes serialized at the
	// engine rather than failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransactions writes an already-validated batch in a single
// transaction. All rows insert or none do; the row count is returned,
// with 0 valid for an empty batch.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, batch []core.Transaction) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StorageError{Op: "begin insert", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (transaction_id, user_id, product_id, timestamp, transaction_amount)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, &core.StorageError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	for _, t := range batch {
		amount := sql.NullFloat64{Float64: t.Amount.Value, Valid: t.Amount.Valid}
		_, err := stmt.ExecContext(ctx,
			t.TransactionID,
			t.UserID,
			t.ProductID,
			t.Timestamp.Format(core.TimestampLayout),
			amount,
		)
		if err != nil {
			return 0, &core.StorageError{Op: "insert transactions", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &core.StorageError{Op: "commit insert", Err: err}
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "rows", len(batch))
	return int64(len(batch)), nil
}

// Fixed aggregate templates, one per combination of present bounds. The
// lower bound is inclusive, the upper exclusive; bounds bind as TEXT in
// the canonical timestamp layout.
const (
	aggregateBase    = `SELECT COUNT(*), MIN(transaction_amount), MAX(transaction_amount), AVG(transaction_amount) FROM transactions WHERE user_id = ?`
	aggregateFrom    = aggregateBase + ` AND timestamp >= ?`
	aggregateUntil   = aggregateBase + ` AND timestamp < ?`
	aggregateBetween = aggregateBase + ` AND timestamp >= ? AND timestamp < ?`
)

// AggregateByUser returns count/min/max/mean of transaction_amount for a
// user, optionally bounded below (inclusive) and above (exclusive).
func (r *SQLiteRepository) AggregateByUser(ctx context.Context, userID int64, lower, upper *time.Time) (AggregateResult, error) {
	var (
		query string
		args  []any
	)

	switch {
	case lower != nil && upper != nil:
		query = aggregateBetween
		args = []any{userID, lower.Format(core.TimestampLayout), upper.Format(core.TimestampLayout)}
	case lower != nil:
		query = aggregateFrom
		args = []any{userID, lower.Format(core.TimestampLayout)}
	case upper != nil:
		query = aggregateUntil
		args = []any{userID, upper.Format(core.TimestampLayout)}
	default:
		query = aggregateBase
		args = []any{userID}
	}

	var res AggregateResult
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&res.Count, &res.Min, &res.Max, &res.Mean); err != nil {
		return AggregateResult{}, &core.StorageError{Op: "aggregate transactions", Err: err}
	}

	return res, nil
}

// RecordIngestAudit appends one audit row for a completed upload.
func (r *SQLiteRepository) RecordIngestAudit(ctx context.Context, filename string, rows int64, receivedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingest_audit (filename, rows_inserted, received_at)
		VALUES (?, ?, ?)`,
		filename, rows, receivedAt.UTC().Format(core.TimestampLayout))
	if err != nil {
		return &core.StorageError{Op: "record ingest audit", Err: err}
	}

	slog.InfoContext(ctx, "Ingest audit recorded", "filename", filename, "rows", rows)
	return nil
}

// ListIngestAudits returns all recorded uploads, oldest first.
func (r *SQLiteRepository) ListIngestAudits(ctx context.Context) ([]IngestAudit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, filename, rows_inserted, received_at
		FROM ingest_audit ORDER BY id`)
	if err != nil {
		return nil, &core.StorageError{Op: "list ingest audits", Err: err}
	}
	defer rows.Close()

	var audits []IngestAudit
	for rows.Next() {
		var (
			a  IngestAudit
			ts string
		)
		if err := rows.Scan(&a.ID, &a.Filename, &a.RowsInserted, &ts); err != nil {
			return nil, &core.StorageError{Op: "scan ingest audit", Err: err}
		}
		received, err := time.Parse(core.TimestampLayout, ts)
		if err != nil {
			return nil, &core.StorageError{Op: "parse ingest audit timestamp", Err: err}
		}
		a.ReceivedAt = received
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StorageError{Op: "iterate ingest audits", Err: err}
	}

	return audits, nil
}

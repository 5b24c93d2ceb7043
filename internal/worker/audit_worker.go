package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"txsummary/internal/amqp"
)

// AuditRecorder is the slice of storage the audit worker needs.
type AuditRecorder interface {
	RecordIngestAudit(ctx context.Context, filename string, rows int64, receivedAt time.Time) error
}

// AuditWorker records upload-ingested events in the ingest_audit table.
// The API never depends on it; it trails the upload pipeline
// asynchronously.
type AuditWorker struct {
	store AuditRecorder
}

func NewAuditWorker(store AuditRecorder) *AuditWorker {
	return &AuditWorker{store: store}
}

// HandleUploadIngested processes a single upload event. Returning an
// error requeues the delivery.
func (w *AuditWorker) HandleUploadIngested(ctx context.Context, msg *amqp.UploadIngestedMessage) error {
	slog.InfoContext(ctx, "Processing upload ingested message",
		"filename", msg.Filename,
		"rows", msg.RowsInserted)

	if err := w.store.RecordIngestAudit(ctx, msg.Filename, msg.RowsInserted, msg.ReceivedAt); err != nil {
		return fmt.Errorf("record ingest audit: %w", err)
	}

	return nil
}

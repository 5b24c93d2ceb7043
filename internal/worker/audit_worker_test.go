package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"txsummary/internal/amqp"
)

type fakeRecorder struct {
	filename string
	rows     int64
	received time.Time
	err      error
}

func (f *fakeRecorder) RecordIngestAudit(ctx context.Context, filename string, rows int64, receivedAt time.Time) error {
	f.filename = filename
	f.rows = rows
	f.received = receivedAt
	return f.err
}

func TestHandleUploadIngested(t *testing.T) {
	rec := &fakeRecorder{}
	w := NewAuditWorker(rec)

	msg := &amqp.UploadIngestedMessage{
		Filename:     "batch.csv",
		RowsInserted: 7,
		ReceivedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := w.HandleUploadIngested(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if rec.filename != "batch.csv" || rec.rows != 7 || !rec.received.Equal(msg.ReceivedAt) {
		t.Fatalf("recorder got %+v", rec)
	}
}

func TestHandleUploadIngested_RecordFailure(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db locked")}
	w := NewAuditWorker(rec)

	msg := &amqp.UploadIngestedMessage{Filename: "batch.csv", RowsInserted: 1, ReceivedAt: time.Now()}
	if err := w.HandleUploadIngested(context.Background(), msg); err == nil {
		t.Fatalf("expected error so the delivery is requeued")
	}
}

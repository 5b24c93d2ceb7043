package amqp

import (
	"encoding/json"
	"time"
)

// UploadIngestedMessage announces a successfully ingested CSV upload.
// The audit worker consumes these and records them in the ingest_audit
// table.
type UploadIngestedMessage struct {
	Filename     string    `json:"filename"`
	RowsInserted int64     `json:"rows_inserted"`
	ReceivedAt   time.Time `json:"received_at"`
}

// NewUploadIngestedMessage creates an upload event stamped with now.
func NewUploadIngestedMessage(filename string, rows int64) *UploadIngestedMessage {
	return &UploadIngestedMessage{
		Filename:     filename,
		RowsInserted: rows,
		ReceivedAt:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *UploadIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadIngestedMessageFromJSON creates a message from JSON bytes.
func UploadIngestedMessageFromJSON(data []byte) (*UploadIngestedMessage, error) {
	var msg UploadIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package amqp

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// UploadLoadedMessage announces a newly loaded spreadsheet. The worker
// reads the records themselves back from the upload catalog.
type UploadLoadedMessage struct {
	Fingerprint string    `json:"fingerprint"`
	Filename    string    `json:"filename"`
	Rows        int       `json:"rows"`
	TotalHours  float64   `json:"total_hours"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewUploadLoadedMessage stamps a message with the current time.
func NewUploadLoadedMessage(fingerprint, filename string, rows int, totalHours float64) *UploadLoadedMessage {
	return &UploadLoadedMessage{
		Fingerprint: fingerprint,
		Filename:    filename,
		Rows:        rows,
		TotalHours:  totalHours,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *UploadLoadedMessage) ToJSON() ([]byte, error) {
	return sonic.Marshal(m)
}

// UploadLoadedMessageFromJSON decodes and validates a message body.
func UploadLoadedMessageFromJSON(data []byte) (*UploadLoadedMessage, error) {
	var msg UploadLoadedMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Fingerprint == "" {
		return nil, fmt.Errorf("message has no fingerprint")
	}
	return &msg, nil
}

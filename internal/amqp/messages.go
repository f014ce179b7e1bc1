package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Routing keys on the sync exchange.
const (
	RoutingSyncCompleted = "sync.completed"
)

// SyncRequestMessage asks a worker to run the pipeline once.
type SyncRequestMessage struct {
	ID          string    `json:"id"`
	Trigger     string    `json:"trigger"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewSyncRequestMessage creates a request with a fresh id.
func NewSyncRequestMessage(trigger, requestedBy string) *SyncRequestMessage {
	return &SyncRequestMessage{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		RequestedBy: requestedBy,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncRequestMessageFromJSON decodes a request. Missing triggers default
// to "amqp".
func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Trigger == "" {
		msg.Trigger = "amqp"
	}
	return &msg, nil
}

// SyncCompletedMessage is published after every run.
type SyncCompletedMessage struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Updated    int       `json:"updated"`
	Created    int       `json:"created"`
	Errors     int       `json:"errors"`
	Failed     []string  `json:"failed,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ToJSON converts the message to JSON bytes
func (m *SyncCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncCompletedMessageFromJSON decodes a completion event.
func SyncCompletedMessageFromJSON(data []byte) (*SyncCompletedMessage, error) {
	var msg SyncCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

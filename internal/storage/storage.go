package storage

import "time"

// Event records one completed exchange between a user and the assistant.
// It is intentionally simple to allow future DB implementations.
// Events are expected to be appended in chronological order.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	UserID            string    `json:"user_id"`
	ChannelID         string    `json:"channel_id"`
	Model             string    `json:"model"`
	Lang              string    `json:"lang"`
	Cached            bool      `json:"cached,omitempty"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
}

// Recorder abstracts persistence of interaction events.
// Implementations can be file-based, database, etc.
// LoadInteractions should return events in chronological order.
// AppendInteraction should atomically append a new event.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}

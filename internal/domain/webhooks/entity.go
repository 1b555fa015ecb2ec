package webhooks

import (
	"encoding/json"
	"time"
)

// EventType enum
type EventType string

const (
	EventStarted   EventType = "analysis_started"
	EventProgress  EventType = "analysis_progress"
	EventCompleted EventType = "analysis_completed"
	EventError     EventType = "analysis_error"
)

func (t EventType) Known() bool {
	switch t {
	case EventStarted, EventProgress, EventCompleted, EventError:
		return true
	}
	return false
}

// Usage token counts reported by the platform
type Usage struct {
	TotalTokens      int `json:"total_tokens,omitempty"`
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

type EventResult struct {
	Answer   string `json:"answer"`
	Metadata *struct {
		Usage *Usage `json:"usage,omitempty"`
	} `json:"metadata,omitempty"`
}

type EventFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is a callback posted by the workflow platform.
type Event struct {
	Event          EventType       `json:"event"`
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id"`
	Result         *EventResult    `json:"result,omitempty"`
	Error          *EventFailure   `json:"error,omitempty"`
	Timestamp      string          `json:"timestamp"`
	Raw            json.RawMessage `json:"-"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// Summary is the debug listing view.
type Summary struct {
	ConversationID string    `json:"conversation_id"`
	Event          EventType `json:"event"`
	Timestamp      string    `json:"timestamp"`
	HasResult      bool      `json:"has_result"`
}

func (e Event) Summary() Summary {
	return Summary{
		ConversationID: e.ConversationID,
		Event:          e.Event,
		Timestamp:      e.Timestamp,
		HasResult:      e.Result != nil,
	}
}

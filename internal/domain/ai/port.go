package ai

import "context"

// Message is one blocking request to an upstream judge backend.
type Message struct {
	Credential string
	Model      string
	// Persona is a system-style instruction; ignored by backends without one.
	Persona string
	Query   string
	Inputs  map[string]any
	User    string
}

// Reply is the upstream answer. Raw holds the full decoded body so callers
// can pass it through unchanged.
type Reply struct {
	Answer         string
	ConversationID string
	MessageID      string
	TotalTokens    int
	Raw            map[string]any
	Body           []byte
}

// Backend sends one Message and waits for the answer. Implementations
// return *UpstreamError or *TransportError on failure and never retry.
type Backend interface {
	Send(ctx context.Context, msg Message) (*Reply, error)
}

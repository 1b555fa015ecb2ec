package webhooks

import "context"

// EventStore keeps completed events by conversation id.
type EventStore interface {
	Put(ctx context.Context, e Event) error
	Get(ctx context.Context, conversationID string) (Event, bool, error)
	List(ctx context.Context) ([]Event, error)
}

package analysis

import (
	"context"
	"time"
)

// ResultStore port. Get/Merge return ErrNotFound for unknown ids.
type ResultStore interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// Merge shallow-merges fields into the stored result data, last write wins.
	Merge(ctx context.Context, id string, fields map[string]any, at time.Time) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

// CommentRepository port for the external judge_comments table.
type CommentRepository interface {
	Save(ctx context.Context, c *Comment) error
	// LatestByRepo returns nil, nil when nothing was stored for repoURL.
	LatestByRepo(ctx context.Context, repoURL string) (*Comment, error)
}

// Archive port (object storage for raw upstream replies)
type Archive interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}

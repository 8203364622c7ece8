package alert

import (
	"context"
	"time"
)

// Alert is one raw social-media trade notice as delivered by the ingestion
// collaborator. Immutable once ingested; the classifier only ever reads it.
type Alert struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed delivers alerts one at a time. Implementations may poll or push; the
// returned channel is closed when the context is cancelled or the feed fails.
type Feed interface {
	Watch(ctx context.Context) (<-chan Alert, error)
}

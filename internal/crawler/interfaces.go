package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a page over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Renderer executes a page with JavaScript enabled and returns the DOM snapshot.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
	Close(ctx context.Context) error
}

// Detector decides whether a fetched page needs a browser render.
type Detector interface {
	NeedsJS(ctx context.Context, page Page) bool
}

// RobotsPolicy answers whether a URL may be fetched under robots.txt rules.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Cache stores and retrieves previously computed results keyed by URL.
type Cache interface {
	Get(ctx context.Context, rawURL string) (Result, bool, error)
	Put(ctx context.Context, rawURL string, result Result) error
}

// TaskStore persists task metadata and per-URL results.
type TaskStore interface {
	CreateTask(ctx context.Context, task Task) error
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, errText string, counters TaskCounters) error
	RecordResult(ctx context.Context, taskID string, result Result) error
	GetTask(ctx context.Context, taskID string) (Task, error)
	ListResults(ctx context.Context, taskID string) ([]Result, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl tasks.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves a URL. It never returns an error: every failure is
// folded into the result.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) FetchResult
}

// PageStore persists pages into per-post folders.
type PageStore interface {
	FolderExists(path string) (bool, error)
	EnsureFolder(path string) error
	WritePage(folder, name, html string) (string, error)
}

// Queue is a FIFO work queue. Done acknowledges one dequeued item.
type Queue[T any] interface {
	Enqueue(ctx context.Context, item T) error
	Dequeue(ctx context.Context) (T, error)
	Done()
	Len() int
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

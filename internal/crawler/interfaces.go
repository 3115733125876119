package crawler

import (
	"context"
	"io"
	"time"
)

// ListingRenderer renders one listing page and returns the cart identifiers on it.
// A page that shows no listing element within the wait window yields an empty
// slice and a nil error.
type ListingRenderer interface {
	ListPage(ctx context.Context, page int) ([]string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResponse, error)
}

// ItemRetriever resolves one identifier into a Record.
type ItemRetriever interface {
	Retrieve(ctx context.Context, id string) (Record, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// SnapshotStore persists and reloads the sorted record list.
type SnapshotStore interface {
	Save(ctx context.Context, records []Record) error
	Load(ctx context.Context) ([]Record, error)
	Path() string
}

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

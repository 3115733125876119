package crawler

import (
	"net/http"
	"time"
)

// Record is the metadata retrieved for a single cart. Its JSON shape is the
// snapshot format.
type Record struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	AssetPath     string `json:"url"`
	FavoriteCount int    `json:"favoriteCount"`
}

// Listing is the outcome of walking the paginated cart listing.
type Listing struct {
	// IDs is the unordered union of identifiers found on non-empty pages.
	IDs []string
	// FailedPages lists pages that exhausted their retry budget, ascending.
	FailedPages []int
	// PagesFetched counts pages that returned a result, empty pages included.
	PagesFetched int
	// Boundary is the lowest page observed to be empty, or 0 when none was seen.
	Boundary int
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// DownloadStats counts the outcome of a download batch.
type DownloadStats struct {
	Downloaded int
	Failed     int
}

// Summary describes a finished crawl run.
type Summary struct {
	RunID            string
	PagesFetched     int
	FailedPages      []int
	IDs              int
	Records          int
	Downloaded       int
	DownloadFailures int
	SnapshotPath     string
	Duration         time.Duration
}

package crawler

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/cart-crawler/internal/metrics"
)

const (
	// DefaultPageWaveSize is the number of listing pages fetched concurrently per wave.
	DefaultPageWaveSize = 10
	// DefaultMaxFailedWaves is how many consecutive fully failed waves end the walk.
	DefaultMaxFailedWaves = 3
)

// Enumerator walks the paginated listing from page 1 until the first empty page.
type Enumerator struct {
	renderer ListingRenderer
	retry    RetryPolicy
	waveSize int
	// maxFailedWaves bounds consecutive waves in which every page failed.
	maxFailedWaves int
	logger         *zap.Logger
}

// NewEnumerator builds an Enumerator. A nil retry policy means a single attempt.
func NewEnumerator(renderer ListingRenderer, retry RetryPolicy, waveSize int, logger *zap.Logger) *Enumerator {
	if retry == nil {
		retry = NewExponentialRetryPolicy(1, 0, 0)
	}
	if waveSize <= 0 {
		waveSize = DefaultPageWaveSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		renderer:       renderer,
		retry:          retry,
		waveSize:       waveSize,
		maxFailedWaves: DefaultMaxFailedWaves,
		logger:         logger.Named("enumerator"),
	}
}

// WithMaxFailedWaves sets how many consecutive fully failed waves stop the
// walk. Non-positive values keep the default.
func (e *Enumerator) WithMaxFailedWaves(n int) *Enumerator {
	if n > 0 {
		e.maxFailedWaves = n
	}
	return e
}

// Enumerate fetches listing pages in waves and returns every identifier found.
//
// Pages are reserved in increasing order and a wave never reserves a page at
// or above the lowest empty page seen so far. Results from higher pages that
// completed before the boundary was discovered are kept. A page that exhausts
// its retries is reported in Listing.FailedPages. A wave in which every page
// fails does not end the walk by itself; after maxFailedWaves such waves in a
// row the walk stops with ErrListingUnavailable, returning what was collected
// so far.
func (e *Enumerator) Enumerate(ctx context.Context) (Listing, error) {
	var (
		cursor   atomic.Int64
		boundary = newPageBoundary()
		acc      listingAccumulator
		// consecutive fully failed waves
		failedWaves int
	)

	for wave := 1; cursor.Load()+1 < boundary.load(); wave++ {
		if err := ctx.Err(); err != nil {
			return acc.listing(boundary), fmt.Errorf("enumerate canceled: %w", err)
		}

		var (
			g        errgroup.Group
			launched atomic.Int32
			failed   atomic.Int32
		)
		for i := 0; i < e.waveSize; i++ {
			page := cursor.Add(1)
			if page >= boundary.load() {
				break
			}
			launched.Add(1)
			g.Go(func() error {
				ids, err := e.fetchPage(ctx, int(page))
				if err != nil {
					failed.Add(1)
					metrics.ObservePage(metrics.OutcomeFailed)
					e.logger.Error("listing page dropped", zap.Int("page", int(page)), zap.Error(err))
					acc.fail(int(page))
					return nil
				}
				if len(ids) == 0 {
					metrics.ObservePage(metrics.OutcomeEmpty)
					if boundary.lower(page) {
						e.logger.Info("empty listing page", zap.Int("page", int(page)))
					}
				} else {
					metrics.ObservePage(metrics.OutcomeOK)
					e.logger.Info("retrieved carts on page", zap.Int("page", int(page)), zap.Int("carts", len(ids)))
				}
				acc.add(ids)
				return nil
			})
		}
		_ = g.Wait()

		n := launched.Load()
		if n == 0 || failed.Load() < n {
			failedWaves = 0
			continue
		}
		failedWaves++
		e.logger.Warn("every page of the wave failed",
			zap.Int("wave", wave),
			zap.Int("pages", int(n)),
			zap.Int("consecutive", failedWaves),
		)
		if failedWaves >= e.maxFailedWaves {
			return acc.listing(boundary), fmt.Errorf("%d consecutive waves failed, last at wave %d: %w",
				failedWaves, wave, ErrListingUnavailable)
		}
	}
	return acc.listing(boundary), nil
}

func (e *Enumerator) fetchPage(ctx context.Context, page int) ([]string, error) {
	for attempt := 1; ; attempt++ {
		ids, err := e.renderer.ListPage(ctx, page)
		if err == nil {
			return ids, nil
		}
		if ctx.Err() != nil || !e.retry.ShouldRetry(err, attempt) {
			return nil, &PageFetchError{Page: page, Attempts: attempt, Err: err}
		}
		metrics.ObservePageRetry()
		wait := e.retry.Backoff(attempt)
		e.logger.Warn("listing page failed, retrying",
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, &PageFetchError{Page: page, Attempts: attempt, Err: err}
		}
	}
}

// pageBoundary holds the lowest page number known to be empty.
type pageBoundary struct {
	v atomic.Int64
}

func newPageBoundary() *pageBoundary {
	b := &pageBoundary{}
	b.v.Store(math.MaxInt64)
	return b
}

func (b *pageBoundary) load() int64 {
	return b.v.Load()
}

// lower moves the boundary down to page and reports whether it did.
func (b *pageBoundary) lower(page int64) bool {
	for {
		cur := b.v.Load()
		if page >= cur {
			return false
		}
		if b.v.CompareAndSwap(cur, page) {
			return true
		}
	}
}

type listingAccumulator struct {
	mu      sync.Mutex
	ids     []string
	failed  []int
	fetched int
}

func (a *listingAccumulator) add(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, ids...)
	a.fetched++
}

func (a *listingAccumulator) fail(page int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = append(a.failed, page)
}

func (a *listingAccumulator) listing(b *pageBoundary) Listing {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := Listing{
		IDs:          slices.Clone(a.ids),
		PagesFetched: a.fetched,
	}
	limit := b.load()
	if limit != math.MaxInt64 {
		out.Boundary = int(limit)
	}
	// Failures past the boundary would have been empty pages anyway.
	for _, page := range a.failed {
		if int64(page) < limit {
			out.FailedPages = append(out.FailedPages, page)
		}
	}
	slices.Sort(out.FailedPages)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

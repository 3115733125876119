// Package app builds and holds the long-lived services a command needs,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/config"
	"github.com/JakeFAU/cart-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/cart-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/cart-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/cart-crawler/internal/id/uuid"
	"github.com/JakeFAU/cart-crawler/internal/metrics"
	"github.com/JakeFAU/cart-crawler/internal/ratelimit"
	"github.com/JakeFAU/cart-crawler/internal/snapshot"
	"github.com/JakeFAU/cart-crawler/internal/storage/gcs"
	"github.com/JakeFAU/cart-crawler/internal/storage/local"
)

// App holds the shared services for one command invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   crawler.Fetcher
	blobs     crawler.BlobStore
	snapshots crawler.SnapshotStore
	metrics   *metrics.Server
	closers   []func() error
}

// New initializes the storage backend, snapshot store, HTTP fetcher and,
// when configured, the metrics server. It fails fast on any of them.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	blobs, closer, err := openBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.blobs = blobs
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	snapshots, err := snapshot.NewFileStore(cfg.Storage.SnapshotPath)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	a.snapshots = snapshots

	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
		MaxBodySize:   cfg.HTTP.MaxBodyBytes,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
			Burst:             cfg.HTTP.Burst,
		}),
	})

	metrics.Init()
	if cfg.Metrics.ListenAddr != "" {
		a.metrics = metrics.NewServer(cfg.Metrics.ListenAddr, logger)
		a.metrics.Start()
	}

	logger.Info("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("snapshot", snapshots.Path()),
	)
	return a, nil
}

func openBlobStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (crawler.BlobStore, func() error, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		logger.Info("using gcs asset storage", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.Prefix))
		store, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, store.Close, nil
	case config.BackendLocal:
		if err := os.MkdirAll(cfg.AssetsDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create assets dir: %w", err)
		}
		logger.Info("using local asset storage", zap.String("dir", cfg.AssetsDir))
		store, err := local.New(local.Config{BaseDir: cfg.AssetsDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// NewRenderer launches the headless browser used to render listing pages.
// The caller closes it.
func (a *App) NewRenderer() (*headless.Renderer, error) {
	renderer, err := headless.NewChromedp(headless.Config{
		BaseURL:           a.cfg.Site.BaseURL,
		Category:          a.cfg.Site.Category,
		Sub:               a.cfg.Site.Sub,
		UserAgent:         a.cfg.Crawler.UserAgent,
		Headless:          a.cfg.Headless.Headless,
		NavigationTimeout: a.cfg.NavigationTimeout(),
		WaitTimeout:       a.cfg.Crawler.PageWaitTimeout,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init headless renderer: %w", err)
	}
	return renderer, nil
}

// CrawlPipeline wires the full crawl around renderer.
func (a *App) CrawlPipeline(renderer crawler.ListingRenderer) *crawler.Pipeline {
	c := a.cfg.Crawler
	enumerator := crawler.NewEnumerator(
		renderer,
		crawler.NewExponentialRetryPolicy(c.PageMaxAttempts, c.RetryBaseDelay, c.RetryMaxDelay),
		c.PageWaveSize,
		a.logger,
	).WithMaxFailedWaves(c.MaxFailedWaves)
	batch := crawler.NewBatchRetriever(crawler.NewRetriever(a.fetcher, a.cfg.Site.BaseURL), c.PoolBatchSize, a.logger)
	return crawler.NewPipeline(
		enumerator,
		batch,
		a.downloader(),
		a.snapshots,
		uuid.New(),
		crawler.PipelineConfig{DedupeIDs: c.DedupeIDs, DownloadAssets: c.DownloadAssets},
		a.logger,
	)
}

// DownloadPipeline wires a pipeline that only replays the stored snapshot.
func (a *App) DownloadPipeline() *crawler.Pipeline {
	return crawler.NewPipeline(nil, nil, a.downloader(), a.snapshots, uuid.New(),
		crawler.PipelineConfig{DownloadAssets: true}, a.logger)
}

func (a *App) downloader() *crawler.Downloader {
	return crawler.NewDownloader(a.fetcher, a.blobs, a.cfg.Site.BaseURL, a.cfg.Crawler.PoolBatchSize, a.logger)
}

// Close shuts down the metrics server and storage clients, then flushes the logger.
func (a *App) Close(ctx context.Context) {
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.logger.Warn("error stopping metrics server", zap.Error(err))
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("error closing storage client", zap.Error(err))
		}
	}
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
}

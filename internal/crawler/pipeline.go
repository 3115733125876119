package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/logging"
)

// PipelineConfig toggles optional pipeline stages.
type PipelineConfig struct {
	DedupeIDs      bool
	DownloadAssets bool
}

// Pipeline composes enumeration, retrieval, sorting, download and snapshot
// persistence into one run.
type Pipeline struct {
	enumerator *Enumerator
	batch      *BatchRetriever
	downloader *Downloader
	snapshots  SnapshotStore
	ids        IDGenerator
	cfg        PipelineConfig
	logger     *zap.Logger
}

// NewPipeline wires the pipeline stages. The enumerator may be nil for
// pipelines that only replay a stored snapshot.
func NewPipeline(
	enumerator *Enumerator,
	batch *BatchRetriever,
	downloader *Downloader,
	snapshots SnapshotStore,
	ids IDGenerator,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		enumerator: enumerator,
		batch:      batch,
		downloader: downloader,
		snapshots:  snapshots,
		ids:        ids,
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
	}
}

// Run executes a full crawl. Per-page and per-item failures only shrink the
// result; the returned error is non-nil only when the snapshot cannot be saved
// or the run is missing a stage.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if p.enumerator == nil || p.batch == nil {
		return Summary{}, errors.New("pipeline requires an enumerator and a batch retriever")
	}
	start := time.Now()
	summary := Summary{RunID: p.runID(), SnapshotPath: p.snapshots.Path()}
	logger := logging.ForRun(p.logger, summary.RunID)
	logger.Info("crawl started")

	listing, err := p.enumerator.Enumerate(ctx)
	if err != nil {
		logger.Warn("listing enumeration stopped early", zap.Error(err))
	}
	if len(listing.FailedPages) > 0 {
		logger.Warn("partial listing: pages dropped after exhausting retries",
			zap.Ints("failed_pages", listing.FailedPages),
		)
	}
	summary.PagesFetched = listing.PagesFetched
	summary.FailedPages = listing.FailedPages

	ids := listing.IDs
	if p.cfg.DedupeIDs {
		ids = UniqueIDs(ids)
	}
	summary.IDs = len(ids)
	logger.Info("listing enumerated", zap.Int("ids", len(ids)), zap.Int("boundary", listing.Boundary))

	records := SortByFavorites(p.batch.RetrieveAll(ctx, ids))
	summary.Records = len(records)

	if p.cfg.DownloadAssets && p.downloader != nil {
		stats := p.downloader.DownloadAll(ctx, records)
		summary.Downloaded = stats.Downloaded
		summary.DownloadFailures = stats.Failed
	}

	if err := p.snapshots.Save(ctx, records); err != nil {
		return summary, fmt.Errorf("save snapshot: %w", err)
	}
	summary.Duration = time.Since(start)
	logger.Info("crawl finished",
		zap.Int("pages", summary.PagesFetched),
		zap.Int("records", summary.Records),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("download_failures", summary.DownloadFailures),
		zap.String("snapshot", summary.SnapshotPath),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// DownloadSnapshot reloads the stored snapshot and downloads its assets in
// snapshot order.
func (p *Pipeline) DownloadSnapshot(ctx context.Context) (DownloadStats, error) {
	if p.downloader == nil {
		return DownloadStats{}, errors.New("pipeline has no downloader")
	}
	records, err := p.snapshots.Load(ctx)
	if err != nil {
		return DownloadStats{}, fmt.Errorf("load snapshot: %w", err)
	}
	p.logger.Info("snapshot loaded", zap.String("path", p.snapshots.Path()), zap.Int("records", len(records)))
	return p.downloader.DownloadAll(ctx, records), nil
}

func (p *Pipeline) runID() string {
	if p.ids == nil {
		return ""
	}
	id, err := p.ids.NewID()
	if err != nil {
		p.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

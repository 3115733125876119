package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/cart-crawler/internal/metrics"
	"github.com/JakeFAU/cart-crawler/internal/pool"
)

const (
	// AssetExtension is appended to every downloaded cart file.
	AssetExtension   = ".p8.png"
	assetContentType = "image/png"
)

var titleSanitizer = strings.NewReplacer("/", "_", `\`, "_")

// Downloader fetches cart assets and writes them to a BlobStore.
type Downloader struct {
	fetcher   Fetcher
	store     BlobStore
	baseURL   string
	batchSize int
	logger    *zap.Logger
}

// NewDownloader builds a Downloader for the site rooted at baseURL.
func NewDownloader(fetcher Fetcher, store BlobStore, baseURL string, batchSize int, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		fetcher:   fetcher,
		store:     store,
		baseURL:   baseURL,
		batchSize: batchSize,
		logger:    logger.Named("downloader"),
	}
}

// AssetFileName names the file for the record at position rank.
func AssetFileName(rank int, title string) string {
	return fmt.Sprintf("%d - %s%s", rank, titleSanitizer.Replace(title), AssetExtension)
}

// DownloadAll downloads the asset of every record. Position in records is the
// file's rank prefix, so callers pass them already sorted. Failures are logged
// and counted; partially written files are not cleaned up.
func (d *Downloader) DownloadAll(ctx context.Context, records []Record) DownloadStats {
	p := pool.New("download", d.logger)
	total := len(records)

	for i, record := range records {
		p.Submit(func(ctx context.Context) error {
			path, err := d.download(ctx, i, record)
			if err != nil {
				d.logger.Error("error downloading cart",
					zap.Int("rank", i),
					zap.String("id", record.ID),
					zap.Error(err),
				)
				return err
			}
			d.logger.Info(fmt.Sprintf("Downloaded %s [%d/%d]", record.Title, i, total),
				zap.String("id", record.ID),
				zap.String("path", path),
			)
			return nil
		})
	}

	stats := p.Drain(ctx, d.batchSize)
	return DownloadStats{
		Downloaded: stats.Succeeded,
		Failed:     stats.Failed,
	}
}

func (d *Downloader) download(ctx context.Context, rank int, record Record) (string, error) {
	assetURL := AssetURL(d.baseURL, record.AssetPath)
	resp, err := d.fetcher.Fetch(ctx, assetURL)
	if err != nil {
		metrics.ObserveDownload(assetURL, metrics.OutcomeFailed, 0)
		return "", fmt.Errorf("fetch asset %s: %w", assetURL, err)
	}
	uri, err := d.store.PutObject(ctx, AssetFileName(rank, record.Title), assetContentType, bytes.NewReader(resp.Body))
	if err != nil {
		metrics.ObserveDownload(assetURL, metrics.OutcomeFailed, len(resp.Body))
		return "", fmt.Errorf("store asset: %w", err)
	}
	metrics.ObserveDownload(assetURL, metrics.OutcomeOK, len(resp.Body))
	return uri, nil
}

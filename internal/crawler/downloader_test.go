package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cart-crawler/internal/storage/local"
)

func TestAssetFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 - A_B.p8.png", AssetFileName(0, "A/B"))
	assert.Equal(t, "12 - a_b_c.p8.png", AssetFileName(12, `a/b\c`))
	assert.Equal(t, "3 - Plain.p8.png", AssetFileName(3, "Plain"))
}

func TestDownloadAllWritesRankedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	fetcher.bodies["https://example.com/carts/ab.p8.png"] = "ab-bytes"
	fetcher.bodies["https://example.com/carts/c.p8.png"] = "c-bytes"
	d := NewDownloader(fetcher, store, "https://example.com", 25, nil)

	stats := d.DownloadAll(context.Background(), []Record{
		{ID: "1", Title: "A/B", AssetPath: "/carts/ab.p8.png"},
		{ID: "2", Title: "C", AssetPath: "carts/c.p8.png"},
	})

	assert.Equal(t, DownloadStats{Downloaded: 2}, stats)
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(filepath.Join(dir, "0 - A_B.p8.png"))
	require.NoError(t, err)
	assert.Equal(t, "ab-bytes", string(data))
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err = os.ReadFile(filepath.Join(dir, "1 - C.p8.png"))
	require.NoError(t, err)
	assert.Equal(t, "c-bytes", string(data))
}

func TestDownloadAllToleratesFailures(t *testing.T) {
	t.Parallel()

	store := newMemoryBlobStore()
	fetcher := newFakeFetcher()
	fetcher.errs["https://example.com/broken.png"] = errors.New("404 Not Found")
	fetcher.bodies["https://example.com/ok.png"] = "ok"
	d := NewDownloader(fetcher, store, "https://example.com", 1, nil)

	stats := d.DownloadAll(context.Background(), []Record{
		{ID: "1", Title: "Broken", AssetPath: "broken.png"},
		{ID: "2", Title: "Fine", AssetPath: "ok.png"},
	})

	assert.Equal(t, DownloadStats{Downloaded: 1, Failed: 1}, stats)
	_, ok := store.get("0 - Broken.p8.png")
	assert.False(t, ok)
	data, ok := store.get("1 - Fine.p8.png")
	require.True(t, ok)
	assert.Equal(t, "ok", string(data))
}

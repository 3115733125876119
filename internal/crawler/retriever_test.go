package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetailExtractsRecord(t *testing.T) {
	t.Parallel()

	record, err := ParseDetail("42", []byte(detailHTML(" Celeste ", "/bbs/cposts/ce/celeste.p8.png", "1234")))
	require.NoError(t, err)

	assert.Equal(t, Record{
		ID:            "42",
		Title:         "Celeste",
		AssetPath:     "/bbs/cposts/ce/celeste.p8.png",
		FavoriteCount: 1234,
	}, record)
}

func TestParseDetailMissingFields(t *testing.T) {
	t.Parallel()

	_, err := ParseDetail("7", []byte(detailHTML("", "/cart.png", "3")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []string{"title"}, nf.Fields)

	_, err = ParseDetail("8", []byte("<html><body><p>gone</p></body></html>"))
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "8", nf.ID)
	assert.Equal(t, []string{"asset link", "title", "favorites"}, nf.Fields)
}

func TestParseDetailFavoritesWithoutSibling(t *testing.T) {
	t.Parallel()

	html := `<div class="post_title2">T</div><a title="Open Cartridge File" href="/c.png"></a>` +
		`<div><div title="Give this post a star"></div></div>`
	_, err := ParseDetail("9", []byte(html))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseDetailLenientFavorites(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":          0,
		"no stars":  0,
		" 17 ":      17,
		"5 stars":   5,
		"\n\t300\n": 300,
	}
	for text, want := range cases {
		record, err := ParseDetail("id", []byte(detailHTML("Title", "/c.png", text)))
		require.NoError(t, err, "favorites text %q", text)
		assert.Equal(t, want, record.FavoriteCount, "favorites text %q", text)
	}
}

func TestRetrieveFetchesDetailPage(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.bodies["https://example.com/bbs/?pid=123"] = detailHTML("Jelpi", "/jelpi.p8.png", "99")
	r := NewRetriever(fetcher, "https://example.com/")

	record, err := r.Retrieve(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Jelpi", record.Title)
	assert.Equal(t, 99, record.FavoriteCount)
	assert.Equal(t, []string{"https://example.com/bbs/?pid=123"}, fetcher.calls)
}

func TestRetrieveWrapsFetchErrors(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.errs["https://example.com/bbs/?pid=1"] = errors.New("connection reset")
	r := NewRetriever(fetcher, "https://example.com")

	_, err := r.Retrieve(context.Background(), "1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

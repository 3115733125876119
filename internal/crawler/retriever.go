package crawler

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	assetLinkSelector = `a[title="Open Cartridge File"]`
	titleSelector     = `div[class="post_title2"]`
	starLabelSelector = `div[title="Give this post a star"]`
)

var digitsPattern = regexp.MustCompile(`\d+`)

// Retriever fetches a cart's detail page and extracts its Record.
type Retriever struct {
	fetcher Fetcher
	baseURL string
}

// NewRetriever builds a Retriever for the site rooted at baseURL.
func NewRetriever(fetcher Fetcher, baseURL string) *Retriever {
	return &Retriever{
		fetcher: fetcher,
		baseURL: baseURL,
	}
}

// Retrieve fetches and parses the detail page for id. It does not retry.
func (r *Retriever) Retrieve(ctx context.Context, id string) (Record, error) {
	resp, err := r.fetcher.Fetch(ctx, DetailURL(r.baseURL, id))
	if err != nil {
		return Record{}, fmt.Errorf("fetch cart %s: %w", id, err)
	}
	return ParseDetail(id, resp.Body)
}

// ParseDetail extracts a Record from detail page HTML. The asset link, title
// and favorite counter must all be present; a counter without digits counts
// as zero favorites.
func ParseDetail(id string, body []byte) (Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("parse cart %s: %w", id, err)
	}

	var missing []string
	assetPath, ok := doc.Find(assetLinkSelector).First().Attr("href")
	if !ok {
		missing = append(missing, "asset link")
	}
	title := doc.Find(titleSelector).First()
	if title.Length() == 0 {
		missing = append(missing, "title")
	}
	favorites := doc.Find(starLabelSelector).First().Next()
	if favorites.Length() == 0 {
		missing = append(missing, "favorites")
	}
	if len(missing) > 0 {
		return Record{}, &NotFoundError{ID: id, Fields: missing}
	}

	return Record{
		ID:            id,
		Title:         strings.TrimSpace(title.Text()),
		AssetPath:     assetPath,
		FavoriteCount: parseFavorites(favorites.Text()),
	}, nil
}

func parseFavorites(text string) int {
	digits := digitsPattern.FindString(text)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DetailURL returns the detail page URL for a cart identifier.
func DetailURL(baseURL, id string) string {
	return fmt.Sprintf("%s/bbs/?pid=%s", trimBase(baseURL), url.QueryEscape(id))
}

// ListingURL returns the client-side rendered listing URL for a page.
func ListingURL(baseURL string, category, sub, page int) string {
	return fmt.Sprintf("%s/bbs/?cat=%d#sub=%d&page=%d&mode=carts", trimBase(baseURL), category, sub, page)
}

// AssetURL resolves a record's asset path against the site base. Absolute
// asset URLs are returned unchanged.
func AssetURL(baseURL, assetPath string) string {
	if u, err := url.Parse(assetPath); err == nil && u.IsAbs() {
		return assetPath
	}
	return trimBase(baseURL) + "/" + strings.TrimLeft(assetPath, "/")
}

func trimBase(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// Package crawler implements the cart crawl pipeline: walking the paginated
// listing, retrieving per-cart metadata from detail pages, downloading cart
// assets and persisting the sorted snapshot.
package crawler

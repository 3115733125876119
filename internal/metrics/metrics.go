// Package metrics exposes Prometheus collectors for the cart crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the crawl counters.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

var (
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerPageRetriesTotal       prometheus.Counter
	crawlerItemsTotal             *prometheus.CounterVec
	crawlerDownloadsTotal         *prometheus.CounterVec
	crawlerDownloadBytesTotal     *prometheus.CounterVec
	crawlerPoolUnitsTotal         *prometheus.CounterVec
	crawlerPoolInFlight           *prometheus.GaugeVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every observer calls it.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listing_pages_total",
				Help: "Total number of listing pages rendered, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerPageRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_listing_page_retries_total",
				Help: "Total number of listing page render retries.",
			},
		)

		crawlerItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_items_total",
				Help: "Total number of cart detail retrievals, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_downloads_total",
				Help: "Total number of cart asset downloads, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerDownloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_download_bytes_total",
				Help: "Total number of asset bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerPoolUnitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pool_units_total",
				Help: "Total number of settled pool units, labeled by pool and outcome.",
			},
			[]string{"pool", "outcome"},
		)

		crawlerPoolInFlight = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crawler_pool_units_in_flight",
				Help: "Number of pool units currently executing.",
			},
			[]string{"pool"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts a rendered listing page.
func ObservePage(outcome string) {
	Init()
	crawlerPagesTotal.WithLabelValues(outcome).Inc()
}

// ObservePageRetry counts a listing page retry.
func ObservePageRetry() {
	Init()
	crawlerPageRetriesTotal.Inc()
}

// ObserveItem counts a cart detail retrieval.
func ObserveItem(outcome string) {
	Init()
	crawlerItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDownload counts an asset download and the bytes it fetched.
func ObserveDownload(site string, outcome string, bytesFetched int) {
	Init()
	crawlerDownloadsTotal.WithLabelValues(outcome).Inc()
	if bytesFetched > 0 {
		crawlerDownloadBytesTotal.WithLabelValues(SanitizeSite(site)).Add(float64(bytesFetched))
	}
}

// ObservePoolUnit counts a settled pool unit.
func ObservePoolUnit(pool, outcome string) {
	Init()
	crawlerPoolUnitsTotal.WithLabelValues(pool, outcome).Inc()
}

// IncInFlight increments the in-flight gauge for a pool.
func IncInFlight(pool string) {
	Init()
	crawlerPoolInFlight.WithLabelValues(pool).Inc()
}

// DecInFlight decrements the in-flight gauge for a pool.
func DecInFlight(pool string) {
	Init()
	crawlerPoolInFlight.WithLabelValues(pool).Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus collectors for the crawler processes.
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

// Link outcomes reported by ObserveLink.
const (
	LinkEnqueued = "enqueued"
	LinkKnown    = "known"
	LinkSkipped  = "skipped"
)

var (
	crawlerClaimsTotal         prometheus.Counter
	crawlerIdlePollsTotal      prometheus.Counter
	crawlerFetchesTotal        *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	crawlerLinksTotal          *prometheus.CounterVec
	crawlerActiveWorkers       prometheus.Gauge
	frontierDoneURLs           prometheus.Gauge
	frontierCrawlRate          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerClaimsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_claims_total",
				Help: "Total number of URLs claimed from the pending set.",
			},
		)

		crawlerIdlePollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_idle_polls_total",
				Help: "Total number of claim attempts that found the pending set empty.",
			},
		)

		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of fetches, labeled by URL scheme and status.",
			},
			[]string{"scheme", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by URL scheme.",
			},
			[]string{"scheme"},
		)

		crawlerLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_links_total",
				Help: "Total number of extracted links, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of fetch-extract workers running in this process.",
			},
		)

		frontierDoneURLs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_done_urls",
				Help: "Cardinality of the done set at the last observer sample.",
			},
		)

		frontierCrawlRate = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frontier_crawl_rate_urls_per_second",
				Help: "Growth of the done set per second over the last observer interval.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
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

// SchemeLabel maps a URL to a bounded label: "http", "https" or "other".
// Hosts are never used as label values since a crawl reaches an unbounded
// number of them.
func SchemeLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "other"
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "http", "https":
		return scheme
	default:
		return "other"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveClaim counts a URL claimed from the pending set.
func ObserveClaim() {
	crawlerClaimsTotal.Inc()
}

// ObserveIdlePoll counts a claim attempt against an empty pending set.
func ObserveIdlePoll() {
	crawlerIdlePollsTotal.Inc()
}

// ObserveFetch records the outcome of one fetch of rawURL.
func ObserveFetch(rawURL string, ok bool, bytesFetched int) {
	scheme := SchemeLabel(rawURL)
	status := "ok"
	if !ok {
		status = "failed"
	}
	crawlerFetchesTotal.WithLabelValues(scheme, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(scheme).Add(float64(bytesFetched))
	}
}

// ObserveLink counts an extracted link by what happened to it.
func ObserveLink(outcome string) {
	crawlerLinksTotal.WithLabelValues(outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlerActiveWorkers.Dec()
}

// ObserveThroughput publishes the latest observer sample.
func ObserveThroughput(done int64, ratePerSecond float64) {
	frontierDoneURLs.Set(float64(done))
	frontierCrawlRate.Set(ratePerSecond)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

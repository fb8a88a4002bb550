// Package metrics exposes Prometheus collectors for the crawler.
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

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       prometheus.Histogram
	pollsTotal                 *prometheus.CounterVec
	pollDurationSeconds        prometheus.Histogram
	postsEnqueuedTotal         prometheus.Counter
	commentLinksEnqueuedTotal  prometheus.Counter
	pagesSavedTotal            *prometheus.CounterVec
	itemsProcessedTotal        *prometheus.CounterVec
	queueDepth                 *prometheus.GaugeVec
	activeWorkers              *prometheus.GaugeVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hncrawler_fetches_total",
				Help: "Total number of fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hncrawler_fetch_bytes_total",
				Help: "Total number of body bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hncrawler_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies for requests that reached the network.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		pollsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hncrawler_polls_total",
				Help: "Total number of discovery polls, labeled by result.",
			},
			[]string{"result"},
		)

		pollDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "hncrawler_poll_duration_seconds",
				Help:    "Histogram of discovery poll durations, excluding the pause between polls.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		postsEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hncrawler_posts_enqueued_total",
				Help: "Total number of new posts handed to the post workers.",
			},
		)

		commentLinksEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hncrawler_comment_links_enqueued_total",
				Help: "Total number of comment-linked URLs handed to the comment workers.",
			},
		)

		pagesSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hncrawler_pages_saved_total",
				Help: "Total number of pages written to disk, labeled by kind.",
			},
			[]string{"kind"},
		)

		itemsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hncrawler_items_processed_total",
				Help: "Total number of queue items acknowledged, labeled by pool.",
			},
			[]string{"pool"},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hncrawler_queue_depth",
				Help: "Number of items waiting in a queue.",
			},
			[]string{"queue"},
		)

		activeWorkers = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hncrawler_active_workers",
				Help: "Number of workers currently processing an item, labeled by pool.",
			},
			[]string{"pool"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hncrawler_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveFetch counts one fetch attempt and, when it reached the network,
// its latency and body size.
func ObserveFetch(rawURL string, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	if duration > 0 {
		fetchDurationSeconds.Observe(duration.Seconds())
	}
}

// ObservePoll counts one discovery poll and records how long it took.
func ObservePoll(result string, duration time.Duration) {
	Init()
	pollsTotal.WithLabelValues(result).Inc()
	pollDurationSeconds.Observe(duration.Seconds())
}

// AddPostsEnqueued counts posts handed to the post workers.
func AddPostsEnqueued(n int) {
	Init()
	postsEnqueuedTotal.Add(float64(n))
}

// AddCommentLinksEnqueued counts comment links handed to the comment workers.
func AddCommentLinksEnqueued(n int) {
	Init()
	commentLinksEnqueuedTotal.Add(float64(n))
}

// ObservePageSaved counts one page written to disk.
func ObservePageSaved(kind string) {
	Init()
	pagesSavedTotal.WithLabelValues(kind).Inc()
}

// ObserveItemProcessed counts one acknowledged queue item.
func ObserveItemProcessed(pool string) {
	Init()
	itemsProcessedTotal.WithLabelValues(pool).Inc()
}

// SetQueueDepth records the number of items waiting in a queue.
func SetQueueDepth(queue string, depth int) {
	Init()
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// IncActiveWorkers increments the active workers gauge for pool.
func IncActiveWorkers(pool string) {
	Init()
	activeWorkers.WithLabelValues(pool).Inc()
}

// DecActiveWorkers decrements the active workers gauge for pool.
func DecActiveWorkers(pool string) {
	Init()
	activeWorkers.WithLabelValues(pool).Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

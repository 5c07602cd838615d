// Package metrics instruments DAV client operations with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davclient_requests_total",
		Help: "Total number of HTTP requests issued, including redirect hops.",
	}, []string{"method"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davclient_errors_total",
		Help: "Total number of requests answered with a 4xx or 5xx status.",
	}, []string{"method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "davclient_request_duration_seconds",
		Help:    "Histogram of request latencies.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	redirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "davclient_redirects_total",
		Help: "Total number of redirect hops followed.",
	}, []string{"method"})
)

// DAVRecorder implements the dav.Recorder interface over the package's
// Prometheus collectors. Install it with dav.SetRecorder.
type DAVRecorder struct{}

func (DAVRecorder) ObserveRequest(method string, status int, elapsed time.Duration) {
	statusCode := strconv.Itoa(status)
	requestsTotal.WithLabelValues(method).Inc()
	requestDuration.WithLabelValues(method, statusCode).Observe(elapsed.Seconds())
	if status >= http.StatusBadRequest {
		errorsTotal.WithLabelValues(method, statusCode).Inc()
	}
}

func (DAVRecorder) ObserveRedirect(method string) {
	redirectsTotal.WithLabelValues(method).Inc()
}

// Handler exposes the Prometheus metrics endpoint for embedding
// applications that run a scrape target.
func Handler() http.Handler {
	return promhttp.Handler()
}

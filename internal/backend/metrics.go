package backend

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for outbound API calls.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the collectors against registerer; nil uses the default registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hub_backend_requests_total",
			Help: "Outbound API requests by endpoint and outcome.",
		}, []string{"method", "endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hub_backend_request_duration_seconds",
			Help:    "Outbound API request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(method, path string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	endpoint := endpointLabel(path)
	m.requests.WithLabelValues(method, endpoint, outcome(err)).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status > 0 {
		return strconv.Itoa(apiErr.Status)
	}
	return "transport"
}

// endpointLabel collapses resource identifiers so label cardinality stays bounded.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 2 {
		for i := 2; i < len(segments); i++ {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

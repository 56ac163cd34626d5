package yammersdk

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for a Client. A nil *Metrics records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	failures       *prometheus.CounterVec
	tokenExchanges *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yammer_requests_total",
			Help: "Requests sent to the Yammer API by resource and HTTP status.",
		}, []string{"resource", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yammer_request_duration_seconds",
			Help:    "Round-trip latency of Yammer API requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yammer_request_failures_total",
			Help: "Failed operations by reason.",
		}, []string{"reason"}),
		tokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yammer_token_exchanges_total",
			Help: "Authorization code exchanges by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.requests,
		m.duration,
		m.failures,
		m.tokenExchanges,
	)

	return m
}

// observeRequest records one completed round trip. status is 0 when no response
// was received.
func (m *Metrics) observeRequest(resource string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(resource, label).Inc()
	m.duration.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *Metrics) observeFailure(reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeTokenExchange(outcome string) {
	if m == nil {
		return
	}
	m.tokenExchanges.WithLabelValues(outcome).Inc()
}

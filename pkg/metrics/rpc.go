package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics records merchant API traffic per JSON-RPC method and reply code.
// Code 0 marks a successful reply.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	authFail prometheus.Counter
}

// NewRPCMetrics registers the merchant API metrics on the provided registerer.
func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	if reg == nil {
		return &RPCMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payme_rpc_requests_total",
		Help: "Merchant API requests by method and reply code.",
	}, []string{"method", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payme_rpc_duration_seconds",
		Help:    "Merchant API handling time in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})
	authFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payme_auth_failures_total",
		Help: "Merchant API requests rejected by authentication.",
	})
	reg.MustRegister(requests, duration, authFail)
	return &RPCMetrics{requests: requests, duration: duration, authFail: authFail}
}

// Observe records one handled request.
func (m *RPCMetrics) Observe(method string, code int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	method = normalizeLabel(method)
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// IncAuthFailure counts one rejected authentication.
func (m *RPCMetrics) IncAuthFailure() {
	if m == nil || m.authFail == nil {
		return
	}
	m.authFail.Inc()
}

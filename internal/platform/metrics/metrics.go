package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the identity gateway.
type Metrics struct {
	Verifications       *prometheus.CounterVec
	IdentityCacheHits   prometheus.Counter
	IdentityCacheMisses prometheus.Counter
	RoleCacheHits       prometheus.Counter
	RoleCacheMisses     prometheus.Counter
	RoleLookupFailures  prometheus.Counter
	Refreshes           *prometheus.CounterVec
	ForcedSignOuts      prometheus.Counter
	VerificationMs      prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduro_identity_verifications_total",
			Help: "Authoritative identity provider verifications by outcome",
		}, []string{"outcome"}),
		IdentityCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_identity_cache_hits_total",
			Help: "Requests served from the identity cache cookie",
		}),
		IdentityCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_identity_cache_misses_total",
			Help: "Identity cache cookie misses inside the throttle window",
		}),
		RoleCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_role_cache_hits_total",
			Help: "Requests served from the role cache cookie",
		}),
		RoleCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_role_cache_misses_total",
			Help: "Role cache misses resolved against the role store",
		}),
		RoleLookupFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_role_lookup_failures_total",
			Help: "Role store failures degraded to the least-privileged role",
		}),
		Refreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eduro_session_refreshes_total",
			Help: "Session token refreshes by outcome",
		}, []string{"outcome"}),
		ForcedSignOuts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "eduro_forced_sign_outs_total",
			Help: "Sessions terminated after an unrecoverable refresh failure",
		}),
		VerificationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eduro_identity_verification_duration_ms",
			Help:    "Latency of authoritative identity verifications in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}

// ObserveVerification records the outcome and latency of a provider round trip.
func (m *Metrics) ObserveVerification(outcome string, d time.Duration) {
	m.Verifications.WithLabelValues(outcome).Inc()
	m.VerificationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

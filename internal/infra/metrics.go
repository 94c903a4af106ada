package infra

import (
	"net/http"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ad engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	EligibilityChecks *prometheus.CounterVec
	ProviderAttempts  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	SessionsFinished  *prometheus.CounterVec
	RewardsGranted    *prometheus.CounterVec
	WatchTime         *prometheus.HistogramVec
	PersistFailures   *prometheus.CounterVec
	WSConnections     prometheus.GaugeFunc
}

// NewMetrics registers the collectors on a fresh registry. wsConns reports
// the live WebSocket connection count and may be nil.
func NewMetrics(wsConns func() int) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EligibilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrewards",
			Name:      "eligibility_checks_total",
			Help:      "Eligibility evaluations by placement and reason.",
		}, []string{"placement", "reason"}),
		ProviderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrewards",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adrewards",
			Name:      "provider_attempt_seconds",
			Help:      "Wall time of provider attempts.",
			Buckets:   []float64{0.5, 1, 5, 10, 15, 20, 30, 45, 60},
		}, []string{"provider"}),
		SessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrewards",
			Name:      "sessions_finished_total",
			Help:      "Terminal ad sessions by placement, state and reason.",
		}, []string{"placement", "state", "reason"}),
		RewardsGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrewards",
			Name:      "rewards_granted_total",
			Help:      "Rewards granted by placement and kind.",
		}, []string{"placement", "kind"}),
		WatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adrewards",
			Name:      "watch_time_seconds",
			Help:      "Watch time of sessions that reached playback end.",
			Buckets:   []float64{5, 10, 15, 20, 25, 30, 45, 60},
		}, []string{"provider"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adrewards",
			Name:      "persist_failures_total",
			Help:      "Failed durable writes by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.EligibilityChecks,
		m.ProviderAttempts,
		m.ProviderLatency,
		m.SessionsFinished,
		m.RewardsGranted,
		m.WatchTime,
		m.PersistFailures,
		collectors.NewGoCollector(),
	)
	if wsConns != nil {
		m.WSConnections = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "adrewards",
			Name:      "ws_connections",
			Help:      "Open WebSocket connections.",
		}, func() float64 { return float64(wsConns()) })
		reg.MustRegister(m.WSConnections)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEligibility(placement domain.Placement, reason string) {
	m.EligibilityChecks.WithLabelValues(string(placement), reason).Inc()
}

func (m *Metrics) ObserveSession(s domain.AdSession) {
	m.SessionsFinished.WithLabelValues(string(s.Placement), string(s.State), s.Reason).Inc()
	if s.Rewarded() {
		m.RewardsGranted.WithLabelValues(string(s.Placement), string(s.Reward.Kind)).Inc()
	}
	if s.Provider != "" && s.CompletedAt != nil && s.StartedAt != nil {
		m.WatchTime.WithLabelValues(string(s.Provider)).Observe(s.WatchTime().Seconds())
	}
}

func (m *Metrics) ObservePersistFailure(op string) {
	m.PersistFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveAttempt(provider domain.ProviderID, outcome string, elapsed time.Duration) {
	m.ProviderAttempts.WithLabelValues(string(provider), outcome).Inc()
	if elapsed > 0 {
		m.ProviderLatency.WithLabelValues(string(provider)).Observe(elapsed.Seconds())
	}
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for StageDuration
const (
	StageVerify = "verify"
	StageEnrich = "enrich"
)

// AuthMetrics tracks authentication outcomes and stage latencies.
// A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	Outcomes      *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// NewAuthMetrics registers the gateway auth metrics with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	factory := promauto.With(reg)
	return &AuthMetrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_authentications_total",
			Help: "Authentication attempts by outcome (success, missing_credentials, invalid_credentials, enrichment_failed, forbidden)",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_auth_stage_duration_seconds",
			Help:    "Duration of token verification and identity enrichment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage", "result"}),
	}
}

// RecordOutcome increments the counter for an authentication outcome.
func (m *AuthMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(outcome).Inc()
}

// ObserveStage records the duration of a pipeline stage.
// Call with time.Now() at the start of the stage.
func (m *AuthMetrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StageDuration.WithLabelValues(stage, result).Observe(time.Since(start).Seconds())
}

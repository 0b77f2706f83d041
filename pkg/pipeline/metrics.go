package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "itemforge"

// Metrics holds the Prometheus metrics of the pipeline.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec
	StageDurationSeconds *prometheus.HistogramVec
	BackendCallsTotal    *prometheus.CounterVec
	StagesSkippedTotal   *prometheus.CounterVec
	FeedbackCombinations prometheus.Histogram
}

// NewMetrics creates and registers the pipeline metrics on reg, or on the
// default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome and failing stage",
			},
			[]string{"outcome", "stage"},
		),
		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each completed pipeline stage",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"stage"},
		),
		BackendCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "backend_calls_total",
				Help:      "Generation backend calls by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		StagesSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stages_skipped_total",
				Help:      "Generation stages skipped because there was nothing to generate",
			},
			[]string{"stage"},
		),
		FeedbackCombinations: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "feedback_combinations",
				Help:      "Number of feedback combinations per plan",
				Buckets:   []float64{2, 3, 4, 6, 8, 12, 16, 24, 32, 64},
			},
		),
	}
}

package metrics

import (
	"github.com/calendaria/duration-engine/internal/core"
	"github.com/prometheus/client_golang/prometheus"
)

// DurationMetrics exposes counters/histograms for duration decisions.
type DurationMetrics struct {
	decisionsTotal   *prometheus.CounterVec
	finalDuration    prometheus.Histogram
	decisionConf     prometheus.Histogram
	analysisLatency  *prometheus.HistogramVec
	httpRequestTotal *prometheus.CounterVec
}

func NewDurationMetrics(reg prometheus.Registerer) *DurationMetrics {
	m := &DurationMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duration_engine",
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total appointment duration decisions by method",
		}, []string{"method"}),
		finalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duration_engine",
			Subsystem: "engine",
			Name:      "final_duration_minutes",
			Help:      "Distribution of decided appointment durations",
			Buckets:   []float64{15, 30, 45, 60, 90, 120, 180},
		}),
		decisionConf: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duration_engine",
			Subsystem: "engine",
			Name:      "decision_confidence",
			Help:      "Distribution of decision confidence",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		analysisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "duration_engine",
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "Latency of content analysis calls by outcome",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		httpRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duration_engine",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total API requests by route and status",
		}, []string{"route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.finalDuration, m.decisionConf, m.analysisLatency, m.httpRequestTotal)
	return m
}

// ObserveDecision implements core.DecisionRecorder.
func (m *DurationMetrics) ObserveDecision(method core.Method, finalDuration int, confidence float64) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(method)).Inc()
	m.finalDuration.Observe(float64(finalDuration))
	m.decisionConf.Observe(confidence)
}

// ObserveAnalysis implements core.DecisionRecorder.
func (m *DurationMetrics) ObserveAnalysis(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.analysisLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *DurationMetrics) ObserveRequest(route, status string) {
	if m == nil {
		return
	}
	m.httpRequestTotal.WithLabelValues(route, status).Inc()
}

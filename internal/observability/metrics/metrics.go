package metrics

import "github.com/prometheus/client_golang/prometheus"

// SafetyMetrics exposes counters/histograms for the content-safety pipeline.
// A nil *SafetyMetrics is valid and records nothing.
type SafetyMetrics struct {
	verdictTotal    *prometheus.CounterVec
	llmCallTotal    *prometheus.CounterVec
	llmCallLatency  *prometheus.HistogramVec
	violationTotal  *prometheus.CounterVec
	submissionTotal *prometheus.CounterVec
	policyErrors    prometheus.Counter
	reviewTotal     *prometheus.CounterVec
}

func NewSafetyMetrics(reg prometheus.Registerer) *SafetyMetrics {
	m := &SafetyMetrics{
		verdictTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "moderation",
			Name:      "verdicts_total",
			Help:      "Moderation verdicts by status and decision path",
		}, []string{"status", "path"}),
		llmCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Language model calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		llmCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loop_safety",
			Subsystem: "llm",
			Name:      "call_latency_seconds",
			Help:      "Latency of language model calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"provider", "outcome"}),
		violationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "policy",
			Name:      "violations_total",
			Help:      "Hate speech violations by punishment applied",
		}, []string{"action"}),
		submissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "submission",
			Name:      "decisions_total",
			Help:      "Submission gate decisions by content kind",
		}, []string{"kind", "accepted"}),
		policyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "policy",
			Name:      "errors_total",
			Help:      "Violation policy invocations that failed",
		}),
		reviewTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loop_safety",
			Subsystem: "review",
			Name:      "items_total",
			Help:      "Flagged items handled by the review worker",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.verdictTotal, m.llmCallTotal, m.llmCallLatency, m.violationTotal,
		m.submissionTotal, m.policyErrors, m.reviewTotal)
	return m
}

func (m *SafetyMetrics) ObserveVerdict(status, path string) {
	if m == nil {
		return
	}
	m.verdictTotal.WithLabelValues(status, path).Inc()
}

func (m *SafetyMetrics) ObserveLLMCall(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.llmCallTotal.WithLabelValues(provider, outcome).Inc()
	m.llmCallLatency.WithLabelValues(provider, outcome).Observe(seconds)
}

func (m *SafetyMetrics) ObserveViolation(action string) {
	if m == nil {
		return
	}
	m.violationTotal.WithLabelValues(action).Inc()
}

func (m *SafetyMetrics) ObserveSubmission(kind string, accepted bool) {
	if m == nil {
		return
	}
	label := "false"
	if accepted {
		label = "true"
	}
	m.submissionTotal.WithLabelValues(kind, label).Inc()
}

func (m *SafetyMetrics) ObservePolicyError() {
	if m == nil {
		return
	}
	m.policyErrors.Inc()
}

func (m *SafetyMetrics) ObserveReviewItem(outcome string) {
	if m == nil {
		return
	}
	m.reviewTotal.WithLabelValues(outcome).Inc()
}

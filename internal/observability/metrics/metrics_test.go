package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSafetyMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSafetyMetrics(reg)

	m.ObserveVerdict("removed", "veto")
	m.ObserveVerdict("removed", "veto")
	m.ObserveVerdict("approved", "generative")
	m.ObserveViolation("warning")
	m.ObserveSubmission("comment", false)
	m.ObservePolicyError()
	m.ObserveReviewItem("archived")
	m.ObserveLLMCall("bedrock", "ok", 0.4)

	if got := testutil.ToFloat64(m.verdictTotal.WithLabelValues("removed", "veto")); got != 2 {
		t.Fatalf("expected 2 veto removals, got %v", got)
	}
	if got := testutil.ToFloat64(m.submissionTotal.WithLabelValues("comment", "false")); got != 1 {
		t.Fatalf("expected 1 rejected comment, got %v", got)
	}
	if got := testutil.ToFloat64(m.policyErrors); got != 1 {
		t.Fatalf("expected 1 policy error, got %v", got)
	}
	if got := testutil.CollectAndCount(m.llmCallLatency); got != 1 {
		t.Fatalf("expected 1 latency series, got %d", got)
	}
}

func TestSafetyMetricsDefaultRegistry(t *testing.T) {
	m := NewSafetyMetrics(nil)
	m.ObserveVerdict("flagged", "fallback")
	prometheus.DefaultRegisterer.Unregister(m.verdictTotal)
	prometheus.DefaultRegisterer.Unregister(m.llmCallTotal)
	prometheus.DefaultRegisterer.Unregister(m.llmCallLatency)
	prometheus.DefaultRegisterer.Unregister(m.violationTotal)
	prometheus.DefaultRegisterer.Unregister(m.submissionTotal)
	prometheus.DefaultRegisterer.Unregister(m.policyErrors)
	prometheus.DefaultRegisterer.Unregister(m.reviewTotal)
}

func TestSafetyMetricsNilSafe(t *testing.T) {
	var m *SafetyMetrics
	m.ObserveVerdict("approved", "generative")
	m.ObserveLLMCall("gemini", "unavailable", 0.1)
	m.ObserveViolation("termination")
	m.ObserveSubmission("post", true)
	m.ObservePolicyError()
	m.ObserveReviewItem("failed")
}

func TestTakeSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSafetyMetrics(reg)

	m.ObserveVerdict("removed", "veto")
	m.ObserveVerdict("approved", "generative")
	m.ObserveVerdict("approved", "fallback")
	m.ObserveViolation("warning")
	m.ObserveViolation("warning")
	for i := 0; i < 10; i++ {
		m.ObserveLLMCall("bedrock", "ok", 0.3)
	}
	m.ObserveLLMCall("bedrock", "unavailable", 8)

	snap := TakeSnapshot(reg)
	if snap.Verdicts["approved"] != 2 || snap.Verdicts["removed"] != 1 {
		t.Fatalf("unexpected verdicts %v", snap.Verdicts)
	}
	if snap.Paths["veto"] != 1 || snap.Paths["fallback"] != 1 {
		t.Fatalf("unexpected paths %v", snap.Paths)
	}
	if snap.Violations["warning"] != 2 {
		t.Fatalf("unexpected violations %v", snap.Violations)
	}
	if snap.LLMLatency.Total != 10 {
		t.Fatalf("expected only ok calls in latency, got %d", snap.LLMLatency.Total)
	}
	if snap.LLMLatency.P95Ms <= 250 || snap.LLMLatency.P95Ms > 500 {
		t.Fatalf("expected p95 inside the 0.25-0.5s bucket, got %v", snap.LLMLatency.P95Ms)
	}
}

func TestTakeSnapshotEmpty(t *testing.T) {
	snap := TakeSnapshot(prometheus.NewRegistry())
	if len(snap.Verdicts) != 0 || snap.LLMLatency.Total != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSnapshotHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewSafetyMetrics(reg).ObserveVerdict("flagged", "fallback")

	rec := httptest.NewRecorder()
	SnapshotHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Verdicts["flagged"] != 1 {
		t.Fatalf("unexpected verdicts %v", snap.Verdicts)
	}
}

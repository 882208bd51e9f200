package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metric family names read back by Snapshot.
const (
	verdictFamily    = "loop_safety_moderation_verdicts_total"
	violationFamily  = "loop_safety_policy_violations_total"
	llmLatencyFamily = "loop_safety_llm_call_latency_seconds"
)

// LatencySnapshot summarizes successful model call latency.
type LatencySnapshot struct {
	Total int64   `json:"total"`
	P90Ms float64 `json:"p90Ms"`
	P95Ms float64 `json:"p95Ms"`
}

// Snapshot is the operator dashboard view of the pipeline counters.
type Snapshot struct {
	Verdicts   map[string]int64 `json:"verdicts"`
	Paths      map[string]int64 `json:"paths"`
	Violations map[string]int64 `json:"violations"`
	LLMLatency LatencySnapshot  `json:"llmLatency"`
}

// TakeSnapshot aggregates the registered counters in gatherer. A nil gatherer
// reads the default registry.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{
		Verdicts:   map[string]int64{},
		Paths:      map[string]int64{},
		Violations: map[string]int64{},
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case verdictFamily:
			for _, metric := range mf.Metric {
				n := int64(metric.GetCounter().GetValue())
				snap.Verdicts[labelValue(metric, "status")] += n
				snap.Paths[labelValue(metric, "path")] += n
			}
		case violationFamily:
			for _, metric := range mf.Metric {
				snap.Violations[labelValue(metric, "action")] += int64(metric.GetCounter().GetValue())
			}
		case llmLatencyFamily:
			snap.LLMLatency = latencySnapshot(mf)
		}
	}
	return snap
}

// SnapshotHandler serves TakeSnapshot as JSON.
func SnapshotHandler(gatherer prometheus.Gatherer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TakeSnapshot(gatherer))
	}
}

// latencySnapshot aggregates histograms across providers, keeping only
// outcome="ok".
func latencySnapshot(family *dto.MetricFamily) LatencySnapshot {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64

	for _, metric := range family.Metric {
		if metric == nil || labelValue(metric, "outcome") != "ok" {
			continue
		}
		h := metric.GetHistogram()
		if h == nil {
			continue
		}
		sampleCount += h.GetSampleCount()
		for _, b := range h.Bucket {
			if b == nil {
				continue
			}
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return LatencySnapshot{}
	}

	uppers := make([]float64, 0, len(cumulativeByUpper)+1)
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	// Samples above the last bucket only show up in the total.
	if _, ok := cumulativeByUpper[math.Inf(1)]; !ok {
		cumulativeByUpper[math.Inf(1)] = sampleCount
		uppers = append(uppers, math.Inf(1))
	}
	sort.Float64s(uppers)

	return LatencySnapshot{
		Total: int64(sampleCount),
		P90Ms: histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper) * 1000.0,
		P95Ms: histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper) * 1000.0,
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramQuantile interpolates linearly inside the bucket holding the
// q-th sample.
func histogramQuantile(q float64, total uint64, uppers []float64, cumulativeByUpper map[float64]uint64) float64 {
	if total == 0 || q <= 0 {
		return 0
	}

	target := q * float64(total)
	var prevUpper, prevCum float64
	for _, upper := range uppers {
		cum := float64(cumulativeByUpper[upper])
		if cum < target {
			prevUpper = upper
			prevCum = cum
			continue
		}
		if math.IsInf(upper, 1) {
			return prevUpper
		}
		bucketCount := cum - prevCum
		if bucketCount <= 0 {
			return upper
		}
		fraction := math.Min(math.Max((target-prevCum)/bucketCount, 0), 1)
		return prevUpper + fraction*(upper-prevUpper)
	}
	return prevUpper
}

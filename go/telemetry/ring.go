// Package telemetry retains bounded, in-process performance telemetry:
// a lock-free ring of per-tool latency samples with on-demand quantiles.
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// RingCapacity is the retained sample count; the oldest sample is
// overwritten on overflow.
const RingCapacity = 10_000

// Sample is one recorded tool invocation.
type Sample struct {
	Tool      string
	LatencyMS float64
	Success   bool
	Timestamp time.Time
}

// Ring records samples without locks: writers claim a slot by atomic
// counter and publish through an atomic pointer. Snapshot copies the live
// slots under a brief read lock against concurrent snapshots only; writers
// are never blocked.
type Ring struct {
	slots []atomic.Pointer[Sample]
	next  atomic.Uint64
	mu    sync.Mutex // Serializes Snapshot copies.
}

// NewRing returns a Ring with RingCapacity slots.
func NewRing() *Ring {
	return &Ring{slots: make([]atomic.Pointer[Sample], RingCapacity)}
}

// Record appends one sample. O(1), wait-free.
func (r *Ring) Record(tool string, latency time.Duration, success bool) {
	var s = &Sample{
		Tool:      tool,
		LatencyMS: float64(latency.Microseconds()) / 1000.0,
		Success:   success,
		Timestamp: time.Now().UTC(),
	}
	var i = r.next.Add(1) - 1
	r.slots[i%RingCapacity].Store(s)
}

// ToolStats summarizes one tool's samples.
type ToolStats struct {
	Count       int     `json:"count"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	SuccessRate float64 `json:"success_rate"`
}

// Snapshot is a point-in-time view over the ring.
type Snapshot struct {
	PerTool map[string]ToolStats `json:"per_tool"`
	Overall ToolStats            `json:"overall"`
	RPS1M   float64              `json:"rps_1m"`
}

// Snapshot computes per-tool and overall stats over the retained samples.
func (r *Ring) Snapshot() Snapshot {
	r.mu.Lock()
	var live = make([]*Sample, 0, RingCapacity)
	for i := range r.slots {
		if s := r.slots[i].Load(); s != nil {
			live = append(live, s)
		}
	}
	r.mu.Unlock()

	var byTool = make(map[string][]*Sample)
	for _, s := range live {
		byTool[s.Tool] = append(byTool[s.Tool], s)
	}

	var snap = Snapshot{PerTool: make(map[string]ToolStats, len(byTool))}
	for tool, samples := range byTool {
		snap.PerTool[tool] = summarize(samples)
	}
	snap.Overall = summarize(live)

	var cutoff = time.Now().UTC().Add(-time.Minute)
	var recent int
	for _, s := range live {
		if s.Timestamp.After(cutoff) {
			recent++
		}
	}
	snap.RPS1M = float64(recent) / 60.0
	return snap
}

func summarize(samples []*Sample) ToolStats {
	if len(samples) == 0 {
		return ToolStats{SuccessRate: 1}
	}

	var latencies = make([]float64, 0, len(samples))
	var sum float64
	var succeeded int
	for _, s := range samples {
		latencies = append(latencies, s.LatencyMS)
		sum += s.LatencyMS
		if s.Success {
			succeeded++
		}
	}
	sort.Float64s(latencies)

	return ToolStats{
		Count:       len(samples),
		AvgMS:       sum / float64(len(samples)),
		P50MS:       quantile(latencies, 0.50),
		P95MS:       quantile(latencies, 0.95),
		P99MS:       quantile(latencies, 0.99),
		SuccessRate: float64(succeeded) / float64(len(samples)),
	}
}

// quantile reads the nearest-rank quantile from sorted latencies.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	var rank = int(q * float64(len(sorted)))
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

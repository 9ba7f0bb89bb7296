// Package observability provides logging and latency tracking for workload operations.
package observability

import (
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the workloads.
const (
	OpSwap    = "swap"
	OpSum     = "sum"
	OpWrite   = "write"
	OpCommit  = "commit"
	OpQuery   = "query"
	OpUpdate1 = "update1"
)

// LatencyRecorder collects per-operation latencies from concurrent workers.
type LatencyRecorder struct {
	mu      sync.RWMutex
	samples map[string]*opSamples
}

type opSamples struct {
	durations []time.Duration
	lastSeen  time.Time
}

// LatencySummary holds statistics for one operation.
type LatencySummary struct {
	Op       string        `json:"op"`
	Count    int           `json:"count"`
	Min      time.Duration `json:"min_ns"`
	Max      time.Duration `json:"max_ns"`
	Mean     time.Duration `json:"mean_ns"`
	P50      time.Duration `json:"p50_ns"`
	P95      time.Duration `json:"p95_ns"`
	P99      time.Duration `json:"p99_ns"`
	LastSeen time.Time     `json:"last_seen"`
}

// NewLatencyRecorder creates an empty recorder.
func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{samples: make(map[string]*opSamples)}
}

// Record adds one latency sample for op. Safe on a nil recorder.
func (r *LatencyRecorder) Record(op string, d time.Duration) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.samples[op]
	if !exists {
		s = &opSamples{}
		r.samples[op] = s
	}
	s.durations = append(s.durations, d)
	s.lastSeen = time.Now()
}

// Since records the time elapsed since start.
func (r *LatencyRecorder) Since(op string, start time.Time) {
	r.Record(op, time.Since(start))
}

// Summaries returns a summary per operation, most frequent first.
func (r *LatencyRecorder) Summaries() []LatencySummary {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LatencySummary, 0, len(r.samples))
	for op, s := range r.samples {
		if len(s.durations) == 0 {
			continue
		}
		// Sort a copy so recording can continue.
		sorted := append([]time.Duration(nil), s.durations...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var total time.Duration
		for _, d := range sorted {
			total += d
		}
		out = append(out, LatencySummary{
			Op:       op,
			Count:    len(sorted),
			Min:      sorted[0],
			Max:      sorted[len(sorted)-1],
			Mean:     total / time.Duration(len(sorted)),
			P50:      percentile(sorted, 0.50),
			P95:      percentile(sorted, 0.95),
			P99:      percentile(sorted, 0.99),
			LastSeen: s.lastSeen,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Op < out[j].Op
	})
	return out
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(p*float64(len(sorted)) + 0.999999)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

package pipeline

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
	utterances int
	unknowns   int
}

// StatsSnapshot aggregates the refinements recorded in the window.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`

	Utterances int `json:"utterances"`
	Unknowns   int `json:"unknowns"`
	// UnknownRate is unknown-speaker announcements per attributed utterance.
	UnknownRate float64 `json:"unknown_rate"`
}

// RefineStats keeps refinement latencies and attribution counts over a
// rolling window.
type RefineStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewRefineStats(maxAge time.Duration) *RefineStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &RefineStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one refinement.
func (s *RefineStats) Record(d time.Duration, utterances, unknowns int) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, durationMs: ms, utterances: utterances, unknowns: unknowns})
}

func (s *RefineStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	var snap StatsSnapshot
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		snap.Utterances += sm.utterances
		snap.Unknowns += sm.unknowns
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	if snap.Utterances > 0 {
		snap.UnknownRate = float64(snap.Unknowns) / float64(snap.Utterances)
	}
	return snap
}

func (s *RefineStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo := float64(sorted[lower])
	hi := float64(sorted[lower+1])
	return lo + ((hi - lo) * weight)
}

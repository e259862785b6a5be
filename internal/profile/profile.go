// Package profile computes per-thread timing deltas over a record subset.
package profile

import (
	"context"
	"sort"
	"time"

	"loginsight/internal/model"
)

type Band int

const (
	BandNone Band = iota
	BandWarning
	BandSevere
)

func (b Band) String() string {
	switch b {
	case BandWarning:
		return "warning"
	case BandSevere:
		return "severe"
	default:
		return "none"
	}
}

type Thresholds struct {
	Warn   time.Duration
	Severe time.Duration
}

// DefaultThresholds mark gaps of 100ms as slow and 1s as very slow.
var DefaultThresholds = Thresholds{Warn: 100 * time.Millisecond, Severe: time.Second}

// Delta is the gap between a record and the previous timestamped record of
// the same thread. First records of a thread have HasPrev false.
type Delta struct {
	ID      uint64
	Thread  string
	HasPrev bool
	Delta   time.Duration
	Band    Band
}

type Profiler struct {
	th Thresholds
}

func New(th Thresholds) *Profiler {
	if th.Warn <= 0 {
		th.Warn = DefaultThresholds.Warn
	}
	if th.Severe <= 0 {
		th.Severe = DefaultThresholds.Severe
	}
	return &Profiler{th: th}
}

func (p *Profiler) Classify(d time.Duration) Band {
	switch {
	case d >= p.th.Severe:
		return BandSevere
	case d >= p.th.Warn:
		return BandWarning
	default:
		return BandNone
	}
}

// Compute walks ids in ascending order. Threadless records and records
// without a timestamp are skipped. The result is keyed by record id.
func (p *Profiler) Compute(ctx context.Context, snap model.Snapshot, ids []uint64) (map[uint64]Delta, error) {
	sorted := ids
	if !sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }) {
		sorted = append([]uint64(nil), ids...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	}

	last := make(map[string]time.Time)
	out := make(map[uint64]Delta)
	for i, id := range sorted {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r, ok := snap.Get(id)
		if !ok || r.Thread == "" || r.Timestamp == nil {
			continue
		}
		d := Delta{ID: id, Thread: r.Thread}
		if prev, seen := last[r.Thread]; seen {
			d.HasPrev = true
			d.Delta = r.Timestamp.Sub(prev)
			d.Band = p.Classify(d.Delta)
		}
		last[r.Thread] = *r.Timestamp
		out[id] = d
	}
	return out, nil
}

// ThreadSummary aggregates the deltas of one thread.
type ThreadSummary struct {
	Thread   string
	Count    int
	Avg      time.Duration
	Max      time.Duration
	MaxID    uint64
	Warnings int
	Severe   int
}

// Summary groups deltas by thread, slowest maximum first.
func Summary(deltas map[uint64]Delta) []ThreadSummary {
	by := make(map[string]*ThreadSummary)
	total := make(map[string]time.Duration)
	for _, d := range deltas {
		if !d.HasPrev {
			continue
		}
		s, ok := by[d.Thread]
		if !ok {
			s = &ThreadSummary{Thread: d.Thread}
			by[d.Thread] = s
		}
		s.Count++
		total[d.Thread] += d.Delta
		if d.Delta > s.Max || (d.Delta == s.Max && d.ID < s.MaxID) || s.Count == 1 {
			s.Max, s.MaxID = d.Delta, d.ID
		}
		switch d.Band {
		case BandWarning:
			s.Warnings++
		case BandSevere:
			s.Severe++
		}
	}
	out := make([]ThreadSummary, 0, len(by))
	for name, s := range by {
		s.Avg = total[name] / time.Duration(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Max != out[j].Max {
			return out[i].Max > out[j].Max
		}
		return out[i].Thread < out[j].Thread
	})
	return out
}

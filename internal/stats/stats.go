// Package stats maintains running dashboard counters fed by the index writer.
package stats

import (
	"sort"
	"sync"
	"time"

	"loginsight/internal/model"
)

const (
	topN       = 5
	trendLen   = 12
	BucketHour = "hour"
	BucketMin  = "minute"
)

// Bucket counts occurrences within one time slot.
type Bucket struct {
	Start    time.Time
	Total    int64
	Errors   int64
	Warnings int64
}

type SourceCount struct {
	SourceID int
	N        int64
}

type ThreadCount struct {
	Thread string
	N      int64
}

// Stats is a point-in-time copy of the aggregator state.
type Stats struct {
	Records    int64 // index records
	Total      int64 // log occurrences, counting folded repeats
	Levels     map[model.Level]int64
	Sources    map[int]int64
	TopSources []SourceCount
	TopThreads []ThreadCount
	ErrorTrend []Bucket
	First      *time.Time
	Last       *time.Time
	Window     Window
	Health     int
}

type Options struct {
	Bucket       string        // trend granularity: hour or minute
	HealthWindow time.Duration // trailing window, measured back from the newest timestamp
	Health       HealthFunc
}

// Aggregator is updated by the single index writer and read by views.
type Aggregator struct {
	opt Options

	mu      sync.RWMutex
	records int64
	total   int64
	levels  map[model.Level]int64
	sources map[int]int64
	threads map[string]int64
	minutes map[int64]*Bucket
	hours   map[int64]*Bucket
	first   time.Time
	last    time.Time
}

func New(opt Options) *Aggregator {
	if opt.Health == nil {
		opt.Health = DefaultHealth
	}
	if opt.HealthWindow <= 0 {
		opt.HealthWindow = 5 * time.Minute
	}
	if opt.Bucket != BucketMin {
		opt.Bucket = BucketHour
	}
	a := &Aggregator{opt: opt}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.records, a.total = 0, 0
	a.levels = make(map[model.Level]int64)
	a.sources = make(map[int]int64)
	a.threads = make(map[string]int64)
	a.minutes = make(map[int64]*Bucket)
	a.hours = make(map[int64]*Bucket)
	a.first, a.last = time.Time{}, time.Time{}
}

// OnAppend accounts for a record added to the index.
func (a *Aggregator) OnAppend(r *model.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records++
	a.add(r)
}

// OnFold accounts for a record absorbed into an earlier one.
func (a *Aggregator) OnFold(absorbed *model.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.add(absorbed)
}

// Reset clears every counter, e.g. before an index rebuild is replayed.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Aggregator) add(r *model.Record) {
	n := int64(r.FoldCount())
	a.total += n
	a.levels[r.Level] += n
	a.sources[r.SourceID] += n
	if r.Thread != "" {
		a.threads[r.Thread] += n
	}
	if r.Timestamp == nil {
		return
	}
	ts := *r.Timestamp
	if a.first.IsZero() || ts.Before(a.first) {
		a.first = ts
	}
	if ts.After(a.last) {
		a.last = ts
	}
	bump(a.minutes, ts.Truncate(time.Minute), r.Level, n)
	bump(a.hours, ts.Truncate(time.Hour), r.Level, n)
}

func bump(m map[int64]*Bucket, start time.Time, l model.Level, n int64) {
	key := start.Unix()
	b, ok := m[key]
	if !ok {
		b = &Bucket{Start: start}
		m[key] = b
	}
	b.Total += n
	switch l {
	case model.LevelError:
		b.Errors += n
	case model.LevelWarn:
		b.Warnings += n
	}
}

// Snapshot copies the current counters and computes the health score.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Stats{
		Records: a.records,
		Total:   a.total,
		Levels:  make(map[model.Level]int64, len(a.levels)),
		Sources: make(map[int]int64, len(a.sources)),
	}
	for k, v := range a.levels {
		s.Levels[k] = v
	}
	for k, v := range a.sources {
		s.Sources[k] = v
		s.TopSources = append(s.TopSources, SourceCount{SourceID: k, N: v})
	}
	sort.Slice(s.TopSources, func(i, j int) bool {
		if s.TopSources[i].N != s.TopSources[j].N {
			return s.TopSources[i].N > s.TopSources[j].N
		}
		return s.TopSources[i].SourceID < s.TopSources[j].SourceID
	})
	if len(s.TopSources) > topN {
		s.TopSources = s.TopSources[:topN]
	}
	for k, v := range a.threads {
		s.TopThreads = append(s.TopThreads, ThreadCount{Thread: k, N: v})
	}
	sort.Slice(s.TopThreads, func(i, j int) bool {
		if s.TopThreads[i].N != s.TopThreads[j].N {
			return s.TopThreads[i].N > s.TopThreads[j].N
		}
		return s.TopThreads[i].Thread < s.TopThreads[j].Thread
	})
	if len(s.TopThreads) > topN {
		s.TopThreads = s.TopThreads[:topN]
	}

	if !a.first.IsZero() {
		first, last := a.first, a.last
		s.First, s.Last = &first, &last
	}
	s.ErrorTrend = a.trend()
	s.Window = a.window()
	s.Health = a.opt.Health(s.Window)
	return s
}

// trend returns the newest buckets that saw errors, oldest first.
func (a *Aggregator) trend() []Bucket {
	src := a.hours
	if a.opt.Bucket == BucketMin {
		src = a.minutes
	}
	var out []Bucket
	for _, b := range src {
		if b.Errors > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if len(out) > trendLen {
		out = out[len(out)-trendLen:]
	}
	return out
}

// window sums minute buckets within HealthWindow of the newest timestamp.
// Without any timestamps it covers every record.
func (a *Aggregator) window() Window {
	if a.last.IsZero() {
		return Window{Total: a.total, Errors: a.levels[model.LevelError], Warnings: a.levels[model.LevelWarn]}
	}
	cutoff := a.last.Add(-a.opt.HealthWindow).Truncate(time.Minute)
	var w Window
	for _, b := range a.minutes {
		if b.Start.Before(cutoff) {
			continue
		}
		w.Total += b.Total
		w.Errors += b.Errors
		w.Warnings += b.Warnings
	}
	return w
}

// Package report condenses a record selection into an analysis report: level
// summary and health, recurring error signatures, per-thread timing, the most
// active sources and the busiest hour of the day.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"loginsight/internal/errors"
	"loginsight/internal/fold"
	"loginsight/internal/model"
	"loginsight/internal/profile"
	"loginsight/internal/stats"
)

const (
	maxErrors      = 20
	maxSources     = 10
	maxThreads     = 5
	signatureRunes = 60
)

// Period narrows a report to a calendar window around now.
type Period string

const (
	PeriodAll       Period = ""
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodAll, PeriodToday, PeriodYesterday, PeriodWeek:
		return p, nil
	case "all":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("%w: period %q (want today, yesterday or week)", errors.ErrParse, s)
}

// Bounds returns since/until filter expressions selecting the period. Empty
// strings leave that side open.
func (p Period) Bounds(now time.Time) (since, until string) {
	const day = "2006-01-02"
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return today.Format(day), ""
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return y.Format(day), y.Format(day) + " 23:59:59.999999999"
	case PeriodWeek:
		return today.AddDate(0, 0, -7).Format(day), ""
	}
	return "", ""
}

type Summary struct {
	Records     int64      `json:"records"`
	Occurrences int64      `json:"occurrences"`
	Errors      int64      `json:"errors"`
	Warnings    int64      `json:"warnings"`
	Info        int64      `json:"info"`
	Other       int64      `json:"other"`
	First       *time.Time `json:"first,omitempty"`
	Last        *time.Time `json:"last,omitempty"`
	Span        string     `json:"span,omitempty"`
	Health      int        `json:"health"`
}

// ErrorPattern groups error records whose messages match once volatile
// values are masked.
type ErrorPattern struct {
	Signature string     `json:"signature"`
	Count     int64      `json:"count"`
	First     *time.Time `json:"first,omitempty"`
	Last      *time.Time `json:"last,omitempty"`
	ExampleID uint64     `json:"exampleId"`
}

type ThreadTiming struct {
	Thread   string  `json:"thread"`
	Deltas   int     `json:"deltas"`
	AvgMS    float64 `json:"avgMs"`
	MaxMS    int64   `json:"maxMs"`
	MaxID    uint64  `json:"maxId"`
	Slow     int     `json:"slow"`
	VerySlow int     `json:"verySlow"`
}

type Performance struct {
	Deltas   int            `json:"deltas"`
	AvgMS    float64        `json:"avgMs"`
	MaxMS    int64          `json:"maxMs"`
	Slow     int            `json:"slow"`
	VerySlow int            `json:"verySlow"`
	Threads  []ThreadTiming `json:"threads,omitempty"`
}

type SourceSummary struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
	Errors int64  `json:"errors"`
}

type Report struct {
	Generated   time.Time       `json:"generated"`
	Period      Period          `json:"period,omitempty"`
	Summary     Summary         `json:"summary"`
	Errors      []ErrorPattern  `json:"errors"`
	Performance Performance     `json:"performance"`
	Sources     []SourceSummary `json:"sources"`
	PeakHour    string          `json:"peakHour,omitempty"`
}

type Options struct {
	Period       Period
	Health       stats.HealthFunc
	HealthWindow time.Duration
	SourceName   func(id int) string
	Now          func() time.Time
}

// Build walks recs once. deltas are the per-thread profiling results for the
// same selection and may be nil.
func Build(ctx context.Context, recs []*model.Record, deltas map[uint64]profile.Delta, opt Options) (*Report, error) {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.SourceName == nil {
		opt.SourceName = func(id int) string { return fmt.Sprintf("#%d", id) }
	}
	agg := stats.New(stats.Options{Bucket: stats.BucketHour, HealthWindow: opt.HealthWindow, Health: opt.Health})

	var (
		patterns = make(map[string]*ErrorPattern)
		sources  = make(map[int]*SourceSummary)
		hours    [24]int64
		timed    bool
	)
	for i, r := range recs {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		agg.OnAppend(r)
		n := int64(r.FoldCount())

		s, ok := sources[r.SourceID]
		if !ok {
			s = &SourceSummary{Source: opt.SourceName(r.SourceID)}
			sources[r.SourceID] = s
		}
		s.Count += n
		if r.Level == model.LevelError {
			s.Errors += n
			notePattern(patterns, r, n)
		}
		if r.Timestamp != nil {
			hours[r.Timestamp.Hour()] += n
			timed = true
		}
	}

	st := agg.Snapshot()
	rep := &Report{
		Generated: opt.Now(),
		Period:    opt.Period,
		Summary: Summary{
			Records:     st.Records,
			Occurrences: st.Total,
			Errors:      st.Levels[model.LevelError],
			Warnings:    st.Levels[model.LevelWarn],
			Info:        st.Levels[model.LevelInfo],
			First:       st.First,
			Last:        st.Last,
			Health:      st.Health,
		},
		Performance: performance(deltas),
		Errors:      []ErrorPattern{},
		Sources:     []SourceSummary{},
	}
	rep.Summary.Other = st.Total - rep.Summary.Errors - rep.Summary.Warnings - rep.Summary.Info
	if st.First != nil {
		rep.Summary.Span = st.Last.Sub(*st.First).Round(time.Second).String()
	}

	for _, p := range patterns {
		rep.Errors = append(rep.Errors, *p)
	}
	sort.Slice(rep.Errors, func(i, j int) bool {
		a, b := rep.Errors[i], rep.Errors[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Signature < b.Signature
	})
	if len(rep.Errors) > maxErrors {
		rep.Errors = rep.Errors[:maxErrors]
	}

	for _, s := range sources {
		rep.Sources = append(rep.Sources, *s)
	}
	sort.Slice(rep.Sources, func(i, j int) bool {
		a, b := rep.Sources[i], rep.Sources[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Source < b.Source
	})
	if len(rep.Sources) > maxSources {
		rep.Sources = rep.Sources[:maxSources]
	}

	if timed {
		peak := 0
		for h := range hours {
			if hours[h] > hours[peak] {
				peak = h
			}
		}
		rep.PeakHour = fmt.Sprintf("%02d:00", peak)
	}
	return rep, nil
}

func notePattern(patterns map[string]*ErrorPattern, r *model.Record, n int64) {
	sig := Signature(r.Message)
	p, ok := patterns[sig]
	if !ok {
		p = &ErrorPattern{Signature: sig, ExampleID: r.ID}
		patterns[sig] = p
	}
	p.Count += n
	if ts := r.Timestamp; ts != nil {
		if p.First == nil || ts.Before(*p.First) {
			p.First = ts
		}
		if p.Last == nil || ts.After(*p.Last) {
			p.Last = ts
		}
	}
}

// Signature reduces an error message to its first line with volatile values
// masked, cut to a fixed number of runes.
func Signature(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	sig := fold.Volatile(line)
	if utf8.RuneCountInString(sig) <= signatureRunes {
		return sig
	}
	runes := []rune(sig)
	return string(runes[:signatureRunes]) + "…"
}

func performance(deltas map[uint64]profile.Delta) Performance {
	var (
		p       Performance
		total   time.Duration
		longest time.Duration
	)
	for _, d := range deltas {
		if !d.HasPrev {
			continue
		}
		p.Deltas++
		total += d.Delta
		if d.Delta > longest {
			longest = d.Delta
		}
		switch d.Band {
		case profile.BandWarning:
			p.Slow++
		case profile.BandSevere:
			p.VerySlow++
		}
	}
	if p.Deltas > 0 {
		p.AvgMS = float64(total.Microseconds()) / 1000 / float64(p.Deltas)
		p.MaxMS = longest.Milliseconds()
	}
	for i, s := range profile.Summary(deltas) {
		if i == maxThreads {
			break
		}
		p.Threads = append(p.Threads, ThreadTiming{
			Thread:   s.Thread,
			Deltas:   s.Count,
			AvgMS:    float64(s.Avg.Microseconds()) / 1000,
			MaxMS:    s.Max.Milliseconds(),
			MaxID:    s.MaxID,
			Slow:     s.Warnings,
			VerySlow: s.Severe,
		})
	}
	return p
}

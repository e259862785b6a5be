package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/profile"
)

var t0 = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

func rec(id uint64, source int, level model.Level, msg string, at time.Duration) *model.Record {
	r := model.NewRecord(source, int(id), int(id), msg+"\n")
	r.ID, r.Level, r.Message = id, level, msg
	ts := t0.Add(at)
	r.Timestamp = &ts
	return r
}

func sample() []*model.Record {
	recs := []*model.Record{
		rec(1, 0, model.LevelInfo, "service started", 0),
		rec(2, 0, model.LevelError, "timeout after 3000 ms on conn 17", time.Minute),
		rec(3, 1, model.LevelError, "timeout after 5000 ms on conn 4", 2*time.Hour),
		rec(4, 1, model.LevelWarn, "slow query", 2*time.Hour+time.Minute),
		rec(5, 1, model.LevelError, "disk full\nat write()", 2*time.Hour+2*time.Minute),
		rec(6, 1, model.LevelInfo, "heartbeat", 2*time.Hour+3*time.Minute),
	}
	recs[5].Absorb(3, 9)
	return recs
}

func names(id int) string { return []string{"a.log", "b.log"}[id] }

func TestBuild(t *testing.T) {
	now := t0.Add(24 * time.Hour)
	rep, err := Build(context.Background(), sample(), nil, Options{
		Period:     PeriodToday,
		SourceName: names,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.Equal(t, now, rep.Generated)
	assert.Equal(t, PeriodToday, rep.Period)

	s := rep.Summary
	assert.Equal(t, int64(6), s.Records)
	assert.Equal(t, int64(9), s.Occurrences)
	assert.Equal(t, int64(3), s.Errors)
	assert.Equal(t, int64(1), s.Warnings)
	assert.Equal(t, int64(5), s.Info)
	assert.Zero(t, s.Other)
	require.NotNil(t, s.First)
	assert.Equal(t, t0, *s.First)
	assert.Equal(t, "2h3m0s", s.Span)

	require.Len(t, rep.Errors, 2)
	assert.Equal(t, "timeout after <n> ms on conn <n>", rep.Errors[0].Signature)
	assert.Equal(t, int64(2), rep.Errors[0].Count)
	assert.Equal(t, uint64(2), rep.Errors[0].ExampleID)
	assert.Equal(t, t0.Add(time.Minute), *rep.Errors[0].First)
	assert.Equal(t, t0.Add(2*time.Hour), *rep.Errors[0].Last)
	assert.Equal(t, "disk full", rep.Errors[1].Signature)

	require.Len(t, rep.Sources, 2)
	assert.Equal(t, SourceSummary{Source: "b.log", Count: 7, Errors: 2}, rep.Sources[0])
	assert.Equal(t, SourceSummary{Source: "a.log", Count: 2, Errors: 1}, rep.Sources[1])

	// the folded heartbeat makes 11:00 the busiest hour
	assert.Equal(t, "11:00", rep.PeakHour)
	assert.Zero(t, rep.Performance.Deltas)
}

func TestBuildEmpty(t *testing.T) {
	rep, err := Build(context.Background(), nil, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Sources)
	assert.Empty(t, rep.PeakHour)
	assert.Equal(t, 100, rep.Summary.Health)
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, sample(), nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildPerformance(t *testing.T) {
	deltas := map[uint64]profile.Delta{
		1: {ID: 1, Thread: "main"},
		2: {ID: 2, Thread: "main", HasPrev: true, Delta: 50 * time.Millisecond},
		3: {ID: 3, Thread: "main", HasPrev: true, Delta: 250 * time.Millisecond, Band: profile.BandWarning},
		4: {ID: 4, Thread: "io", HasPrev: true, Delta: 2 * time.Second, Band: profile.BandSevere},
	}
	rep, err := Build(context.Background(), nil, deltas, Options{})
	require.NoError(t, err)

	p := rep.Performance
	assert.Equal(t, 3, p.Deltas)
	assert.InDelta(t, 766.7, p.AvgMS, 0.1)
	assert.Equal(t, int64(2000), p.MaxMS)
	assert.Equal(t, 1, p.Slow)
	assert.Equal(t, 1, p.VerySlow)
	require.Len(t, p.Threads, 2)
	assert.Equal(t, "io", p.Threads[0].Thread)
	assert.Equal(t, uint64(4), p.Threads[0].MaxID)
	assert.Equal(t, 2, p.Threads[1].Deltas)
	assert.InDelta(t, 150.0, p.Threads[1].AvgMS, 0.01)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "user <n> not found", Signature("  user 42 not found\n  at lookup()"))
	long := Signature(strings.Repeat("é", 100))
	assert.Equal(t, 61, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{
		"":          PeriodAll,
		"all":       PeriodAll,
		"Today":     PeriodToday,
		"yesterday": PeriodYesterday,
		" week ":    PeriodWeek,
	} {
		got, err := ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParsePeriod("month")
	assert.ErrorIs(t, err, errors.ErrParse)
}

func TestPeriodBounds(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		p            Period
		since, until string
	}{
		{PeriodAll, "", ""},
		{PeriodToday, "2024-03-05", ""},
		{PeriodYesterday, "2024-03-04", "2024-03-04 23:59:59.999999999"},
		{PeriodWeek, "2024-02-27", ""},
	}
	for _, tt := range tests {
		since, until := tt.p.Bounds(now)
		assert.Equal(t, tt.since, since, tt.p)
		assert.Equal(t, tt.until, until, tt.p)
	}
}

func TestWriteMarkdown(t *testing.T) {
	rep, err := Build(context.Background(), sample(), nil, Options{Period: PeriodWeek, SourceName: names})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "# Log analysis report (week)")
	assert.Contains(t, out, "- Records: 6 (9 occurrences)")
	assert.Contains(t, out, "- Peak hour: 11:00")
	assert.Contains(t, out, "| 2 | timeout after <n> ms on conn <n> | 2024-03-05 09:01:00 | 2024-03-05 11:00:00 | #2 |")
	assert.Contains(t, out, "No per-thread timing available.")
	assert.Contains(t, out, "| b.log | 7 | 2 |")
}

func TestWriteJSON(t *testing.T) {
	rep, err := Build(context.Background(), sample(), nil, Options{SourceName: names})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rep))
	var got struct {
		Summary struct {
			Errors int64 `json:"errors"`
		} `json:"summary"`
		Errors []struct {
			Signature string `json:"signature"`
		} `json:"errors"`
		PeakHour string `json:"peakHour"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(3), got.Summary.Errors)
	require.Len(t, got.Errors, 2)
	assert.Equal(t, "disk full", got.Errors[1].Signature)
	assert.Equal(t, "11:00", got.PeakHour)
}

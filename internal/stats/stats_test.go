package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
	"loginsight/internal/model"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func rec(source int, level model.Level, thread string, at time.Duration) *model.Record {
	r := model.NewRecord(source, 1, 1, "x\n")
	r.Level, r.Thread = level, thread
	ts := t0.Add(at)
	r.Timestamp = &ts
	return r
}

func TestAggregatorCounts(t *testing.T) {
	a := New(Options{})
	a.OnAppend(rec(0, model.LevelInfo, "t1", 0))
	a.OnAppend(rec(0, model.LevelError, "t1", time.Minute))
	a.OnAppend(rec(1, model.LevelWarn, "t2", 2*time.Hour))
	a.OnFold(rec(1, model.LevelWarn, "t2", 2*time.Hour+time.Second))

	s := a.Snapshot()
	assert.Equal(t, int64(3), s.Records)
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Levels[model.LevelWarn])
	assert.Equal(t, int64(2), s.Sources[1])
	require.Len(t, s.TopThreads, 2)
	assert.Equal(t, ThreadCount{"t1", 2}, s.TopThreads[0])
	require.NotNil(t, s.First)
	assert.Equal(t, t0, *s.First)
	assert.Equal(t, t0.Add(2*time.Hour+time.Second), *s.Last)
	require.Len(t, s.ErrorTrend, 1)
	assert.Equal(t, t0, s.ErrorTrend[0].Start)
}

func TestAggregatorReset(t *testing.T) {
	a := New(Options{})
	a.OnAppend(rec(0, model.LevelError, "", 0))
	a.Reset()
	s := a.Snapshot()
	assert.Zero(t, s.Total)
	assert.Nil(t, s.First)
	assert.Equal(t, 100, s.Health)
}

func TestHealthWindowTrailsNewestTimestamp(t *testing.T) {
	a := New(Options{HealthWindow: 5 * time.Minute})
	for i := 0; i < 10; i++ {
		a.OnAppend(rec(0, model.LevelError, "", time.Duration(i)*time.Second))
	}
	for i := 0; i < 10; i++ {
		a.OnAppend(rec(0, model.LevelInfo, "", time.Hour+time.Duration(i)*time.Second))
	}
	s := a.Snapshot()
	assert.Equal(t, Window{Total: 10}, s.Window)
	assert.Equal(t, 100, s.Health)
}

func TestDefaultHealth(t *testing.T) {
	tests := []struct {
		w    Window
		want int
	}{
		{Window{}, 100},
		{Window{Total: 100}, 100},
		{Window{Total: 100, Errors: 10}, 80},
		{Window{Total: 100, Errors: 10, Warnings: 20}, 70},
		{Window{Total: 10, Errors: 10}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultHealth(tt.w), "%+v", tt.w)
	}
}

func TestExprHealth(t *testing.T) {
	fn, err := ExprHealth("100 - errors * 5 - warnings")
	require.NoError(t, err)
	assert.Equal(t, 85, fn(Window{Total: 50, Errors: 2, Warnings: 5}))
	assert.Equal(t, 0, fn(Window{Total: 50, Errors: 40}))

	boolean, err := ExprHealth("errors > 1")
	require.NoError(t, err)
	assert.Equal(t, DefaultHealth(Window{Total: 10, Errors: 2}), boolean(Window{Total: 10, Errors: 2}))

	_, err = ExprHealth("100 - (")
	assert.ErrorIs(t, err, errors.ErrPattern)

	fn, err = HealthFromConfig("")
	require.NoError(t, err)
	assert.Equal(t, 100, fn(Window{}))
}

func TestAggregatorCustomHealth(t *testing.T) {
	a := New(Options{Health: func(w Window) int { return int(w.Errors) }})
	a.OnAppend(rec(0, model.LevelError, "", 0))
	assert.Equal(t, 1, a.Snapshot().Health)
}

package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/model"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

type entry struct {
	thread string
	at     time.Duration
	noTS   bool
}

func build(entries ...entry) model.Snapshot {
	x := model.NewIndex()
	for i, e := range entries {
		r := model.NewRecord(0, i+1, i+1, "x\n")
		r.Thread = e.thread
		if !e.noTS {
			ts := t0.Add(e.at)
			r.Timestamp = &ts
		}
		x.Append(r)
	}
	return x.Snapshot()
}

func TestClassify(t *testing.T) {
	p := New(Thresholds{})
	assert.Equal(t, BandNone, p.Classify(99*time.Millisecond))
	assert.Equal(t, BandWarning, p.Classify(100*time.Millisecond))
	assert.Equal(t, BandWarning, p.Classify(999*time.Millisecond))
	assert.Equal(t, BandSevere, p.Classify(time.Second))
}

func TestComputePerThread(t *testing.T) {
	snap := build(
		entry{"a", 0, false},
		entry{"b", 10 * time.Millisecond, false},
		entry{"a", 150 * time.Millisecond, false},
		entry{"", 200 * time.Millisecond, false},
		entry{"a", 0, true},
		entry{"b", 1500 * time.Millisecond, false},
		entry{"a", 170 * time.Millisecond, false},
	)
	p := New(DefaultThresholds)
	ids := []uint64{0, 1, 2, 3, 4, 5, 6}
	deltas, err := p.Compute(context.Background(), snap, ids)
	require.NoError(t, err)

	assert.False(t, deltas[0].HasPrev)
	assert.Equal(t, 150*time.Millisecond, deltas[2].Delta)
	assert.Equal(t, BandWarning, deltas[2].Band)
	assert.Equal(t, 1490*time.Millisecond, deltas[5].Delta)
	assert.Equal(t, BandSevere, deltas[5].Band)
	assert.Equal(t, 20*time.Millisecond, deltas[6].Delta, "record without timestamp is skipped")
	assert.Equal(t, BandNone, deltas[6].Band)
	_, ok := deltas[3]
	assert.False(t, ok, "threadless records are excluded")
	_, ok = deltas[4]
	assert.False(t, ok)
}

func TestComputeOverSubsetOnly(t *testing.T) {
	snap := build(
		entry{"a", 0, false},
		entry{"a", 50 * time.Millisecond, false},
		entry{"a", 2 * time.Second, false},
	)
	deltas, err := New(DefaultThresholds).Compute(context.Background(), snap, []uint64{2, 0})
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, 2*time.Second, deltas[2].Delta)
}

func TestComputeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(DefaultThresholds).Compute(ctx, build(entry{"a", 0, false}), []uint64{0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummary(t *testing.T) {
	deltas := map[uint64]Delta{
		0: {ID: 0, Thread: "a"},
		1: {ID: 1, Thread: "a", HasPrev: true, Delta: 100 * time.Millisecond, Band: BandWarning},
		2: {ID: 2, Thread: "a", HasPrev: true, Delta: 300 * time.Millisecond, Band: BandWarning},
		3: {ID: 3, Thread: "b", HasPrev: true, Delta: 2 * time.Second, Band: BandSevere},
	}
	s := Summary(deltas)
	require.Len(t, s, 2)
	assert.Equal(t, "b", s[0].Thread)
	assert.Equal(t, 1, s[0].Severe)
	assert.Equal(t, "a", s[1].Thread)
	assert.Equal(t, 200*time.Millisecond, s[1].Avg)
	assert.Equal(t, uint64(2), s[1].MaxID)
	assert.Equal(t, 2, s[1].Warnings)
}

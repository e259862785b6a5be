package correlate

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
	"loginsight/internal/model"
)

const traceID = "1b2c3d4e-5f60-4718-9a0b-c1d2e3f4a5c9"

func extractor() *Extractor {
	return New([]*regexp.Regexp{
		regexp.MustCompile(`traceId=([a-f0-9-]{36})`),
		regexp.MustCompile(`req=(?P<id>\w+)`),
		regexp.MustCompile(`order-\d+`),
	})
}

func TestFind(t *testing.T) {
	x := extractor()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"2024-01-01 10:00:00 [INFO] start traceId=" + traceID + " done", traceID, true},
		{"req=r42 then traceId=" + traceID, traceID, true},
		{"handled req=r42", "r42", true},
		{"shipping order-77 now", "order-77", true},
		{"nothing here", "", false},
	}
	for _, tt := range tests {
		got, ok := x.Find(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestExtractCaches(t *testing.T) {
	x := extractor()
	r := model.NewRecord(0, 1, 1, "handled req=r42\n")
	id, err := x.Extract(r)
	require.NoError(t, err)
	assert.Equal(t, "r42", id)
	cached, checked := r.Correlation()
	assert.True(t, checked)
	assert.Equal(t, "r42", cached)

	none := model.NewRecord(0, 2, 2, "plain\n")
	_, err = x.Extract(none)
	assert.ErrorIs(t, err, errors.ErrNoCorrelationID)
	_, checked = none.Correlation()
	assert.True(t, checked)
}

func TestTrace(t *testing.T) {
	x := extractor()
	idx := model.NewIndex()
	for _, line := range []string{
		"10:00:00 start traceId=" + traceID + " done",
		"10:00:01 unrelated work",
		"10:00:02 step two traceId=" + traceID,
		"10:00:03 other traceId=aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		"10:00:04 finish traceId=" + traceID,
	} {
		r := model.NewRecord(0, idx.Len()+1, idx.Len()+1, line+"\n")
		r.Message = line
		idx.Append(r)
	}
	snap := idx.Snapshot()

	id, ids, err := x.Trace(context.Background(), snap, snap.At(0))
	require.NoError(t, err)
	assert.Equal(t, traceID, id)
	assert.Equal(t, []uint64{0, 2, 4}, ids)

	_, _, err = x.Trace(context.Background(), snap, snap.At(1))
	assert.ErrorIs(t, err, errors.ErrNoCorrelationID)
}

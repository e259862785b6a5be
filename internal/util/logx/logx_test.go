package logx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinesCaptureAndLevel(t *testing.T) {
	Reset()
	SetLevel(Warn)
	defer SetLevel(Info)

	Infof("hidden %d", 1)
	Warnf("tail %s rotated", "app.log")
	Errorf("boom")

	lines := strings.Split(Dump(), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "tail app.log rotated")
	assert.Contains(t, lines[1], "boom")
	assert.False(t, strings.Contains(Dump(), "hidden"))
}

func TestComponentField(t *testing.T) {
	Reset()
	SetLevel(Debug)
	defer SetLevel(Info)

	lg := Component("ingest")
	lg.Info().Str("source", "a.log").Msg("opened")

	out := Dump()
	assert.Contains(t, out, "component=ingest")
	assert.Contains(t, out, "source=a.log")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, Debug, ParseLevel("TRACE"))
	assert.Equal(t, Warn, ParseLevel("warning"))
	assert.Equal(t, Error, ParseLevel("error"))
	assert.Equal(t, Info, ParseLevel("bogus"))
}

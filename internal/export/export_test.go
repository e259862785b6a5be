package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/profile"
)

func records() []*model.Record {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a := model.NewRecord(0, 1, 1, "a\n")
	a.ID, a.Timestamp, a.Level, a.Thread, a.Message = 0, &ts, model.LevelInfo, "main", "start"
	a.Fields.Set("user", "alice")

	later := ts.Add(1500 * time.Millisecond)
	b := model.NewRecord(0, 2, 4, "b\n")
	b.ID, b.Timestamp, b.Level, b.Thread, b.Message = 1, &later, model.LevelError, "main", "failed | badly\nat x"
	b.Fields.Set("duration", "12ms")
	return []*model.Record{a, b}
}

func opts() Options {
	return Options{
		Deltas: map[uint64]profile.Delta{
			0: {ID: 0, Thread: "main"},
			1: {ID: 1, Thread: "main", HasPrev: true, Delta: 1500 * time.Millisecond, Band: profile.BandSevere},
		},
		SourceName: func(int) string { return "app.log" },
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"csv": CSV, "JSON": JSON, "md": Markdown, "markdown": Markdown, "ndjson": NDJSON, "report": Report} {
		f, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, f)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, errors.ErrUnknownFormat)

	assert.Equal(t, CSV, FormatFromPath("/tmp/out.CSV"))
	assert.Equal(t, JSON, FormatFromPath("/tmp/out"))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, CSV, records(), opts()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "source", "line", "ts", "level", "thread", "message", "duration", "user", "payload", "fold_count", "delta_ms", "band"}, rows[0])
	assert.Equal(t, "alice", rows[1][8])
	assert.Equal(t, "", rows[1][11])
	assert.Equal(t, "12ms", rows[2][7])
	assert.Equal(t, "1500", rows[2][11])
	assert.Equal(t, "severe", rows[2][12])
	assert.Equal(t, "failed | badly\nat x", rows[2][6])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, records(), opts()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "app.log", got[0]["source"])
	assert.NotContains(t, got[0], "deltaMs")
	assert.Equal(t, float64(1500), got[1]["deltaMs"])
	assert.Equal(t, "ERROR", got[1]["level"])
	assert.Equal(t, map[string]any{"duration": "12ms"}, got[1]["fields"])
}

func TestWriteMarkdownEscapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Markdown, records(), opts()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "| id | source |"))
	assert.Contains(t, lines[3], `failed \| badly<br>at x`)
	assert.True(t, strings.HasSuffix(lines[3], "| 1500 |"))
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Report, records(), opts()))

	var got struct {
		Summary struct {
			Records int64 `json:"records"`
			Errors  int64 `json:"errors"`
		} `json:"summary"`
		Errors []struct {
			Signature string `json:"signature"`
			ExampleID uint64 `json:"exampleId"`
		} `json:"errors"`
		Performance struct {
			Deltas   int   `json:"deltas"`
			MaxMS    int64 `json:"maxMs"`
			VerySlow int   `json:"verySlow"`
		} `json:"performance"`
		Sources []struct {
			Source string `json:"source"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, int64(2), got.Summary.Records)
	assert.Equal(t, int64(1), got.Summary.Errors)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "failed | badly", got.Errors[0].Signature)
	assert.Equal(t, uint64(1), got.Errors[0].ExampleID)
	assert.Equal(t, 1, got.Performance.Deltas)
	assert.Equal(t, int64(1500), got.Performance.MaxMS)
	assert.Equal(t, 1, got.Performance.VerySlow)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "app.log", got.Sources[0].Source)
}

func TestWriteRejects(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, CSV, nil, Options{}), errors.ErrNoRecords)
	assert.ErrorIs(t, Write(&buf, Format("xml"), records(), Options{}), errors.ErrUnknownFormat)
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	require.NoError(t, ToFile(path, NDJSON, records(), Options{}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "\n"))
}

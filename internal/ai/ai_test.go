package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/config"
	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/version"
)

func TestBuildPrompt(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	r := model.NewRecord(0, 1, 2, "login failed for bob@example.com token=abcdefgh1234\n  at auth\n")
	r.ID, r.Timestamp, r.Level = 7, &ts, model.LevelError
	r.Absorb(2, 3)

	p := BuildPrompt([]*model.Record{r}, "  why? ")
	assert.Equal(t, 1, p.Records)
	assert.Contains(t, p.User, "#7 2024-01-01T10:00:00Z ERROR (x3): login failed")
	assert.Contains(t, p.User, "[redacted-email]")
	assert.Contains(t, p.User, "token=[redacted]")
	assert.NotContains(t, p.User, "bob@example.com")
	assert.True(t, strings.HasSuffix(p.User, "Question:\nwhy?"))
	assert.NotEmpty(t, p.System)
}

func TestBuildPromptCutsOnRuneBoundary(t *testing.T) {
	// 3-byte runes never line up with the byte cap
	r := model.NewRecord(0, 1, 1, "xy"+strings.Repeat("数", maxRecordBytes)+"\n")
	p := BuildPrompt([]*model.Record{r}, "")
	assert.True(t, utf8.ValidString(p.User))
	assert.Contains(t, p.User, "数 …[cut]")
}

func TestBuildPromptCapsRecords(t *testing.T) {
	var recs []*model.Record
	for i := 0; i < maxRecords+5; i++ {
		r := model.NewRecord(0, i+1, i+1, "x\n")
		r.ID = uint64(i)
		recs = append(recs, r)
	}
	p := BuildPrompt(recs, "")
	assert.Equal(t, maxRecords, p.Records)
	assert.NotContains(t, p.User, "#4 -")
	assert.Contains(t, p.User, "#5 -")
	assert.Contains(t, p.User, "root causes")
}

func TestAskDisabled(t *testing.T) {
	_, err := NewClient("", config.AI{}).Ask(context.Background(), Prompt{})
	assert.ErrorIs(t, err, errors.ErrAIDisabled)
}

func TestAskAgainstCompatibleEndpoint(t *testing.T) {
	var gotUA, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"disk full on #7"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewClient("", config.AI{Model: "llama3", BaseURL: srv.URL + "/v1/", Timeout: 5 * time.Second})
	require.True(t, c.Enabled())
	out, err := c.Ask(context.Background(), Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "disk full on #7", out)
	assert.Equal(t, version.UserAgent(), gotUA)
	assert.Equal(t, "llama3", gotModel)
}

func TestAskEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient("", config.AI{Model: "m", BaseURL: srv.URL}).Ask(context.Background(), Prompt{})
	assert.ErrorIs(t, err, errors.ErrEmptyResponse)
}

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
	"loginsight/internal/filter"
	"loginsight/internal/model"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	return s
}

func TestSaveLoad(t *testing.T) {
	s := open(t)
	var missing map[string]int
	found, err := s.Load("doc", &missing)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save("doc", map[string]int{"a": 1}))
	var got map[string]int
	found, err = s.Load("doc", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]int{"a": 1}, got)

	_, err = os.Stat(filepath.Join(s.Dir(), "doc.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Delete("doc"))
	require.NoError(t, s.Delete("doc"))
	found, err = s.Load("doc", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRejectsBadKeys(t *testing.T) {
	s := open(t)
	assert.ErrorIs(t, s.Save("../escape", 1), errors.ErrInvalidConfig)
	_, err := Open("")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCorruptDocument(t *testing.T) {
	s := open(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "doc.json"), []byte("{"), 0o644))
	var v map[string]any
	_, err := s.Load("doc", &v)
	assert.ErrorIs(t, err, errors.ErrParse)
}

func TestTemplates(t *testing.T) {
	tpl := open(t).Templates()
	c := filter.Criteria{Text: "timeout", Since: "-1h", Levels: []model.Level{model.LevelError}}
	require.NoError(t, tpl.Save("timeouts", c))
	require.NoError(t, tpl.Save("all", filter.Criteria{}))

	got, err := tpl.Get("timeouts")
	require.NoError(t, err)
	assert.Equal(t, c, got.Criteria)
	assert.Equal(t, "-1h", got.Criteria.Since)

	list, err := tpl.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "all", list[0].Name)

	err = tpl.Save("broken", filter.Criteria{Text: "(["})
	assert.ErrorIs(t, err, errors.ErrPattern)
	assert.ErrorIs(t, tpl.Save(" ", c), errors.ErrInvalidConfig)

	require.NoError(t, tpl.Delete("timeouts"))
	_, err = tpl.Get("timeouts")
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
	assert.ErrorIs(t, tpl.Delete("timeouts"), errors.ErrTemplateNotFound)
}

func TestHistory(t *testing.T) {
	h := open(t).History()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return at }

	require.NoError(t, h.Add(KindSearch, "error"))
	require.NoError(t, h.Add(KindJump, "42"))
	require.NoError(t, h.Add(KindSearch, "error"))
	require.NoError(t, h.Add(KindSearch, "  "))
	require.NoError(t, h.Add(KindPrompt, "why did it fail?"))

	all, err := h.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, Entry{Kind: KindJump, Text: "42", At: at}, all[0])
	assert.Equal(t, KindSearch, all[1].Kind)

	searches, err := h.List(KindSearch)
	require.NoError(t, err)
	assert.Len(t, searches, 1)
}

func TestHistoryCap(t *testing.T) {
	h := open(t).History()
	for i := 0; i < MaxHistory+10; i++ {
		require.NoError(t, h.Add(KindJump, fmt.Sprint(i)))
	}
	all, err := h.List(KindJump)
	require.NoError(t, err)
	require.Len(t, all, MaxHistory)
	assert.Equal(t, "10", all[0].Text)
}

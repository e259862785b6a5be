package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loginsight/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100*time.Millisecond, cfg.Profiler.WarnThreshold)
	assert.Equal(t, time.Second, cfg.Profiler.SevereThreshold)
	assert.Equal(t, "gb18030", cfg.Parser.LegacyEncoding)
	assert.Len(t, cfg.Correlation.Patterns, 3)
	require.Len(t, cfg.Filters.FoldRules, 2)
	assert.Equal(t, "volatile", cfg.Filters.FoldRules[0].Normalization)
	assert.NotEmpty(t, cfg.Store.Dir)
}

func TestDefaultLogPattern(t *testing.T) {
	p, err := Default().Compile()
	require.NoError(t, err)

	m := p.LogPattern.FindStringSubmatch("2024-01-01 10:00:00.050 [ERROR] [tid-7] failed")
	require.NotNil(t, m)
	assert.Equal(t, "2024-01-01 10:00:00.050", m[p.LogPattern.SubexpIndex("timestamp")])
	assert.Equal(t, "ERROR", m[p.LogPattern.SubexpIndex("level")])
	assert.Equal(t, "tid-7", m[p.LogPattern.SubexpIndex("thread")])
	assert.Equal(t, "failed", m[p.LogPattern.SubexpIndex("message")])
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loginsight.yaml")
	body := `
parser:
  entry_start: '^\d{4}-'
profiler:
  warn_threshold: 50ms
  severe_threshold: 2s
correlation:
  patterns:
    - 'rid=(\w+)'
filters:
  fold_rules:
    - name: poll
      pattern: 'poll'
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, `^\d{4}-`, cfg.Parser.EntryStart)
	assert.Equal(t, 50*time.Millisecond, cfg.Profiler.WarnThreshold)
	assert.Equal(t, 2*time.Second, cfg.Profiler.SevereThreshold)
	assert.Equal(t, []string{`rid=(\w+)`}, cfg.Correlation.Patterns)
	require.Len(t, cfg.Filters.FoldRules, 1)
	assert.Equal(t, "volatile", cfg.Filters.FoldRules[0].Normalization)
	assert.Equal(t, DefaultLogPattern, cfg.Parser.LogPattern)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, errors.ErrFailedToLoad)
}

func TestLoadInvalidThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	body := "[profiler]\nwarn_threshold = \"2s\"\nsevere_threshold = \"1s\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", DefaultFile)
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Parser.LogPattern, cfg.Parser.LogPattern)
	assert.Equal(t, def.Parser.TimestampFormats, cfg.Parser.TimestampFormats)
	assert.Equal(t, def.Parser.FieldPatterns, cfg.Parser.FieldPatterns)
	assert.Equal(t, def.Filters.FoldRules, cfg.Filters.FoldRules)
	assert.Equal(t, def.Correlation, cfg.Correlation)
	assert.Equal(t, def.Profiler, cfg.Profiler)
	assert.Equal(t, def.Tail, cfg.Tail)
	assert.Equal(t, def.Stats, cfg.Stats)

	assert.ErrorIs(t, WriteDefault(path), errors.ErrIO)
}

func TestCompileRejectsMalformedPattern(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log pattern", func(c *Config) { c.Parser.LogPattern = "(" }, "parser.log_pattern"},
		{"ignore", func(c *Config) { c.Filters.IgnorePatterns = []string{"ok", "[z-a]"} }, "filters.ignore_patterns[1]"},
		{"correlation", func(c *Config) { c.Correlation.Patterns = []string{"(?P<"} }, "correlation.patterns[0]"},
		{"fold rule", func(c *Config) { c.Filters.FoldRules = []FoldRule{{Name: "x", Pattern: "*"}} }, "filters.fold_rules[0].pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			_, err := cfg.Compile()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrPattern)

			var pe *errors.PatternError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestCompileFieldPatternsSorted(t *testing.T) {
	cfg := Default()
	cfg.Parser.FieldPatterns = map[string]string{"zeta": "z=(\\d+)", "alpha": "a=(\\d+)"}
	p, err := cfg.Compile()
	require.NoError(t, err)
	require.Len(t, p.FieldPatterns, 2)
	assert.Equal(t, "alpha", p.FieldPatterns[0].Name)
	assert.Nil(t, p.EntryStart)
}

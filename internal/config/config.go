package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"loginsight/internal/errors"
)

const (
	EnvPrefix   = "LOGINSIGHT"
	FileName    = "loginsight"
	DefaultFile = "loginsight.toml"
)

// Config is loaded once and passed by pointer to each component at
// construction. Components must not mutate it.
type Config struct {
	Parser      Parser      `mapstructure:"parser"`
	Filters     Filters     `mapstructure:"filters"`
	Correlation Correlation `mapstructure:"correlation"`
	Profiler    Profiler    `mapstructure:"profiler"`
	Tail        Tail        `mapstructure:"tail"`
	Stats       Stats       `mapstructure:"stats"`
	AI          AI          `mapstructure:"ai"`
	Store       Store       `mapstructure:"store"`
	Logging     Logging     `mapstructure:"logging"`
}

type Parser struct {
	LogPattern           string            `mapstructure:"log_pattern"`
	EntryStart           string            `mapstructure:"entry_start"`
	TimestampFormats     []string          `mapstructure:"timestamp_formats"`
	FieldPatterns        map[string]string `mapstructure:"field_patterns"`
	LegacyEncoding       string            `mapstructure:"legacy_encoding"`
	MaxContinuationLines int               `mapstructure:"max_continuation_lines"`
	MaxRecordBytes       int               `mapstructure:"max_record_bytes"`
}

// FoldRule selects records eligible for folding and names the message
// normalization used to compare them.
type FoldRule struct {
	Name          string `mapstructure:"name"`
	Pattern       string `mapstructure:"pattern"`
	Normalization string `mapstructure:"normalization"`
}

type Filters struct {
	FoldRules      []FoldRule `mapstructure:"fold_rules"`
	IgnorePatterns []string   `mapstructure:"ignore_patterns"`
}

type Correlation struct {
	Patterns []string `mapstructure:"patterns"`
}

type Profiler struct {
	WarnThreshold   time.Duration `mapstructure:"warn_threshold"`
	SevereThreshold time.Duration `mapstructure:"severe_threshold"`
}

type Tail struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	IdleFlush    time.Duration `mapstructure:"idle_flush"`
}

type Stats struct {
	Bucket           string        `mapstructure:"bucket"`
	HealthWindow     time.Duration `mapstructure:"health_window"`
	HealthExpression string        `mapstructure:"health_expression"`
}

type AI struct {
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Store struct {
	Dir string `mapstructure:"dir"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultLogPattern matches lines such as
// "2024-01-01 10:00:00.050 [ERROR] [tid-7] failed".
const DefaultLogPattern = `^(?P<timestamp>\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s*\[?(?P<level>[A-Za-z]+)\]?:?\s+(?:\[(?P<thread>[^\]]+)\]\s*)?(?P<message>.*)$`

// defaults is the single source of default values for viper and for the
// TOML file written by WriteDefault.
func defaults() map[string]any {
	return map[string]any{
		"parser": map[string]any{
			"log_pattern": DefaultLogPattern,
			"entry_start": "",
			"timestamp_formats": []string{
				"2006-01-02 15:04:05",
				"2006-01-02T15:04:05Z07:00",
				"2006-01-02T15:04:05",
				"2006-01-02 15:04:05Z07:00",
				"Jan _2 15:04:05",
			},
			"field_patterns": map[string]string{
				"user":     `user(?:name)?[=:]\s*"?([\w.@-]+)`,
				"duration": `(?:took|duration|elapsed)[=:\s]+(\d+(?:\.\d+)?\s*(?:ms|s|us))`,
			},
			"legacy_encoding":        "gb18030",
			"max_continuation_lines": 2000,
			"max_record_bytes":       1 << 20,
		},
		"filters": map[string]any{
			"fold_rules": []map[string]any{
				{"name": "heartbeat", "pattern": `(?i)heartbeat|keep-?alive|polling`, "normalization": "volatile"},
				{"name": "repeats", "pattern": `.+`, "normalization": "exact"},
			},
			"ignore_patterns": []string{},
		},
		"correlation": map[string]any{
			"patterns": []string{
				`traceId[=:]\s*"?([A-Za-z0-9-]+)`,
				`requestId[=:]\s*"?([A-Za-z0-9-]+)`,
				`(?i)\b([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`,
			},
		},
		"profiler": map[string]any{
			"warn_threshold":   "100ms",
			"severe_threshold": "1s",
		},
		"tail": map[string]any{
			"poll_interval": "500ms",
			"idle_flush":    "1s",
		},
		"stats": map[string]any{
			"bucket":            "hour",
			"health_window":     "5m",
			"health_expression": "",
		},
		"ai": map[string]any{
			"model":    "gpt-4o-mini",
			"base_url": "",
			"timeout":  "120s",
		},
		"store": map[string]any{
			"dir": "",
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "console",
		},
	}
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v, "", defaults())
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from path, or from loginsight.{toml,yaml} in the
// working directory or ~/.loginsight when path is empty. A missing file is
// not an error. Environment variables LOGINSIGHT_<SECTION>_<KEY> override.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, "", defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %w", errors.ErrFailedToLoad, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrFailedToLoad, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store.Dir = filepath.Join(home, "."+FileName)
		} else {
			c.Store.Dir = "." + FileName
		}
	}
	for i := range c.Filters.FoldRules {
		if c.Filters.FoldRules[i].Normalization == "" {
			c.Filters.FoldRules[i].Normalization = "volatile"
		}
	}
}

// Validate checks scalar settings. Patterns are checked by Compile.
func (c *Config) Validate() error {
	if c.Profiler.WarnThreshold <= 0 || c.Profiler.SevereThreshold <= 0 {
		return errors.New("profiler thresholds must be positive")
	}
	if c.Profiler.SevereThreshold < c.Profiler.WarnThreshold {
		return errors.New("profiler.severe_threshold must not be below profiler.warn_threshold")
	}
	if c.Tail.PollInterval <= 0 {
		return errors.New("tail.poll_interval must be positive")
	}
	if c.Parser.MaxContinuationLines <= 0 || c.Parser.MaxRecordBytes <= 0 {
		return errors.New("parser record limits must be positive")
	}
	switch c.Stats.Bucket {
	case "minute", "hour":
	default:
		return fmt.Errorf("stats.bucket %q: want minute or hour", c.Stats.Bucket)
	}
	return nil
}

// WriteDefault writes the built-in configuration to path as TOML. An
// existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", errors.ErrIO, path)
	}
	data, err := toml.Marshal(defaults())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrIO, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return nil
}

// NamedPattern is a compiled field extraction pattern.
type NamedPattern struct {
	Name string
	Re   *regexp.Regexp
}

// CompiledFoldRule is a FoldRule with its pattern compiled.
type CompiledFoldRule struct {
	Name          string
	Re            *regexp.Regexp
	Normalization string
}

// Patterns holds every regular expression the pipeline needs, compiled once.
type Patterns struct {
	LogPattern       *regexp.Regexp
	EntryStart       *regexp.Regexp // nil selects detection from a line sample
	TimestampFormats []string
	FieldPatterns    []NamedPattern // sorted by name
	FoldRules        []CompiledFoldRule
	Ignore           []*regexp.Regexp
	Correlation      []*regexp.Regexp
}

// Compile compiles every pattern in c. The first malformed pattern is
// reported as a *errors.PatternError naming its key.
func (c *Config) Compile() (*Patterns, error) {
	p := &Patterns{TimestampFormats: append([]string(nil), c.Parser.TimestampFormats...)}
	var err error

	if p.LogPattern, err = compile("parser.log_pattern", c.Parser.LogPattern); err != nil {
		return nil, err
	}
	if c.Parser.EntryStart != "" {
		if p.EntryStart, err = compile("parser.entry_start", c.Parser.EntryStart); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(c.Parser.FieldPatterns))
	for name := range c.Parser.FieldPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		re, err := compile("parser.field_patterns."+name, c.Parser.FieldPatterns[name])
		if err != nil {
			return nil, err
		}
		p.FieldPatterns = append(p.FieldPatterns, NamedPattern{Name: name, Re: re})
	}

	for i, rule := range c.Filters.FoldRules {
		re, err := compile(fmt.Sprintf("filters.fold_rules[%d].pattern", i), rule.Pattern)
		if err != nil {
			return nil, err
		}
		p.FoldRules = append(p.FoldRules, CompiledFoldRule{Name: rule.Name, Re: re, Normalization: rule.Normalization})
	}

	for i, s := range c.Filters.IgnorePatterns {
		re, err := compile(fmt.Sprintf("filters.ignore_patterns[%d]", i), s)
		if err != nil {
			return nil, err
		}
		p.Ignore = append(p.Ignore, re)
	}

	for i, s := range c.Correlation.Patterns {
		re, err := compile(fmt.Sprintf("correlation.patterns[%d]", i), s)
		if err != nil {
			return nil, err
		}
		p.Correlation = append(p.Correlation, re)
	}
	return p, nil
}

func compile(field, pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &errors.PatternError{Field: field, Pattern: pattern, Err: err}
	}
	return re, nil
}

func (c *Config) String() string {
	return fmt.Sprintf("log_pattern=%q fold_rules=%d correlation=%d poll=%s", c.Parser.LogPattern, len(c.Filters.FoldRules), len(c.Correlation.Patterns), c.Tail.PollInterval)
}

// OpenAIKey reads the API key from the environment; it is never stored in config files.
func (c *Config) OpenAIKey() string { return os.Getenv("OPENAI_API_KEY") }

package logx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

const (
	ConsoleFormat = "console"
	JSONFormat    = "json"

	TimeFormat = "2006-01-02T15:04:05.000Z07:00"
)

var (
	mu     sync.Mutex
	level  = Info
	format = ConsoleFormat
	// default to no stderr output so stdout views stay clean; enable via LOGINSIGHT_LOG_STDERR=1
	toStderr = false
	ring     = &ringWriter{max: 500}
	base     = build()
)

// ringWriter keeps the last max formatted lines for the in-app log view.
type ringWriter struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func (r *ringWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range strings.Split(string(bytes.TrimRight(p, "\n")), "\n") {
		if len(r.lines) >= r.max {
			copy(r.lines[0:], r.lines[1:])
			r.lines = r.lines[:len(r.lines)-1]
		}
		r.lines = append(r.lines, l)
	}
	return len(p), nil
}

func (r *ringWriter) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

func (r *ringWriter) reset() {
	r.mu.Lock()
	r.lines = r.lines[:0]
	r.mu.Unlock()
}

// build assembles the zerolog logger for the current settings; callers hold mu.
func build() zerolog.Logger {
	zerolog.TimeFieldFormat = TimeFormat
	var out io.Writer = zerolog.ConsoleWriter{Out: ring, NoColor: true, TimeFormat: TimeFormat}
	if toStderr {
		var se io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: TimeFormat}
		if format == JSONFormat {
			se = os.Stderr
		}
		out = zerolog.MultiLevelWriter(out, se)
	}
	return zerolog.New(out).Level(zlevel(level)).With().Timestamp().Logger()
}

func zlevel(l Level) zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a config or env string to a Level, defaulting to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func SetLevel(l Level) {
	mu.Lock()
	level = l
	base = build()
	mu.Unlock()
}

// Configure applies the logging section of the config file.
func Configure(lvl, fmtName string, stderr bool) {
	mu.Lock()
	defer mu.Unlock()
	if lvl != "" {
		level = ParseLevel(lvl)
	}
	if fmtName != "" {
		format = fmtName
	}
	toStderr = toStderr || stderr
	base = build()
}

func SetLevelFromEnv() {
	mu.Lock()
	defer mu.Unlock()
	if lv := strings.TrimSpace(os.Getenv("LOGINSIGHT_LOG_LEVEL")); lv != "" {
		level = ParseLevel(lv)
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOGINSIGHT_LOG_STDERR"))); v != "" {
		toStderr = v != "0" && v != "false" && v != "no"
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOGINSIGHT_LOG_FORMAT"))); v != "" {
		format = v
	}
	base = build()
}

func current() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Component returns a structured logger tagged with the component name.
func Component(name string) zerolog.Logger {
	l := current()
	return l.With().Str("component", name).Logger()
}

func Debugf(format string, a ...any) { logf(Debug, format, a...) }
func Infof(format string, a ...any)  { logf(Info, format, a...) }
func Warnf(format string, a ...any)  { logf(Warn, format, a...) }
func Errorf(format string, a ...any) { logf(Error, format, a...) }

func logf(l Level, format string, a ...any) {
	lg := current()
	var ev *zerolog.Event
	switch l {
	case Debug:
		ev = lg.Debug()
	case Warn:
		ev = lg.Warn()
	case Error:
		ev = lg.Error()
	default:
		ev = lg.Info()
	}
	ev.Msg(fmt.Sprintf(format, a...))
}

// Dump returns the retained log lines, oldest first.
func Dump() string { return strings.Join(ring.snapshot(), "\n") }

// Reset clears the in-memory tail; used by tests.
func Reset() { ring.reset() }

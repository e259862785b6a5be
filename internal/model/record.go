package model

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// RawLine is one decoded physical line. It is consumed by the assembler and
// never stored.
type RawLine struct {
	SourceID   int
	LineNumber int
	Offset     int64 // byte offset of the line start in the source file
	Text       string
	Terminator string // "\n", "\r\n" or "" for a final unterminated line
	Degraded   bool
}

// Level is the normalized severity of a record.
type Level uint8

const (
	LevelUnknown Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"UNKNOWN", "DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return levelNames[0]
}

// Levels lists the known levels in ascending severity.
func Levels() []Level {
	return []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// ParseLevel normalizes a level token. ok is false for unrecognized tokens.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE", "DEBUG", "DBG", "D":
		return LevelDebug, true
	case "INFO", "INF", "NOTICE", "I":
		return LevelInfo, true
	case "WARN", "WARNING", "WRN", "W":
		return LevelWarn, true
	case "ERROR", "ERR", "FATAL", "CRITICAL", "CRIT", "PANIC", "E", "F":
		return LevelError, true
	case "UNKNOWN":
		return LevelUnknown, true
	}
	return LevelUnknown, false
}

func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Level) UnmarshalText(b []byte) error {
	*l, _ = ParseLevel(string(b))
	return nil
}

// Field is one extracted key/value pair.
type Field struct {
	Key   string
	Value string
}

// Fields is an insertion-ordered string map. The zero value is ready to use.
type Fields struct {
	items []Field
}

func (f *Fields) Set(key, value string) {
	for i := range f.items {
		if f.items[i].Key == key {
			f.items[i].Value = value
			return
		}
	}
	f.items = append(f.items, Field{Key: key, Value: value})
}

func (f Fields) Get(key string) (string, bool) {
	for _, it := range f.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

func (f Fields) Len() int { return len(f.items) }

func (f Fields) Keys() []string {
	out := make([]string, len(f.items))
	for i, it := range f.items {
		out[i] = it.Key
	}
	return out
}

func (f Fields) All() []Field {
	out := make([]Field, len(f.items))
	copy(out, f.items)
	return out
}

// String renders the fields as space separated key=value pairs.
func (f Fields) String() string {
	var b strings.Builder
	for i, it := range f.items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(it.Key)
		b.WriteByte('=')
		b.WriteString(it.Value)
	}
	return b.String()
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, it := range f.items {
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(it.Key)
		v, _ := json.Marshal(it.Value)
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// Record is a logically complete log entry spanning one or more contiguous
// lines of a single source. It is immutable once appended to an Index except
// for the fold counter and span end (written by the folder) and the cached
// correlation id (written by the correlator).
type Record struct {
	ID         uint64
	SourceID   int
	Generation int // rotation generation of the source when the record was read
	FirstLine  int
	Raw        string
	Timestamp  *time.Time
	Level      Level
	Thread     string
	Message    string
	Fields     Fields
	Payload    string // pretty-printed embedded JSON, if any
	Truncated  bool
	Degraded   bool

	lastLine    atomic.Int64
	foldCount   atomic.Int64
	correlation atomic.Pointer[string]
}

// NewRecord returns a record spanning lines [first, last] with a fold count of one.
func NewRecord(sourceID, first, last int, raw string) *Record {
	r := &Record{SourceID: sourceID, FirstLine: first, Raw: raw}
	r.lastLine.Store(int64(last))
	r.foldCount.Store(1)
	return r
}

func (r *Record) LastLine() int { return int(r.lastLine.Load()) }

func (r *Record) FoldCount() int { return int(r.foldCount.Load()) }

// Absorb folds count repeats ending at lastLine into r.
func (r *Record) Absorb(count, lastLine int) {
	r.foldCount.Add(int64(count))
	if int64(lastLine) > r.lastLine.Load() {
		r.lastLine.Store(int64(lastLine))
	}
}

// Correlation returns the cached correlation id. checked is false when no
// extraction has run yet; an empty id with checked=true means none was found.
func (r *Record) Correlation() (id string, checked bool) {
	p := r.correlation.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

func (r *Record) SetCorrelation(id string) { r.correlation.Store(&id) }

// FirstRawLine returns the first physical line of the record without its terminator.
func (r *Record) FirstRawLine() string {
	line := r.Raw
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSuffix(line, "\r")
}

// SearchText is the text that free-text queries run against.
func (r *Record) SearchText() string {
	var b strings.Builder
	b.WriteString(r.Message)
	if r.Fields.Len() > 0 {
		b.WriteByte(' ')
		b.WriteString(r.Fields.String())
	}
	if r.Payload != "" {
		b.WriteByte(' ')
		b.WriteString(r.Payload)
	}
	return b.String()
}

// PrettyJSON renders the record for inspection views.
func (r *Record) PrettyJSON() string {
	b, _ := json.MarshalIndent(r.View(), "", "  ")
	return string(b)
}

// RecordView is the serializable shape of a record.
type RecordView struct {
	ID            uint64     `json:"id"`
	SourceID      int        `json:"sourceId"`
	FirstLine     int        `json:"firstLine"`
	LastLine      int        `json:"lastLine"`
	Timestamp     *time.Time `json:"ts,omitempty"`
	Level         Level      `json:"level"`
	Thread        string     `json:"thread,omitempty"`
	Message       string     `json:"message"`
	Fields        Fields     `json:"fields"`
	Payload       string     `json:"payload,omitempty"`
	FoldCount     int        `json:"foldCount"`
	CorrelationID string     `json:"correlationId,omitempty"`
	Truncated     bool       `json:"truncated,omitempty"`
	Degraded      bool       `json:"degraded,omitempty"`
	Raw           string     `json:"raw"`
}

func (r *Record) View() RecordView {
	corr, _ := r.Correlation()
	return RecordView{
		ID: r.ID, SourceID: r.SourceID, FirstLine: r.FirstLine, LastLine: r.LastLine(),
		Timestamp: r.Timestamp, Level: r.Level, Thread: r.Thread, Message: r.Message,
		Fields: r.Fields, Payload: r.Payload, FoldCount: r.FoldCount(), CorrelationID: corr,
		Truncated: r.Truncated, Degraded: r.Degraded, Raw: r.Raw,
	}
}

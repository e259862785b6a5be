package extract

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"loginsight/internal/config"
	"loginsight/internal/model"
)

// Extractor fills the structured fields of an assembled record. Failures
// leave the affected field absent; extraction never rejects a record.
type Extractor struct {
	p   *config.Patterns
	loc *time.Location
}

func New(p *config.Patterns) *Extractor {
	return &Extractor{p: p, loc: time.Local}
}

// Apply parses r in place. It must run before r is appended to an index.
func (x *Extractor) Apply(r *model.Record) {
	first := r.FirstRawLine()
	switch {
	case x.applyPattern(r, first):
	case x.applyJSON(r, first):
	case x.applyLogfmt(r, first):
	default:
		r.Level = model.LevelUnknown
		r.Message = strings.TrimSpace(first)
	}
	if rest := continuation(r.Raw); rest != "" {
		r.Message += "\n" + rest
	}
	x.applyFieldPatterns(r)
	if r.Payload == "" {
		if p, ok := Payload(r.Raw); ok && !strings.HasPrefix(strings.TrimSpace(first), "{") {
			r.Payload = p
		}
	}
}

func continuation(raw string) string {
	i := strings.IndexByte(raw, '\n')
	if i < 0 {
		return ""
	}
	return strings.TrimRight(raw[i+1:], "\r\n")
}

func (x *Extractor) applyPattern(r *model.Record, line string) bool {
	re := x.p.LogPattern
	if re == nil {
		return false
	}
	m := re.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	r.Level = model.LevelUnknown
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		val := m[i]
		switch name {
		case "timestamp", "ts", "time":
			if t, ok := x.ParseTime(val); ok {
				r.Timestamp = &t
			}
		case "level", "lvl", "severity":
			r.Level, _ = model.ParseLevel(val)
		case "thread", "tid":
			r.Thread = val
		case "message", "msg":
			r.Message = val
		default:
			if val != "" {
				r.Fields.Set(name, val)
			}
		}
	}
	return true
}

// applyJSON handles JSON-lines records.
func (x *Extractor) applyJSON(r *model.Record, line string) bool {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make(map[string]string, len(m))
	for _, k := range keys {
		vals[k] = stringify(m[k])
	}
	x.applyKV(r, keys, vals)
	return true
}

// applyLogfmt handles key=value records that carry at least a level or msg key.
func (x *Extractor) applyLogfmt(r *model.Record, line string) bool {
	keys, vals := splitLogfmt(line)
	if pick(vals, "level", "lvl", "severity") == "" && pick(vals, "msg", "message") == "" {
		return false
	}
	x.applyKV(r, keys, vals)
	return true
}

func (x *Extractor) applyKV(r *model.Record, keys []string, vals map[string]string) {
	r.Level = model.LevelUnknown
	for _, k := range keys {
		v := vals[k]
		switch k {
		case "ts", "time", "timestamp", "@timestamp":
			if t, ok := x.ParseTime(v); ok {
				r.Timestamp = &t
				continue
			}
		case "level", "lvl", "severity":
			r.Level, _ = model.ParseLevel(v)
			continue
		case "msg", "message":
			r.Message = v
			continue
		case "thread", "tid", "thread_id":
			r.Thread = v
			continue
		}
		r.Fields.Set(k, v)
	}
}

func (x *Extractor) applyFieldPatterns(r *model.Record) {
	for _, fp := range x.p.FieldPatterns {
		if _, exists := r.Fields.Get(fp.Name); exists {
			continue
		}
		m := fp.Re.FindStringSubmatch(r.Raw)
		if m == nil {
			continue
		}
		val := m[0]
		if i := fp.Re.SubexpIndex("value"); i > 0 {
			val = m[i]
		} else if len(m) > 1 {
			val = m[1]
		}
		r.Fields.Set(fp.Name, val)
	}
}

// ParseTime tries the configured layouts in order, then RFC 3339.
func (x *Extractor) ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range x.p.TimestampFormats {
		if t, err := time.ParseInLocation(layout, s, x.loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func pick(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return ""
}

// splitLogfmt parses key=value pairs with optional double-quoted values,
// keeping key order.
func splitLogfmt(s string) ([]string, map[string]string) {
	var keys []string
	res := map[string]string{}
	var cur strings.Builder
	inQuote := false
	key := ""
	commit := func() {
		if key != "" {
			if _, dup := res[key]; !dup {
				keys = append(keys, key)
			}
			res[key] = cur.String()
		}
		key = ""
		cur.Reset()
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case !inQuote && (c == ' ' || c == '\t'):
			commit()
		case !inQuote && c == '=' && key == "":
			key = cur.String()
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	commit()
	return keys, res
}

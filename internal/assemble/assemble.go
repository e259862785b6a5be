// Package assemble groups physical lines into records. A line opens a new
// record when it matches the entry-start pattern (or is the first non-empty
// line of a source); every other line continues the open record.
package assemble

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"loginsight/internal/model"
)

type Options struct {
	Start    *regexp.Regexp // nil makes every non-blank line a start
	Ignore   []*regexp.Regexp
	MaxLines int // continuation lines per record
	MaxBytes int
}

type buffer struct {
	first, last int
	raw         strings.Builder
	lines       int
	degraded    bool
}

type sourceState struct {
	generation int
	started    bool // a record has been opened in this generation
	leading    []model.RawLine
	open       *buffer
	lastPush   time.Time
}

// Assembler keeps one open buffer per source. It is owned by the single
// index writer and is not safe for concurrent use.
type Assembler struct {
	opt     Options
	sources map[int]*sourceState
	now     func() time.Time
}

func New(opt Options) *Assembler {
	return &Assembler{opt: opt, sources: make(map[int]*sourceState), now: time.Now}
}

func (a *Assembler) state(source int) *sourceState {
	s, ok := a.sources[source]
	if !ok {
		s = &sourceState{}
		a.sources[source] = s
	}
	return s
}

func (a *Assembler) ignored(text string) bool {
	for _, re := range a.opt.Ignore {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (a *Assembler) isStart(text string) bool {
	if a.opt.Start == nil {
		return true
	}
	return a.opt.Start.MatchString(text)
}

// Push feeds one line and returns the record it closed, if any.
func (a *Assembler) Push(l model.RawLine) *model.Record {
	if a.ignored(l.Text) {
		return nil
	}
	s := a.state(l.SourceID)
	s.lastPush = a.now()
	blank := strings.TrimSpace(l.Text) == ""

	if s.open == nil {
		if !s.started && blank {
			s.leading = append(s.leading, l)
			return nil
		}
		a.begin(s, l)
		return nil
	}

	if !blank && a.isStart(l.Text) {
		closed := a.close(s, l.SourceID, false)
		a.begin(s, l)
		return closed
	}

	b := s.open
	if (a.opt.MaxLines > 0 && b.lines-1 >= a.opt.MaxLines) ||
		(a.opt.MaxBytes > 0 && b.raw.Len()+len(l.Text)+len(l.Terminator) > a.opt.MaxBytes) {
		closed := a.close(s, l.SourceID, true)
		a.begin(s, l)
		return closed
	}
	b.add(l)
	return nil
}

func (a *Assembler) begin(s *sourceState, l model.RawLine) {
	b := &buffer{first: l.LineNumber}
	for _, lead := range s.leading {
		if b.lines == 0 {
			b.first = lead.LineNumber
		}
		b.add(lead)
	}
	s.leading = nil
	b.add(l)
	s.open = b
	s.started = true
}

func (b *buffer) add(l model.RawLine) {
	b.raw.WriteString(l.Text)
	b.raw.WriteString(l.Terminator)
	b.last = l.LineNumber
	b.lines++
	b.degraded = b.degraded || l.Degraded
}

func (a *Assembler) close(s *sourceState, source int, truncated bool) *model.Record {
	b := s.open
	if b == nil {
		return nil
	}
	s.open = nil
	r := model.NewRecord(source, b.first, b.last, b.raw.String())
	r.Generation = s.generation
	r.Truncated = truncated
	r.Degraded = b.degraded
	if p, ok := EmbeddedJSON(r.Raw); ok {
		r.Payload = p
	}
	return r
}

// Flush closes the open record of source, if any.
func (a *Assembler) Flush(source int) *model.Record {
	s, ok := a.sources[source]
	if !ok {
		return nil
	}
	return a.close(s, source, false)
}

// FlushAll closes every open record in ascending source order.
func (a *Assembler) FlushAll() []*model.Record {
	var out []*model.Record
	for _, id := range a.sourceIDs() {
		if r := a.Flush(id); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// FlushIdle closes records whose source has seen no line for idle.
func (a *Assembler) FlushIdle(idle time.Duration) []*model.Record {
	now := a.now()
	var out []*model.Record
	for _, id := range a.sourceIDs() {
		s := a.sources[id]
		if s.open != nil && now.Sub(s.lastPush) >= idle {
			out = append(out, a.close(s, id, false))
		}
	}
	return out
}

// Rotate closes the open record of source and starts a new generation:
// line numbering restarts and the next non-empty line opens a record.
func (a *Assembler) Rotate(source, generation int) *model.Record {
	s := a.state(source)
	r := a.close(s, source, false)
	s.generation = generation
	s.started = false
	s.leading = nil
	return r
}

func (a *Assembler) sourceIDs() []int {
	return slices.Sorted(maps.Keys(a.sources))
}

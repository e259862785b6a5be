package filter

import (
	"context"
	"regexp"
	"strings"
	"time"

	"loginsight/internal/errors"
	"loginsight/internal/model"
)

// Criteria is an immutable conjunction of filters. Unset members match
// everything. Time bounds are kept as expressions so saved criteria stay
// relative to the moment they are evaluated.
type Criteria struct {
	Text          string        `json:"text,omitempty"`
	IgnoreCase    bool          `json:"ignoreCase,omitempty"`
	Negate        bool          `json:"negate,omitempty"`
	Since         string        `json:"since,omitempty"`
	Until         string        `json:"until,omitempty"`
	Levels        []model.Level `json:"levels,omitempty"`
	Sources       []int         `json:"sources,omitempty"`
	CorrelationID string        `json:"correlationId,omitempty"`
	Thread        string        `json:"thread,omitempty"`
}

// ParseText splits a search box input: a leading '!' negates the pattern.
func ParseText(input string) (pattern string, negate bool) {
	if strings.HasPrefix(input, "!") && len(input) > 1 {
		return input[1:], true
	}
	return input, false
}

func (c Criteria) IsEmpty() bool {
	return c.Text == "" && c.Since == "" && c.Until == "" && len(c.Levels) == 0 &&
		len(c.Sources) == 0 && c.CorrelationID == "" && c.Thread == ""
}

// IDFunc returns the correlation id of a record, extracting it if needed.
type IDFunc func(*model.Record) (string, bool)

type Option func(*Evaluator)

// WithCorrelation lets the evaluator extract correlation ids for records
// that have not been through extraction yet.
func WithCorrelation(fn IDFunc) Option {
	return func(e *Evaluator) { e.corr = fn }
}

// Evaluator is a compiled Criteria. It is safe for concurrent use.
type Evaluator struct {
	c       Criteria
	re      *regexp.Regexp
	from    *time.Time
	to      *time.Time
	levels  map[model.Level]bool
	sources map[int]bool
	corr    IDFunc
}

// Compile validates c and resolves its time expressions against now. A
// malformed text pattern is reported as *errors.PatternError.
func Compile(c Criteria, now time.Time, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{c: c}
	if c.Text != "" {
		pat := c.Text
		if c.IgnoreCase {
			pat = "(?i)" + pat
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, &errors.PatternError{Field: "text", Pattern: c.Text, Err: err}
		}
		e.re = re
	}
	if c.Since != "" {
		t, err := ParseTime(c.Since, now)
		if err != nil {
			return nil, err
		}
		e.from = &t
	}
	if c.Until != "" {
		t, err := ParseTime(c.Until, now)
		if err != nil {
			return nil, err
		}
		e.to = &t
	}
	if len(c.Levels) > 0 {
		e.levels = make(map[model.Level]bool, len(c.Levels))
		for _, l := range c.Levels {
			e.levels[l] = true
		}
	}
	if len(c.Sources) > 0 {
		e.sources = make(map[int]bool, len(c.Sources))
		for _, s := range c.Sources {
			e.sources[s] = true
		}
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Evaluator) Criteria() Criteria { return e.c }

// Match reports whether r satisfies every set criterion.
func (e *Evaluator) Match(r *model.Record) bool {
	if e.levels != nil && !e.levels[r.Level] {
		return false
	}
	if e.sources != nil && !e.sources[r.SourceID] {
		return false
	}
	if e.c.Thread != "" && r.Thread != e.c.Thread {
		return false
	}
	if e.from != nil || e.to != nil {
		if r.Timestamp == nil {
			return false
		}
		if e.from != nil && r.Timestamp.Before(*e.from) {
			return false
		}
		if e.to != nil && r.Timestamp.After(*e.to) {
			return false
		}
	}
	if e.c.CorrelationID != "" {
		id, checked := r.Correlation()
		if !checked && e.corr != nil {
			id, _ = e.corr(r)
		}
		if id != e.c.CorrelationID {
			return false
		}
	}
	if e.re != nil && e.re.MatchString(r.SearchText()) == e.c.Negate {
		return false
	}
	return true
}

const cancelCheckEvery = 4096

// Evaluate runs one linear pass over snap and returns matching ids in index
// order. It stops early with ctx.Err() when ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, snap model.Snapshot) ([]uint64, error) {
	n := snap.Len()
	var out []uint64
	for i := 0; i < n; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		r := snap.At(i)
		if e.Match(r) {
			out = append(out, r.ID)
		}
	}
	return out, nil
}

// Evaluate compiles c against the current wall clock and runs it over snap.
func Evaluate(ctx context.Context, snap model.Snapshot, c Criteria, opts ...Option) ([]uint64, error) {
	e, err := Compile(c, time.Now(), opts...)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, snap)
}

// Package fold collapses adjacent repeats of noisy records into one record
// with a fold count.
package fold

import (
	"regexp"

	"loginsight/internal/config"
	"loginsight/internal/model"
)

type rule struct {
	name      string
	re        *regexp.Regexp
	normalize Normalization
}

// Folder compares each record only with the previous record it emitted.
// It is owned by the index writer.
type Folder struct {
	rules []rule
	prev  *model.Record
	key   string // normalized message of prev under prevRule
	rule  int    // index of the rule prev matched, -1 if none
}

func New(rules []config.CompiledFoldRule) (*Folder, error) {
	f := &Folder{rule: -1}
	for _, r := range rules {
		fn, err := Lookup(r.Normalization)
		if err != nil {
			return nil, err
		}
		f.rules = append(f.rules, rule{name: r.Name, re: r.Re, normalize: fn})
	}
	return f, nil
}

func (f *Folder) match(r *model.Record) int {
	for i, ru := range f.rules {
		if ru.re.MatchString(r.Raw) {
			return i
		}
	}
	return -1
}

// Offer folds r into the previously emitted record when both match the
// same rule, share source, level and thread, and have equal normalized
// messages. It returns true when r was absorbed and must not be appended.
func (f *Folder) Offer(r *model.Record) bool {
	idx := f.match(r)
	var key string
	if idx >= 0 {
		key = f.rules[idx].normalize(r.Message)
	}
	if idx >= 0 && f.prev != nil && idx == f.rule &&
		f.prev.SourceID == r.SourceID && f.prev.Generation == r.Generation &&
		f.prev.Level == r.Level && f.prev.Thread == r.Thread && f.key == key {
		f.prev.Absorb(r.FoldCount(), r.LastLine())
		return true
	}
	f.prev, f.rule, f.key = r, idx, key
	return false
}

// RuleName reports the fold rule r matches, if any. It only reads the
// rules, so it may be called from any goroutine.
func (f *Folder) RuleName(r *model.Record) (string, bool) {
	if i := f.match(r); i >= 0 {
		return f.rules[i].name, true
	}
	return "", false
}

// Reset forgets the previous record, e.g. after an index rebuild.
func (f *Folder) Reset() {
	f.prev, f.rule, f.key = nil, -1, ""
}

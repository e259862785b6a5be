package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"loginsight/internal/errors"
	"loginsight/internal/filter"
)

const templatesKey = "templates"

// Template is a named filter. Time bounds stay expressions such as "-1h",
// so a template re-evaluates relative to when it is applied.
type Template struct {
	Name     string          `json:"name"`
	Criteria filter.Criteria `json:"criteria"`
	Saved    time.Time       `json:"saved"`
}

type Templates struct {
	s   *Store
	now func() time.Time
}

func (s *Store) Templates() *Templates { return &Templates{s: s, now: time.Now} }

// Save validates c and stores it under name, replacing any previous one.
func (t *Templates) Save(name string, c filter.Criteria) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty template name", errors.ErrInvalidConfig)
	}
	if _, err := filter.Compile(c, t.now()); err != nil {
		return err
	}
	all := map[string]Template{}
	return t.s.Update(templatesKey, &all, func() error {
		all[name] = Template{Name: name, Criteria: c, Saved: t.now().UTC()}
		return nil
	})
}

func (t *Templates) Get(name string) (Template, error) {
	all := map[string]Template{}
	if _, err := t.s.Load(templatesKey, &all); err != nil {
		return Template{}, err
	}
	tpl, ok := all[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", errors.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

// List returns every template sorted by name.
func (t *Templates) List() ([]Template, error) {
	all := map[string]Template{}
	if _, err := t.s.Load(templatesKey, &all); err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(all))
	for _, tpl := range all {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Templates) Delete(name string) error {
	all := map[string]Template{}
	return t.s.Update(templatesKey, &all, func() error {
		if _, ok := all[name]; !ok {
			return fmt.Errorf("%w: %q", errors.ErrTemplateNotFound, name)
		}
		delete(all, name)
		return nil
	})
}

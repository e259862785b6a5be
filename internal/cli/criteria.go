package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"loginsight/internal/engine"
	"loginsight/internal/errors"
	"loginsight/internal/filter"
	"loginsight/internal/model"
)

// criteriaFlags are the filter flags shared by every query command.
type criteriaFlags struct {
	grep       string
	ignoreCase bool
	levels     []string
	sources    []string
	since      string
	until      string
	thread     string
	trace      string
	template   string
}

func (f *criteriaFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.grep, "grep", "g", "", "regex over message, fields and payload; prefix with ! to negate")
	fl.BoolVarP(&f.ignoreCase, "ignore-case", "i", false, "case-insensitive --grep")
	fl.StringSliceVarP(&f.levels, "level", "l", nil, "levels to keep (debug,info,warn,error,unknown)")
	fl.StringSliceVar(&f.sources, "source", nil, "keep sources whose path matches these globs")
	fl.StringVar(&f.since, "since", "", "lower time bound: -15m, 2024-01-01 10:00, 10:30 ...")
	fl.StringVar(&f.until, "until", "", "upper time bound")
	fl.StringVar(&f.thread, "thread", "", "exact thread name")
	fl.StringVar(&f.trace, "trace", "", "correlation id")
	fl.StringVarP(&f.template, "template", "t", "", "start from a saved template; flags override its fields")
}

// criteria assembles filter criteria. A template is loaded first, then
// every flag the user set overrides it.
func (f *criteriaFlags) criteria(a *app, cmd *cobra.Command) (filter.Criteria, error) {
	var c filter.Criteria
	if f.template != "" {
		s := a.store()
		if s == nil {
			return c, fmt.Errorf("%w: %q", errors.ErrTemplateNotFound, f.template)
		}
		tpl, err := s.Templates().Get(f.template)
		if err != nil {
			return c, err
		}
		c = tpl.Criteria
	}
	changed := cmd.Flags().Changed
	if changed("grep") {
		c.Text, c.Negate = filter.ParseText(f.grep)
	}
	if changed("ignore-case") {
		c.IgnoreCase = f.ignoreCase
	}
	if changed("level") {
		levels, err := parseLevels(f.levels)
		if err != nil {
			return c, err
		}
		c.Levels = levels
	}
	if changed("since") {
		c.Since = f.since
	}
	if changed("until") {
		c.Until = f.until
	}
	if changed("thread") {
		c.Thread = f.thread
	}
	if changed("trace") {
		c.CorrelationID = f.trace
	}
	return c, nil
}

// resolveSources maps --source globs to source ids of a loaded engine.
func (f *criteriaFlags) resolveSources(c *filter.Criteria, e *engine.Engine) error {
	if len(f.sources) == 0 {
		return nil
	}
	c.Sources = c.Sources[:0]
	for _, src := range e.Sources() {
		for _, pat := range f.sources {
			if sourceMatches(pat, src.Path) {
				c.Sources = append(c.Sources, src.ID)
				break
			}
		}
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: --source %s", errors.ErrNoSources, strings.Join(f.sources, ","))
	}
	return nil
}

func sourceMatches(pattern, path string) bool {
	if ok, _ := doublestar.PathMatch(pattern, path); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, filepath.Base(path))
	return ok
}

func parseLevels(in []string) ([]model.Level, error) {
	out := make([]model.Level, 0, len(in))
	for _, s := range in {
		l, ok := model.ParseLevel(s)
		if !ok {
			return nil, fmt.Errorf("%w: unknown level %q", errors.ErrParse, s)
		}
		out = append(out, l)
	}
	return out, nil
}

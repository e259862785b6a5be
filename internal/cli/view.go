package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"loginsight/internal/engine"
	"loginsight/internal/export"
	"loginsight/internal/filter"
	"loginsight/internal/model"
	"loginsight/internal/output"
	"loginsight/internal/store"
)

type viewOptions struct {
	criteriaFlags
	follow   bool
	detail   bool
	json     bool
	limit    int
	from     int64
	find     string
	backward bool
}

func (a *app) viewCmd() *cobra.Command {
	var o viewOptions
	cmd := &cobra.Command{
		Use:   "view [files or globs...]",
		Short: "List records matching the filter flags",
		Example: `  loginsight view 'logs/**/*.log' --level error --since -1h
  loginsight view app.log --grep 'timeout|refused' --follow`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView(cmd, args, o)
		},
	}
	o.bind(cmd)
	f := cmd.Flags()
	f.BoolVarP(&o.follow, "follow", "f", false, "keep tailing and print new matching records")
	f.BoolVar(&o.detail, "detail", false, "print every field and the pretty payload")
	f.BoolVar(&o.json, "json", false, "print records as JSON lines (indented with --detail)")
	f.IntVarP(&o.limit, "limit", "n", 0, "print at most this many records (0 = all)")
	f.Int64Var(&o.from, "from", -1, "start listing at this record id or the first match after it")
	f.StringVar(&o.find, "find", "", "print only the first match of this regex at or after --from, wrapping around")
	f.BoolVar(&o.backward, "backward", false, "search --find towards older records")
	return cmd
}

func (a *app) runView(cmd *cobra.Command, args []string, o viewOptions) error {
	ctx := cmd.Context()
	c, err := o.criteria(a, cmd)
	if err != nil {
		return err
	}
	e, err := a.load(cmd, args, o.follow)
	if err != nil {
		return err
	}
	if err := o.resolveSources(&c, e); err != nil {
		return err
	}
	if c.Text != "" {
		a.remember(store.KindSearch, o.grep)
	}

	ids, err := e.Filter(ctx, c)
	if err != nil {
		return err
	}
	nav := filter.NewNavigator(ids)
	if o.from >= 0 {
		nav.JumpTo(uint64(o.from))
		a.remember(store.KindJump, fmt.Sprint(o.from))
	}
	if o.find != "" {
		return a.find(cmd, e, nav, o)
	}

	p := printer{w: cmd.OutOrStdout(), r: a.renderer(e), e: e, o: o}
	snap := e.Snapshot()
	for i := nav.Position(); i < nav.Len() && !p.full(); i++ {
		nav.SetPosition(i)
		id, _ := nav.Current()
		if r, ok := snap.Get(id); ok {
			if err := p.print(r); err != nil {
				return err
			}
		}
	}
	if !o.follow {
		return nil
	}
	return a.follow(ctx, e, c, &p)
}

// find prints the first record matching --find, starting at the cursor.
func (a *app) find(cmd *cobra.Command, e *engine.Engine, nav *filter.Navigator, o viewOptions) error {
	ev, err := e.Evaluator(filter.Criteria{Text: o.find, IgnoreCase: o.ignoreCase})
	if err != nil {
		return err
	}
	a.remember(store.KindSearch, o.find)
	snap := e.Snapshot()
	match := func(id uint64) bool {
		r, ok := snap.Get(id)
		return ok && ev.Match(r)
	}
	if id, ok := nav.Current(); ok && match(id) {
		return a.printOne(cmd, e, snap, id, o)
	}
	step := nav.Next
	if o.backward {
		step = nav.Prev
	}
	id, ok := step(match)
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), "no match")
		return nil
	}
	return a.printOne(cmd, e, snap, id, o)
}

func (a *app) printOne(cmd *cobra.Command, e *engine.Engine, snap model.Snapshot, id uint64, o viewOptions) error {
	r, _ := snap.Get(id)
	p := printer{w: cmd.OutOrStdout(), r: a.renderer(e), e: e, o: o}
	return p.print(r)
}

// follow tails the sources and prints records appended after the initial
// listing that match c, until the command context ends.
func (a *app) follow(ctx context.Context, e *engine.Engine, c filter.Criteria, p *printer) error {
	ev, err := e.Evaluator(c)
	if err != nil {
		return err
	}
	seen := e.Snapshot().Len()
	flush := func() error {
		snap := e.Snapshot()
		for ; seen < snap.Len(); seen++ {
			if r := snap.At(seen); ev.Match(r) {
				if err := p.print(r); err != nil {
					return err
				}
			}
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- e.Follow(ctx) }()
	for {
		select {
		case <-e.Changed():
			if err := flush(); err != nil {
				return err
			}
		case err := <-done:
			e.Flush()
			if ferr := flush(); ferr != nil {
				return ferr
			}
			return err
		}
	}
}

type printer struct {
	w     io.Writer
	r     *output.Renderer
	e     *engine.Engine
	o     viewOptions
	count int
}

func (p *printer) full() bool { return p.o.limit > 0 && p.count >= p.o.limit }

func (p *printer) print(r *model.Record) error {
	if p.full() && !p.o.follow {
		return nil
	}
	p.count++
	switch {
	case p.o.json && p.o.detail:
		_, err := fmt.Fprintln(p.w, r.PrettyJSON())
		return err
	case p.o.json:
		return export.Write(p.w, export.NDJSON, []*model.Record{r}, export.Options{SourceName: p.e.SourcePath})
	case p.o.detail:
		id, _ := p.e.Correlator().ID(r)
		rule, _ := p.e.FoldRule(r)
		_, err := fmt.Fprintln(p.w, p.r.Detail(r, id, rule)+"\n"+strings.Repeat("─", 40))
		return err
	default:
		_, err := fmt.Fprintln(p.w, p.r.Record(r, nil))
		return err
	}
}

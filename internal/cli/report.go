package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"loginsight/internal/errors"
	"loginsight/internal/filter"
	"loginsight/internal/report"
)

func (a *app) reportCmd() *cobra.Command {
	var (
		cf     criteriaFlags
		period string
		asJSON bool
		out    string
	)
	cmd := &cobra.Command{
		Use:   "report [files or globs...]",
		Short: "Summarize health, error patterns, timing and sources as a report",
		Example: `  loginsight report 'logs/*.log' --period today
  loginsight report app.log --json -o report.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := report.ParsePeriod(period)
			if err != nil {
				return err
			}
			c, err := cf.criteria(a, cmd)
			if err != nil {
				return err
			}
			applyPeriod(&c, p)
			e, err := a.load(cmd, args, false)
			if err != nil {
				return err
			}
			if err := cf.resolveSources(&c, e); err != nil {
				return err
			}
			ids, err := e.Filter(cmd.Context(), c)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.ErrNoRecords
			}
			rep, err := e.Report(cmd.Context(), ids, p)
			if err != nil {
				return err
			}

			write := report.WriteMarkdown
			if asJSON {
				write = report.WriteJSON
			}
			if out == "" || out == "-" {
				return write(cmd.OutOrStdout(), rep)
			}
			if err := writeFile(out, func(w io.Writer) error { return write(w, rep) }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "report over %d records written to %s\n", len(ids), out)
			return nil
		},
	}
	cf.bind(cmd)
	fl := cmd.Flags()
	fl.StringVar(&period, "period", "", "today, yesterday or week; overrides --since/--until")
	fl.BoolVar(&asJSON, "json", false, "write JSON instead of Markdown")
	fl.StringVarP(&out, "out", "o", "", "output file; - or empty for stdout")
	return cmd
}

// applyPeriod replaces the time bounds of c with the calendar window p.
func applyPeriod(c *filter.Criteria, p report.Period) {
	if p == report.PeriodAll {
		return
	}
	c.Since, c.Until = p.Bounds(time.Now())
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return nil
}

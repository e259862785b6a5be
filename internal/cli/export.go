package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"loginsight/internal/errors"
	"loginsight/internal/export"
	"loginsight/internal/profile"
	"loginsight/internal/report"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		cf     criteriaFlags
		format string
		out    string
		deltas bool
		period string
	)
	cmd := &cobra.Command{
		Use:   "export [files or globs...]",
		Short: "Write the filtered records as CSV, JSON, NDJSON, Markdown or a JSON report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f export.Format
			switch {
			case format != "":
				var err error
				if f, err = export.ParseFormat(format); err != nil {
					return err
				}
			case out != "" && out != "-":
				f = export.FormatFromPath(out)
			default:
				f = export.JSON
			}

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
			opt := export.Options{SourceName: e.SourcePath}
			if deltas {
				var ds map[uint64]profile.Delta
				if ds, err = e.Profile(cmd.Context(), ids); err != nil {
					return err
				}
				opt.Deltas = ds
			}
			if f == export.Report {
				if opt.Report, err = e.Report(cmd.Context(), ids, p); err != nil {
					return err
				}
			}
			recs := e.Snapshot().Records(ids)
			if out == "" || out == "-" {
				return export.Write(cmd.OutOrStdout(), f, recs, opt)
			}
			if err := export.ToFile(out, f, recs, opt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", len(recs), out)
			return nil
		},
	}
	cf.bind(cmd)
	fl := cmd.Flags()
	fl.StringVar(&format, "format", "", "csv, json, ndjson, md or report (default from --out extension, else json)")
	fl.StringVar(&period, "period", "", "today, yesterday or week; overrides --since/--until")
	fl.StringVarP(&out, "out", "o", "", "output file; - or empty for stdout")
	fl.BoolVar(&deltas, "deltas", false, "include per-thread time deltas")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"loginsight/internal/profile"
)

func (a *app) profileCmd() *cobra.Command {
	var (
		cf      criteriaFlags
		records bool
		minBand string
	)
	cmd := &cobra.Command{
		Use:   "profile [files or globs...]",
		Short: "Per-thread time gaps between consecutive records of the filtered set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cf.criteria(a, cmd)
			if err != nil {
				return err
			}
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
			deltas, err := e.Profile(cmd.Context(), ids)
			if err != nil {
				return err
			}
			r := a.renderer(e)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, r.Profile(profile.Summary(deltas)))
			if !records {
				return nil
			}
			floor := profile.BandWarning
			if minBand == "severe" {
				floor = profile.BandSevere
			}
			fmt.Fprintln(out)
			snap := e.Snapshot()
			for _, id := range ids {
				d, ok := deltas[id]
				if !ok || d.Band < floor {
					continue
				}
				rec, _ := snap.Get(id)
				fmt.Fprintln(out, r.Record(rec, &d))
			}
			return nil
		},
	}
	cf.bind(cmd)
	cmd.Flags().BoolVar(&records, "records", false, "also list records whose gap reaches --band")
	cmd.Flags().StringVar(&minBand, "band", "warning", "minimum band listed with --records: warning or severe")
	return cmd
}

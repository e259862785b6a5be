package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"loginsight/internal/errors"
	"loginsight/internal/store"
)

func (a *app) traceCmd() *cobra.Command {
	var deltas bool
	cmd := &cobra.Command{
		Use:   "trace <record-id> [files or globs...]",
		Short: "Show every record sharing the correlation id of one record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: record id %q", errors.ErrParse, args[0])
			}
			e, err := a.load(cmd, args[1:], false)
			if err != nil {
				return err
			}
			a.remember(store.KindJump, args[0])

			corr, ids, err := e.Trace(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "trace %s: %d records\n", corr, len(ids))

			r := a.renderer(e)
			snap := e.Snapshot()
			if !deltas {
				for _, tid := range ids {
					rec, _ := snap.Get(tid)
					fmt.Fprintln(out, r.Record(rec, nil))
				}
				return nil
			}
			prof, err := e.Profile(cmd.Context(), ids)
			if err != nil {
				return err
			}
			for _, tid := range ids {
				rec, _ := snap.Get(tid)
				d, ok := prof[tid]
				if !ok {
					fmt.Fprintln(out, r.Record(rec, nil))
					continue
				}
				fmt.Fprintln(out, r.Record(rec, &d))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deltas, "deltas", false, "annotate records with per-thread time deltas")
	return cmd
}

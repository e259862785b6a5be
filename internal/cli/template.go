package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"loginsight/internal/errors"
	"loginsight/internal/store"
)

func (a *app) templateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"tpl"},
		Short:   "Manage saved search templates",
	}

	var cf criteriaFlags
	save := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the filter flags under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore()
			if err != nil {
				return err
			}
			c, err := cf.criteria(a, cmd)
			if err != nil {
				return err
			}
			if err := s.Templates().Save(args[0], c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved template %q\n", args[0])
			return nil
		},
	}
	cf.bind(save)
	// source ids are only meaningful for one load
	_ = save.Flags().MarkHidden("source")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.mustStore()
			if err != nil {
				return err
			}
			tpls, err := s.Templates().List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range tpls {
				b, _ := json.Marshal(t.Criteria)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, string(b), humanize.Time(t.Saved))
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore()
			if err != nil {
				return err
			}
			t, err := s.Templates().Get(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		},
	}

	del := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.mustStore()
			if err != nil {
				return err
			}
			return s.Templates().Delete(args[0])
		},
	}

	cmd.AddCommand(save, list, show, del)
	return cmd
}

func (a *app) mustStore() (*store.Store, error) {
	s, err := store.Open(a.cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return s, nil
}

func (a *app) historyCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches, jumps and prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.mustStore()
			if err != nil {
				return err
			}
			entries, err := s.History().List(store.Kind(kind))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, e.Text, humanize.Time(e.At))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "search, jump or ai")
	return cmd
}

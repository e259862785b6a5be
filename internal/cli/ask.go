package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loginsight/internal/ai"
	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/store"
)

func (a *app) askCmd() *cobra.Command {
	var (
		cf     criteriaFlags
		ids    []uint
		prompt string
		dry    bool
	)
	cmd := &cobra.Command{
		Use:   "ask [files or globs...]",
		Short: "Ask an OpenAI-compatible model about selected records",
		Long: `ask mounts records (by --ids, or the filtered set) into a prompt and sends
it to the configured model. Set OPENAI_API_KEY, or ai.base_url for a local
endpoint such as Ollama (http://localhost:11434/v1). E-mail addresses and
credential-looking values are redacted before sending.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.load(cmd, args, false)
			if err != nil {
				return err
			}
			var recs []*model.Record
			snap := e.Snapshot()
			if len(ids) > 0 {
				for _, id := range ids {
					r, ok := snap.Get(uint64(id))
					if !ok {
						return fmt.Errorf("%w: %d", errors.ErrRecordNotFound, id)
					}
					recs = append(recs, r)
				}
			} else {
				c, err := cf.criteria(a, cmd)
				if err != nil {
					return err
				}
				if err := cf.resolveSources(&c, e); err != nil {
					return err
				}
				matched, err := e.Filter(cmd.Context(), c)
				if err != nil {
					return err
				}
				recs = snap.Records(matched)
			}
			if len(recs) == 0 {
				return errors.ErrNoRecords
			}

			p := ai.BuildPrompt(recs, prompt)
			if dry {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), p.User)
				return err
			}
			a.remember(store.KindPrompt, prompt)
			answer, err := ai.NewClient(a.cfg.OpenAIKey(), a.cfg.AI).Ask(cmd.Context(), p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer))
			return err
		},
	}
	cf.bind(cmd)
	fl := cmd.Flags()
	fl.UintSliceVar(&ids, "ids", nil, "record ids to mount (default: the filtered set)")
	fl.StringVarP(&prompt, "prompt", "p", "", "question for the model")
	fl.BoolVar(&dry, "dry-run", false, "print the redacted prompt instead of sending it")
	return cmd
}

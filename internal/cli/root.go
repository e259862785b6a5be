// Package cli implements the loginsight command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"loginsight/internal/config"
	"loginsight/internal/engine"
	"loginsight/internal/errors"
	"loginsight/internal/output"
	"loginsight/internal/store"
	"loginsight/internal/util/logx"
	"loginsight/internal/version"
)

type app struct {
	cfgFile   string
	logLevel  string
	logStderr bool
	noColor   bool
	appLog    bool

	cfg *config.Config
	pat *config.Patterns
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "loginsight",
		Short: "Search, trace and profile multi-line application logs",
		Long: `loginsight reconstructs multi-line records from one or more log files,
folds noisy repeats and lets you filter, trace and profile them, optionally
while the files keep growing.`,
		Version:           version.String(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.appLog {
				fmt.Fprintln(cmd.ErrOrStderr(), logx.Dump())
			}
		},
	}
	f := root.PersistentFlags()
	f.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./loginsight.{toml,yaml} or ~/.loginsight/)")
	f.StringVar(&a.logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	f.BoolVar(&a.logStderr, "log-stderr", false, "write diagnostic logs to stderr")
	f.BoolVar(&a.noColor, "no-color", false, "disable colors")
	f.BoolVar(&a.appLog, "app-log", false, "print loginsight's own recent log lines to stderr when done")

	root.AddCommand(
		a.viewCmd(),
		a.traceCmd(),
		a.profileCmd(),
		a.statsCmd(),
		a.exportCmd(),
		a.reportCmd(),
		a.askCmd(),
		a.templateCmd(),
		a.historyCmd(),
		a.configCmd(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logx.SetLevelFromEnv()
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	logx.Configure(level, cfg.Logging.Format, a.logStderr)

	pat, err := cfg.Compile()
	if err != nil {
		return err
	}
	a.cfg, a.pat = cfg, pat
	logx.Infof("loginsight %s: %s", version.String(), cfg.String())
	return nil
}

// load builds an engine over inputs and reports per-source warnings.
func (a *app) load(cmd *cobra.Command, inputs []string, live bool) (*engine.Engine, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: pass at least one file or glob", errors.ErrNoSources)
	}
	e, err := engine.New(a.cfg, a.pat, engine.Options{Live: live})
	if err != nil {
		return nil, err
	}
	if err := e.Load(cmd.Context(), inputs); err != nil {
		a.warn(cmd.ErrOrStderr(), e)
		return nil, err
	}
	a.warn(cmd.ErrOrStderr(), e)
	return e, nil
}

func (a *app) warn(w io.Writer, e *engine.Engine) {
	output.Print(w, a.renderer(e).Warnings(e.Warnings()))
}

func (a *app) renderer(e *engine.Engine) *output.Renderer {
	var source func(int) string
	if e != nil {
		source = e.SourcePath
	}
	return output.New(!a.noColor, source)
}

// store opens the state directory. Failures only disable persistence.
func (a *app) store() *store.Store {
	s, err := store.Open(a.cfg.Store.Dir)
	if err != nil {
		logx.Warnf("store unavailable: %v", err)
		return nil
	}
	return s
}

func (a *app) remember(kind store.Kind, text string) {
	s := a.store()
	if s == nil {
		return
	}
	if err := s.History().Add(kind, text); err != nil {
		logx.Warnf("history: %v", err)
	}
}

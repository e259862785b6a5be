package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

type options struct {
	format   string
	rate     float64
	count    int
	out      string
	stdout   bool
	duration time.Duration
	seed     int64
}

func main() {
	var o options
	cmd := &cobra.Command{
		Use:          "loggen",
		Short:        "Generate sample logs for loginsight",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.format, "format", formatText, "text, json_lines or gb18030")
	f.Float64Var(&o.rate, "rate", 5, "entries per second; ignored with --count")
	f.IntVar(&o.count, "count", 0, "write this many entries as fast as possible and exit")
	f.StringVar(&o.out, "out", "", "output file (default simulateddata/<format>.log)")
	f.BoolVar(&o.stdout, "stdout", false, "write to stdout")
	f.DurationVar(&o.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	f.Int64Var(&o.seed, "seed", time.Now().UnixNano(), "random seed")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	o.format = normalizeFormat(o.format)
	if !isSupported(o.format) {
		return fmt.Errorf("unsupported format %q", o.format)
	}
	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	var w io.Writer = os.Stdout
	if !o.stdout {
		if o.out == "" {
			o.out = filepath.Join("simulateddata", o.format+".log")
		}
		if err := os.MkdirAll(filepath.Dir(o.out), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(o.out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		fmt.Fprintf(os.Stderr, "generating %s logs -> %s\n", o.format, o.out)
	}
	if o.format == formatGB18030 {
		tw := transform.NewWriter(w, simplifiedchinese.GB18030.NewEncoder())
		defer tw.Close()
		w = tw
	}
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	g := newGenerator(o.format, o.seed, time.Now())
	if o.count > 0 {
		return writeN(bw, g, o.count)
	}
	return stream(ctx, bw, g, o.rate)
}

func writeN(w *bufio.Writer, g *generator, n int) error {
	for i := 0; i < n; i++ {
		if _, err := w.WriteString(g.next() + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// stream writes entries at rate until ctx ends, flushing after each so a
// tailing reader sees complete entries.
func stream(ctx context.Context, w *bufio.Writer, g *generator, rate float64) error {
	if rate <= 0 {
		rate = 1
	}
	interval := max(time.Duration(float64(time.Second)/rate), time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.WriteString(g.next() + "\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}

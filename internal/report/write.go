package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// WriteJSON writes r as an indented JSON document.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteMarkdown writes r as a Markdown document.
func WriteMarkdown(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	title := "Log analysis report"
	if r.Period != PeriodAll {
		title += " (" + string(r.Period) + ")"
	}
	fmt.Fprintf(bw, "# %s\n\nGenerated %s.\n\n", title, r.Generated.Format(time.RFC3339))

	s := r.Summary
	fmt.Fprintf(bw, "## Summary\n\n")
	fmt.Fprintf(bw, "- Health: **%d/100**\n", s.Health)
	fmt.Fprintf(bw, "- Records: %s (%s occurrences)\n", humanize.Comma(s.Records), humanize.Comma(s.Occurrences))
	fmt.Fprintf(bw, "- Errors: %s, warnings: %s, info: %s, other: %s\n",
		humanize.Comma(s.Errors), humanize.Comma(s.Warnings), humanize.Comma(s.Info), humanize.Comma(s.Other))
	if s.First != nil {
		fmt.Fprintf(bw, "- Time range: %s to %s (%s)\n", s.First.Format(time.DateTime), s.Last.Format(time.DateTime), s.Span)
	}
	if r.PeakHour != "" {
		fmt.Fprintf(bw, "- Peak hour: %s\n", r.PeakHour)
	}

	fmt.Fprintf(bw, "\n## Error patterns\n\n")
	if len(r.Errors) == 0 {
		fmt.Fprintf(bw, "No errors.\n")
	} else {
		fmt.Fprintf(bw, "| count | signature | first | last | example |\n|---|---|---|---|---|\n")
		for _, e := range r.Errors {
			fmt.Fprintf(bw, "| %s | %s | %s | %s | #%d |\n",
				humanize.Comma(e.Count), cell(e.Signature), stamp(e.First), stamp(e.Last), e.ExampleID)
		}
	}

	p := r.Performance
	fmt.Fprintf(bw, "\n## Timing\n\n")
	if p.Deltas == 0 {
		fmt.Fprintf(bw, "No per-thread timing available.\n")
	} else {
		fmt.Fprintf(bw, "%s deltas, average %.1f ms, max %d ms, %d slow, %d very slow.\n\n",
			humanize.Comma(int64(p.Deltas)), p.AvgMS, p.MaxMS, p.Slow, p.VerySlow)
		fmt.Fprintf(bw, "| thread | deltas | avg ms | max ms | slowest | slow | very slow |\n|---|---|---|---|---|---|---|\n")
		for _, t := range p.Threads {
			fmt.Fprintf(bw, "| %s | %d | %.1f | %d | #%d | %d | %d |\n",
				cell(t.Thread), t.Deltas, t.AvgMS, t.MaxMS, t.MaxID, t.Slow, t.VerySlow)
		}
	}

	fmt.Fprintf(bw, "\n## Sources\n\n| source | count | errors |\n|---|---|---|\n")
	for _, src := range r.Sources {
		fmt.Fprintf(bw, "| %s | %s | %s |\n", cell(src.Source), humanize.Comma(src.Count), humanize.Comma(src.Errors))
	}
	return bw.Flush()
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateTime)
}

func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

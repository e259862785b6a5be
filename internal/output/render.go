// Package output renders records, profiling deltas and stats for the
// terminal.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"loginsight/internal/model"
	"loginsight/internal/profile"
	"loginsight/internal/stats"
)

const tsLayout = "2006-01-02 15:04:05.000"

type Renderer struct {
	st     Styles
	color  bool
	source func(id int) string
}

// New returns a renderer. source maps source ids to display names and may
// be nil.
func New(color bool, source func(id int) string) *Renderer {
	if source == nil {
		source = func(id int) string { return fmt.Sprintf("#%d", id) }
	}
	return &Renderer{st: NewStyles(color), color: color, source: source}
}

// Record renders one record on a single line. d may be nil.
func (r *Renderer) Record(rec *model.Record, d *profile.Delta) string {
	var b strings.Builder
	b.WriteString(r.st.ID.Render(fmt.Sprintf("%6d", rec.ID)))
	b.WriteByte(' ')
	if rec.Timestamp != nil {
		b.WriteString(r.st.Time.Render(rec.Timestamp.Format(tsLayout)))
		b.WriteByte(' ')
	}
	b.WriteString(r.st.level(rec.Level).Render(fmt.Sprintf("%-5s", rec.Level)))
	if rec.Thread != "" {
		b.WriteString(" " + r.st.Thread.Render("["+rec.Thread+"]"))
	}
	b.WriteString(" " + r.st.Source.Render(fmt.Sprintf("%s:%d", r.source(rec.SourceID), rec.FirstLine)))

	msg, more := firstLine(rec.Message)
	if msg == "" {
		msg, more = firstLine(rec.Raw)
	}
	b.WriteString(" " + msg)
	if more > 0 {
		b.WriteString(r.st.Dim.Render(fmt.Sprintf(" (+%d lines)", more)))
	}
	if n := rec.FoldCount(); n > 1 {
		b.WriteString(r.st.Dim.Render(fmt.Sprintf(" x%d", n)))
	}
	if rec.Truncated {
		b.WriteString(r.st.Dim.Render(" [truncated]"))
	}
	if d != nil && d.HasPrev {
		b.WriteString(" " + r.st.band(d.Band).Render("+"+formatDelta(d.Delta)))
	}
	return b.String()
}

func firstLine(s string) (string, int) {
	s = strings.TrimRight(s, "\r\n")
	head, rest, found := strings.Cut(s, "\n")
	if !found {
		return s, 0
	}
	return strings.TrimRight(head, "\r"), strings.Count(rest, "\n") + 1
}

func formatDelta(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(time.Millisecond).String()
	}
}

// Detail renders the full record with fields and a colorized payload.
func (r *Renderer) Detail(rec *model.Record, correlationID, foldRule string) string {
	var b strings.Builder
	b.WriteString(r.st.Title.Render(fmt.Sprintf("Record %d", rec.ID)))
	b.WriteByte('\n')
	row := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(r.st.Label.Render(fmt.Sprintf("%-12s", k)))
		b.WriteString(v)
		b.WriteByte('\n')
	}
	row("source", fmt.Sprintf("%s:%d-%d", r.source(rec.SourceID), rec.FirstLine, rec.LastLine()))
	if rec.Timestamp != nil {
		row("time", rec.Timestamp.Format(time.RFC3339Nano))
	}
	row("level", r.st.level(rec.Level).Render(rec.Level.String()))
	row("thread", rec.Thread)
	row("trace", correlationID)
	row("fold rule", foldRule)
	if n := rec.FoldCount(); n > 1 {
		row("repeats", humanize.Comma(int64(n)))
	}
	for _, f := range rec.Fields.All() {
		row(f.Key, f.Value)
	}
	if rec.Truncated {
		row("note", "truncated at the capacity guard")
	}
	if rec.Degraded {
		row("note", "decoded with replacement characters")
	}
	b.WriteByte('\n')
	b.WriteString(rec.Message)
	if rec.Payload != "" && isJSON(rec.Payload) {
		b.WriteString("\n\n")
		b.WriteString(colorizeJSON(rec.Payload, r.st))
	}
	return b.String()
}

// Stats renders the dashboard counters.
func (r *Renderer) Stats(s stats.Stats) string {
	var b strings.Builder
	b.WriteString(r.st.Title.Render("Overview"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "records      %s (%s occurrences)\n", humanize.Comma(s.Records), humanize.Comma(s.Total))
	if s.First != nil && s.Last != nil {
		fmt.Fprintf(&b, "span         %s .. %s (%s)\n", s.First.Format(tsLayout), s.Last.Format(tsLayout), s.Last.Sub(*s.First).Round(time.Second))
	}
	fmt.Fprintf(&b, "health       %s\n", r.health(s.Health))
	fmt.Fprintf(&b, "window       %s events, %s errors, %s warnings\n",
		humanize.Comma(s.Window.Total), humanize.Comma(s.Window.Errors), humanize.Comma(s.Window.Warnings))

	b.WriteString("\n" + r.st.Title.Render("Levels") + "\n")
	for _, l := range append(model.Levels(), model.LevelUnknown) {
		n := s.Levels[l]
		if n == 0 {
			continue
		}
		pct := float64(n) / float64(max(s.Total, 1)) * 100
		fmt.Fprintf(&b, "%s %10s  %5.1f%%\n", r.st.level(l).Render(fmt.Sprintf("%-7s", l)), humanize.Comma(n), pct)
	}

	if len(s.TopSources) > 0 {
		b.WriteString("\n" + r.st.Title.Render("Top sources") + "\n")
		for _, sc := range s.TopSources {
			fmt.Fprintf(&b, "%10s  %s\n", humanize.Comma(sc.N), r.source(sc.SourceID))
		}
	}
	if len(s.TopThreads) > 0 {
		b.WriteString("\n" + r.st.Title.Render("Top threads") + "\n")
		for _, tc := range s.TopThreads {
			fmt.Fprintf(&b, "%10s  %s\n", humanize.Comma(tc.N), tc.Thread)
		}
	}
	if len(s.ErrorTrend) > 0 {
		b.WriteString("\n" + r.st.Title.Render("Error trend") + "\n")
		b.WriteString(sparkline(s.ErrorTrend))
		fmt.Fprintf(&b, "  since %s\n", s.ErrorTrend[0].Start.Format(tsLayout))
	}
	out := strings.TrimRight(b.String(), "\n")
	if !r.color {
		return out
	}
	return r.st.Box.Render(out)
}

func (r *Renderer) health(score int) string {
	var st lipgloss.Style
	switch {
	case score >= 80:
		st = r.st.level(model.LevelInfo)
	case score >= 50:
		st = r.st.level(model.LevelWarn)
	default:
		st = r.st.level(model.LevelError)
	}
	filled := score / 10
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return st.Render(fmt.Sprintf("%3d/100 %s", score, bar))
}

var sparks = []rune("▁▂▃▄▅▆▇█")

func sparkline(bs []stats.Bucket) string {
	var top int64
	for _, bk := range bs {
		top = max(top, bk.Errors)
	}
	var b strings.Builder
	for _, bk := range bs {
		i := 0
		if top > 0 {
			i = int(bk.Errors * int64(len(sparks)-1) / top)
		}
		b.WriteRune(sparks[i])
	}
	return b.String()
}

// Profile renders per-thread delta summaries.
func (r *Renderer) Profile(sum []profile.ThreadSummary) string {
	if len(sum) == 0 {
		return r.st.Dim.Render("no consecutive timestamped records per thread")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %8s %10s %10s %8s %8s\n", "thread", "gaps", "avg", "max", "slow", "severe")
	for _, s := range sum {
		fmt.Fprintf(&b, "%-24s %8s %10s %10s %8d %8s   max at #%d\n",
			s.Thread, humanize.Comma(int64(s.Count)), formatDelta(s.Avg), formatDelta(s.Max),
			s.Warnings, r.st.band(profile.BandSevere).Render(fmt.Sprintf("%d", s.Severe)), s.MaxID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Warnings lists per-source problems collected during ingestion.
func (r *Renderer) Warnings(errs []error) string {
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)
	return r.st.level(model.LevelWarn).Render("warning: ") + strings.Join(msgs, "\n"+r.st.level(model.LevelWarn).Render("warning: "))
}

// Print writes s followed by a newline.
func Print(w io.Writer, s string) {
	if s == "" {
		return
	}
	fmt.Fprintln(w, s)
}

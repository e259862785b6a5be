package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"loginsight/internal/errors"
	"loginsight/internal/model"
	"loginsight/internal/profile"
	"loginsight/internal/report"
)

type Format string

const (
	CSV      Format = "csv"
	JSON     Format = "json"
	NDJSON   Format = "ndjson"
	Markdown Format = "md"
	// Report is the JSON analysis report of the selection rather than the
	// records themselves.
	Report Format = "report"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, JSON, NDJSON, Markdown, Report:
		return f, nil
	case "markdown":
		return Markdown, nil
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnknownFormat, s)
}

// FormatFromPath guesses the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if f, err := ParseFormat(ext); err == nil {
		return f
	}
	return JSON
}

// Row is one exported record with its optional profiling delta.
type Row struct {
	model.RecordView
	Source  string `json:"source,omitempty"`
	DeltaMS *int64 `json:"deltaMs,omitempty"`
	Band    string `json:"band,omitempty"`
}

// Options tune how rows are produced. Every field may be nil.
type Options struct {
	Deltas     map[uint64]profile.Delta
	SourceName func(id int) string
	// Report is written as is for the Report format; when nil one is built
	// from the records with default health scoring.
	Report *report.Report
}

func rows(recs []*model.Record, opt Options) []Row {
	out := make([]Row, 0, len(recs))
	for _, r := range recs {
		row := Row{RecordView: r.View()}
		if opt.SourceName != nil {
			row.Source = opt.SourceName(r.SourceID)
		}
		if d, ok := opt.Deltas[r.ID]; ok && d.HasPrev {
			ms := d.Delta.Milliseconds()
			row.DeltaMS = &ms
			row.Band = d.Band.String()
		}
		out = append(out, row)
	}
	return out
}

// Write renders recs to w in format f.
func Write(w io.Writer, f Format, recs []*model.Record, opt Options) error {
	if len(recs) == 0 {
		return errors.ErrNoRecords
	}
	if f == Report {
		rep := opt.Report
		if rep == nil {
			var err error
			if rep, err = report.Build(context.Background(), recs, opt.Deltas, report.Options{SourceName: opt.SourceName}); err != nil {
				return err
			}
		}
		return report.WriteJSON(w, rep)
	}
	rs := rows(recs, opt)
	switch f {
	case CSV:
		return writeCSV(w, rs)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	case NDJSON:
		return writeNDJSON(w, rs)
	case Markdown:
		return writeMarkdown(w, rs)
	}
	return fmt.Errorf("%w: %q", errors.ErrUnknownFormat, f)
}

// ToFile writes recs to path, creating or truncating it.
func ToFile(path string, f Format, recs []*model.Record, opt Options) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	bw := bufio.NewWriter(file)
	if err := Write(bw, f, recs, opt); err != nil {
		file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return file.Close()
}

var fixed = []string{"id", "source", "line", "ts", "level", "thread", "message"}

func writeCSV(w io.Writer, rs []Row) error {
	cw := csv.NewWriter(w)
	keys := fieldKeys(rs)
	header := append(append([]string(nil), fixed...), keys...)
	header = append(header, "payload", "fold_count", "delta_ms", "band")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rs {
		row := cells(r)
		for _, k := range keys {
			v, _ := r.Fields.Get(k)
			row = append(row, v)
		}
		row = append(row, r.Payload, strconv.Itoa(r.FoldCount), delta(r), r.Band)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeNDJSON(w io.Writer, rs []Row) error {
	enc := json.NewEncoder(w)
	for _, r := range rs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func writeMarkdown(w io.Writer, rs []Row) error {
	bw := bufio.NewWriter(w)
	cols := append(append([]string(nil), fixed...), "delta_ms")
	fmt.Fprintf(bw, "| %s |\n", strings.Join(cols, " | "))
	fmt.Fprintf(bw, "|%s\n", strings.Repeat(" --- |", len(cols)))
	for _, r := range rs {
		c := append(cells(r), delta(r))
		for i := range c {
			c[i] = mdEscape(c[i])
		}
		fmt.Fprintf(bw, "| %s |\n", strings.Join(c, " | "))
	}
	return bw.Flush()
}

func cells(r Row) []string {
	ts := ""
	if r.Timestamp != nil {
		ts = r.Timestamp.Format(time.RFC3339Nano)
	}
	src := r.Source
	if src == "" {
		src = strconv.Itoa(r.SourceID)
	}
	return []string{
		strconv.FormatUint(r.ID, 10), src, strconv.Itoa(r.FirstLine), ts,
		r.Level.String(), r.Thread, r.Message,
	}
}

func delta(r Row) string {
	if r.DeltaMS == nil {
		return ""
	}
	return strconv.FormatInt(*r.DeltaMS, 10)
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\r\n", "<br>", "\n", "<br>")

func mdEscape(s string) string { return mdReplacer.Replace(s) }

// fieldKeys returns the union of extracted field names, sorted.
func fieldKeys(rs []Row) []string {
	set := map[string]struct{}{}
	for _, r := range rs {
		for _, k := range r.Fields.Keys() {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

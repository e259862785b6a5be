package ai

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"loginsight/internal/model"
	"loginsight/internal/util"
)

const (
	maxRecords     = 200
	maxRecordBytes = 4000
)

const systemPrompt = "You are a log analysis assistant. You receive log records selected by the user, " +
	"each prefixed with its record id. Answer the question concisely and cite record ids when relevant."

// Prompt is a chat request ready to send.
type Prompt struct {
	System string
	User   string
	// Records is the number of records included after the cap.
	Records int
}

// BuildPrompt renders recs and the user's instruction. Records beyond the
// cap are dropped from the front so the newest context survives. Text is
// redacted before it leaves the process.
func BuildPrompt(recs []*model.Record, instruction string) Prompt {
	if len(recs) > maxRecords {
		recs = recs[len(recs)-maxRecords:]
	}
	var b strings.Builder
	b.WriteString("Log records:\n")
	for _, r := range recs {
		b.WriteString(header(r))
		raw := strings.TrimRight(r.Raw, "\r\n")
		if len(raw) > maxRecordBytes {
			raw = cut(raw, maxRecordBytes) + " …[cut]"
		}
		b.WriteString(util.RedactPII(raw))
		b.WriteByte('\n')
	}
	b.WriteString("\nQuestion:\n")
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = "Summarize what happened and point out probable root causes."
	}
	b.WriteString(util.RedactPII(instruction))
	return Prompt{System: systemPrompt, User: b.String(), Records: len(recs)}
}

// cut shortens s to at most n bytes without splitting a rune.
func cut(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func header(r *model.Record) string {
	ts := "-"
	if r.Timestamp != nil {
		ts = r.Timestamp.Format(time.RFC3339Nano)
	}
	h := fmt.Sprintf("#%d %s %s", r.ID, ts, r.Level)
	if n := r.FoldCount(); n > 1 {
		h += fmt.Sprintf(" (x%d)", n)
	}
	return h + ": "
}

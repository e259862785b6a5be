package detect

import (
	"regexp"
	"strings"
)

// Candidate is a known entry-start shape.
type Candidate struct {
	Name  string
	Start *regexp.Regexp
}

// Candidates are tried in order; earlier ones win ties.
var Candidates = []Candidate{
	{"iso_timestamp", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)},
	{"bracketed_timestamp", regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)},
	{"syslog_rfc5424", regexp.MustCompile(`^<\d+>1 \d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)},
	{"syslog_rfc3164", regexp.MustCompile(`^(?:<\d+>)?[A-Z][a-z]{2} [ \d]\d \d{2}:\d{2}:\d{2} `)},
	{"apache_combined", regexp.MustCompile(`^\S+ \S+ \S+ \[[^\]]+\] "[A-Z]+ `)},
	{"json_object", regexp.MustCompile(`^\{"`)},
}

type Guess struct {
	Name       string
	Start      *regexp.Regexp // nil when nothing matched
	Confidence float64        // share of non-empty sample lines that start a record
}

// StartPattern picks the entry-start pattern that matches the most lines of
// sample. Continuation lines (stack frames, payload bodies) simply do not
// match, so confidence below 1 is normal for multi-line logs.
func StartPattern(sample []string) Guess {
	lines := 0
	hits := make([]int, len(Candidates))
	for _, l := range sample {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines++
		for i, c := range Candidates {
			if c.Start.MatchString(l) {
				hits[i]++
			}
		}
	}
	best := -1
	for i, h := range hits {
		if h > 0 && (best < 0 || h > hits[best]) {
			best = i
		}
	}
	if best < 0 {
		return Guess{Name: "unknown"}
	}
	return Guess{Name: Candidates[best].Name, Start: Candidates[best].Start, Confidence: conf(lines, hits[best])}
}

func conf(lines, hits int) float64 {
	if lines == 0 {
		return 0
	}
	return float64(hits) / float64(lines)
}

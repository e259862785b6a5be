// Package correlate extracts trace, request or UUID identifiers from records
// and builds the trace view of all records sharing one.
package correlate

import (
	"context"
	"regexp"

	"loginsight/internal/errors"
	"loginsight/internal/filter"
	"loginsight/internal/model"
)

// Extractor scans records with an ordered list of patterns; the first
// pattern that matches wins.
type Extractor struct {
	patterns []*regexp.Regexp
}

func New(patterns []*regexp.Regexp) *Extractor {
	return &Extractor{patterns: patterns}
}

// Find returns the correlation id in text without touching any cache.
// The named group "id" is preferred, then group 1, then the whole match.
func (x *Extractor) Find(text string) (string, bool) {
	for _, re := range x.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if i := re.SubexpIndex("id"); i > 0 && m[i] != "" {
			return m[i], true
		}
		if len(m) > 1 && m[1] != "" {
			return m[1], true
		}
		return m[0], true
	}
	return "", false
}

// ID returns the cached id of r, extracting and caching it on first use.
func (x *Extractor) ID(r *model.Record) (string, bool) {
	if id, checked := r.Correlation(); checked {
		return id, id != ""
	}
	id, _ := x.Find(r.Raw)
	r.SetCorrelation(id)
	return id, id != ""
}

// Extract is ID with a typed error for records without an identifier.
func (x *Extractor) Extract(r *model.Record) (string, error) {
	id, ok := x.ID(r)
	if !ok {
		return "", errors.ErrNoCorrelationID
	}
	return id, nil
}

// TraceCriteria returns the filter selecting every record sharing r's id.
func (x *Extractor) TraceCriteria(r *model.Record) (filter.Criteria, error) {
	id, err := x.Extract(r)
	if err != nil {
		return filter.Criteria{}, err
	}
	return filter.Criteria{CorrelationID: id}, nil
}

// Trace evaluates the trace view of r over snap. Records without an id
// leave nothing to do and yield ErrNoCorrelationID.
func (x *Extractor) Trace(ctx context.Context, snap model.Snapshot, r *model.Record) (string, []uint64, error) {
	c, err := x.TraceCriteria(r)
	if err != nil {
		return "", nil, err
	}
	ids, err := filter.Evaluate(ctx, snap, c, filter.WithCorrelation(x.ID))
	if err != nil {
		return "", nil, err
	}
	return c.CorrelationID, ids, nil
}

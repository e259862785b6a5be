package ingest

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"loginsight/internal/errors"
)

// Source is one resolved input file. IDs follow resolution order.
type Source struct {
	ID   int
	Path string
}

// Resolve expands file paths and doublestar globs (/var/log/**/*.log) into
// sources. Inputs that match nothing are returned as warnings; an empty
// overall result is an error.
func Resolve(patterns []string) ([]Source, []error, error) {
	var (
		out      []Source
		warnings []error
		seen     = make(map[string]bool)
	)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%w: pattern %q: %w", errors.ErrIO, pattern, err))
			continue
		}
		if len(matches) == 0 {
			warnings = append(warnings, fmt.Errorf("%w: %s: no such file", errors.ErrIO, pattern))
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			out = append(out, Source{ID: len(out), Path: abs})
		}
	}
	if len(out) == 0 {
		return nil, warnings, errors.ErrNoSources
	}
	return out, warnings, nil
}

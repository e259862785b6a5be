package fold

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"loginsight/internal/errors"
)

// Normalization maps a message to the form compared when folding.
type Normalization func(message string) string

const DefaultNormalization = "volatile"

var (
	reTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?|\b\d{2}:\d{2}:\d{2}(?:[.,]\d+)?\b`)
	reUUID      = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	reHex       = regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b|\b[0-9a-f]*[a-f][0-9a-f]*\d[0-9a-f]*\b|\b[0-9a-f]*\d[0-9a-f]*[a-f][0-9a-f]*\b`)
	reNumber    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	reDigits    = regexp.MustCompile(`\d+`)
)

// Volatile masks values that typically change between otherwise identical
// messages: timestamps, UUIDs, hex ids and numbers.
func Volatile(message string) string {
	s := reTimestamp.ReplaceAllString(message, "<ts>")
	s = reUUID.ReplaceAllString(s, "<uuid>")
	s = reHex.ReplaceAllStringFunc(s, func(m string) string {
		if len(m) < 6 && !strings.HasPrefix(strings.ToLower(m), "0x") {
			return m
		}
		return "<hex>"
	})
	s = reNumber.ReplaceAllString(s, "<n>")
	return strings.Join(strings.Fields(s), " ")
}

// Exact compares messages with surrounding whitespace trimmed.
func Exact(message string) string { return strings.TrimSpace(message) }

// Digits masks every run of digits.
func Digits(message string) string {
	return reDigits.ReplaceAllString(strings.TrimSpace(message), "#")
}

var (
	regMu    sync.RWMutex
	registry = map[string]Normalization{
		"volatile": Volatile,
		"exact":    Exact,
		"digits":   Digits,
	}
)

// Register makes a normalization available to fold rules by name.
func Register(name string, fn Normalization) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = fn
}

// Lookup returns the normalization registered under name.
func Lookup(name string) (Normalization, error) {
	if name == "" {
		name = DefaultNormalization
	}
	regMu.RLock()
	defer regMu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown fold normalization %q (have %s)", errors.ErrInvalidConfig, name, strings.Join(names(), ", "))
	}
	return fn, nil
}

// names lists registered normalizations; callers hold regMu.
func names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

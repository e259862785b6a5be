package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"loginsight/internal/errors"
)

var absoluteLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02",
}

var clockLayouts = []string{"15:04:05", "15:04"}

// ParseTime resolves a user time expression against now:
// relative ("-1h", "+30m", "-2d", "-1w", "-90s"), full date-time, date only
// (start of day) or time of day (today).
func ParseTime(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", errors.ErrInvalidTime)
	}
	if s[0] == '-' || s[0] == '+' {
		d, err := parseRelative(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %w", errors.ErrInvalidTime, input, err)
		}
		if s[0] == '-' {
			d = -d
		}
		return now.Add(d), nil
	}
	loc := now.Location()
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			y, m, d := now.Date()
			return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (want -1h, 2024-01-15, 2024-01-15 10:30:45 or 10:30:45)", errors.ErrInvalidTime, input)
}

func parseRelative(s string) (time.Duration, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, errors.New("missing amount")
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, err
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(s[i:])) {
	case "s", "sec", "second", "seconds":
		unit = time.Second
	case "m", "min", "minute", "minutes":
		unit = time.Minute
	case "h", "hr", "hour", "hours":
		unit = time.Hour
	case "d", "day", "days":
		unit = 24 * time.Hour
	case "w", "week", "weeks":
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown unit %q", s[i:])
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("amount %d%s out of range", n, s[i:])
	}
	return time.Duration(n) * unit, nil
}

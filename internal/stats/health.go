package stats

import (
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"loginsight/internal/errors"
)

// Window summarizes the trailing health window.
type Window struct {
	Total    int64
	Errors   int64
	Warnings int64
}

func (w Window) ErrorRate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Errors) / float64(w.Total)
}

func (w Window) WarnRate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Warnings) / float64(w.Total)
}

// HealthFunc maps a window to a score in [0, 100].
type HealthFunc func(Window) int

// DefaultHealth scores 100 for an error-free window and loses two points per
// percent of error records and half a point per percent of warnings.
func DefaultHealth(w Window) int {
	if w.Total == 0 {
		return 100
	}
	penalty := 2*w.ErrorRate() + 0.5*w.WarnRate()
	return clamp(100 * (1 - penalty))
}

// ExprHealth compiles a govaluate expression over the variables errors,
// warnings, total, error_rate and warn_rate, e.g.
// "100 - error_rate * 300". Evaluation failures fall back to DefaultHealth.
func ExprHealth(expr string) (HealthFunc, error) {
	ev, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, &errors.PatternError{Field: "stats.health_expression", Pattern: expr, Err: err}
	}
	return func(w Window) int {
		res, err := ev.Evaluate(map[string]any{
			"errors":     float64(w.Errors),
			"warnings":   float64(w.Warnings),
			"total":      float64(w.Total),
			"error_rate": w.ErrorRate(),
			"warn_rate":  w.WarnRate(),
		})
		if err != nil {
			return DefaultHealth(w)
		}
		v, ok := res.(float64)
		if !ok {
			return DefaultHealth(w)
		}
		return clamp(v)
	}, nil
}

// HealthFromConfig returns ExprHealth for a non-empty expression and
// DefaultHealth otherwise.
func HealthFromConfig(expr string) (HealthFunc, error) {
	if expr == "" {
		return DefaultHealth, nil
	}
	fn, err := ExprHealth(expr)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}
	return fn, nil
}

func clamp(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

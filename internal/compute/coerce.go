package compute

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ResultFromLoose coerces a duck-typed provider payload into the strict
// Result model. Missing optional fields become empty values, never errors.
func ResultFromLoose(data map[string]any) *Result {
	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &Result{
		Score:     score,
		Summary:   coerceString(data["summary"]),
		Strengths: coerceStrings(data["strengths"]),
		Gaps:      coerceStrings(data["gaps"]),
		Advice:    coerceString(data["advice"]),
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if s := coerceString(v); v != nil && s != "" {
			return []string{s}
		}
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

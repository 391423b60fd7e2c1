// Package ingest normalizes externally sourced result rows into the canonical
// records consumed by the ranking package.
package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseOptionalNumber reads a finite number from a decoded JSON value.
// Numbers, json.Number and numeric strings are accepted; nil, empty strings,
// NaN, infinities and any other type report false.
func ParseOptionalNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseFiniteNumber is ParseOptionalNumber with a fallback for rejected input.
func ParseFiniteNumber(v any, fallback float64) float64 {
	if f, ok := ParseOptionalNumber(v); ok {
		return f
	}
	return fallback
}

// ParseFlag interprets boolean-ish values: booleans, positive numbers and the
// strings "true", "yes" and "y".
func ParseFlag(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y":
			return true
		}
	}
	f, ok := ParseOptionalNumber(v)
	return ok && math.Round(f) > 0
}

func optionalInt(v any) *int64 {
	f, ok := ParseOptionalNumber(v)
	if !ok {
		return nil
	}
	n := int64(math.Trunc(f))
	return &n
}

func nonNegativeInt(v any) int {
	f := ParseFiniteNumber(v, 0)
	if f < 0 {
		return 0
	}
	return int(math.Min(math.Trunc(f), math.MaxInt32))
}

func attemptNumber(v any) int {
	n := nonNegativeInt(v)
	if n < 1 {
		return 1
	}
	return n
}

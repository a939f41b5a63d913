package core

// convert.go cleans raw spreadsheet cells before they reach validation.
//
// Workbooks edited by hand carry the usual artifacts:
//   - Leading/trailing whitespace and non-breaking spaces
//   - Numbers stored as floats ("2005.0") in year columns
//
// Quotes and '=' are data here: cells are read raw, so formula text never
// arrives, and free text such as `Rim 16"` must survive.
//
// None of these functions fail; values that cannot be cleaned are returned
// as-is and rejected later by the validation rules.

import (
	"math"
	"strconv"
	"strings"
)

// CleanCell trims surrounding whitespace, including non-breaking spaces.
func CleanCell(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

// normalizeIntCell rewrites an integral float such as "2005.0" to "2005".
// Other values are returned unchanged.
func normalizeIntCell(s string) string {
	if s == "" || !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return s
	}
	return strconv.Itoa(int(f))
}

// ParseYear converts a year cell. Empty cells return nil.
func ParseYear(s string) (*int, bool) {
	s = normalizeIntCell(CleanCell(s))
	if s == "" {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// FormatYear renders an optional year for export.
func FormatYear(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

// Package price turns free-text price cells from upstream sources into
// numbers. Upstream sheets mix currency symbols, thousands separators and
// sentinel strings ("N/A", "non-member price") into the same column, so all
// failure modes collapse to "absent" rather than an error.
package price

import (
	"math"
	"strconv"
	"strings"
)

// absent sentinels, compared after lowercasing, trimming and removing spaces.
var absentForms = map[string]struct{}{
	"na":              {},
	"n/a":             {},
	"nonmember":       {},
	"non-member":      {},
	"nonmemberprice":  {},
	"non-memberprice": {},
}

// Parse extracts a price from a raw cell. The second return value reports
// whether a usable price was found; negative and non-finite results count as
// absent, never as zero.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	lowered := strings.ToLower(s)
	if _, ok := absentForms[strings.ReplaceAll(lowered, " ", "")]; ok {
		return 0, false
	}

	if !strings.ContainsAny(s, "0123456789") {
		return 0, false
	}

	cleaned := stripNonNumeric(s)
	cleaned = collapseDots(cleaned)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// ToInteger parses a whole number (e.g. a "Years" cell), truncating toward
// zero. Absent when the cell does not hold a finite number.
func ToInteger(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int(v), true
}

// Round2 rounds to the cent, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseDots keeps only the last dot as the decimal point; earlier dots are
// treated as thousands separators, so "1.234.56" becomes "1234.56".
func collapseDots(s string) string {
	last := strings.LastIndexByte(s, '.')
	if last < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:last], ".", "")
	return head + s[last:]
}

package core

// convert.go provides value and name conversion for raw BEA records.
//
// These functions handle the messy reality of agency-published data:
//   - Thousands separators in numbers ("1,234.5")
//   - Sentinel strings for suppressed or unavailable values ("(NA)", "----")
//   - Free-text line descriptions that must become column names
//
// ParseValue is total: anything it cannot read becomes a null, never an error.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// numericRegex validates that a string is a plain decimal number after cleanup.
// Rejects NaN/Inf spellings that strconv.ParseFloat would otherwise accept.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// nullSentinels are BEA markers for unavailable, suppressed or not meaningful values.
var nullSentinels = map[string]bool{
	"n/a":  true,
	"NA":   true,
	"(NA)": true,
	"(NM)": true,
	"...":  true,
	"----": true,
	"n.a.": true,
}

var (
	slugStripRegex = regexp.MustCompile(`[^a-z0-9\s\p{Z}]`)
	slugSpaceRegex = regexp.MustCompile(`[\s\p{Z}]+`)
)

// ParseValue converts a raw DataValue to a float.
// Returns ok=false for nil, blank, sentinel and unparseable input.
func ParseValue(raw *string) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	return ParseValueString(*raw)
}

// ParseValueString is ParseValue for a non-nullable string.
func ParseValueString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || nullSentinels[s] {
		return 0, false
	}

	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || nullSentinels[s] || !numericRegex.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Slugify converts a line description to a snake_case column name.
// Non-alphanumeric characters are dropped (not replaced), so
// "Gross domestic product (GDP)" becomes "gross_domestic_product_gdp".
// Unicode spaces such as U+00A0 separate words like ASCII ones.
func Slugify(text string) string {
	text = strings.ToLower(text)
	text = slugStripRegex.ReplaceAllString(text, "")
	text = strings.TrimFunc(text, unicode.IsSpace)
	return slugSpaceRegex.ReplaceAllString(text, "_")
}

// titleWords turns a slug into space-separated words. A letter is upper-cased
// when it does not follow another letter, so "1st_quarter" becomes "1St Quarter".
func titleWords(slug string) string {
	var b strings.Builder
	b.Grow(len(slug))
	prevLetter := false
	for _, r := range strings.ReplaceAll(slug, "_", " ") {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

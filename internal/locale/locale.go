// Package locale converts German-formatted dates and numbers into canonical
// ISO-8601 strings and floats. Every function is total: malformed input
// yields an empty result, never an error or a panic.
package locale

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	localDatePattern  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	localStampPattern = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})\s+(\d{1,2}):(\d{2}):(\d{2})$`)
	decimalPattern    = regexp.MustCompile(`^[+-]?(\d{1,3}(\.\d{3})+|\d+)(,\d+)?$`)
	dateCandidates    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{1,2}\.\d{1,2}\.\d{4}(?:\s+\d{1,2}:\d{2}:\d{2})?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ParseDate accepts an ISO date, DD.MM.YYYY, or DD.MM.YYYY HH:MM:SS and
// returns the ISO date and, for timestamps, the ISO date-time. Both are
// empty when the text is not a valid calendar date.
func ParseDate(text string) (date string, dateTime string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ""
	}
	if isoDatePattern.MatchString(s) {
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return "", ""
		}
		return s, ""
	}
	if m := localDatePattern.FindStringSubmatch(s); m != nil {
		t, ok := buildTime(m[1], m[2], m[3], "0", "0", "0")
		if !ok {
			return "", ""
		}
		return t.Format(time.DateOnly), ""
	}
	if m := localStampPattern.FindStringSubmatch(s); m != nil {
		t, ok := buildTime(m[1], m[2], m[3], m[4], m[5], m[6])
		if !ok {
			return "", ""
		}
		return t.Format(time.DateOnly), t.Format("2006-01-02T15:04:05")
	}
	return "", ""
}

// NormalizeDate returns the ISO date for text when it parses and the trimmed
// original text otherwise.
func NormalizeDate(text string) string {
	if date, _ := ParseDate(text); date != "" {
		return date
	}
	return strings.TrimSpace(text)
}

// FindDates returns every date-looking token in text, in order of appearance.
func FindDates(text string) []string {
	return dateCandidates.FindAllString(CleanText(text), -1)
}

func buildTime(day, month, year, hour, minute, second string) (time.Time, bool) {
	vals := make([]int, 6)
	for i, raw := range []string{day, month, year, hour, minute, second} {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, false
		}
		vals[i] = n
	}
	d, mo, y, h, mi, se := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	if mo < 1 || mo > 12 || d < 1 || h > 23 || mi > 59 || se > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, se, 0, time.UTC)
	// time.Date normalizes overflow such as 31.02; reject it.
	if t.Day() != d || int(t.Month()) != mo || t.Year() != y {
		return time.Time{}, false
	}
	return t, true
}

// ParseDecimal reads a decimal in German notation where '.' groups thousands
// and ',' separates the fraction. It reports false for any non-numeric
// residue.
func ParseDecimal(text string) (float64, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(text, "\u00a0", " "))
	if s == "" {
		return 0, false
	}
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// DecimalPtr wraps ParseDecimal for optional columns.
func DecimalPtr(text string) *float64 {
	v, ok := ParseDecimal(text)
	if !ok {
		return nil
	}
	return &v
}

// ParseAmount strips a trailing or leading currency marker before parsing,
// so cells such as "12,50 €" resolve.
func ParseAmount(text string) *float64 {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "€"), "€"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "EUR"))
	return DecimalPtr(s)
}

// CleanText collapses runs of whitespace (including non-breaking spaces)
// into single spaces and trims the result.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// Package timeparsing reads the --since cutoff of an incremental migration.
//
// A cutoff is one of:
//   - a look-back such as 7d, 12h, 2w, 3m or 1y (a leading "-" is allowed)
//   - an absolute date or timestamp (2024-01-31, 2024-01-31 09:00, RFC3339)
//   - an English phrase (yesterday, 3 days ago, last monday)
//
// Cutoffs in the future are rejected.
package timeparsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrFuture is returned for a cutoff later than now.
var ErrFuture = errors.New("cutoff is in the future")

var lookbackRe = regexp.MustCompile(`^(-?)(\d+)([hdwmy])$`)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseSince returns the cutoff described by s, relative to now.
// Dates without a zone are read in now's location.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty cutoff")
	}

	t, err := parse(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%s: %w", t.Format(time.RFC3339), ErrFuture)
	}
	return t, nil
}

func parse(s string, now time.Time) (time.Time, error) {
	if t, ok := Lookback(s, now); ok {
		return t, nil
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized cutoff %q (try 7d, yesterday or 2024-01-31)", s)
}

// Lookback reads a compact look-back such as "7d" or "-12h" and reports
// whether s had that form. Units: h hours, d days, w weeks, m months, y years.
func Lookback(s string, now time.Time) (time.Time, bool) {
	m := lookbackRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	n = -n

	switch m[3] {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), true
	case "d":
		return now.AddDate(0, 0, n), true
	case "w":
		return now.AddDate(0, 0, 7*n), true
	case "m":
		return now.AddDate(0, n, 0), true
	default:
		return now.AddDate(n, 0, 0), true
	}
}

// Package timeparse resolves user-supplied time expressions for report
// anchors and age thresholds.
//
// Parsing is layered:
//  1. Compact duration relative to now (+6h, -1d, 2w)
//  2. Absolute timestamp (RFC3339, date-only)
//  3. Natural language ("yesterday", "last monday")
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactRe matches compact duration expressions: an optional sign, an
// amount and a single unit. Examples: +6h, -1d, +2w, 3m, 1y.
var compactRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// nlp is shared across calls; the parser is read-only after rule setup.
var nlp = newNLP()

func newNLP() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Parse resolves expr against now, trying each layer in order.
func Parse(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	if IsCompact(expr) {
		return ParseCompact(expr, now)
	}
	if ts, err := ParseAbsolute(expr); err == nil {
		return ts, nil
	}
	return ParseNatural(expr, now)
}

// ParseCompact applies a compact duration to now.
//
// Units:
//   - h = hours
//   - d = days
//   - w = weeks
//   - m = months
//   - y = years
//
// No sign means positive. Days and larger units move by calendar
// arithmetic, not fixed hour counts.
func ParseCompact(expr string, now time.Time) (time.Time, error) {
	m := compactRe.FindStringSubmatch(expr)
	if m == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", expr)
	}

	amount, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", m[2])
	}
	if m[1] == "-" {
		amount = -amount
	}

	switch m[3] {
	case "h":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, amount), nil
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	case "m":
		return now.AddDate(0, amount, 0), nil
	default: // y, per compactRe
		return now.AddDate(amount, 0, 0), nil
	}
}

// IsCompact reports whether expr matches the compact duration syntax.
func IsCompact(expr string) bool {
	return compactRe.MatchString(expr)
}

// ParseAbsolute parses an RFC3339 or date-only timestamp. Date-only values
// resolve to UTC midnight.
func ParseAbsolute(expr string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, expr); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", expr); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("not an absolute timestamp: %q", expr)
}

// ParseNatural resolves an English expression like "yesterday" or
// "next monday" relative to now.
func ParseNatural(expr string, now time.Time) (time.Time, error) {
	r, err := nlp.Parse(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized time expression: %q", expr)
	}
	return r.Time, nil
}

// ParseThreshold parses a non-negative age threshold such as "30d" or
// "72h" into a duration. Compact units map to fixed lengths here (d=24h,
// w=7d, m=30d, y=365d); anything else goes through time.ParseDuration.
func ParseThreshold(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if m := compactRe.FindStringSubmatch(expr); m != nil {
		if m[1] == "-" {
			return 0, fmt.Errorf("threshold cannot be negative: %q", expr)
		}
		amount, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("invalid duration amount: %q", m[2])
		}
		var unit time.Duration
		switch m[3] {
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		case "m":
			unit = 30 * 24 * time.Hour
		default: // y
			unit = 365 * 24 * time.Hour
		}
		return time.Duration(amount) * unit, nil
	}

	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, fmt.Errorf("not a duration: %q", expr)
	}
	if d < 0 {
		return 0, fmt.Errorf("threshold cannot be negative: %q", expr)
	}
	return d, nil
}

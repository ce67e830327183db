// Package report selects tasks for a time window and renders status report
// artifacts: a markdown document and a JSON series file per window, plus the
// analysis summary file.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Kind is a report cadence. Each kind covers a fixed number of days ending
// at the anchor.
type Kind string

const (
	KindDaily    Kind = "daily"
	KindWeekly   Kind = "weekly"
	KindBiweekly Kind = "biweekly"
	KindMonthly  Kind = "monthly"
	KindYearly   Kind = "yearly"
)

// Kinds lists the supported cadences, shortest first.
func Kinds() []Kind {
	return []Kind{KindDaily, KindWeekly, KindBiweekly, KindMonthly, KindYearly}
}

// Days returns the window length in days.
func (k Kind) Days() int {
	switch k {
	case KindDaily:
		return 1
	case KindWeekly:
		return 7
	case KindBiweekly:
		return 14
	case KindMonthly:
		return 30
	case KindYearly:
		return 365
	}
	return 0
}

// Title returns the document heading form of the kind.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Bounds returns the half-open interval [anchor - days, anchor).
func (k Kind) Bounds(anchor time.Time) (start, end time.Time) {
	end = anchor.UTC()
	start = end.AddDate(0, 0, -k.Days())
	return start, end
}

// ParseKind validates a cadence name. The empty string means weekly, the
// default cadence.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return KindWeekly, nil
	case KindDaily:
		return KindDaily, nil
	case KindWeekly:
		return KindWeekly, nil
	case KindBiweekly:
		return KindBiweekly, nil
	case KindMonthly:
		return KindMonthly, nil
	case KindYearly:
		return KindYearly, nil
	}
	return "", fmt.Errorf("unknown report kind %q (daily, weekly, biweekly, monthly, yearly)", s)
}

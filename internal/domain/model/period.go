package model

import (
	"fmt"
	"strings"
)

// Period is the periodic note category appended to the downstream endpoint path.
type Period string

// The five periodic note categories accepted by the Obsidian Local REST API.
const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// DefaultPeriod is the category flush delivers to. Flush does not record which
// category a note was originally queued under, so every flushed note targets
// this one.
const DefaultPeriod = PeriodDaily

// ParsePeriod converts a path segment into a Period, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(s)); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return p, nil
	default:
		return "", fmt.Errorf("invalid period %q: must be one of daily, weekly, monthly, quarterly, yearly", s)
	}
}

func (p Period) String() string {
	return string(p)
}

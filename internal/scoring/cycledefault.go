package scoring

import (
	"fmt"
	"strings"
	"time"

	"stratline/internal/domain"
)

// CycleDefaults is a pre-filled suggestion for the next cycle. An empty name
// means the operator picks one; all fields are editable before creation.
type CycleDefaults struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

const defaultCustomCycleDays = 42

// SuggestCycle proposes name and dates for the next cycle under the given
// planning rhythm. cycleLengthWeeks only matters for the "cycles" rhythm; a
// non-positive value falls back to six weeks.
func SuggestCycle(rhythm domain.PlanningRhythm, cycleLengthWeeks int, existing []domain.Cycle, now time.Time) CycleDefaults {
	switch rhythm {
	case domain.RhythmQuarters:
		return suggestQuarter(existing, now)
	case domain.RhythmCycles:
		return suggestRolling(cycleLengthWeeks, existing, now)
	default:
		start := midnight(now)
		return CycleDefaults{
			StartDate: start.Format(dateLayout),
			EndDate:   start.AddDate(0, 0, defaultCustomCycleDays).Format(dateLayout),
		}
	}
}

// suggestQuarter walks the eight calendar quarters of the current and next
// year and picks the first that has not ended and is not already named among
// the existing cycles. All eight taken returns empty defaults.
func suggestQuarter(existing []domain.Cycle, now time.Time) CycleDefaults {
	taken := make(map[string]bool, len(existing))
	for _, c := range existing {
		taken[strings.ToLower(strings.TrimSpace(c.Name))] = true
	}
	today := midnight(now)
	for year := now.Year(); year <= now.Year()+1; year++ {
		for q := 1; q <= 4; q++ {
			start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, now.Location())
			end := start.AddDate(0, 3, -1)
			if end.Before(today) {
				continue
			}
			name := fmt.Sprintf("Q%d %d", q, year)
			if taken[strings.ToLower(name)] {
				continue
			}
			return CycleDefaults{
				Name:      name,
				StartDate: start.Format(dateLayout),
				EndDate:   end.Format(dateLayout),
			}
		}
	}
	return CycleDefaults{}
}

// suggestRolling chains a fixed-length cycle off the latest existing end date,
// never starting in the past. Naming is positional: "Cycle {n+1}" over the
// count of existing cycles.
func suggestRolling(lengthWeeks int, existing []domain.Cycle, now time.Time) CycleDefaults {
	if lengthWeeks <= 0 {
		lengthWeeks = 6
	}
	today := midnight(now)
	start := today
	var latestEnd time.Time
	for _, c := range existing {
		if end, ok := parseDate(c.EndDate); ok && end.After(latestEnd) {
			latestEnd = end
		}
	}
	if !latestEnd.IsZero() {
		if next := latestEnd.AddDate(0, 0, 1); !next.Before(today) {
			start = next
		}
	}
	return CycleDefaults{
		Name:      fmt.Sprintf("Cycle %d", len(existing)+1),
		StartDate: start.Format(dateLayout),
		EndDate:   start.AddDate(0, 0, lengthWeeks*7-1).Format(dateLayout),
	}
}

package scoring

import (
	"math"
	"time"
)

// WindowProgress describes how far a start/end window has elapsed at a given
// instant. Week numbers are 1-based.
type WindowProgress struct {
	InsideWindow    bool    `json:"inside_window"`
	ElapsedFraction float64 `json:"elapsed_fraction"`
	CurrentWeek     int     `json:"current_week"`
	TotalWeeks      int     `json:"total_weeks"`
	Percent         int     `json:"percent"`
}

// Window computes elapsed progress for [start, end] as of now. A window with
// end <= start is treated as fully elapsed instead of dividing by zero.
func Window(start, end, now time.Time) WindowProgress {
	const week = 7 * 24 * time.Hour
	total := end.Sub(start)
	totalWeeks := int(math.Round(float64(total) / float64(week)))
	if totalWeeks < 1 {
		totalWeeks = 1
	}
	elapsed := 1.0
	if total > 0 {
		elapsed = clampFloat(float64(now.Sub(start))/float64(total), 0, 1)
	}
	currentWeek := clampInt(int(math.Ceil(elapsed*float64(totalWeeks))), 1, totalWeeks)
	return WindowProgress{
		InsideWindow:    !now.Before(start) && !now.After(end),
		ElapsedFraction: elapsed,
		CurrentWeek:     currentWeek,
		TotalWeeks:      totalWeeks,
		Percent:         int(math.Round(elapsed * 100)),
	}
}

// CycleWindow runs Window over a cycle's date strings. Cycles with missing or
// unparsable dates report a fully elapsed single-week window.
func CycleWindow(startDate, endDate string, now time.Time) WindowProgress {
	start, okStart := parseDate(startDate)
	end, okEnd := parseDate(endDate)
	if !okStart || !okEnd {
		return WindowProgress{ElapsedFraction: 1, CurrentWeek: 1, TotalWeeks: 1, Percent: 100}
	}
	// End dates are inclusive calendar days; the window runs to the end of
	// that day.
	return Window(start, end.AddDate(0, 0, 1), now)
}

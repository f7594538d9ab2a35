// Package scoring holds the read-only computations behind the alignment,
// health, tree and cycle views: pure functions over flat entity collections,
// with "now" always passed in explicitly. Nothing here touches the database
// or mutates its inputs, so every call is safe to run concurrently.
package scoring

import (
	"math"
	"time"
)

const dateLayout = "2006-01-02"

// parseDate accepts the date-only layout used for cycle and due dates, and
// falls back to RFC3339 for rows written with full timestamps. Unparsable
// input reports ok=false rather than an error; callers treat such rows as
// having no date at all.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

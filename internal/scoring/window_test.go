package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowHalfElapsed(t *testing.T) {
	now := time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)
	w := Window(now.AddDate(0, 0, -7), now.AddDate(0, 0, 7), now)
	assert.True(t, w.InsideWindow)
	assert.Equal(t, 50, w.Percent)
	assert.Equal(t, 2, w.TotalWeeks)
	assert.InDelta(t, 0.5, w.ElapsedFraction, 0.001)
	require.GreaterOrEqual(t, w.CurrentWeek, 1)
	require.LessOrEqual(t, w.CurrentWeek, 2)
}

func TestWindowDegenerate(t *testing.T) {
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	w := Window(now, now, now)
	assert.Equal(t, 100, w.Percent)
	assert.Equal(t, 1.0, w.ElapsedFraction)
	assert.Equal(t, 1, w.TotalWeeks)
	assert.Equal(t, 1, w.CurrentWeek)
}

func TestWindowInvertedTreatedAsElapsed(t *testing.T) {
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	w := Window(now, now.AddDate(0, 0, -14), now)
	assert.Equal(t, 100, w.Percent)
	assert.Equal(t, 1, w.TotalWeeks)
	assert.False(t, w.InsideWindow)
}

func TestWindowBeforeStartClamps(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	w := Window(now.AddDate(0, 0, 7), now.AddDate(0, 0, 21), now)
	assert.False(t, w.InsideWindow)
	assert.Equal(t, 0, w.Percent)
	assert.Equal(t, 0.0, w.ElapsedFraction)
	assert.Equal(t, 1, w.CurrentWeek)
}

func TestWindowAfterEndClamps(t *testing.T) {
	now := time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)
	w := Window(now.AddDate(0, 0, -30), now.AddDate(0, 0, -2), now)
	assert.False(t, w.InsideWindow)
	assert.Equal(t, 100, w.Percent)
	assert.Equal(t, w.TotalWeeks, w.CurrentWeek)
}

func TestCycleWindowUnparsableDates(t *testing.T) {
	now := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	w := CycleWindow("not-a-date", "2025-06-01", now)
	assert.Equal(t, 100, w.Percent)
	assert.Equal(t, 1, w.TotalWeeks)
}

func TestWindowIdempotent(t *testing.T) {
	now := time.Date(2025, 5, 15, 9, 30, 0, 0, time.UTC)
	start, end := now.AddDate(0, 0, -10), now.AddDate(0, 0, 11)
	assert.Equal(t, Window(start, end, now), Window(start, end, now))
}

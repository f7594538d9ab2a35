package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stratline/internal/domain"
)

func TestSuggestQuarterRollover(t *testing.T) {
	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	existing := []domain.Cycle{
		{Name: "Q1 2025", StartDate: "2025-01-01", EndDate: "2025-03-31"},
	}
	got := SuggestCycle(domain.RhythmQuarters, 0, existing, now)
	assert.Equal(t, "Q2 2025", got.Name)
	assert.Equal(t, "2025-04-01", got.StartDate)
	assert.Equal(t, "2025-06-30", got.EndDate)
}

func TestSuggestQuarterNameMatchIsCaseInsensitive(t *testing.T) {
	now := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	existing := []domain.Cycle{{Name: "q2 2025"}}
	got := SuggestCycle(domain.RhythmQuarters, 0, existing, now)
	assert.Equal(t, "Q3 2025", got.Name)
}

func TestSuggestQuarterExhausted(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	var existing []domain.Cycle
	for _, year := range []int{2025, 2026} {
		for q := 1; q <= 4; q++ {
			existing = append(existing, domain.Cycle{Name: fmt.Sprintf("Q%d %d", q, year)})
		}
	}
	got := SuggestCycle(domain.RhythmQuarters, 0, existing, now)
	assert.Equal(t, CycleDefaults{}, got)
}

func TestSuggestRollingChainsFromLatestEnd(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	existing := []domain.Cycle{
		{Name: "Cycle 1", StartDate: "2025-01-01", EndDate: "2025-02-11"},
		{Name: "Cycle 2", StartDate: "2025-02-12", EndDate: "2025-03-25"},
	}
	got := SuggestCycle(domain.RhythmCycles, 6, existing, now)
	assert.Equal(t, "Cycle 3", got.Name)
	assert.Equal(t, "2025-03-26", got.StartDate)
	// 6 weeks inclusive of the start day.
	assert.Equal(t, "2025-05-06", got.EndDate)
}

func TestSuggestRollingPastEndStartsNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := []domain.Cycle{
		{Name: "Cycle 1", StartDate: "2025-01-01", EndDate: "2025-02-11"},
	}
	got := SuggestCycle(domain.RhythmCycles, 4, existing, now)
	assert.Equal(t, "Cycle 2", got.Name)
	assert.Equal(t, "2025-06-01", got.StartDate)
	assert.Equal(t, "2025-06-28", got.EndDate)
}

func TestSuggestRollingNoExisting(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	got := SuggestCycle(domain.RhythmCycles, 2, nil, now)
	assert.Equal(t, "Cycle 1", got.Name)
	assert.Equal(t, "2025-06-01", got.StartDate)
	assert.Equal(t, "2025-06-14", got.EndDate)
}

func TestSuggestCustom(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 4, 5, 0, time.UTC)
	got := SuggestCycle(domain.RhythmCustom, 0, nil, now)
	assert.Empty(t, got.Name)
	assert.Equal(t, "2025-06-01", got.StartDate)
	assert.Equal(t, "2025-07-13", got.EndDate)
}

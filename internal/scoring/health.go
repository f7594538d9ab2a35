package scoring

import (
	"fmt"
	"time"

	"stratline/internal/domain"
)

type HealthStatus string

const (
	HealthHealthy        HealthStatus = "healthy"
	HealthNeedsAttention HealthStatus = "needs_attention"
	HealthAtRisk         HealthStatus = "at_risk"
)

const defaultStaleAfter = 30 * 24 * time.Hour

// HealthInput carries the flat collections for one workspace. StaleAfter of
// zero means the 30-day default.
type HealthInput struct {
	Narratives  []domain.Narrative
	Commitments []domain.Commitment
	Tasks       []domain.Task
	Now         time.Time
	StaleAfter  time.Duration
}

type HealthStats struct {
	TotalNarratives    int     `json:"total_narratives"`
	ActiveNarratives   int     `json:"active_narratives"`
	AtRiskNarratives   int     `json:"at_risk_narratives"`
	StaleNarratives    int     `json:"stale_narratives"`
	TotalCommitments   int     `json:"total_commitments"`
	OnTrackCommitments int     `json:"on_track_commitments"`
	AtRiskCommitments  int     `json:"at_risk_commitments"`
	BlockedCommitments int     `json:"blocked_commitments"`
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	BlockedTasks       int     `json:"blocked_tasks"`
	OverdueTasks       int     `json:"overdue_tasks"`
	OrphanTasks        int     `json:"orphan_tasks"`
	TaskCompletion     float64 `json:"task_completion"`
}

type Health struct {
	Score  int          `json:"score"`
	Status HealthStatus `json:"status" enum:"healthy,needs_attention,at_risk"`
	Issues []string     `json:"issues"`
	Stats  HealthStats  `json:"stats"`
}

// ScoreHealth measures current operational state: status distributions plus
// overdue, blocked, orphaned and stale work. Independent of the alignment
// axis, which measures structural completeness instead.
func ScoreHealth(in HealthInput) Health {
	staleAfter := in.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	var stats HealthStats

	stats.TotalNarratives = len(in.Narratives)
	for _, n := range in.Narratives {
		switch n.Status {
		case domain.NarrativeActive:
			stats.ActiveNarratives++
		case domain.NarrativeAtRisk:
			stats.AtRiskNarratives++
		}
		if n.Status == domain.NarrativeCompleted || n.Status == domain.NarrativeArchived {
			continue
		}
		if updated, ok := parseDate(n.UpdatedAt); ok && in.Now.Sub(updated) > staleAfter {
			stats.StaleNarratives++
		}
	}

	knownCommitments := make(map[string]bool, len(in.Commitments))
	for _, c := range in.Commitments {
		knownCommitments[c.ID] = true
	}
	blockedTasksByCommitment := make(map[string]int)

	stats.TotalTasks = len(in.Tasks)
	for _, t := range in.Tasks {
		switch t.Status {
		case domain.TaskDone:
			stats.CompletedTasks++
		case domain.TaskBlocked:
			stats.BlockedTasks++
			blockedTasksByCommitment[t.CommitmentID]++
		}
		if !knownCommitments[t.CommitmentID] {
			stats.OrphanTasks++
		}
		if t.Status != domain.TaskDone && overdue(t.DueDate, in.Now) {
			stats.OverdueTasks++
		}
	}
	if stats.TotalTasks > 0 {
		stats.TaskCompletion = float64(stats.CompletedTasks) / float64(stats.TotalTasks)
	}

	stats.TotalCommitments = len(in.Commitments)
	for _, c := range in.Commitments {
		settled := c.Status == domain.CommitmentCompleted || c.Status == domain.CommitmentArchived
		blocked := !settled && blockedTasksByCommitment[c.ID] > 0
		if blocked {
			stats.BlockedCommitments++
		}
		switch {
		case c.Status == domain.CommitmentAtRisk:
			stats.AtRiskCommitments++
		case c.Status == domain.CommitmentActive && !blocked && !overdue(c.DueDate, in.Now):
			stats.OnTrackCommitments++
		}
	}

	score := 100
	score -= 10 * stats.AtRiskNarratives
	score -= 5 * (stats.AtRiskCommitments + stats.BlockedCommitments)
	score -= 2 * stats.BlockedTasks
	score = clampInt(score, 0, 100)

	return Health{
		Score:  score,
		Status: healthStatus(score),
		Issues: healthIssues(stats, staleAfter),
		Stats:  stats,
	}
}

func healthStatus(score int) HealthStatus {
	switch {
	case score >= 80:
		return HealthHealthy
	case score >= 60:
		return HealthNeedsAttention
	default:
		return HealthAtRisk
	}
}

// healthIssues names counts, not entities, in a fixed priority order.
func healthIssues(stats HealthStats, staleAfter time.Duration) []string {
	issues := []string{}
	if stats.AtRiskNarratives > 0 {
		issues = append(issues, fmt.Sprintf("%s at risk", countNoun(stats.AtRiskNarratives, "narrative is", "narratives are")))
	}
	if n := stats.AtRiskCommitments + stats.BlockedCommitments; n > 0 {
		issues = append(issues, fmt.Sprintf("%s at risk or blocked", countNoun(n, "commitment is", "commitments are")))
	}
	if stats.BlockedTasks > 0 {
		issues = append(issues, fmt.Sprintf("%s blocked", countNoun(stats.BlockedTasks, "task is", "tasks are")))
	}
	if stats.OverdueTasks > 0 {
		issues = append(issues, fmt.Sprintf("%s overdue", countNoun(stats.OverdueTasks, "task is", "tasks are")))
	}
	if stats.OrphanTasks > 0 {
		issues = append(issues, fmt.Sprintf("%s a commitment that no longer exists", countNoun(stats.OrphanTasks, "task references", "tasks reference")))
	}
	if stats.StaleNarratives > 0 {
		days := int(staleAfter.Hours() / 24)
		issues = append(issues, fmt.Sprintf("%s not been updated in over %s", countNoun(stats.StaleNarratives, "narrative has", "narratives have"), countNoun(days, "day", "days")))
	}
	return issues
}

func countNoun(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func overdue(dueDate *string, now time.Time) bool {
	if dueDate == nil {
		return false
	}
	due, ok := parseDate(*dueDate)
	if !ok {
		return false
	}
	// A due date covers its whole calendar day.
	return !due.AddDate(0, 0, 1).After(now)
}

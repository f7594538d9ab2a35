package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratline/internal/domain"
)

var healthNow = time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC)

func healthyInput() HealthInput {
	recent := healthNow.AddDate(0, 0, -2).Format(time.RFC3339)
	return HealthInput{
		Narratives: []domain.Narrative{
			{ID: "n1", Status: domain.NarrativeActive, UpdatedAt: recent},
		},
		Commitments: []domain.Commitment{
			{ID: "cm1", NarrativeID: "n1", Status: domain.CommitmentActive, UpdatedAt: recent},
		},
		Tasks: []domain.Task{
			{ID: "t1", CommitmentID: "cm1", Status: domain.TaskDone},
			{ID: "t2", CommitmentID: "cm1", Status: domain.TaskInProgress},
		},
		Now: healthNow,
	}
}

func TestScoreHealthAllClear(t *testing.T) {
	h := ScoreHealth(healthyInput())
	assert.Equal(t, 100, h.Score)
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Empty(t, h.Issues)
	assert.Equal(t, 1, h.Stats.ActiveNarratives)
	assert.Equal(t, 1, h.Stats.OnTrackCommitments)
	assert.Equal(t, 1, h.Stats.CompletedTasks)
	assert.InDelta(t, 0.5, h.Stats.TaskCompletion, 0.001)
}

func TestScoreHealthEmptyCollections(t *testing.T) {
	h := ScoreHealth(HealthInput{Now: healthNow})
	assert.Equal(t, 100, h.Score)
	assert.Equal(t, HealthHealthy, h.Status)
	assert.Empty(t, h.Issues)
	assert.Zero(t, h.Stats.TaskCompletion)
}

func TestScoreHealthPenalties(t *testing.T) {
	in := healthyInput()
	in.Narratives[0].Status = domain.NarrativeAtRisk
	in.Commitments = append(in.Commitments, domain.Commitment{
		ID: "cm2", NarrativeID: "n1", Status: domain.CommitmentAtRisk,
		UpdatedAt: in.Narratives[0].UpdatedAt,
	})
	in.Tasks = append(in.Tasks, domain.Task{ID: "t3", CommitmentID: "cm2", Status: domain.TaskBlocked})

	h := ScoreHealth(in)
	// 100 - 10 (at-risk narrative) - 5 (at-risk commitment)
	// - 5 (cm2 blocked via its blocked task) - 2 (blocked task)
	assert.Equal(t, 78, h.Score)
	assert.Equal(t, HealthNeedsAttention, h.Status)
	assert.Equal(t, 1, h.Stats.AtRiskNarratives)
	assert.Equal(t, 1, h.Stats.AtRiskCommitments)
	assert.Equal(t, 1, h.Stats.BlockedCommitments)
	assert.Equal(t, 1, h.Stats.BlockedTasks)

	require.NotEmpty(t, h.Issues)
	assert.Equal(t, "1 narrative is at risk", h.Issues[0])
}

func TestScoreHealthStatusBuckets(t *testing.T) {
	in := healthyInput()
	for i := 0; i < 3; i++ {
		in.Narratives = append(in.Narratives, domain.Narrative{Status: domain.NarrativeAtRisk})
	}
	h := ScoreHealth(in)
	assert.Equal(t, 70, h.Score)
	assert.Equal(t, HealthNeedsAttention, h.Status)

	for i := 0; i < 2; i++ {
		in.Narratives = append(in.Narratives, domain.Narrative{Status: domain.NarrativeAtRisk})
	}
	h = ScoreHealth(in)
	assert.Equal(t, 50, h.Score)
	assert.Equal(t, HealthAtRisk, h.Status)
}

func TestScoreHealthNeverNegative(t *testing.T) {
	in := HealthInput{Now: healthNow}
	for i := 0; i < 50; i++ {
		in.Narratives = append(in.Narratives, domain.Narrative{Status: domain.NarrativeAtRisk})
	}
	h := ScoreHealth(in)
	assert.Equal(t, 0, h.Score)
	assert.Equal(t, HealthAtRisk, h.Status)
}

func TestScoreHealthMonotoneUnderWorseStatus(t *testing.T) {
	in := healthyInput()
	base := ScoreHealth(in).Score
	in.Tasks[1].Status = domain.TaskBlocked
	assert.LessOrEqual(t, ScoreHealth(in).Score, base)
}

func TestScoreHealthOverdueAndOrphanTasks(t *testing.T) {
	in := healthyInput()
	past := healthNow.AddDate(0, 0, -3).Format("2006-01-02")
	in.Tasks = append(in.Tasks,
		domain.Task{ID: "t3", CommitmentID: "cm1", Status: domain.TaskTodo, DueDate: &past},
		domain.Task{ID: "t4", CommitmentID: "nowhere", Status: domain.TaskTodo},
	)
	h := ScoreHealth(in)
	assert.Equal(t, 1, h.Stats.OverdueTasks)
	assert.Equal(t, 1, h.Stats.OrphanTasks)
	assert.Contains(t, h.Issues, "1 task is overdue")
	assert.Contains(t, h.Issues, "1 task references a commitment that no longer exists")
	// Overdue and orphaned work is reported, not scored.
	assert.Equal(t, 100, h.Score)
}

func TestScoreHealthDoneTasksNeverOverdue(t *testing.T) {
	in := healthyInput()
	past := healthNow.AddDate(0, 0, -3).Format("2006-01-02")
	in.Tasks[0].DueDate = &past // t1 is done
	h := ScoreHealth(in)
	assert.Zero(t, h.Stats.OverdueTasks)
}

func TestScoreHealthStaleNarratives(t *testing.T) {
	in := healthyInput()
	in.Narratives[0].UpdatedAt = healthNow.AddDate(0, 0, -45).Format(time.RFC3339)
	h := ScoreHealth(in)
	assert.Equal(t, 1, h.Stats.StaleNarratives)
	assert.Contains(t, h.Issues, "1 narrative has not been updated in over 30 days")

	// Completed narratives are never stale.
	in.Narratives[0].Status = domain.NarrativeCompleted
	h = ScoreHealth(in)
	assert.Zero(t, h.Stats.StaleNarratives)
}

func TestScoreHealthCustomStaleWindow(t *testing.T) {
	in := healthyInput()
	in.StaleAfter = 24 * time.Hour
	h := ScoreHealth(in)
	assert.Equal(t, 1, h.Stats.StaleNarratives)
	assert.Contains(t, h.Issues, "1 narrative has not been updated in over 1 day")
}

func TestScoreHealthIdempotent(t *testing.T) {
	in := healthyInput()
	assert.Equal(t, ScoreHealth(in), ScoreHealth(in))
}

package engine

import (
	"context"
	"fmt"
	"time"

	"stratline/internal/domain"
	"stratline/internal/scoring"
)

// AlignmentReport pairs the finding list with its reduced score.
type AlignmentReport struct {
	Score int           `json:"score"`
	Gaps  []scoring.Gap `json:"gaps"`
}

// CycleProgress is a cycle plus its time-window position as of now.
type CycleProgress struct {
	Cycle    domain.Cycle           `json:"cycle"`
	Progress scoring.WindowProgress `json:"progress"`
}

type workspaceData struct {
	Workspace   domain.Workspace
	Years       []domain.Year
	Cycles      []domain.Cycle
	Teams       []domain.Team
	Pillars     []domain.StrategicPillar
	Narratives  []domain.Narrative
	Commitments []domain.Commitment
	Tasks       []domain.Task
}

// loadWorkspace pulls every collection the scorers consume, each in the
// repo's deterministic order.
func (e Engine) loadWorkspace(ctx context.Context, workspaceID string) (workspaceData, error) {
	var d workspaceData
	var err error
	if d.Workspace, err = e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return d, err
	}
	if d.Years, err = e.Repo.ListYears(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list years: %w", err)
	}
	if d.Cycles, err = e.Repo.ListCycles(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list cycles: %w", err)
	}
	if d.Teams, err = e.Repo.ListTeams(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list teams: %w", err)
	}
	if d.Pillars, err = e.Repo.ListPillars(ctx, workspaceID, false); err != nil {
		return d, fmt.Errorf("list pillars: %w", err)
	}
	if d.Narratives, err = e.Repo.ListNarratives(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list narratives: %w", err)
	}
	if d.Commitments, err = e.Repo.ListCommitments(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list commitments: %w", err)
	}
	if d.Tasks, err = e.Repo.ListTasks(ctx, workspaceID); err != nil {
		return d, fmt.Errorf("list tasks: %w", err)
	}
	return d, nil
}

// Alignment reports structural-completeness gaps and the 0-100 score.
func (e Engine) Alignment(ctx context.Context, workspaceID string) (AlignmentReport, error) {
	d, err := e.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return AlignmentReport{}, err
	}
	gaps := scoring.DetectGaps(scoring.GapInput{
		Pillars:     d.Pillars,
		Teams:       d.Teams,
		Cycles:      d.Cycles,
		Narratives:  d.Narratives,
		Commitments: d.Commitments,
		Tasks:       d.Tasks,
	})
	return AlignmentReport{Score: scoring.AlignmentScore(gaps), Gaps: gaps}, nil
}

// Health reports execution health as of now, honoring the configured
// staleness threshold.
func (e Engine) Health(ctx context.Context, workspaceID string) (scoring.Health, error) {
	d, err := e.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return scoring.Health{}, err
	}
	var staleAfter time.Duration
	if e.Config != nil && e.Config.Scoring.StaleAfterDays > 0 {
		staleAfter = time.Duration(e.Config.Scoring.StaleAfterDays) * 24 * time.Hour
	}
	return scoring.ScoreHealth(scoring.HealthInput{
		Narratives:  d.Narratives,
		Commitments: d.Commitments,
		Tasks:       d.Tasks,
		Now:         e.now(),
		StaleAfter:  staleAfter,
	}), nil
}

// Tree assembles the nested workspace hierarchy with rolled-up counts.
func (e Engine) Tree(ctx context.Context, workspaceID string) (scoring.Tree, error) {
	d, err := e.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return scoring.Tree{}, err
	}
	return scoring.BuildTree(scoring.TreeInput{
		Years:       d.Years,
		Cycles:      d.Cycles,
		Teams:       d.Teams,
		Narratives:  d.Narratives,
		Commitments: d.Commitments,
		Tasks:       d.Tasks,
	}), nil
}

// CycleDefaults proposes the next cycle from the workspace planning rhythm
// and the cycles that already exist.
func (e Engine) CycleDefaults(ctx context.Context, workspaceID string) (scoring.CycleDefaults, error) {
	w, err := e.Repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return scoring.CycleDefaults{}, err
	}
	existing, err := e.Repo.ListCycles(ctx, workspaceID)
	if err != nil {
		return scoring.CycleDefaults{}, fmt.Errorf("list cycles: %w", err)
	}
	lengthWeeks := 0
	if w.CycleLengthWeeks != nil {
		lengthWeeks = *w.CycleLengthWeeks
	}
	if lengthWeeks <= 0 && e.Config != nil {
		lengthWeeks = e.Config.Planning.CycleLengthWeeks
	}
	return scoring.SuggestCycle(w.PlanningRhythm, lengthWeeks, existing, e.now()), nil
}

// Progress places one cycle inside its time window as of now.
func (e Engine) Progress(ctx context.Context, cycleID string) (CycleProgress, error) {
	c, err := e.Repo.GetCycle(ctx, cycleID)
	if err != nil {
		return CycleProgress{}, err
	}
	return CycleProgress{
		Cycle:    c,
		Progress: scoring.CycleWindow(c.StartDate, c.EndDate, e.now()),
	}, nil
}

// Log returns the most recent events for a workspace, newest first.
func (e Engine) Log(ctx context.Context, workspaceID string, limit int) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, workspaceID, limit)
}

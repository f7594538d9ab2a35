package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"stratline/internal/config"
	"stratline/internal/db"
	"stratline/internal/domain"
	"stratline/internal/engine"
	"stratline/internal/migrate"
	"stratline/internal/repo"
	"stratline/internal/scoring"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Year   domain.Year
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("ws-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2025, 5, 15, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitWorkspace(ctx, "ws-1", "Test Workspace", domain.RhythmQuarters, nil, "tester"); err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	y, err := eng.CreateYear(ctx, "ws-1", 2025, "tester")
	if err != nil {
		t.Fatalf("create year: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Year: y}
}

func (env testEnv) createCycle(t *testing.T, name, start, end string, status domain.CycleStatus) domain.Cycle {
	t.Helper()
	c, err := env.Engine.CreateCycle(env.Ctx, engine.CycleCreateOptions{
		WorkspaceID: "ws-1",
		YearID:      env.Year.ID,
		Name:        name,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	return c
}

func TestCycleStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCycle(t, "Q2 2025", "2025-04-01", "2025-06-30", "")
	if c.Status != domain.CyclePlanning {
		t.Fatalf("expected planning default, got %s", c.Status)
	}
	c, err := env.Engine.SetCycleStatus(env.Ctx, c.ID, domain.CycleActive, "tester")
	if err != nil || c.Status != domain.CycleActive {
		t.Fatalf("to active: %v", err)
	}
	c, err = env.Engine.SetCycleStatus(env.Ctx, c.ID, domain.CycleReview, "tester")
	if err != nil || c.Status != domain.CycleReview {
		t.Fatalf("to review: %v", err)
	}
	// review cannot jump back to planning
	if _, err := env.Engine.SetCycleStatus(env.Ctx, c.ID, domain.CyclePlanning, "tester"); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestCycleDateValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateCycle(env.Ctx, engine.CycleCreateOptions{
		WorkspaceID: "ws-1",
		YearID:      env.Year.ID,
		Name:        "Backwards",
		StartDate:   "2025-06-30",
		EndDate:     "2025-04-01",
		ActorID:     "tester",
	})
	if err == nil {
		t.Fatalf("expected start/end order error")
	}
	_, err = env.Engine.CreateCycle(env.Ctx, engine.CycleCreateOptions{
		WorkspaceID: "ws-1",
		YearID:      env.Year.ID,
		Name:        "Malformed",
		StartDate:   "April 1st",
		EndDate:     "2025-06-30",
		ActorID:     "tester",
	})
	if err == nil {
		t.Fatalf("expected date format error")
	}
}

func TestCommitmentDenormalizesFromNarrative(t *testing.T) {
	env := newTestEnv(t)
	team, err := env.Engine.CreateTeam(env.Ctx, "ws-1", "Platform", "tester")
	if err != nil {
		t.Fatal(err)
	}
	n, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		TeamID:      team.ID,
		Title:       "Ship the platform",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := env.Engine.CreateCommitment(env.Ctx, engine.CommitmentCreateOptions{
		NarrativeID: n.ID,
		Title:       "First milestone",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.WorkspaceID != "ws-1" {
		t.Fatalf("expected workspace denormalized, got %q", c.WorkspaceID)
	}
	if c.TeamID == nil || *c.TeamID != team.ID {
		t.Fatalf("expected team denormalized")
	}
	if c.Status != domain.CommitmentDraft {
		t.Fatalf("expected draft default, got %s", c.Status)
	}
}

func TestNarrativeLinkValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		TeamID:      "no-such-team",
		Title:       "Bad link",
		ActorID:     "tester",
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// clearing a link via update sets it to null
	n, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		Title:       "Unlinked",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	team, _ := env.Engine.CreateTeam(env.Ctx, "ws-1", "Infra", "tester")
	n, err = env.Engine.UpdateNarrative(env.Ctx, engine.NarrativeUpdateOptions{ID: n.ID, SetTeam: &team.ID, ActorID: "tester"})
	if err != nil || n.TeamID == nil {
		t.Fatalf("set team: %v", err)
	}
	empty := ""
	n, err = env.Engine.UpdateNarrative(env.Ctx, engine.NarrativeUpdateOptions{ID: n.ID, SetTeam: &empty, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if n.TeamID != nil {
		t.Fatalf("expected team link cleared")
	}
}

func TestAlignmentReport(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.Alignment(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Score != 100 || len(rep.Gaps) != 0 {
		t.Fatalf("empty workspace should be fully aligned, got score=%d gaps=%d", rep.Score, len(rep.Gaps))
	}

	// a narrative with no commitments and no pillar yields warning+info
	if _, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		Title:       "Lonely narrative",
		ActorID:     "tester",
	}); err != nil {
		t.Fatal(err)
	}
	rep, err = env.Engine.Alignment(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Score != 93 {
		t.Fatalf("expected 93, got %d", rep.Score)
	}
	if len(rep.Gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(rep.Gaps))
	}
	if rep.Gaps[0].Type != scoring.GapNarrativeNoCommitments {
		t.Fatalf("unexpected first gap %s", rep.Gaps[0].Type)
	}
}

func TestHealthReport(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		Title:       "Execution",
		Status:      domain.NarrativeActive,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := env.Engine.CreateCommitment(env.Ctx, engine.CommitmentCreateOptions{
		NarrativeID: n.ID,
		Title:       "Milestone",
		Status:      domain.CommitmentActive,
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		CommitmentID: c.ID,
		Title:        "Blocked work",
		Status:       domain.TaskBlocked,
		ActorID:      "tester",
	}); err != nil {
		t.Fatal(err)
	}
	h, err := env.Engine.Health(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	// one blocked commitment (-5) and one blocked task (-2)
	if h.Score != 93 {
		t.Fatalf("expected 93, got %d", h.Score)
	}
	if h.Stats.BlockedCommitments != 1 || h.Stats.BlockedTasks != 1 {
		t.Fatalf("unexpected stats %+v", h.Stats)
	}
}

func TestTreeReport(t *testing.T) {
	env := newTestEnv(t)
	cycle := env.createCycle(t, "Q2 2025", "2025-04-01", "2025-06-30", domain.CycleActive)
	team, _ := env.Engine.CreateTeam(env.Ctx, "ws-1", "Core", "tester")
	n, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		TeamID:      team.ID,
		CycleID:     cycle.ID,
		Title:       "In tree",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		Title:       "Floating",
		ActorID:     "tester",
	}); err != nil {
		t.Fatal(err)
	}
	tree, err := env.Engine.Tree(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Years) != 1 || len(tree.Years[0].Cycles) != 1 {
		t.Fatalf("unexpected tree shape")
	}
	cn := tree.Years[0].Cycles[0]
	if len(cn.Teams) != 1 || cn.Teams[0].Narratives[0].ID != n.ID {
		t.Fatalf("narrative not placed under team")
	}
	if len(tree.Uncategorized) != 1 {
		t.Fatalf("expected one uncategorized narrative")
	}
}

func TestCycleDefaultsFollowRhythm(t *testing.T) {
	env := newTestEnv(t)
	// quarters rhythm, mid-May: Q2 is suggested first
	d, err := env.Engine.CycleDefaults(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Q2 2025" || d.StartDate != "2025-04-01" {
		t.Fatalf("unexpected suggestion %+v", d)
	}
	env.createCycle(t, "Q2 2025", "2025-04-01", "2025-06-30", "")
	d, err = env.Engine.CycleDefaults(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Q3 2025" {
		t.Fatalf("expected Q3 2025, got %q", d.Name)
	}

	weeks := 4
	if _, err := env.Engine.SetWorkspacePlanning(env.Ctx, "ws-1", domain.RhythmCycles, &weeks, "tester"); err != nil {
		t.Fatal(err)
	}
	d, err = env.Engine.CycleDefaults(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Cycle 2" {
		t.Fatalf("expected positional name, got %q", d.Name)
	}
	if d.StartDate != "2025-07-01" {
		t.Fatalf("expected chaining off Q2 end, got %s", d.StartDate)
	}
}

func TestProgressReport(t *testing.T) {
	env := newTestEnv(t)
	c := env.createCycle(t, "Q2 2025", "2025-04-01", "2025-06-30", domain.CycleActive)
	p, err := env.Engine.Progress(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Progress.InsideWindow {
		t.Fatalf("mid-May should be inside Q2")
	}
	if p.Progress.TotalWeeks != 13 {
		t.Fatalf("expected 13 weeks, got %d", p.Progress.TotalWeeks)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	n, err := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{
		WorkspaceID: "ws-1",
		Title:       "Evented",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateNarrative(env.Ctx, engine.NarrativeUpdateOptions{ID: n.ID, Status: domain.NarrativeActive, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteNarrative(env.Ctx, n.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE entity_id=?`, n.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 events, got %d", count)
	}
}

func TestCreateRollsBackWhenEventAppendFails(t *testing.T) {
	env := newTestEnv(t)
	// break the event log so the append inside the tx fails
	if _, err := env.Engine.DB.ExecContext(env.Ctx, `DROP TABLE events`); err != nil {
		t.Fatalf("drop events: %v", err)
	}
	if _, err := env.Engine.CreateTeam(env.Ctx, "ws-1", "Orphaned", "tester"); err == nil {
		t.Fatalf("expected event append error")
	}
	teams, err := env.Engine.Repo.ListTeams(env.Ctx, "ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 0 {
		t.Fatalf("expected team insert rolled back, got %d rows", len(teams))
	}
	if _, err := env.Engine.CreatePillar(env.Ctx, engine.PillarCreateOptions{
		WorkspaceID: "ws-1",
		YearID:      env.Year.ID,
		Name:        "Orphaned pillar",
		ActorID:     "tester",
	}); err == nil {
		t.Fatalf("expected event append error")
	}
	pillars, err := env.Engine.Repo.ListPillars(env.Ctx, "ws-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pillars) != 0 {
		t.Fatalf("expected pillar insert rolled back, got %d rows", len(pillars))
	}
}

func TestDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	n, _ := env.Engine.CreateNarrative(env.Ctx, engine.NarrativeCreateOptions{WorkspaceID: "ws-1", Title: "Parent", ActorID: "tester"})
	c, _ := env.Engine.CreateCommitment(env.Ctx, engine.CommitmentCreateOptions{NarrativeID: n.ID, Title: "Child", ActorID: "tester"})
	tk, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{CommitmentID: c.ID, Title: "Grandchild", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteNarrative(env.Ctx, n.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, tk.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected task cascade-deleted, got %v", err)
	}
}

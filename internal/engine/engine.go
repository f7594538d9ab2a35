package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stratline/internal/config"
	"stratline/internal/domain"
	"stratline/internal/events"
	"stratline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

const dateLayout = "2006-01-02"

func parseDateField(name, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date", name)
	}
	return t, nil
}

func newID() string {
	return uuid.New().String()
}

// --- workspaces ---

// InitWorkspace creates the root workspace with migrations already run.
func (e Engine) InitWorkspace(ctx context.Context, workspaceID, name string, rhythm domain.PlanningRhythm, cycleLengthWeeks *int, actorID string) (domain.Workspace, error) {
	if workspaceID == "" {
		return domain.Workspace{}, errors.New("workspace id is required")
	}
	if name == "" {
		name = workspaceID
	}
	if rhythm == "" {
		rhythm = domain.RhythmQuarters
	}
	if !domain.ValidRhythm(rhythm) {
		return domain.Workspace{}, fmt.Errorf("unknown planning rhythm %q", rhythm)
	}
	if rhythm == domain.RhythmCycles && (cycleLengthWeeks == nil || *cycleLengthWeeks <= 0) {
		return domain.Workspace{}, errors.New("cycle length in weeks is required for the cycles rhythm")
	}
	w := domain.Workspace{
		ID:               workspaceID,
		Name:             name,
		PlanningRhythm:   rhythm,
		CycleLengthWeeks: cycleLengthWeeks,
		CreatedAt:        e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workspace{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertWorkspace(ctx, tx, w); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "workspace.init", w.ID, "workspace", w.ID, actorID, events.EventPayload{"rhythm": string(w.PlanningRhythm)}); err != nil {
		return domain.Workspace{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Workspace{}, err
	}
	return w, nil
}

// SetWorkspacePlanning changes the rhythm used by cycle suggestions. Existing
// cycles are untouched.
func (e Engine) SetWorkspacePlanning(ctx context.Context, workspaceID string, rhythm domain.PlanningRhythm, cycleLengthWeeks *int, actorID string) (domain.Workspace, error) {
	w, err := e.Repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return w, err
	}
	if !domain.ValidRhythm(rhythm) {
		return w, fmt.Errorf("unknown planning rhythm %q", rhythm)
	}
	if rhythm == domain.RhythmCycles && (cycleLengthWeeks == nil || *cycleLengthWeeks <= 0) {
		return w, errors.New("cycle length in weeks is required for the cycles rhythm")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateWorkspacePlanning(ctx, tx, workspaceID, rhythm, cycleLengthWeeks); err != nil {
		return w, err
	}
	if err := e.Events.Append(ctx, tx, "workspace.planning.updated", workspaceID, "workspace", workspaceID, actorID, events.EventPayload{
		"from_rhythm": string(w.PlanningRhythm),
		"to_rhythm":   string(rhythm),
	}); err != nil {
		return w, err
	}
	if err := tx.Commit(); err != nil {
		return w, err
	}
	w.PlanningRhythm = rhythm
	w.CycleLengthWeeks = cycleLengthWeeks
	return w, nil
}

// --- years ---

func (e Engine) CreateYear(ctx context.Context, workspaceID string, year int, actorID string) (domain.Year, error) {
	if year < 2000 || year > 2200 {
		return domain.Year{}, fmt.Errorf("implausible year %d", year)
	}
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return domain.Year{}, err
	}
	if _, err := e.Repo.GetYearByNumber(ctx, workspaceID, year); err == nil {
		return domain.Year{}, fmt.Errorf("year %d already exists", year)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Year{}, err
	}
	y := domain.Year{
		ID:          newID(),
		WorkspaceID: workspaceID,
		Year:        year,
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return y, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertYear(ctx, tx, y); err != nil {
		return y, fmt.Errorf("insert year: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "year.created", workspaceID, "year", y.ID, actorID, events.EventPayload{"year": year}); err != nil {
		return y, err
	}
	if err := tx.Commit(); err != nil {
		return y, err
	}
	return y, nil
}

// EnsureYear returns the year row for a calendar year, creating it on demand.
func (e Engine) EnsureYear(ctx context.Context, workspaceID string, year int, actorID string) (domain.Year, error) {
	y, err := e.Repo.GetYearByNumber(ctx, workspaceID, year)
	if err == nil {
		return y, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return y, err
	}
	return e.CreateYear(ctx, workspaceID, year, actorID)
}

// --- cycles ---

type CycleCreateOptions struct {
	ID          string
	WorkspaceID string
	YearID      string
	Name        string
	StartDate   string
	EndDate     string
	Status      domain.CycleStatus
	ActorID     string
}

func (e Engine) CreateCycle(ctx context.Context, opts CycleCreateOptions) (domain.Cycle, error) {
	if opts.Name == "" {
		return domain.Cycle{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Cycle{}, err
	}
	y, err := e.Repo.GetYear(ctx, opts.YearID)
	if err != nil {
		return domain.Cycle{}, err
	}
	if y.WorkspaceID != opts.WorkspaceID {
		return domain.Cycle{}, fmt.Errorf("year %s not in workspace %s", opts.YearID, opts.WorkspaceID)
	}
	start, err := parseDateField("start_date", opts.StartDate)
	if err != nil {
		return domain.Cycle{}, err
	}
	end, err := parseDateField("end_date", opts.EndDate)
	if err != nil {
		return domain.Cycle{}, err
	}
	if !start.Before(end) {
		return domain.Cycle{}, errors.New("start_date must be before end_date")
	}
	if opts.Status == "" {
		opts.Status = domain.CyclePlanning
	}
	if !domain.ValidCycleStatus(opts.Status) {
		return domain.Cycle{}, fmt.Errorf("unknown cycle status %q", opts.Status)
	}
	id := opts.ID
	if id == "" {
		id = newID()
	}
	c := domain.Cycle{
		ID:          id,
		WorkspaceID: opts.WorkspaceID,
		YearID:      opts.YearID,
		Name:        opts.Name,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Status:      opts.Status,
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCycle(ctx, tx, c); err != nil {
		return c, fmt.Errorf("insert cycle: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "cycle.created", c.WorkspaceID, "cycle", c.ID, opts.ActorID, events.EventPayload{
		"name":       c.Name,
		"start_date": c.StartDate,
		"end_date":   c.EndDate,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func ensureCycleTransition(oldStatus, newStatus domain.CycleStatus) error {
	switch oldStatus {
	case domain.CyclePlanning:
		if newStatus == domain.CycleActive || newStatus == domain.CycleArchived {
			return nil
		}
	case domain.CycleActive:
		if newStatus == domain.CycleReview || newStatus == domain.CycleArchived {
			return nil
		}
	case domain.CycleReview:
		if newStatus == domain.CycleArchived || newStatus == domain.CycleActive {
			return nil
		}
	}
	return fmt.Errorf("invalid cycle status transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetCycleStatus(ctx context.Context, cycleID string, status domain.CycleStatus, actorID string) (domain.Cycle, error) {
	c, err := e.Repo.GetCycle(ctx, cycleID)
	if err != nil {
		return c, err
	}
	if !domain.ValidCycleStatus(status) {
		return c, fmt.Errorf("unknown cycle status %q", status)
	}
	if status == c.Status {
		return c, nil
	}
	if err := ensureCycleTransition(c.Status, status); err != nil {
		return c, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCycleStatus(ctx, tx, cycleID, status); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "cycle.updated", c.WorkspaceID, "cycle", c.ID, actorID, events.EventPayload{
		"from_status": string(c.Status),
		"to_status":   string(status),
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	c.Status = status
	return c, nil
}

func (e Engine) DeleteCycle(ctx context.Context, cycleID, actorID string) error {
	c, err := e.Repo.GetCycle(ctx, cycleID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE id=?`, cycleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "cycle.deleted", c.WorkspaceID, "cycle", c.ID, actorID, events.EventPayload{"name": c.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- teams ---

func (e Engine) CreateTeam(ctx context.Context, workspaceID, name, actorID string) (domain.Team, error) {
	if name == "" {
		return domain.Team{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		return domain.Team{}, err
	}
	t := domain.Team{
		ID:          newID(),
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTeam(ctx, tx, t); err != nil {
		return t, fmt.Errorf("insert team: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "team.created", workspaceID, "team", t.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func (e Engine) DeleteTeam(ctx context.Context, teamID, actorID string) error {
	t, err := e.Repo.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id=?`, teamID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "team.deleted", t.WorkspaceID, "team", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- pillars and kpis ---

type PillarCreateOptions struct {
	WorkspaceID string
	YearID      string
	Name        string
	Description string
	ActorID     string
}

func (e Engine) CreatePillar(ctx context.Context, opts PillarCreateOptions) (domain.StrategicPillar, error) {
	if opts.Name == "" {
		return domain.StrategicPillar{}, errors.New("name is required")
	}
	y, err := e.Repo.GetYear(ctx, opts.YearID)
	if err != nil {
		return domain.StrategicPillar{}, err
	}
	if y.WorkspaceID != opts.WorkspaceID {
		return domain.StrategicPillar{}, fmt.Errorf("year %s not in workspace %s", opts.YearID, opts.WorkspaceID)
	}
	p := domain.StrategicPillar{
		ID:          newID(),
		WorkspaceID: opts.WorkspaceID,
		YearID:      opts.YearID,
		Name:        opts.Name,
		Description: opts.Description,
		Status:      domain.PillarActive,
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPillar(ctx, tx, p); err != nil {
		return p, fmt.Errorf("insert pillar: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "pillar.created", p.WorkspaceID, "pillar", p.ID, opts.ActorID, events.EventPayload{"name": p.Name}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// SetPillarStatus archives or reactivates a pillar. Archived pillars drop out
// of gap detection but keep their narrative links.
func (e Engine) SetPillarStatus(ctx context.Context, pillarID string, status domain.PillarStatus, actorID string) (domain.StrategicPillar, error) {
	p, err := e.Repo.GetPillar(ctx, pillarID)
	if err != nil {
		return p, err
	}
	if !domain.ValidPillarStatus(status) {
		return p, fmt.Errorf("unknown pillar status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdatePillarStatus(ctx, tx, pillarID, status); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "pillar.updated", p.WorkspaceID, "pillar", p.ID, actorID, events.EventPayload{
		"from_status": string(p.Status),
		"to_status":   string(status),
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	p.Status = status
	return p, nil
}

func (e Engine) CreateKPI(ctx context.Context, pillarID, name string, target float64, unit, actorID string) (domain.KPI, error) {
	if name == "" {
		return domain.KPI{}, errors.New("name is required")
	}
	p, err := e.Repo.GetPillar(ctx, pillarID)
	if err != nil {
		return domain.KPI{}, err
	}
	k := domain.KPI{
		ID:        newID(),
		PillarID:  pillarID,
		Name:      name,
		Target:    target,
		Unit:      unit,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return k, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertKPI(ctx, tx, k); err != nil {
		return k, fmt.Errorf("insert kpi: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "kpi.created", p.WorkspaceID, "kpi", k.ID, actorID, events.EventPayload{"name": name, "target": target}); err != nil {
		return k, err
	}
	if err := tx.Commit(); err != nil {
		return k, err
	}
	return k, nil
}

// --- narratives ---

type NarrativeCreateOptions struct {
	ID          string
	WorkspaceID string
	TeamID      string
	CycleID     string
	PillarID    string
	Title       string
	Description string
	Status      domain.NarrativeStatus
	ActorID     string
}

func (e Engine) CreateNarrative(ctx context.Context, opts NarrativeCreateOptions) (domain.Narrative, error) {
	if opts.Title == "" {
		return domain.Narrative{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Narrative{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.NarrativeDraft
	}
	if !domain.ValidNarrativeStatus(opts.Status) {
		return domain.Narrative{}, fmt.Errorf("unknown narrative status %q", opts.Status)
	}
	if err := e.checkNarrativeLinks(ctx, opts.WorkspaceID, opts.TeamID, opts.CycleID, opts.PillarID); err != nil {
		return domain.Narrative{}, err
	}
	id := opts.ID
	if id == "" {
		id = newID()
	}
	now := e.nowRFC3339()
	n := domain.Narrative{
		ID:          id,
		WorkspaceID: opts.WorkspaceID,
		TeamID:      optionalString(opts.TeamID),
		CycleID:     optionalString(opts.CycleID),
		PillarID:    optionalString(opts.PillarID),
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return n, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertNarrative(ctx, tx, n); err != nil {
		return n, fmt.Errorf("insert narrative: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "narrative.created", n.WorkspaceID, "narrative", n.ID, opts.ActorID, events.EventPayload{"title": n.Title, "status": string(n.Status)}); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func (e Engine) checkNarrativeLinks(ctx context.Context, workspaceID, teamID, cycleID, pillarID string) error {
	if teamID != "" {
		t, err := e.Repo.GetTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("team %s: %w", teamID, err)
		}
		if t.WorkspaceID != workspaceID {
			return fmt.Errorf("team %s not in workspace %s", teamID, workspaceID)
		}
	}
	if cycleID != "" {
		c, err := e.Repo.GetCycle(ctx, cycleID)
		if err != nil {
			return fmt.Errorf("cycle %s: %w", cycleID, err)
		}
		if c.WorkspaceID != workspaceID {
			return fmt.Errorf("cycle %s not in workspace %s", cycleID, workspaceID)
		}
	}
	if pillarID != "" {
		p, err := e.Repo.GetPillar(ctx, pillarID)
		if err != nil {
			return fmt.Errorf("pillar %s: %w", pillarID, err)
		}
		if p.WorkspaceID != workspaceID {
			return fmt.Errorf("pillar %s not in workspace %s", pillarID, workspaceID)
		}
	}
	return nil
}

// NarrativeUpdateOptions encapsulates allowed updates. Nil pointer fields are
// left untouched; a pointer to "" clears the link.
type NarrativeUpdateOptions struct {
	ID          string
	Title       *string
	Description *string
	Status      domain.NarrativeStatus
	SetTeam     *string
	SetCycle    *string
	SetPillar   *string
	ActorID     string
}

func (e Engine) UpdateNarrative(ctx context.Context, opts NarrativeUpdateOptions) (domain.Narrative, error) {
	n, err := e.Repo.GetNarrative(ctx, opts.ID)
	if err != nil {
		return n, err
	}
	original := n
	if opts.Title != nil {
		if *opts.Title == "" {
			return n, errors.New("title cannot be empty")
		}
		n.Title = *opts.Title
	}
	if opts.Description != nil {
		n.Description = *opts.Description
	}
	if opts.Status != "" {
		if !domain.ValidNarrativeStatus(opts.Status) {
			return n, fmt.Errorf("unknown narrative status %q", opts.Status)
		}
		n.Status = opts.Status
	}
	applyLink := func(dst **string, v *string) {
		if v == nil {
			return
		}
		if *v == "" {
			*dst = nil
		} else {
			*dst = v
		}
	}
	applyLink(&n.TeamID, opts.SetTeam)
	applyLink(&n.CycleID, opts.SetCycle)
	applyLink(&n.PillarID, opts.SetPillar)
	if err := e.checkNarrativeLinks(ctx, n.WorkspaceID, deref(n.TeamID), deref(n.CycleID), deref(n.PillarID)); err != nil {
		return n, err
	}
	n.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return n, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateNarrative(ctx, tx, n); err != nil {
		return n, err
	}
	if err := e.Events.Append(ctx, tx, "narrative.updated", n.WorkspaceID, "narrative", n.ID, opts.ActorID, events.EventPayload{
		"from_status": string(original.Status),
		"to_status":   string(n.Status),
	}); err != nil {
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func (e Engine) DeleteNarrative(ctx context.Context, narrativeID, actorID string) error {
	n, err := e.Repo.GetNarrative(ctx, narrativeID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM narratives WHERE id=?`, narrativeID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "narrative.deleted", n.WorkspaceID, "narrative", n.ID, actorID, events.EventPayload{"title": n.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- commitments ---

type CommitmentCreateOptions struct {
	ID          string
	NarrativeID string
	Title       string
	Status      domain.CommitmentStatus
	DueDate     string
	ActorID     string
}

// CreateCommitment attaches a commitment to its narrative; workspace and team
// are denormalized from the narrative at creation time.
func (e Engine) CreateCommitment(ctx context.Context, opts CommitmentCreateOptions) (domain.Commitment, error) {
	if opts.Title == "" {
		return domain.Commitment{}, errors.New("title is required")
	}
	n, err := e.Repo.GetNarrative(ctx, opts.NarrativeID)
	if err != nil {
		return domain.Commitment{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.CommitmentDraft
	}
	if !domain.ValidCommitmentStatus(opts.Status) {
		return domain.Commitment{}, fmt.Errorf("unknown commitment status %q", opts.Status)
	}
	if opts.DueDate != "" {
		if _, err := parseDateField("due_date", opts.DueDate); err != nil {
			return domain.Commitment{}, err
		}
	}
	id := opts.ID
	if id == "" {
		id = newID()
	}
	now := e.nowRFC3339()
	c := domain.Commitment{
		ID:          id,
		NarrativeID: n.ID,
		WorkspaceID: n.WorkspaceID,
		TeamID:      n.TeamID,
		Title:       opts.Title,
		Status:      opts.Status,
		DueDate:     optionalString(opts.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCommitment(ctx, tx, c); err != nil {
		return c, fmt.Errorf("insert commitment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "commitment.created", c.WorkspaceID, "commitment", c.ID, opts.ActorID, events.EventPayload{"title": c.Title, "status": string(c.Status)}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

type CommitmentUpdateOptions struct {
	ID      string
	Title   *string
	Status  domain.CommitmentStatus
	DueDate *string
	ActorID string
}

func (e Engine) UpdateCommitment(ctx context.Context, opts CommitmentUpdateOptions) (domain.Commitment, error) {
	c, err := e.Repo.GetCommitment(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	original := c
	if opts.Title != nil {
		if *opts.Title == "" {
			return c, errors.New("title cannot be empty")
		}
		c.Title = *opts.Title
	}
	if opts.Status != "" {
		if !domain.ValidCommitmentStatus(opts.Status) {
			return c, fmt.Errorf("unknown commitment status %q", opts.Status)
		}
		c.Status = opts.Status
	}
	if opts.DueDate != nil {
		if *opts.DueDate == "" {
			c.DueDate = nil
		} else {
			if _, err := parseDateField("due_date", *opts.DueDate); err != nil {
				return c, err
			}
			c.DueDate = opts.DueDate
		}
	}
	c.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCommitment(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "commitment.updated", c.WorkspaceID, "commitment", c.ID, opts.ActorID, events.EventPayload{
		"from_status": string(original.Status),
		"to_status":   string(c.Status),
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func (e Engine) DeleteCommitment(ctx context.Context, commitmentID, actorID string) error {
	c, err := e.Repo.GetCommitment(ctx, commitmentID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM commitments WHERE id=?`, commitmentID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "commitment.deleted", c.WorkspaceID, "commitment", c.ID, actorID, events.EventPayload{"title": c.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- tasks ---

type TaskCreateOptions struct {
	ID           string
	CommitmentID string
	Title        string
	Status       domain.TaskStatus
	DueDate      string
	ActorID      string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	c, err := e.Repo.GetCommitment(ctx, opts.CommitmentID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.TaskTodo
	}
	if !domain.ValidTaskStatus(opts.Status) {
		return domain.Task{}, fmt.Errorf("unknown task status %q", opts.Status)
	}
	if opts.DueDate != "" {
		if _, err := parseDateField("due_date", opts.DueDate); err != nil {
			return domain.Task{}, err
		}
	}
	id := opts.ID
	if id == "" {
		id = newID()
	}
	now := e.nowRFC3339()
	t := domain.Task{
		ID:           id,
		CommitmentID: c.ID,
		Title:        opts.Title,
		Status:       opts.Status,
		DueDate:      optionalString(opts.DueDate),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", c.WorkspaceID, "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "status": string(t.Status)}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

type TaskUpdateOptions struct {
	ID      string
	Title   *string
	Status  domain.TaskStatus
	DueDate *string
	ActorID string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	c, err := e.Repo.GetCommitment(ctx, t.CommitmentID)
	if err != nil {
		return t, err
	}
	original := t
	if opts.Title != nil {
		if *opts.Title == "" {
			return t, errors.New("title cannot be empty")
		}
		t.Title = *opts.Title
	}
	if opts.Status != "" {
		if !domain.ValidTaskStatus(opts.Status) {
			return t, fmt.Errorf("unknown task status %q", opts.Status)
		}
		t.Status = opts.Status
	}
	if opts.DueDate != nil {
		if *opts.DueDate == "" {
			t.DueDate = nil
		} else {
			if _, err := parseDateField("due_date", *opts.DueDate); err != nil {
				return t, err
			}
			t.DueDate = opts.DueDate
		}
	}
	t.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", c.WorkspaceID, "task", t.ID, opts.ActorID, events.EventPayload{
		"from_status": string(original.Status),
		"to_status":   string(t.Status),
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	c, err := e.Repo.GetCommitment(ctx, t.CommitmentID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", c.WorkspaceID, "task", t.ID, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package server

import (
	"encoding/json"

	"stratline/internal/domain"
)

// Request payloads

type CreateWorkspaceRequest struct {
	ID               string  `json:"id"`
	Name             *string `json:"name,omitempty"`
	PlanningRhythm   string  `json:"planning_rhythm,omitempty" enum:"quarters,cycles,custom"`
	CycleLengthWeeks *int    `json:"cycle_length_weeks,omitempty"`
}

type UpdateWorkspaceRequest struct {
	PlanningRhythm   string `json:"planning_rhythm" enum:"quarters,cycles,custom"`
	CycleLengthWeeks *int   `json:"cycle_length_weeks,omitempty"`
}

type CreateYearRequest struct {
	Year int `json:"year"`
}

type CreateCycleRequest struct {
	ID        *string `json:"id,omitempty"`
	YearID    string  `json:"year_id"`
	Name      string  `json:"name"`
	StartDate string  `json:"start_date" format:"date"`
	EndDate   string  `json:"end_date" format:"date"`
	Status    string  `json:"status,omitempty" enum:"planning,active,review,archived"`
}

type SetCycleStatusRequest struct {
	Status string `json:"status" enum:"planning,active,review,archived"`
}

type CreateTeamRequest struct {
	Name string `json:"name"`
}

type CreatePillarRequest struct {
	YearID      string  `json:"year_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type SetPillarStatusRequest struct {
	Status string `json:"status" enum:"active,archived"`
}

type CreateKPIRequest struct {
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Unit   *string `json:"unit,omitempty"`
}

type CreateNarrativeRequest struct {
	ID          *string `json:"id,omitempty"`
	TeamID      *string `json:"team_id,omitempty"`
	CycleID     *string `json:"cycle_id,omitempty"`
	PillarID    *string `json:"pillar_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty" enum:"draft,active,at_risk,completed,archived"`
}

type UpdateNarrativeRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty" enum:"draft,active,at_risk,completed,archived"`
	TeamID      *string `json:"team_id,omitempty"`
	CycleID     *string `json:"cycle_id,omitempty"`
	PillarID    *string `json:"pillar_id,omitempty"`
}

type CreateCommitmentRequest struct {
	ID      *string `json:"id,omitempty"`
	Title   string  `json:"title"`
	Status  string  `json:"status,omitempty" enum:"draft,active,at_risk,completed,archived"`
	DueDate *string `json:"due_date,omitempty" format:"date"`
}

type UpdateCommitmentRequest struct {
	Title   *string `json:"title,omitempty"`
	Status  *string `json:"status,omitempty" enum:"draft,active,at_risk,completed,archived"`
	DueDate *string `json:"due_date,omitempty"`
}

type CreateTaskRequest struct {
	ID      *string `json:"id,omitempty"`
	Title   string  `json:"title"`
	Status  string  `json:"status,omitempty" enum:"todo,in_progress,done,blocked"`
	DueDate *string `json:"due_date,omitempty" format:"date"`
}

type UpdateTaskRequest struct {
	Title   *string `json:"title,omitempty"`
	Status  *string `json:"status,omitempty" enum:"todo,in_progress,done,blocked"`
	DueDate *string `json:"due_date,omitempty"`
}

// Response payloads

type WorkspaceResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	PlanningRhythm   string `json:"planning_rhythm" enum:"quarters,cycles,custom"`
	CycleLengthWeeks *int   `json:"cycle_length_weeks,omitempty"`
	CreatedAt        string `json:"created_at" format:"date-time"`
}

type YearResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Year        int    `json:"year"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type CycleResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	YearID      string `json:"year_id"`
	Name        string `json:"name"`
	StartDate   string `json:"start_date" format:"date"`
	EndDate     string `json:"end_date" format:"date"`
	Status      string `json:"status" enum:"planning,active,review,archived"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type TeamResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type PillarResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	YearID      string `json:"year_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status" enum:"active,archived"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type KPIResponse struct {
	ID        string  `json:"id"`
	PillarID  string  `json:"pillar_id"`
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Unit      string  `json:"unit,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type NarrativeResponse struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspace_id"`
	TeamID      *string `json:"team_id,omitempty"`
	CycleID     *string `json:"cycle_id,omitempty"`
	PillarID    *string `json:"pillar_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status" enum:"draft,active,at_risk,completed,archived"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type CommitmentResponse struct {
	ID          string  `json:"id"`
	NarrativeID string  `json:"narrative_id"`
	WorkspaceID string  `json:"workspace_id"`
	TeamID      *string `json:"team_id,omitempty"`
	Title       string  `json:"title"`
	Status      string  `json:"status" enum:"draft,active,at_risk,completed,archived"`
	DueDate     *string `json:"due_date,omitempty" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type TaskResponse struct {
	ID           string  `json:"id"`
	CommitmentID string  `json:"commitment_id"`
	Title        string  `json:"title"`
	Status       string  `json:"status" enum:"todo,in_progress,done,blocked"`
	DueDate      *string `json:"due_date,omitempty" format:"date"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts" format:"date-time"`
	Type        string         `json:"type"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	EntityKind  string         `json:"entity_kind"`
	EntityID    string         `json:"entity_id,omitempty"`
	ActorID     string         `json:"actor_id"`
	Payload     map[string]any `json:"payload"`
}

// Conversion helpers

func workspaceResponse(w domain.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:               w.ID,
		Name:             w.Name,
		PlanningRhythm:   string(w.PlanningRhythm),
		CycleLengthWeeks: w.CycleLengthWeeks,
		CreatedAt:        w.CreatedAt,
	}
}

func yearResponse(y domain.Year) YearResponse {
	return YearResponse(y)
}

func cycleResponse(c domain.Cycle) CycleResponse {
	return CycleResponse{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		YearID:      c.YearID,
		Name:        c.Name,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

func teamResponse(t domain.Team) TeamResponse {
	return TeamResponse(t)
}

func pillarResponse(p domain.StrategicPillar) PillarResponse {
	return PillarResponse{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		YearID:      p.YearID,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
	}
}

func kpiResponse(k domain.KPI) KPIResponse {
	return KPIResponse(k)
}

func narrativeResponse(n domain.Narrative) NarrativeResponse {
	return NarrativeResponse{
		ID:          n.ID,
		WorkspaceID: n.WorkspaceID,
		TeamID:      n.TeamID,
		CycleID:     n.CycleID,
		PillarID:    n.PillarID,
		Title:       n.Title,
		Description: n.Description,
		Status:      string(n.Status),
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

func commitmentResponse(c domain.Commitment) CommitmentResponse {
	return CommitmentResponse{
		ID:          c.ID,
		NarrativeID: c.NarrativeID,
		WorkspaceID: c.WorkspaceID,
		TeamID:      c.TeamID,
		Title:       c.Title,
		Status:      string(c.Status),
		DueDate:     c.DueDate,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		CommitmentID: t.CommitmentID,
		Title:        t.Title,
		Status:       string(t.Status),
		DueDate:      t.DueDate,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		TS:          e.TS,
		Type:        e.Type,
		WorkspaceID: e.WorkspaceID,
		EntityKind:  e.EntityKind,
		EntityID:    e.EntityID,
		ActorID:     e.ActorID,
		Payload:     decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var tmp any
	if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
		return nil
	}
	if obj, ok := tmp.(map[string]any); ok {
		return obj
	}
	return nil
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package domain

// PlanningRhythm controls how a workspace slices the year into cycles.
type PlanningRhythm string

const (
	RhythmQuarters PlanningRhythm = "quarters"
	RhythmCycles   PlanningRhythm = "cycles"
	RhythmCustom   PlanningRhythm = "custom"
)

type CycleStatus string

const (
	CyclePlanning CycleStatus = "planning"
	CycleActive   CycleStatus = "active"
	CycleReview   CycleStatus = "review"
	CycleArchived CycleStatus = "archived"
)

type PillarStatus string

const (
	PillarActive   PillarStatus = "active"
	PillarArchived PillarStatus = "archived"
)

// NarrativeStatus and CommitmentStatus share the same value set but stay
// distinct types so one cannot be assigned where the other is expected.
type NarrativeStatus string

const (
	NarrativeDraft     NarrativeStatus = "draft"
	NarrativeActive    NarrativeStatus = "active"
	NarrativeAtRisk    NarrativeStatus = "at_risk"
	NarrativeCompleted NarrativeStatus = "completed"
	NarrativeArchived  NarrativeStatus = "archived"
)

type CommitmentStatus string

const (
	CommitmentDraft     CommitmentStatus = "draft"
	CommitmentActive    CommitmentStatus = "active"
	CommitmentAtRisk    CommitmentStatus = "at_risk"
	CommitmentCompleted CommitmentStatus = "completed"
	CommitmentArchived  CommitmentStatus = "archived"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

// Workspace is the root tenant boundary; every other entity references it.
type Workspace struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	PlanningRhythm   PlanningRhythm `json:"planning_rhythm" enum:"quarters,cycles,custom"`
	CycleLengthWeeks *int           `json:"cycle_length_weeks,omitempty"`
	CreatedAt        string         `json:"created_at" format:"date-time"`
}

type Year struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Year        int    `json:"year"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Cycle is a time-boxed planning period. StartDate and EndDate are date-only
// strings (YYYY-MM-DD); start < end is enforced on write but the scoring
// engine still tolerates violated rows defensively.
type Cycle struct {
	ID          string      `json:"id"`
	WorkspaceID string      `json:"workspace_id"`
	YearID      string      `json:"year_id"`
	Name        string      `json:"name"`
	StartDate   string      `json:"start_date" format:"date"`
	EndDate     string      `json:"end_date" format:"date"`
	Status      CycleStatus `json:"status" enum:"planning,active,review,archived"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
}

type Team struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type StrategicPillar struct {
	ID          string       `json:"id"`
	WorkspaceID string       `json:"workspace_id"`
	YearID      string       `json:"year_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      PillarStatus `json:"status" enum:"active,archived"`
	CreatedAt   string       `json:"created_at" format:"date-time"`
}

// KPI measures a pillar. KPIs never participate in scoring directly; only
// pillar linkage does.
type KPI struct {
	ID        string  `json:"id"`
	PillarID  string  `json:"pillar_id"`
	Name      string  `json:"name"`
	Target    float64 `json:"target"`
	Current   float64 `json:"current"`
	Unit      string  `json:"unit,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Narrative is a top-level strategic story. Team, cycle and pillar links are
// all nullable; "unlinked" is a meaningful state the gap detector reports on.
type Narrative struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	TeamID      *string         `json:"team_id,omitempty"`
	CycleID     *string         `json:"cycle_id,omitempty"`
	PillarID    *string         `json:"pillar_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      NarrativeStatus `json:"status" enum:"draft,active,at_risk,completed,archived"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
}

// Commitment belongs to exactly one narrative; workspace and team are
// denormalized from it.
type Commitment struct {
	ID          string           `json:"id"`
	NarrativeID string           `json:"narrative_id"`
	WorkspaceID string           `json:"workspace_id"`
	TeamID      *string          `json:"team_id,omitempty"`
	Title       string           `json:"title"`
	Status      CommitmentStatus `json:"status" enum:"draft,active,at_risk,completed,archived"`
	DueDate     *string          `json:"due_date,omitempty" format:"date"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	UpdatedAt   string           `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID           string     `json:"id"`
	CommitmentID string     `json:"commitment_id"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status" enum:"todo,in_progress,done,blocked"`
	DueDate      *string    `json:"due_date,omitempty" format:"date"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	UpdatedAt    string     `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	EntityKind  string `json:"entity_kind"`
	EntityID    string `json:"entity_id,omitempty"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
}

// ValidRhythm reports whether v is a known planning rhythm.
func ValidRhythm(v PlanningRhythm) bool {
	switch v {
	case RhythmQuarters, RhythmCycles, RhythmCustom:
		return true
	}
	return false
}

func ValidCycleStatus(v CycleStatus) bool {
	switch v {
	case CyclePlanning, CycleActive, CycleReview, CycleArchived:
		return true
	}
	return false
}

func ValidPillarStatus(v PillarStatus) bool {
	return v == PillarActive || v == PillarArchived
}

func ValidNarrativeStatus(v NarrativeStatus) bool {
	switch v {
	case NarrativeDraft, NarrativeActive, NarrativeAtRisk, NarrativeCompleted, NarrativeArchived:
		return true
	}
	return false
}

func ValidCommitmentStatus(v CommitmentStatus) bool {
	switch v {
	case CommitmentDraft, CommitmentActive, CommitmentAtRisk, CommitmentCompleted, CommitmentArchived:
		return true
	}
	return false
}

func ValidTaskStatus(v TaskStatus) bool {
	switch v {
	case TaskTodo, TaskInProgress, TaskDone, TaskBlocked:
		return true
	}
	return false
}

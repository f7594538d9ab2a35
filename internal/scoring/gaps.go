package scoring

import (
	"fmt"

	"stratline/internal/domain"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

type GapType string

const (
	GapPillarNoNarratives     GapType = "pillar_no_narratives"
	GapTeamNoNarratives       GapType = "team_no_narratives"
	GapNarrativeNoCommitments GapType = "narrative_no_commitments"
	GapCommitmentNoTasks      GapType = "commitment_no_tasks"
	GapNarrativeNoPillar      GapType = "narrative_no_pillar"
)

// GapAction points at the screen that remediates a gap. The engine passes it
// through verbatim; interpretation is the caller's business.
type GapAction struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type Gap struct {
	Severity Severity  `json:"severity" enum:"critical,warning,info"`
	Type     GapType   `json:"type" enum:"pillar_no_narratives,team_no_narratives,narrative_no_commitments,commitment_no_tasks,narrative_no_pillar"`
	Message  string    `json:"message"`
	Action   GapAction `json:"action"`
	EntityID string    `json:"entity_id"`
}

// GapInput carries the flat collections for one workspace. Archived pillars
// are ignored even if present.
type GapInput struct {
	Pillars     []domain.StrategicPillar
	Teams       []domain.Team
	Cycles      []domain.Cycle
	Narratives  []domain.Narrative
	Commitments []domain.Commitment
	Tasks       []domain.Task
}

// DetectGaps scans the strategy hierarchy for structural-completeness
// violations. Rules run in a fixed order and each walks entities in input
// order, so identical inputs always yield an identical finding list.
func DetectGaps(in GapInput) []Gap {
	gaps := []Gap{}

	narrativesByPillar := make(map[string]int)
	commitmentsByNarrative := make(map[string]int)
	tasksByCommitment := make(map[string]int)
	for _, n := range in.Narratives {
		if n.PillarID != nil {
			narrativesByPillar[*n.PillarID]++
		}
	}
	for _, c := range in.Commitments {
		commitmentsByNarrative[c.NarrativeID]++
	}
	for _, t := range in.Tasks {
		tasksByCommitment[t.CommitmentID]++
	}

	for _, p := range in.Pillars {
		if p.Status != domain.PillarActive {
			continue
		}
		if narrativesByPillar[p.ID] == 0 {
			gaps = append(gaps, Gap{
				Severity: SeverityCritical,
				Type:     GapPillarNoNarratives,
				Message:  fmt.Sprintf("Pillar %q has no narratives linked to it", p.Name),
				Action:   GapAction{Label: "Create narrative", Href: "/narratives/new?pillar_id=" + p.ID},
				EntityID: p.ID,
			})
		}
	}

	// Team coverage is only an expectation while a cycle is actually active;
	// with no active cycle this rule stays silent.
	activeCycles := make(map[string]bool)
	for _, c := range in.Cycles {
		if c.Status == domain.CycleActive {
			activeCycles[c.ID] = true
		}
	}
	if len(activeCycles) > 0 {
		covered := make(map[string]bool)
		for _, n := range in.Narratives {
			if n.TeamID != nil && n.CycleID != nil && activeCycles[*n.CycleID] {
				covered[*n.TeamID] = true
			}
		}
		for _, t := range in.Teams {
			if !covered[t.ID] {
				gaps = append(gaps, Gap{
					Severity: SeverityCritical,
					Type:     GapTeamNoNarratives,
					Message:  fmt.Sprintf("Team %q has no narratives in the active cycle", t.Name),
					Action:   GapAction{Label: "Create narrative", Href: "/narratives/new?team_id=" + t.ID},
					EntityID: t.ID,
				})
			}
		}
	}

	for _, n := range in.Narratives {
		if commitmentsByNarrative[n.ID] == 0 {
			gaps = append(gaps, Gap{
				Severity: SeverityWarning,
				Type:     GapNarrativeNoCommitments,
				Message:  fmt.Sprintf("Narrative %q has no commitments", n.Title),
				Action:   GapAction{Label: "Add commitment", Href: "/commitments/new?narrative_id=" + n.ID},
				EntityID: n.ID,
			})
		}
	}

	for _, c := range in.Commitments {
		if tasksByCommitment[c.ID] == 0 {
			gaps = append(gaps, Gap{
				Severity: SeverityWarning,
				Type:     GapCommitmentNoTasks,
				Message:  fmt.Sprintf("Commitment %q has no tasks", c.Title),
				Action:   GapAction{Label: "Add task", Href: "/tasks/new?commitment_id=" + c.ID},
				EntityID: c.ID,
			})
		}
	}

	for _, n := range in.Narratives {
		if n.PillarID == nil {
			gaps = append(gaps, Gap{
				Severity: SeverityInfo,
				Type:     GapNarrativeNoPillar,
				Message:  fmt.Sprintf("Narrative %q is not linked to a strategic pillar", n.Title),
				Action:   GapAction{Label: "Link pillar", Href: "/narratives/" + n.ID + "/edit"},
				EntityID: n.ID,
			})
		}
	}

	return gaps
}

// AlignmentScore reduces a finding list to a 0-100 completeness score. It is
// order-independent and never rises when findings are added.
func AlignmentScore(gaps []Gap) int {
	score := 100
	for _, g := range gaps {
		switch g.Severity {
		case SeverityCritical:
			score -= 10
		case SeverityWarning:
			score -= 5
		case SeverityInfo:
			score -= 2
		}
	}
	return clampInt(score, 0, 100)
}

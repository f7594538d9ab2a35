package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratline/internal/domain"
)

// alignedInput builds a workspace with no structural gaps: one active pillar
// linked to a narrative, one active cycle covering every team, every
// narrative with a commitment, every commitment with a task.
func alignedInput() GapInput {
	return GapInput{
		Pillars: []domain.StrategicPillar{{ID: "p1", Name: "Reliability", Status: domain.PillarActive}},
		Teams:   []domain.Team{{ID: "team-a", Name: "Platform"}},
		Cycles:  []domain.Cycle{{ID: "c1", Name: "Q2 2025", Status: domain.CycleActive}},
		Narratives: []domain.Narrative{{
			ID: "n1", Title: "Ship v2",
			TeamID: strptr("team-a"), CycleID: strptr("c1"), PillarID: strptr("p1"),
			Status: domain.NarrativeActive,
		}},
		Commitments: []domain.Commitment{{ID: "cm1", NarrativeID: "n1", Title: "Migrate API", Status: domain.CommitmentActive}},
		Tasks:       []domain.Task{{ID: "t1", CommitmentID: "cm1", Title: "a", Status: domain.TaskTodo}},
	}
}

func TestDetectGapsZeroGapCase(t *testing.T) {
	gaps := DetectGaps(alignedInput())
	assert.Empty(t, gaps)
	assert.Equal(t, 100, AlignmentScore(gaps))
}

func TestDetectGapsSingleCriticalPillar(t *testing.T) {
	in := alignedInput()
	in.Pillars = append(in.Pillars, domain.StrategicPillar{ID: "p2", Name: "Growth", Status: domain.PillarActive})
	gaps := DetectGaps(in)
	require.Len(t, gaps, 1)
	assert.Equal(t, SeverityCritical, gaps[0].Severity)
	assert.Equal(t, GapPillarNoNarratives, gaps[0].Type)
	assert.Equal(t, "p2", gaps[0].EntityID)
	assert.Contains(t, gaps[0].Message, "Growth")
	assert.Equal(t, 90, AlignmentScore(gaps))
}

func TestDetectGapsArchivedPillarIgnored(t *testing.T) {
	in := alignedInput()
	in.Pillars = append(in.Pillars, domain.StrategicPillar{ID: "p2", Name: "Old", Status: domain.PillarArchived})
	assert.Empty(t, DetectGaps(in))
}

func TestDetectGapsTeamRuleNeedsActiveCycle(t *testing.T) {
	in := alignedInput()
	in.Cycles[0].Status = domain.CyclePlanning
	in.Teams = append(in.Teams, domain.Team{ID: "team-b", Name: "Growth"})
	for _, g := range DetectGaps(in) {
		assert.NotEqual(t, GapTeamNoNarratives, g.Type)
	}
}

func TestDetectGapsTeamWithoutNarrativeInActiveCycle(t *testing.T) {
	in := alignedInput()
	in.Teams = append(in.Teams, domain.Team{ID: "team-b", Name: "Growth"})
	gaps := DetectGaps(in)
	require.Len(t, gaps, 1)
	assert.Equal(t, GapTeamNoNarratives, gaps[0].Type)
	assert.Equal(t, "team-b", gaps[0].EntityID)
}

func TestDetectGapsWarningAndInfoRules(t *testing.T) {
	in := alignedInput()
	in.Narratives = append(in.Narratives, domain.Narrative{
		ID: "n2", Title: "Bare", TeamID: strptr("team-a"), CycleID: strptr("c1"),
		Status: domain.NarrativeDraft,
	})
	in.Commitments = append(in.Commitments, domain.Commitment{ID: "cm2", NarrativeID: "n1", Title: "Empty", Status: domain.CommitmentDraft})
	gaps := DetectGaps(in)

	types := []GapType{}
	for _, g := range gaps {
		types = append(types, g.Type)
	}
	// Emission order is fixed: narrative_no_commitments before
	// commitment_no_tasks before narrative_no_pillar.
	assert.Equal(t, []GapType{GapNarrativeNoCommitments, GapCommitmentNoTasks, GapNarrativeNoPillar}, types)
	assert.Equal(t, 100-5-5-2, AlignmentScore(gaps))
}

func TestDetectGapsEmptyWorkspace(t *testing.T) {
	gaps := DetectGaps(GapInput{})
	assert.Empty(t, gaps)
	assert.Equal(t, 100, AlignmentScore(gaps))
}

func TestAlignmentScoreMonotoneAndClamped(t *testing.T) {
	gaps := []Gap{}
	prev := AlignmentScore(gaps)
	for i := 0; i < 20; i++ {
		for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
			gaps = append(gaps, Gap{Severity: sev})
			score := AlignmentScore(gaps)
			assert.LessOrEqual(t, score, prev)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, 100)
			prev = score
		}
	}
	assert.Equal(t, 0, prev)
}

func TestDetectGapsIdempotent(t *testing.T) {
	in := alignedInput()
	in.Teams = append(in.Teams, domain.Team{ID: "team-b", Name: "Growth"})
	assert.Equal(t, DetectGaps(in), DetectGaps(in))
}

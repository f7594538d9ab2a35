package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratline/internal/domain"
)

func strptr(s string) *string { return &s }

func fixtureTreeInput() TreeInput {
	return TreeInput{
		Years:  []domain.Year{{ID: "y1", WorkspaceID: "ws", Year: 2025}},
		Cycles: []domain.Cycle{{ID: "c1", WorkspaceID: "ws", YearID: "y1", Name: "Q2 2025", Status: domain.CycleActive}},
		Teams: []domain.Team{
			{ID: "team-a", WorkspaceID: "ws", Name: "Platform"},
			{ID: "team-b", WorkspaceID: "ws", Name: "Growth"},
		},
		Narratives: []domain.Narrative{
			{ID: "n1", WorkspaceID: "ws", TeamID: strptr("team-a"), CycleID: strptr("c1"), Title: "Ship v2", Status: domain.NarrativeActive},
			{ID: "n2", WorkspaceID: "ws", CycleID: strptr("c1"), Title: "Teamless", Status: domain.NarrativeActive},
			{ID: "n3", WorkspaceID: "ws", TeamID: strptr("team-b"), Title: "Cycleless", Status: domain.NarrativeDraft},
		},
		Commitments: []domain.Commitment{
			{ID: "cm1", NarrativeID: "n1", WorkspaceID: "ws", Title: "Migrate API", Status: domain.CommitmentActive},
			{ID: "cm2", NarrativeID: "n1", WorkspaceID: "ws", Title: "Cut latency", Status: domain.CommitmentActive},
			{ID: "cm3", NarrativeID: "ghost", WorkspaceID: "ws", Title: "Orphan", Status: domain.CommitmentActive},
		},
		Tasks: []domain.Task{
			{ID: "t1", CommitmentID: "cm1", Title: "a", Status: domain.TaskDone},
			{ID: "t2", CommitmentID: "cm1", Title: "b", Status: domain.TaskTodo},
			{ID: "t3", CommitmentID: "cm2", Title: "c", Status: domain.TaskDone},
			{ID: "t4", CommitmentID: "missing", Title: "orphan", Status: domain.TaskTodo},
		},
	}
}

func TestBuildTreeNestsAndCounts(t *testing.T) {
	tree := BuildTree(fixtureTreeInput())

	require.Len(t, tree.Years, 1)
	require.Len(t, tree.Years[0].Cycles, 1)
	cycle := tree.Years[0].Cycles[0]
	require.Len(t, cycle.Teams, 1)
	team := cycle.Teams[0]
	assert.Equal(t, "team-a", team.ID)
	require.Len(t, team.Narratives, 1)

	narrative := team.Narratives[0]
	assert.Equal(t, "n1", narrative.ID)
	assert.Equal(t, 2, narrative.CommitmentCount)
	assert.Equal(t, 3, narrative.TaskCount)
	assert.Equal(t, 2, narrative.DoneTasks)
	require.Len(t, narrative.Commitments, 2)
	assert.Equal(t, "cm1", narrative.Commitments[0].ID)
	assert.Equal(t, 2, narrative.Commitments[0].TaskCount)
	assert.Equal(t, 1, narrative.Commitments[0].DoneTasks)

	assert.Equal(t, 2, cycle.NarrativeCount)
	assert.Equal(t, 2, cycle.CommitmentCount)
	assert.Equal(t, 3, cycle.TaskCount)
	assert.Equal(t, 2, cycle.DoneTasks)
}

func TestBuildTreeUncategorizedPerLevel(t *testing.T) {
	tree := BuildTree(fixtureTreeInput())

	// n2 is in the cycle but has no team; n3 has a team but no cycle.
	cycle := tree.Years[0].Cycles[0]
	require.Len(t, cycle.Unassigned, 1)
	assert.Equal(t, "n2", cycle.Unassigned[0].ID)

	require.Len(t, tree.Uncategorized, 1)
	assert.Equal(t, "n3", tree.Uncategorized[0].ID)
}

func TestBuildTreeExcludesOrphansSilently(t *testing.T) {
	tree := BuildTree(fixtureTreeInput())
	for _, year := range tree.Years {
		for _, cycle := range year.Cycles {
			for _, team := range cycle.Teams {
				for _, n := range team.Narratives {
					for _, c := range n.Commitments {
						assert.NotEqual(t, "cm3", c.ID)
						for _, task := range c.Tasks {
							assert.NotEqual(t, "t4", task.ID)
						}
					}
				}
			}
		}
	}
}

func TestBuildTreeDanglingCycleLinkIsUncategorized(t *testing.T) {
	in := fixtureTreeInput()
	in.Narratives = append(in.Narratives, domain.Narrative{
		ID: "n4", WorkspaceID: "ws", CycleID: strptr("no-such-cycle"), Title: "Dangling",
	})
	tree := BuildTree(in)
	ids := []string{}
	for _, n := range tree.Uncategorized {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"n3", "n4"}, ids)
}

func TestBuildTreeDoesNotMutateInput(t *testing.T) {
	in := fixtureTreeInput()
	before := len(in.Narratives)
	_ = BuildTree(in)
	assert.Len(t, in.Narratives, before)
	assert.Equal(t, "n1", in.Narratives[0].ID)
}

func TestBuildTreeEmptyInput(t *testing.T) {
	tree := BuildTree(TreeInput{})
	assert.Empty(t, tree.Years)
	assert.Empty(t, tree.Uncategorized)
	assert.NotNil(t, tree.Years)
	assert.NotNil(t, tree.Uncategorized)
}

func TestBuildTreeIdempotent(t *testing.T) {
	in := fixtureTreeInput()
	assert.Equal(t, BuildTree(in), BuildTree(in))
}

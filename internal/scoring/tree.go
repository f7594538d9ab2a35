package scoring

import (
	"stratline/internal/domain"
)

// TreeInput carries the flat collections for one workspace. Slices are read
// but never mutated; output order follows input order.
type TreeInput struct {
	Years       []domain.Year
	Cycles      []domain.Cycle
	Teams       []domain.Team
	Narratives  []domain.Narrative
	Commitments []domain.Commitment
	Tasks       []domain.Task
}

type CommitmentNode struct {
	domain.Commitment
	Tasks     []domain.Task `json:"tasks"`
	TaskCount int           `json:"task_count"`
	DoneTasks int           `json:"done_tasks"`
}

type NarrativeNode struct {
	domain.Narrative
	Commitments     []CommitmentNode `json:"commitments"`
	CommitmentCount int              `json:"commitment_count"`
	TaskCount       int              `json:"task_count"`
	DoneTasks       int              `json:"done_tasks"`
}

type TeamNode struct {
	domain.Team
	Narratives      []NarrativeNode `json:"narratives"`
	NarrativeCount  int             `json:"narrative_count"`
	CommitmentCount int             `json:"commitment_count"`
	TaskCount       int             `json:"task_count"`
	DoneTasks       int             `json:"done_tasks"`
}

type CycleNode struct {
	domain.Cycle
	Teams []TeamNode `json:"teams"`
	// Unassigned holds narratives scheduled into this cycle without a team
	// (or with a team reference that resolves to no known team).
	Unassigned      []NarrativeNode `json:"unassigned"`
	NarrativeCount  int             `json:"narrative_count"`
	CommitmentCount int             `json:"commitment_count"`
	TaskCount       int             `json:"task_count"`
	DoneTasks       int             `json:"done_tasks"`
}

type YearNode struct {
	domain.Year
	Cycles []CycleNode `json:"cycles"`
}

// Tree is the nested workspace hierarchy plus the narratives that could not
// be placed under any cycle.
type Tree struct {
	Years []YearNode `json:"years"`
	// Uncategorized holds narratives with no cycle link (or a dangling one).
	// Team membership is judged separately per cycle, so a narrative can be
	// team-assigned here and still be uncategorized.
	Uncategorized []NarrativeNode `json:"uncategorized"`
}

// BuildTree joins the flat collections into the nested hierarchy with counts
// rolled up bottom-up. Commitments and tasks whose parent is absent from the
// input are silently excluded; the health scorer reports on those separately.
func BuildTree(in TreeInput) Tree {
	commitmentsByNarrative := make(map[string][]domain.Commitment, len(in.Narratives))
	for _, c := range in.Commitments {
		commitmentsByNarrative[c.NarrativeID] = append(commitmentsByNarrative[c.NarrativeID], c)
	}
	tasksByCommitment := make(map[string][]domain.Task, len(in.Commitments))
	for _, t := range in.Tasks {
		tasksByCommitment[t.CommitmentID] = append(tasksByCommitment[t.CommitmentID], t)
	}

	buildNarrative := func(n domain.Narrative) NarrativeNode {
		node := NarrativeNode{Narrative: n, Commitments: []CommitmentNode{}}
		for _, c := range commitmentsByNarrative[n.ID] {
			tasks := tasksByCommitment[c.ID]
			cn := CommitmentNode{Commitment: c, Tasks: tasks, TaskCount: len(tasks)}
			if cn.Tasks == nil {
				cn.Tasks = []domain.Task{}
			}
			for _, t := range tasks {
				if t.Status == domain.TaskDone {
					cn.DoneTasks++
				}
			}
			node.Commitments = append(node.Commitments, cn)
			node.TaskCount += cn.TaskCount
			node.DoneTasks += cn.DoneTasks
		}
		node.CommitmentCount = len(node.Commitments)
		return node
	}

	knownTeams := make(map[string]bool, len(in.Teams))
	for _, t := range in.Teams {
		knownTeams[t.ID] = true
	}

	// Cycles only join the tree when their year resolves; narratives pointing
	// at any other cycle id are uncategorized.
	cyclesByYear := make(map[string][]domain.Cycle, len(in.Years))
	placedCycles := make(map[string]bool, len(in.Cycles))
	knownYears := make(map[string]bool, len(in.Years))
	for _, y := range in.Years {
		knownYears[y.ID] = true
	}
	for _, c := range in.Cycles {
		if !knownYears[c.YearID] {
			continue
		}
		cyclesByYear[c.YearID] = append(cyclesByYear[c.YearID], c)
		placedCycles[c.ID] = true
	}

	narrativesByCycle := make(map[string][]domain.Narrative)
	tree := Tree{Years: []YearNode{}, Uncategorized: []NarrativeNode{}}
	for _, n := range in.Narratives {
		if n.CycleID != nil && placedCycles[*n.CycleID] {
			narrativesByCycle[*n.CycleID] = append(narrativesByCycle[*n.CycleID], n)
			continue
		}
		tree.Uncategorized = append(tree.Uncategorized, buildNarrative(n))
	}

	for _, y := range in.Years {
		yn := YearNode{Year: y, Cycles: []CycleNode{}}
		for _, c := range cyclesByYear[y.ID] {
			cn := CycleNode{Cycle: c, Teams: []TeamNode{}, Unassigned: []NarrativeNode{}}
			byTeam := make(map[string][]NarrativeNode)
			for _, n := range narrativesByCycle[c.ID] {
				node := buildNarrative(n)
				cn.NarrativeCount++
				cn.CommitmentCount += node.CommitmentCount
				cn.TaskCount += node.TaskCount
				cn.DoneTasks += node.DoneTasks
				if n.TeamID != nil && knownTeams[*n.TeamID] {
					byTeam[*n.TeamID] = append(byTeam[*n.TeamID], node)
				} else {
					cn.Unassigned = append(cn.Unassigned, node)
				}
			}
			for _, team := range in.Teams {
				narratives, ok := byTeam[team.ID]
				if !ok {
					continue
				}
				tn := TeamNode{Team: team, Narratives: narratives, NarrativeCount: len(narratives)}
				for _, node := range narratives {
					tn.CommitmentCount += node.CommitmentCount
					tn.TaskCount += node.TaskCount
					tn.DoneTasks += node.DoneTasks
				}
				cn.Teams = append(cn.Teams, tn)
			}
			yn.Cycles = append(yn.Cycles, cn)
		}
		tree.Years = append(tree.Years, yn)
	}
	return tree
}

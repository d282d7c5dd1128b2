package graph

import "sort"

// TreeNode is one entry of the presentation hierarchy.
type TreeNode struct {
	ID                    string      `json:"id"`
	Label                 string      `json:"label"`
	Status                Status      `json:"status"`
	Graph                 string      `json:"graph"`
	PercentageOfParent    float64     `json:"percentage_of_parent"`
	TruePercentageOfTotal *float64    `json:"true_percentage_of_total,omitempty"`
	ScheduledStart        *string     `json:"scheduled_start,omitempty"`
	Children              []*TreeNode `json:"children"`
}

// BuildHierarchy nests the nodes of a (possibly partial) node map under
// their causal parents. A node whose parents are all outside the map is a
// root; a node with several parents inside the map appears under each of
// them. The result is a view: containment (graph) is not consulted.
func BuildHierarchy(nodes Nodes) []*TreeNode {
	order := creationOrder(nodes)

	children := map[string][]string{}
	var roots []string
	for _, id := range order {
		inSubset := false
		seen := map[string]bool{}
		for _, p := range nodes[id].Parents {
			if _, ok := nodes[p]; !ok || seen[p] {
				continue
			}
			seen[p] = true
			inSubset = true
			children[p] = append(children[p], id)
		}
		if !inSubset {
			roots = append(roots, id)
		}
	}

	b := hierarchyBuilder{nodes: nodes, children: children, onPath: map[string]bool{}}
	out := make([]*TreeNode, 0, len(roots))
	for _, id := range roots {
		out = append(out, b.build(id))
	}
	return out
}

type hierarchyBuilder struct {
	nodes    Nodes
	children map[string][]string
	onPath   map[string]bool
}

func (b *hierarchyBuilder) build(id string) *TreeNode {
	n := b.nodes[id]
	t := &TreeNode{
		ID:                    id,
		Label:                 n.Label,
		Status:                n.Status,
		Graph:                 n.Graph,
		PercentageOfParent:    n.PercentageOfParent,
		TruePercentageOfTotal: n.TruePercentageOfTotal,
		ScheduledStart:        n.ScheduledStart,
		Children:              []*TreeNode{},
	}
	b.onPath[id] = true
	for _, child := range b.children[id] {
		// A causal loop would nest forever; stop at the first repeat.
		if b.onPath[child] {
			continue
		}
		t.Children = append(t.Children, b.build(child))
	}
	delete(b.onPath, id)
	return t
}

// creationOrder sorts ids by createdAt, then id, so output is stable.
func creationOrder(nodes Nodes) []string {
	ids := nodes.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return nodes[ids[i]].CreatedAt < nodes[ids[j]].CreatedAt
	})
	return ids
}

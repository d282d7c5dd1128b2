package graph

import (
	"sort"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// CalculateTruePercentages sets TruePercentageOfTotal on every node.
//
// A node without parents contributes its own percentage_of_parent. A node
// with parents contributes, for each parent reference,
// percentage_of_parent/100 times the parent's true percentage. Parent ids
// missing from the map contribute 0. Each node is computed once per call
// regardless of fan-in; a cycle in the causal graph fails with CausalCycle.
func CalculateTruePercentages(nodes Nodes) error {
	c := percentCalc{
		nodes:  nodes,
		memo:   make(map[string]float64, len(nodes)),
		onPath: map[string]int{},
	}
	for _, id := range nodes.IDs() {
		if _, err := c.truePercentage(id); err != nil {
			return err
		}
	}
	for id, n := range nodes {
		v := c.memo[id]
		n.TruePercentageOfTotal = &v
	}
	return nil
}

type percentCalc struct {
	nodes  Nodes
	memo   map[string]float64
	onPath map[string]int
	path   []string
}

func (c *percentCalc) truePercentage(id string) (float64, error) {
	if v, ok := c.memo[id]; ok {
		return v, nil
	}
	n, ok := c.nodes[id]
	if !ok {
		return 0, nil
	}
	if idx, ok := c.onPath[id]; ok {
		cycle := append(append([]string(nil), c.path[idx:]...), id)
		return 0, faults.New(faults.CausalCycle, "causal parents of %q loop back to it", id).WithPath(cycle...)
	}

	if len(n.Parents) == 0 {
		c.memo[id] = n.PercentageOfParent
		return n.PercentageOfParent, nil
	}

	c.onPath[id] = len(c.path)
	c.path = append(c.path, id)
	defer func() {
		delete(c.onPath, id)
		c.path = c.path[:len(c.path)-1]
	}()

	var total float64
	for _, p := range n.Parents {
		pv, err := c.truePercentage(p)
		if err != nil {
			return 0, err
		}
		total += (n.PercentageOfParent / 100) * pv
	}
	c.memo[id] = total
	return total, nil
}

// FanOut maps each referenced parent id to the sorted ids of the nodes
// that list it in parents.
func FanOut(nodes Nodes) map[string][]string {
	out := map[string][]string{}
	for _, id := range nodes.IDs() {
		seen := map[string]bool{}
		for _, p := range nodes[id].Parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			out[p] = append(out[p], id)
		}
	}
	return out
}

// Squish gives every child of a parent that gained children an equal share
// (100/childCount) of that parent. Parents whose child count stayed the
// same or shrank are left alone, so removals never rebalance survivors.
// It returns the ids of the parents that were rebalanced, ascending.
func Squish(nodes Nodes, before map[string][]string) []string {
	after := FanOut(nodes)
	var grown []string
	for parent, children := range after {
		if len(children) > len(before[parent]) {
			grown = append(grown, parent)
		}
	}
	sort.Strings(grown)

	for _, parent := range grown {
		children := after[parent]
		share := 100 / float64(len(children))
		for _, child := range children {
			nodes[child].PercentageOfParent = share
		}
	}
	return grown
}

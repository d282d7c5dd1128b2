// Package graph implements the objective graph document engine.
//
// A document is a flat map of nodes. Each node belongs to exactly one
// container through its `graph` field (the containment graph, rooted at
// "main") and may list causal predecessors in `parents` (the causal graph,
// used for percentage propagation). The two relations are independent.
//
// Raw documents (decoded JSON, as produced by the patch engine or read
// from storage) enter through ParseDocument, which normalizes every node
// and rejects contract violations before any typed value is built.
package graph

import (
	"encoding/json"
	"sort"
)

const (
	// NodeType is the only node type a document may contain.
	NodeType = "objectiveNode"
	// MainGraph is the root container every containment chain ends at.
	MainGraph = "main"
)

// Status is a node's progress state.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// DefaultStatus is assigned to nodes without a status and to the legacy
// "pending" alias.
const DefaultStatus = StatusNotStarted

// Node is a validated objective node.
type Node struct {
	Type               string
	Label              string
	Status             Status
	Parents            []string
	Graph              string
	PercentageOfParent float64
	CreatedAt          string
	ScheduledStart     *string
	// TruePercentageOfTotal is derived; it is overwritten every time
	// percentages are recalculated.
	TruePercentageOfTotal *float64
	// Extra keeps fields the engine does not interpret (layout hints and
	// the like) so they survive a read-modify-write cycle.
	Extra map[string]any
}

// JSON field names.
const (
	fieldType           = "type"
	fieldLabel          = "label"
	fieldStatus         = "status"
	fieldParents        = "parents"
	fieldGraph          = "graph"
	fieldPercentage     = "percentage_of_parent"
	fieldCreatedAt      = "createdAt"
	fieldScheduledStart = "scheduled_start"
	fieldTruePercentage = "true_percentage_of_total"
)

var knownNodeFields = map[string]bool{
	fieldType: true, fieldLabel: true, fieldStatus: true, fieldParents: true,
	fieldGraph: true, fieldPercentage: true, fieldCreatedAt: true,
	fieldScheduledStart: true, fieldTruePercentage: true,
}

// MarshalJSON writes the node with its extra fields merged back in.
func (n *Node) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Extra)+9)
	for k, v := range n.Extra {
		m[k] = v
	}
	parents := n.Parents
	if parents == nil {
		parents = []string{}
	}
	m[fieldType] = n.Type
	m[fieldLabel] = n.Label
	m[fieldStatus] = n.Status
	m[fieldParents] = parents
	m[fieldGraph] = n.Graph
	m[fieldPercentage] = n.PercentageOfParent
	if n.CreatedAt != "" {
		m[fieldCreatedAt] = n.CreatedAt
	}
	if n.ScheduledStart != nil {
		m[fieldScheduledStart] = *n.ScheduledStart
	}
	if n.TruePercentageOfTotal != nil {
		m[fieldTruePercentage] = *n.TruePercentageOfTotal
	}
	return json.Marshal(m)
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Parents = append([]string(nil), n.Parents...)
	if n.ScheduledStart != nil {
		s := *n.ScheduledStart
		c.ScheduledStart = &s
	}
	if n.TruePercentageOfTotal != nil {
		v := *n.TruePercentageOfTotal
		c.TruePercentageOfTotal = &v
	}
	if n.Extra != nil {
		c.Extra = cloneValue(n.Extra).(map[string]any)
	}
	return &c
}

// Nodes is the id-keyed node map of a document.
type Nodes map[string]*Node

// IDs returns the node ids in ascending order.
func (ns Nodes) IDs() []string {
	ids := make([]string, 0, len(ns))
	for id := range ns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep-copies every node.
func (ns Nodes) Clone() Nodes {
	out := make(Nodes, len(ns))
	for id, n := range ns {
		out[id] = n.Clone()
	}
	return out
}

// cloneValue deep-copies a decoded JSON value.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

package graph

import (
	"strings"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// legacyStatuses maps retired status values onto current ones.
var legacyStatuses = map[string]Status{
	"pending": DefaultStatus,
}

var validStatuses = map[Status]bool{
	StatusNotStarted: true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// NormalizeNode enforces the node contract on a decoded node object and
// returns the typed node.
//
// validIDs is the set of node ids in the surrounding document. When it is
// nil the container reference is only checked for self-containment.
func NormalizeNode(id string, raw map[string]any, validIDs map[string]bool) (*Node, error) {
	n := &Node{Extra: map[string]any{}}
	for k, v := range raw {
		if !knownNodeFields[k] {
			n.Extra[k] = cloneValue(v)
		}
	}
	if len(n.Extra) == 0 {
		n.Extra = nil
	}

	typ, err := normalizeType(id, raw[fieldType])
	if err != nil {
		return nil, err
	}
	n.Type = typ

	status, err := normalizeStatus(id, raw[fieldStatus])
	if err != nil {
		return nil, err
	}
	n.Status = status

	parents, err := normalizeParents(id, raw[fieldParents])
	if err != nil {
		return nil, err
	}
	n.Parents = parents

	container, err := normalizeContainer(id, raw[fieldGraph], validIDs)
	if err != nil {
		return nil, err
	}
	n.Graph = container

	if v, ok := raw[fieldLabel]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, faults.New(faults.InvalidNode, "node %q: label must be a string", id)
		}
		n.Label = s
	}

	if v, ok := raw[fieldPercentage]; ok && v != nil {
		f, ok := v.(float64)
		if !ok {
			return nil, faults.New(faults.InvalidNode, "node %q: percentage_of_parent must be a number", id)
		}
		if f < 0 || f > 100 {
			return nil, faults.New(faults.InvalidNode, "node %q: percentage_of_parent %v is outside 0-100", id, f)
		}
		n.PercentageOfParent = f
	}

	if v, ok := raw[fieldCreatedAt]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, faults.New(faults.InvalidNode, "node %q: createdAt must be a string timestamp", id)
		}
		n.CreatedAt = s
	}

	if v, ok := raw[fieldScheduledStart]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, faults.New(faults.InvalidNode, "node %q: scheduled_start must be a string timestamp", id)
		}
		n.ScheduledStart = &s
	}

	return n, nil
}

func normalizeType(id string, v any) (string, error) {
	if v == nil {
		return NodeType, nil
	}
	s, ok := v.(string)
	if !ok || !strings.EqualFold(strings.TrimSpace(s), NodeType) {
		return "", faults.New(faults.InvalidNodeType, "node %q: type %v is not %q", id, v, NodeType)
	}
	return NodeType, nil
}

func normalizeStatus(id string, v any) (Status, error) {
	if v == nil {
		return DefaultStatus, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", faults.New(faults.InvalidStatus, "node %q: status must be a string", id)
	}
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
	if mapped, ok := legacyStatuses[key]; ok {
		return mapped, nil
	}
	if !validStatuses[Status(key)] {
		return "", faults.New(faults.InvalidStatus,
			"node %q: status %q must be one of not-started, in-progress, completed", id, s)
	}
	return Status(key), nil
}

func normalizeParents(id string, v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, faults.New(faults.InvalidParentReference, "node %q: parents must be a list", id)
	}
	parents := make([]string, 0, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, faults.New(faults.InvalidParentReference, "node %q: parents[%d] is not a string", id, i)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, faults.New(faults.InvalidParentReference, "node %q: parents[%d] is empty", id, i)
		}
		parents = append(parents, s)
	}
	return parents, nil
}

func normalizeContainer(id string, v any, validIDs map[string]bool) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", faults.New(faults.MissingGraphMembership, "node %q: graph is required", id)
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, MainGraph) {
		return MainGraph, nil
	}
	if s == id {
		return "", faults.New(faults.SelfContainment, "node %q cannot contain itself", id)
	}
	if validIDs != nil && !validIDs[s] {
		return "", faults.New(faults.UnknownGraphContainer, "node %q: graph %q is not a node in this document", id, s)
	}
	return s, nil
}

// DetectContainmentCycles walks every node's container chain and fails on
// the first chain that revisits a node still on the active stack. The
// error's Path lists the cycle, starting and ending at the same id.
func DetectContainmentCycles(nodes Nodes) error {
	container := make(map[string]string, len(nodes))
	for id, n := range nodes {
		if n.Graph != MainGraph {
			container[id] = n.Graph
		}
	}

	done := make(map[string]bool, len(nodes))
	for _, start := range nodes.IDs() {
		if done[start] {
			continue
		}
		var stack []string
		onStack := map[string]int{}
		for cur := start; cur != ""; cur = container[cur] {
			if done[cur] {
				break
			}
			if idx, ok := onStack[cur]; ok {
				path := append(append([]string(nil), stack[idx:]...), cur)
				return faults.New(faults.ContainmentCycle, "containment cycle through %q", cur).WithPath(path...)
			}
			onStack[cur] = len(stack)
			stack = append(stack, cur)
		}
		for _, id := range stack {
			done[id] = true
		}
	}
	return nil
}

package graph

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// Viewport is the client's last canvas position.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Document is a validated graph document.
type Document struct {
	Nodes              Nodes
	Viewport           Viewport
	HistoricalProgress map[string]any
	// Extra keeps unrecognized top-level fields.
	Extra map[string]any
}

const (
	fieldNodes              = "nodes"
	fieldViewport           = "viewport"
	fieldHistoricalProgress = "historical_progress"
)

// EmptyDocument returns the document a fresh store starts from.
func EmptyDocument() *Document {
	return &Document{
		Nodes:              Nodes{},
		Viewport:           Viewport{Zoom: 1},
		HistoricalProgress: map[string]any{},
	}
}

// MarshalJSON writes the document with extra fields merged back in.
func (d *Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		m[k] = v
	}
	nodes := d.Nodes
	if nodes == nil {
		nodes = Nodes{}
	}
	hp := d.HistoricalProgress
	if hp == nil {
		hp = map[string]any{}
	}
	m[fieldNodes] = nodes
	m[fieldViewport] = d.Viewport
	m[fieldHistoricalProgress] = hp
	return json.Marshal(m)
}

// Clone deep-copies the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Nodes:    d.Nodes.Clone(),
		Viewport: d.Viewport,
	}
	if d.HistoricalProgress != nil {
		c.HistoricalProgress = cloneValue(d.HistoricalProgress).(map[string]any)
	}
	if d.Extra != nil {
		c.Extra = cloneValue(d.Extra).(map[string]any)
	}
	return c
}

// Tree returns the document as a decoded JSON tree, the form the patch
// engine operates on. The tree shares nothing with d.
func (d *Document) Tree() (any, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Equal reports whether two documents serialize identically. Map keys are
// sorted by encoding/json, so the comparison is order-independent.
func Equal(a, b *Document) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// DecodeDocument parses stored JSON. Empty input yields an empty document.
func DecodeDocument(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return EmptyDocument(), nil
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, faults.Wrap(faults.InvalidDocument, err, "document is not valid JSON")
	}
	return ParseDocument(tree)
}

// ParseDocument normalizes every node of a decoded document tree, checks
// containment for cycles and returns the typed document. Nothing is
// returned unless the whole document satisfies the contract.
func ParseDocument(tree any) (*Document, error) {
	root, ok := tree.(map[string]any)
	if !ok {
		return nil, faults.New(faults.InvalidDocument, "document must be a JSON object")
	}

	doc := EmptyDocument()
	for k, v := range root {
		switch k {
		case fieldNodes, fieldViewport, fieldHistoricalProgress:
		default:
			if doc.Extra == nil {
				doc.Extra = map[string]any{}
			}
			doc.Extra[k] = cloneValue(v)
		}
	}

	rawNodes := map[string]any{}
	if v, ok := root[fieldNodes]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, faults.New(faults.InvalidDocument, "nodes must be an object keyed by node id")
		}
		rawNodes = m
	}

	validIDs := make(map[string]bool, len(rawNodes))
	for id := range rawNodes {
		validIDs[id] = true
	}
	for _, id := range sortedKeys(rawNodes) {
		obj, ok := rawNodes[id].(map[string]any)
		if !ok {
			return nil, faults.New(faults.InvalidNode, "node %q must be an object", id)
		}
		n, err := NormalizeNode(id, obj, validIDs)
		if err != nil {
			return nil, err
		}
		doc.Nodes[id] = n
	}

	if err := DetectContainmentCycles(doc.Nodes); err != nil {
		return nil, err
	}

	if v, ok := root[fieldViewport]; ok && v != nil {
		vp, err := parseViewport(v)
		if err != nil {
			return nil, err
		}
		doc.Viewport = vp
	}

	if v, ok := root[fieldHistoricalProgress]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, faults.New(faults.InvalidDocument, "historical_progress must be an object")
		}
		doc.HistoricalProgress = cloneValue(m).(map[string]any)
	}

	return doc, nil
}

func parseViewport(v any) (Viewport, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Viewport{}, faults.New(faults.InvalidDocument, "viewport must be an object")
	}
	vp := Viewport{Zoom: 1}
	for key, dst := range map[string]*float64{"x": &vp.X, "y": &vp.Y, "zoom": &vp.Zoom} {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		f, ok := raw.(float64)
		if !ok {
			return Viewport{}, faults.New(faults.InvalidDocument, "viewport.%s must be a number", key)
		}
		*dst = f
	}
	return vp, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package jsonpatch applies RFC 6902 JSON Patch operations to a decoded
// JSON tree (map[string]any / []any / scalars, as produced by
// encoding/json).
//
// Apply never touches its input: it works on a private deep copy and
// returns that copy only when every operation succeeded.
package jsonpatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// Op names.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// Operation is a single decoded patch operation.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
	// hasValue distinguishes an explicit null value from a missing one.
	hasValue bool
}

// Decode parses a patch document. The input must be a JSON array of
// operation objects; every operation is checked for the members its op
// requires before anything is applied.
func Decode(data []byte) ([]Operation, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, faults.New(faults.MalformedPatch, "patch is empty")
	}
	if trimmed[0] != '[' {
		return nil, faults.New(faults.MalformedPatch, "patch must be a JSON array of operations")
	}

	var raws []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, faults.Wrap(faults.MalformedPatch, err, "patch is not valid JSON")
	}

	ops := make([]Operation, 0, len(raws))
	for i, raw := range raws {
		op, err := decodeOperation(raw)
		if err != nil {
			return nil, faults.Wrap(faults.MalformedPatch, err, "operation %d", i)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeOperation(raw map[string]json.RawMessage) (Operation, error) {
	var op Operation
	if err := decodeString(raw, "op", &op.Op); err != nil {
		return op, err
	}
	if err := decodeString(raw, "path", &op.Path); err != nil {
		return op, err
	}

	switch op.Op {
	case OpAdd, OpReplace, OpTest:
		v, ok := raw["value"]
		if !ok {
			return op, fmt.Errorf("%q requires a value", op.Op)
		}
		if err := json.Unmarshal(v, &op.Value); err != nil {
			return op, fmt.Errorf("value: %w", err)
		}
		op.hasValue = true
	case OpMove, OpCopy:
		if err := decodeString(raw, "from", &op.From); err != nil {
			return op, err
		}
	case OpRemove:
	default:
		return op, fmt.Errorf("unknown op %q", op.Op)
	}
	return op, nil
}

func decodeString(raw map[string]json.RawMessage, key string, dst *string) error {
	v, ok := raw[key]
	if !ok {
		return fmt.Errorf("missing %q", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%q must be a string", key)
	}
	return nil
}

// Apply runs ops in order against a copy of doc and returns the patched
// copy. The first failing operation aborts the whole patch with a
// PatchApplicationError; doc is never modified.
func Apply(doc any, ops []Operation) (any, error) {
	out := deepCopy(doc)
	for i, op := range ops {
		var err error
		out, err = applyOne(out, op)
		if err != nil {
			return nil, faults.Wrap(faults.PatchApplicationError, err, "operation %d (%s %s)", i, op.Op, op.Path)
		}
	}
	return out, nil
}

func applyOne(doc any, op Operation) (any, error) {
	path, err := parsePointer(op.Path)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case OpAdd:
		if !op.hasValue {
			return nil, fmt.Errorf("add requires a value")
		}
		return add(doc, path, deepCopy(op.Value))
	case OpRemove:
		doc, _, err := remove(doc, path)
		return doc, err
	case OpReplace:
		if !op.hasValue {
			return nil, fmt.Errorf("replace requires a value")
		}
		return replace(doc, path, deepCopy(op.Value))
	case OpMove:
		from, err := parsePointer(op.From)
		if err != nil {
			return nil, err
		}
		if op.From == op.Path {
			if _, err := get(doc, from); err != nil {
				return nil, err
			}
			return doc, nil
		}
		if strings.HasPrefix(op.Path, op.From+"/") {
			return nil, fmt.Errorf("cannot move %q into its own child %q", op.From, op.Path)
		}
		doc, v, err := remove(doc, from)
		if err != nil {
			return nil, err
		}
		return add(doc, path, v)
	case OpCopy:
		from, err := parsePointer(op.From)
		if err != nil {
			return nil, err
		}
		v, err := get(doc, from)
		if err != nil {
			return nil, err
		}
		return add(doc, path, deepCopy(v))
	case OpTest:
		v, err := get(doc, path)
		if err != nil {
			return nil, err
		}
		if !reflect.DeepEqual(v, op.Value) {
			return nil, fmt.Errorf("test failed: value at %q does not match", op.Path)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("unknown op %q", op.Op)
}

// parsePointer splits an RFC 6901 pointer into unescaped reference tokens.
// The empty pointer refers to the whole document and yields no tokens.
func parsePointer(p string) ([]string, error) {
	if p == "" {
		return nil, nil
	}
	if p[0] != '/' {
		return nil, fmt.Errorf("pointer %q must start with '/'", p)
	}
	parts := strings.Split(p[1:], "/")
	for i, part := range parts {
		if strings.Contains(strings.ReplaceAll(strings.ReplaceAll(part, "~0", ""), "~1", ""), "~") {
			return nil, fmt.Errorf("pointer %q has an invalid escape", p)
		}
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
	}
	return parts, nil
}

// arrayIndex parses an array reference token. allowEnd permits "-" and
// len(arr) (positions just past the last element, valid for add only).
func arrayIndex(tok string, length int, allowEnd bool) (int, error) {
	if tok == "-" {
		if allowEnd {
			return length, nil
		}
		return 0, fmt.Errorf("index '-' is only valid for add")
	}
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid array index %q", tok)
		}
	}
	idx, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", tok)
	}
	limit := length - 1
	if allowEnd {
		limit = length
	}
	if idx > limit {
		return 0, fmt.Errorf("array index %d out of bounds (length %d)", idx, length)
	}
	return idx, nil
}

func get(doc any, path []string) (any, error) {
	cur := doc
	for _, tok := range path {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, fmt.Errorf("member %q not found", tok)
			}
			cur = v
		case []any:
			idx, err := arrayIndex(tok, len(c), false)
			if err != nil {
				return nil, err
			}
			cur = c[idx]
		default:
			return nil, fmt.Errorf("cannot descend into scalar at %q", tok)
		}
	}
	return cur, nil
}

// withParent descends to the container holding the last token and lets fn
// replace it. Containers are rewritten on the way back up because slices
// may be reallocated by fn.
func withParent(doc any, path []string, fn func(container any, last string) (any, error)) (any, error) {
	if len(path) == 1 {
		return fn(doc, path[0])
	}
	switch c := doc.(type) {
	case map[string]any:
		child, ok := c[path[0]]
		if !ok {
			return nil, fmt.Errorf("member %q not found", path[0])
		}
		nc, err := withParent(child, path[1:], fn)
		if err != nil {
			return nil, err
		}
		c[path[0]] = nc
		return c, nil
	case []any:
		idx, err := arrayIndex(path[0], len(c), false)
		if err != nil {
			return nil, err
		}
		nc, err := withParent(c[idx], path[1:], fn)
		if err != nil {
			return nil, err
		}
		c[idx] = nc
		return c, nil
	default:
		return nil, fmt.Errorf("cannot descend into scalar at %q", path[0])
	}
}

func add(doc any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	return withParent(doc, path, func(container any, last string) (any, error) {
		switch c := container.(type) {
		case map[string]any:
			c[last] = value
			return c, nil
		case []any:
			idx, err := arrayIndex(last, len(c), true)
			if err != nil {
				return nil, err
			}
			out := make([]any, 0, len(c)+1)
			out = append(out, c[:idx]...)
			out = append(out, value)
			return append(out, c[idx:]...), nil
		default:
			return nil, fmt.Errorf("cannot add member %q to a scalar", last)
		}
	})
}

func remove(doc any, path []string) (any, any, error) {
	if len(path) == 0 {
		return nil, nil, fmt.Errorf("cannot remove the document root")
	}
	var removed any
	out, err := withParent(doc, path, func(container any, last string) (any, error) {
		switch c := container.(type) {
		case map[string]any:
			v, ok := c[last]
			if !ok {
				return nil, fmt.Errorf("member %q not found", last)
			}
			removed = v
			delete(c, last)
			return c, nil
		case []any:
			idx, err := arrayIndex(last, len(c), false)
			if err != nil {
				return nil, err
			}
			removed = c[idx]
			out := make([]any, 0, len(c)-1)
			out = append(out, c[:idx]...)
			return append(out, c[idx+1:]...), nil
		default:
			return nil, fmt.Errorf("cannot remove member %q from a scalar", last)
		}
	})
	return out, removed, err
}

func replace(doc any, path []string, value any) (any, error) {
	if len(path) == 0 {
		return value, nil
	}
	return withParent(doc, path, func(container any, last string) (any, error) {
		switch c := container.(type) {
		case map[string]any:
			if _, ok := c[last]; !ok {
				return nil, fmt.Errorf("member %q not found", last)
			}
			c[last] = value
			return c, nil
		case []any:
			idx, err := arrayIndex(last, len(c), false)
			if err != nil {
				return nil, err
			}
			c[idx] = value
			return c, nil
		default:
			return nil, fmt.Errorf("cannot replace member %q of a scalar", last)
		}
	})
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = deepCopy(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = deepCopy(e)
		}
		return s
	default:
		return v
	}
}

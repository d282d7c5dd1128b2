package jsonpatch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func apply(t *testing.T, doc, patch string) (any, error) {
	t.Helper()
	ops, err := Decode([]byte(patch))
	require.NoError(t, err)
	return Apply(decodeJSON(t, doc), ops)
}

func TestApply_Operations(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch string
		want  string
	}{
		{
			name:  "add member",
			doc:   `{"a":1}`,
			patch: `[{"op":"add","path":"/b","value":{"c":2}}]`,
			want:  `{"a":1,"b":{"c":2}}`,
		},
		{
			name:  "add replaces existing member",
			doc:   `{"a":1}`,
			patch: `[{"op":"add","path":"/a","value":5}]`,
			want:  `{"a":5}`,
		},
		{
			name:  "add inserts into array",
			doc:   `{"a":[1,3]}`,
			patch: `[{"op":"add","path":"/a/1","value":2}]`,
			want:  `{"a":[1,2,3]}`,
		},
		{
			name:  "add appends with dash",
			doc:   `{"a":[1]}`,
			patch: `[{"op":"add","path":"/a/-","value":2}]`,
			want:  `{"a":[1,2]}`,
		},
		{
			name:  "add explicit null",
			doc:   `{}`,
			patch: `[{"op":"add","path":"/a","value":null}]`,
			want:  `{"a":null}`,
		},
		{
			name:  "remove member and array element",
			doc:   `{"a":1,"b":[1,2,3]}`,
			patch: `[{"op":"remove","path":"/a"},{"op":"remove","path":"/b/1"}]`,
			want:  `{"b":[1,3]}`,
		},
		{
			name:  "replace",
			doc:   `{"a":{"b":"x"}}`,
			patch: `[{"op":"replace","path":"/a/b","value":"y"}]`,
			want:  `{"a":{"b":"y"}}`,
		},
		{
			name:  "replace root",
			doc:   `{"a":1}`,
			patch: `[{"op":"replace","path":"","value":{"z":0}}]`,
			want:  `{"z":0}`,
		},
		{
			name:  "move",
			doc:   `{"a":{"x":1},"b":{}}`,
			patch: `[{"op":"move","from":"/a/x","path":"/b/y"}]`,
			want:  `{"a":{},"b":{"y":1}}`,
		},
		{
			name:  "move within array",
			doc:   `{"a":[1,2,3]}`,
			patch: `[{"op":"move","from":"/a/0","path":"/a/-"}]`,
			want:  `{"a":[2,3,1]}`,
		},
		{
			name:  "copy is independent",
			doc:   `{"a":{"x":[1]}}`,
			patch: `[{"op":"copy","from":"/a","path":"/b"},{"op":"add","path":"/b/x/-","value":2}]`,
			want:  `{"a":{"x":[1]},"b":{"x":[1,2]}}`,
		},
		{
			name:  "test passes",
			doc:   `{"a":{"b":[1,"two"]}}`,
			patch: `[{"op":"test","path":"/a/b","value":[1,"two"]}]`,
			want:  `{"a":{"b":[1,"two"]}}`,
		},
		{
			name:  "escaped pointer tokens",
			doc:   `{"a/b":{"m~n":1}}`,
			patch: `[{"op":"replace","path":"/a~1b/m~0n","value":2}]`,
			want:  `{"a/b":{"m~n":2}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := apply(t, tt.doc, tt.patch)
			require.NoError(t, err)
			assert.Equal(t, decodeJSON(t, tt.want), got)
		})
	}
}

func TestApply_Failures(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		patch string
	}{
		{"remove missing member", `{}`, `[{"op":"remove","path":"/a"}]`},
		{"replace missing member", `{}`, `[{"op":"replace","path":"/a","value":1}]`},
		{"add under missing parent", `{}`, `[{"op":"add","path":"/a/b","value":1}]`},
		{"array index out of bounds", `{"a":[1]}`, `[{"op":"add","path":"/a/3","value":1}]`},
		{"leading zero index", `{"a":[1,2]}`, `[{"op":"remove","path":"/a/01"}]`},
		{"dash outside add", `{"a":[1]}`, `[{"op":"remove","path":"/a/-"}]`},
		{"test mismatch", `{"a":1}`, `[{"op":"test","path":"/a","value":2}]`},
		{"pointer without slash", `{"a":1}`, `[{"op":"remove","path":"a"}]`},
		{"bad escape", `{"a":1}`, `[{"op":"remove","path":"/a~2"}]`},
		{"move into own child", `{"a":{"b":{}}}`, `[{"op":"move","from":"/a","path":"/a/b/c"}]`},
		{"descend into scalar", `{"a":1}`, `[{"op":"add","path":"/a/b","value":1}]`},
		{"remove root", `{"a":1}`, `[{"op":"remove","path":""}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := apply(t, tt.doc, tt.patch)
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.PatchApplicationError), "got %v", err)
		})
	}
}

func TestApply_IsAtomicAndLeavesInputAlone(t *testing.T) {
	doc := decodeJSON(t, `{"a":1,"list":[1,2]}`)
	ops, err := Decode([]byte(`[
		{"op":"add","path":"/b","value":2},
		{"op":"remove","path":"/list/0"},
		{"op":"test","path":"/a","value":99}
	]`))
	require.NoError(t, err)

	_, err = Apply(doc, ops)
	require.Error(t, err)
	assert.Equal(t, decodeJSON(t, `{"a":1,"list":[1,2]}`), doc)

	ok, err := Apply(doc, ops[:2])
	require.NoError(t, err)
	assert.Equal(t, decodeJSON(t, `{"a":1,"b":2,"list":[2]}`), ok)
	assert.Equal(t, decodeJSON(t, `{"a":1,"list":[1,2]}`), doc)
}

func TestDecode_Malformed(t *testing.T) {
	for name, patch := range map[string]string{
		"empty":         ``,
		"not json":      `[{"op":`,
		"object":        `{"op":"add","path":"/a","value":1}`,
		"unknown op":    `[{"op":"merge","path":"/a"}]`,
		"missing path":  `[{"op":"remove"}]`,
		"missing value": `[{"op":"add","path":"/a"}]`,
		"missing from":  `[{"op":"copy","path":"/a"}]`,
		"non-string op": `[{"op":1,"path":"/a"}]`,
		"non-object op": `["add"]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(patch))
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.MalformedPatch), "got %v", err)
		})
	}
}

func TestDecode_EmptyArray(t *testing.T) {
	ops, err := Decode([]byte(` [] `))
	require.NoError(t, err)
	assert.Empty(t, ops)
}

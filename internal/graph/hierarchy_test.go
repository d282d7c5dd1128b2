package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(trees []*TreeNode) []string {
	out := make([]string, 0, len(trees))
	for _, t := range trees {
		out = append(out, t.ID)
	}
	return out
}

func TestBuildHierarchy_OrdersByCreation(t *testing.T) {
	doc := mustParse(t, `{"nodes":{
		"late":{"graph":"main","createdAt":"2025-01-03T00:00:00Z"},
		"early":{"graph":"main","createdAt":"2025-01-01T00:00:00Z"},
		"c2":{"graph":"main","parents":["early"],"createdAt":"2025-01-05T00:00:00Z"},
		"c1":{"graph":"main","parents":["early"],"createdAt":"2025-01-04T00:00:00Z"}
	}}`)

	roots := BuildHierarchy(doc.Nodes)
	assert.Equal(t, []string{"early", "late"}, ids(roots))
	assert.Equal(t, []string{"c1", "c2"}, ids(roots[0].Children))
	assert.Empty(t, roots[1].Children)
}

func TestBuildHierarchy_SharedChildAppearsUnderEachParent(t *testing.T) {
	doc := mustParse(t, `{"nodes":{
		"a":{"graph":"main"},
		"b":{"graph":"main"},
		"shared":{"graph":"main","parents":["a","b"]}
	}}`)

	roots := BuildHierarchy(doc.Nodes)
	require.Len(t, roots, 2)
	assert.Equal(t, []string{"shared"}, ids(roots[0].Children))
	assert.Equal(t, []string{"shared"}, ids(roots[1].Children))
}

func TestBuildHierarchy_ParentOutsideSubsetMakesRoot(t *testing.T) {
	doc := mustParse(t, `{"nodes":{"orphan":{"graph":"main","parents":["gone"]}}}`)
	assert.Equal(t, []string{"orphan"}, ids(BuildHierarchy(doc.Nodes)))
}

func TestTodayNodes_IncludesTransitiveParents(t *testing.T) {
	doc := mustParse(t, `{"nodes":{
		"goal":{"graph":"main"},
		"step":{"graph":"main","parents":["goal"]},
		"task":{"graph":"main","parents":["step"],"scheduled_start":"2025-10-15T09:00:00Z"},
		"tomorrow":{"graph":"main","scheduled_start":"2025-10-16"},
		"unrelated":{"graph":"main"}
	}}`)
	now := time.Date(2025, 10, 15, 18, 0, 0, 0, time.UTC)

	got := TodayNodes(doc.Nodes, now, time.UTC)
	assert.ElementsMatch(t, []string{"goal", "step", "task"}, got.IDs())
}

func TestTodayNodes_UsesLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	doc := mustParse(t, `{"nodes":{
		"late":{"graph":"main","scheduled_start":"2025-10-16T02:00:00Z"}
	}}`)
	// 02:00Z on the 16th is still the evening of the 15th in New York.
	now := time.Date(2025, 10, 15, 12, 0, 0, 0, loc)
	assert.Equal(t, []string{"late"}, TodayNodes(doc.Nodes, now, loc).IDs())
}

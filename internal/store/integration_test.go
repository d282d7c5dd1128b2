package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/HendryAvila/lodestar/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_OverSQLite(t *testing.T) {
	s := newTestStore(t)
	e := graph.NewEngine(s, nil)
	ctx := context.Background()

	res, err := e.Patch(ctx, []byte(`[
		{"op":"add","path":"/nodes/goal","value":{"graph":"main","label":"Goal","percentage_of_parent":100}},
		{"op":"add","path":"/nodes/step","value":{"graph":"main","label":"Step","parents":["goal"],"percentage_of_parent":100}}
	]`))
	require.NoError(t, err)
	require.True(t, res.Changed)
	assert.Equal(t, int64(1), res.Revision)
	first := res.VersionID

	res, err = e.Patch(ctx, []byte(`[{"op":"replace","path":"/nodes/step/label","value":"Renamed"}]`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Revision)

	state, err := e.Live(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", state.Document.Nodes["step"].Label)

	restored, err := e.RestoreVersion(ctx, first)
	require.NoError(t, err)
	assert.True(t, restored.Changed)
	assert.Equal(t, "Step", restored.Document.Nodes["step"].Label)

	versions, err := e.Versions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	base, err := e.DefaultVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, base.VersionID)
	assert.False(t, base.Created)
}

func TestEngine_VersionWriteFailureIsStorageError(t *testing.T) {
	s := newTestStore(t)
	s.FailExec("INSERT INTO graph_document_versions", errors.New("disk full"))
	e := graph.NewEngine(s, nil)

	_, err := e.Patch(context.Background(), []byte(`[{"op":"add","path":"/nodes/a","value":{"graph":"main","label":"A"}}]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.StorageError), "got %v", err)
	assert.ErrorContains(t, err, "disk full")
}

func TestCoordinator_OverSQLite(t *testing.T) {
	s := newTestStore(t)
	addMessage(t, s, "conv", "A", "", "2025-10-14T09:00:00Z")
	addMessage(t, s, "conv", "B", "A", "2025-10-14T15:00:00Z")
	addMessage(t, s, "conv", "C", "B", "2025-10-15T10:00:00Z")
	addMessage(t, s, "conv", "D", "A", "2025-10-15T11:00:00Z")

	c := summary.NewCoordinator(s, nil, summary.Options{}, nil)
	ctx := context.Background()

	res, err := c.BuildContext(ctx, summary.Request{ConversationID: "conv", MessageID: "C"})
	require.NoError(t, err)
	require.Len(t, res.Periods, 1)
	assert.Equal(t, summary.OutcomeGenerated, res.Periods[0].Outcome)

	again, err := c.BuildContext(ctx, summary.Request{ConversationID: "conv", MessageID: "C"})
	require.NoError(t, err)
	assert.Equal(t, summary.OutcomeReused, again.Periods[0].Outcome)
	assert.Equal(t, res.Periods[0].Summary.ID, again.Periods[0].Summary.ID)

	plan, err := c.Plan(ctx, summary.Request{ConversationID: "conv", MessageID: "D"})
	require.NoError(t, err)
	assert.Equal(t, summary.StatusInvalid, plan.Periods[0].Status)

	rows, err := s.Summaries(ctx, "conv", summary.Filter{Levels: []summary.Level{summary.LevelDay}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].PeriodStart.Equal(time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)))
}

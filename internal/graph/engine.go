package graph

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/jsonpatch"
	"github.com/HendryAvila/lodestar/internal/logging"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"go.uber.org/zap"
)

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// Engine runs graph document operations against a Store. It holds no
// document state between calls.
type Engine struct {
	store Store
	log   *zap.Logger
}

// NewEngine creates an Engine. A nil logger disables logging.
func NewEngine(store Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, log: logging.OrNop(logger).Named("graph")}
}

// State is the live document with derived percentages filled in.
type State struct {
	Document *Document `json:"document"`
	Revision int64     `json:"revision"`
}

// MutationResult reports the outcome of a patch or restore.
type MutationResult struct {
	Document *Document `json:"document"`
	// Changed is false when the operation produced a document equal to the
	// live one; nothing was persisted and no version was created.
	Changed   bool   `json:"changed"`
	VersionID string `json:"version_id,omitempty"`
	Revision  int64  `json:"revision"`
	// Rebalanced lists parents whose children were given equal shares.
	Rebalanced []string `json:"rebalanced_parents,omitempty"`
}

// VersionDocument is a snapshot with derived percentages filled in.
type VersionDocument struct {
	VersionInfo
	Document *Document `json:"document"`
}

// Baseline identifies the default snapshot.
type Baseline struct {
	VersionID string `json:"version_id"`
	Created   bool   `json:"created"`
}

// TodayView is the slice of the graph relevant to one local day.
type TodayView struct {
	Date      string      `json:"date"`
	Timezone  string      `json:"timezone"`
	Nodes     Nodes       `json:"nodes"`
	Hierarchy []*TreeNode `json:"hierarchy"`
}

// Live loads, validates and derives the live document.
func (e *Engine) Live(ctx context.Context) (*State, error) {
	data, rev, err := e.store.LoadLive(ctx)
	if err != nil {
		return nil, faults.Storage("load live document", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	if err := CalculateTruePercentages(doc.Nodes); err != nil {
		return nil, err
	}
	return &State{Document: doc, Revision: rev}, nil
}

// Patch applies an RFC 6902 patch to the live document.
//
// The patch runs against a private copy. The result is fully re-validated,
// percentages are recomputed, parents that gained children are rebalanced,
// and only a result that differs from the live document is persisted and
// versioned.
func (e *Engine) Patch(ctx context.Context, patch []byte) (*MutationResult, error) {
	ops, err := jsonpatch.Decode(patch)
	if err != nil {
		return nil, err
	}

	data, rev, err := e.store.LoadLive(ctx)
	if err != nil {
		return nil, faults.Storage("load live document", err)
	}
	tree, err := decodeTree(data)
	if err != nil {
		return nil, err
	}

	// A stored document that no longer validates can still be patched
	// back into shape; it just can't short-circuit as unchanged.
	before, beforeErr := ParseDocument(tree)
	if beforeErr == nil {
		beforeErr = CalculateTruePercentages(before.Nodes)
	}
	beforeFanOut := rawFanOut(tree)
	beforeIDs := rawNodeIDs(tree)

	patched, err := jsonpatch.Apply(tree, ops)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(patched)
	if err != nil {
		return nil, err
	}

	stamp := timeNow().UTC().Format(time.RFC3339)
	for id, n := range doc.Nodes {
		if !beforeIDs[id] && n.CreatedAt == "" {
			n.CreatedAt = stamp
		}
	}

	if err := CalculateTruePercentages(doc.Nodes); err != nil {
		return nil, err
	}
	rebalanced := Squish(doc.Nodes, beforeFanOut)
	if len(rebalanced) > 0 {
		if err := CalculateTruePercentages(doc.Nodes); err != nil {
			return nil, err
		}
	}

	if beforeErr == nil && Equal(before, doc) {
		e.log.Debug("patch produced no change", zap.Int("operations", len(ops)))
		return &MutationResult{Document: doc, Revision: rev}, nil
	}

	res, err := e.persist(ctx, doc, rev)
	if err != nil {
		return nil, err
	}
	res.Rebalanced = rebalanced
	e.log.Info("graph patched",
		zap.Int("operations", len(ops)),
		zap.String("version_id", res.VersionID),
		zap.Int64("revision", res.Revision),
		zap.Strings("rebalanced_parents", rebalanced),
	)
	return res, nil
}

// Version returns a snapshot by id.
func (e *Engine) Version(ctx context.Context, id string) (*VersionDocument, error) {
	sv, err := e.store.LoadVersion(ctx, id)
	if err != nil {
		return nil, faults.Storage("load version", err)
	}
	doc, err := DecodeDocument(sv.Document)
	if err != nil {
		return nil, err
	}
	if err := CalculateTruePercentages(doc.Nodes); err != nil {
		return nil, err
	}
	return &VersionDocument{VersionInfo: sv.VersionInfo, Document: doc}, nil
}

// Versions lists the most recent snapshots, oldest first.
func (e *Engine) Versions(ctx context.Context, limit int) ([]VersionInfo, error) {
	vs, err := e.store.ListVersions(ctx, limit)
	if err != nil {
		return nil, faults.Storage("list versions", err)
	}
	return vs, nil
}

// RestoreVersion makes a snapshot's content live again. Restoring is a
// mutation like any other: it appends a new version rather than rewinding.
// Restoring content equal to the live document does nothing.
func (e *Engine) RestoreVersion(ctx context.Context, id string) (*MutationResult, error) {
	target, err := e.Version(ctx, id)
	if err != nil {
		return nil, err
	}

	data, rev, err := e.store.LoadLive(ctx)
	if err != nil {
		return nil, faults.Storage("load live document", err)
	}
	if live, err := DecodeDocument(data); err == nil && CalculateTruePercentages(live.Nodes) == nil {
		if Equal(live, target.Document) {
			e.log.Debug("restore target equals live document", zap.String("source_version_id", id))
			return &MutationResult{Document: live, Revision: rev}, nil
		}
	}

	res, err := e.persist(ctx, target.Document, rev)
	if err != nil {
		return nil, err
	}
	e.log.Info("graph restored",
		zap.String("source_version_id", id),
		zap.String("version_id", res.VersionID),
	)
	return res, nil
}

// DefaultVersion returns the earliest version, snapshotting the live
// document as the baseline when no version exists yet.
func (e *Engine) DefaultVersion(ctx context.Context) (*Baseline, error) {
	id, err := e.store.EarliestVersionID(ctx)
	if err != nil {
		return nil, faults.Storage("find earliest version", err)
	}
	if id != "" {
		return &Baseline{VersionID: id}, nil
	}

	state, err := e.Live(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(state.Document)
	if err != nil {
		return nil, faults.Storage("encode document", err)
	}
	vi, err := e.store.CreateVersion(ctx, data)
	if err != nil {
		return nil, faults.Storage("create version", err)
	}
	e.log.Info("baseline version created", zap.String("version_id", vi.ID))
	return &Baseline{VersionID: vi.ID, Created: true}, nil
}

// Hierarchy nests the live graph by causal parents.
func (e *Engine) Hierarchy(ctx context.Context) ([]*TreeNode, error) {
	state, err := e.Live(ctx)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(state.Document.Nodes), nil
}

// TodayContext returns the nodes scheduled on now's local day in loc, with
// their causal parents.
func (e *Engine) TodayContext(ctx context.Context, now time.Time, loc *time.Location) (*TodayView, error) {
	state, err := e.Live(ctx)
	if err != nil {
		return nil, err
	}
	nodes := TodayNodes(state.Document.Nodes, now, loc)
	return &TodayView{
		Date:      timeutil.DayKey(now, loc),
		Timezone:  loc.String(),
		Nodes:     nodes,
		Hierarchy: BuildHierarchy(nodes),
	}, nil
}

func (e *Engine) persist(ctx context.Context, doc *Document, rev int64) (*MutationResult, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, faults.Storage("encode document", err)
	}
	newRev, err := e.store.SaveLive(ctx, data, rev)
	if err != nil {
		return nil, faults.Storage("save live document", err)
	}
	vi, err := e.store.CreateVersion(ctx, data)
	if err != nil {
		return nil, faults.Storage("create version", err)
	}
	return &MutationResult{Document: doc, Changed: true, VersionID: vi.ID, Revision: newRev}, nil
}

func decodeTree(data []byte) (any, error) {
	if len(data) == 0 {
		return EmptyDocument().Tree()
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, faults.Wrap(faults.InvalidDocument, err, "stored document is not valid JSON")
	}
	return tree, nil
}

func rawNodeMap(tree any) map[string]any {
	root, _ := tree.(map[string]any)
	nodes, _ := root[fieldNodes].(map[string]any)
	return nodes
}

func rawNodeIDs(tree any) map[string]bool {
	ids := map[string]bool{}
	for id := range rawNodeMap(tree) {
		ids[id] = true
	}
	return ids
}

// rawFanOut is FanOut over an unvalidated tree; malformed entries are
// skipped rather than rejected.
func rawFanOut(tree any) map[string][]string {
	out := map[string][]string{}
	raw := rawNodeMap(tree)
	for _, id := range sortedKeys(raw) {
		obj, _ := raw[id].(map[string]any)
		parents, _ := obj[fieldParents].([]any)
		seen := map[string]bool{}
		for _, p := range parents {
			s, ok := p.(string)
			s = strings.TrimSpace(s)
			if !ok || s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out[s] = append(out[s], id)
		}
	}
	return out
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultVersionLimit caps ListVersions when no limit is given.
const defaultVersionLimit = 50

var _ graph.Store = (*Store)(nil)

// LoadLive implements graph.Store.
func (s *Store) LoadLive(ctx context.Context) ([]byte, int64, error) {
	var (
		doc string
		rev int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document, revision FROM graph_documents WHERE key = ?`, s.cfg.LiveDocumentKey,
	).Scan(&doc, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: load live document: %w", err)
	}
	return []byte(doc), rev, nil
}

// SaveLive implements graph.Store. The write only lands if the stored
// revision still equals expectedRevision.
func (s *Store) SaveLive(ctx context.Context, data []byte, expectedRevision int64) (int64, error) {
	now := formatTime(timeNow())
	var (
		res sql.Result
		err error
	)
	if expectedRevision == 0 {
		res, err = s.execHook(ctx, s.db,
			`INSERT INTO graph_documents (key, document, revision, updated_at) VALUES (?, ?, 1, ?)
			 ON CONFLICT(key) DO NOTHING`,
			s.cfg.LiveDocumentKey, string(data), now,
		)
	} else {
		res, err = s.execHook(ctx, s.db,
			`UPDATE graph_documents SET document = ?, revision = revision + 1, updated_at = ?
			 WHERE key = ? AND revision = ?`,
			string(data), now, s.cfg.LiveDocumentKey, expectedRevision,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("store: save live document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: save live document: %w", err)
	}
	if n == 0 {
		return 0, faults.New(faults.StaleDocument,
			"live document %q changed since revision %d was read", s.cfg.LiveDocumentKey, expectedRevision)
	}
	s.log.Debug("live document saved", zap.Int64("revision", expectedRevision+1))
	return expectedRevision + 1, nil
}

// CreateVersion implements graph.Store.
func (s *Store) CreateVersion(ctx context.Context, data []byte) (graph.VersionInfo, error) {
	vi := graph.VersionInfo{ID: uuid.NewString(), CreatedAt: timeNow().UTC()}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO graph_document_versions (id, document, created_at) VALUES (?, ?, ?)`,
		vi.ID, string(data), formatTime(vi.CreatedAt),
	); err != nil {
		return graph.VersionInfo{}, fmt.Errorf("store: create version: %w", err)
	}
	return vi, nil
}

// LoadVersion implements graph.Store.
func (s *Store) LoadVersion(ctx context.Context, id string) (*graph.StoredVersion, error) {
	var doc, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT document, created_at FROM graph_document_versions WHERE id = ?`, id,
	).Scan(&doc, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, faults.New(faults.VersionNotFound, "version %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load version: %w", err)
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("store: version %q created_at: %w", id, err)
	}
	return &graph.StoredVersion{
		VersionInfo: graph.VersionInfo{ID: id, CreatedAt: t},
		Document:    []byte(doc),
	}, nil
}

// EarliestVersionID implements graph.Store.
func (s *Store) EarliestVersionID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM graph_document_versions ORDER BY seq ASC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: earliest version: %w", err)
	}
	return id, nil
}

// ListVersions implements graph.Store: the latest limit versions, oldest
// first.
func (s *Store) ListVersions(ctx context.Context, limit int) ([]graph.VersionInfo, error) {
	if limit <= 0 {
		limit = defaultVersionLimit
	}
	rows, err := s.queryItHook(ctx, s.db,
		`SELECT id, created_at FROM (
			SELECT seq, id, created_at FROM graph_document_versions ORDER BY seq DESC LIMIT ?
		 ) ORDER BY seq ASC`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []graph.VersionInfo{}
	for rows.Next() {
		var id, created string
		if err := rows.Scan(&id, &created); err != nil {
			return nil, fmt.Errorf("store: list versions: %w", err)
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("store: version %q created_at: %w", id, err)
		}
		out = append(out, graph.VersionInfo{ID: id, CreatedAt: t})
	}
	return out, rows.Err()
}

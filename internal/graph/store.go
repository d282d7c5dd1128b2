package graph

import (
	"context"
	"time"
)

// VersionInfo describes one immutable snapshot without its content.
type VersionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredVersion is a snapshot as held by storage: the raw document JSON.
type StoredVersion struct {
	VersionInfo
	Document []byte
}

// Store persists the live document and its version history. Documents
// cross this boundary as JSON so storage never interprets them.
//
// Implementations report a missing version with faults.VersionNotFound
// and a lost compare-and-swap with faults.StaleDocument.
type Store interface {
	// LoadLive returns the live document and its revision. A store that
	// has never been written returns nil data at revision 0.
	LoadLive(ctx context.Context) (data []byte, revision int64, err error)
	// SaveLive overwrites the live document if its revision still equals
	// expectedRevision, returning the new revision.
	SaveLive(ctx context.Context, data []byte, expectedRevision int64) (int64, error)
	CreateVersion(ctx context.Context, data []byte) (VersionInfo, error)
	LoadVersion(ctx context.Context, id string) (*StoredVersion, error)
	// EarliestVersionID returns "" when no version exists.
	EarliestVersionID(ctx context.Context) (string, error)
	ListVersions(ctx context.Context, limit int) ([]VersionInfo, error)
}

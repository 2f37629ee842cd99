package storage

import (
	"context"
	"time"

	"github.com/Dosada05/bracket-engine/models"
)

// BracketSnapshot is the immutable record archived when a phase completes:
// the full set tree plus the seeding it was generated from.
type BracketSnapshot struct {
	Phase      *models.Phase   `json:"phase"`
	Seeding    *models.Seeding `json:"seeding,omitempty"`
	Sets       []*models.Set   `json:"sets"`
	ArchivedAt time.Time       `json:"archived_at"`
}

type ArchiveResult struct {
	Key      string
	Location string
	ETag     string
}

// SnapshotStore persists completed-bracket snapshots to durable storage.
type SnapshotStore interface {
	Archive(ctx context.Context, snapshot *BracketSnapshot) (*ArchiveResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// VersionRecord is an immutable, append-only snapshot of an artifact at a
// specific version. Versions are strictly increasing integers with no gaps
// starting at 1. Records are never mutated or deleted: rollback copies an
// old version's content forward into a new version.
// Maps to: version_history table
type VersionRecord struct {
	ArtifactKey string `db:"artifact_key" json:"artifact_key"`
	TenantID    string `db:"tenant_id" json:"tenant_id"`
	Version     int    `db:"version" json:"version"`

	Content string `db:"content" json:"content"`

	PatchID           *uuid.UUID `db:"patch_id" json:"patch_id,omitempty"`
	ChangeDescription string     `db:"change_description" json:"change_description"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

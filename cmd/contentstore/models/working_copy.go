package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkingCopy is the current mutable head for an artifact.
// Exactly one row exists per (artifact_key, tenant_id); it is mutated only
// by VersionStore.Commit and never deleted.
// Maps to: working_copy table
type WorkingCopy struct {
	ArtifactKey string `db:"artifact_key" json:"artifact_key"`
	TenantID    string `db:"tenant_id" json:"tenant_id"`

	Content string `db:"content" json:"content"`

	// Always equals the highest version_history.version for this key
	Version int `db:"version" json:"version"`

	// The patch that produced the head, when there was one
	LastPatchID *uuid.UUID `db:"last_patch_id" json:"last_patch_id,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

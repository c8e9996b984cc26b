package models

import (
	"time"

	"github.com/google/uuid"
)

// DeployEventKind distinguishes commit correlation events from explicit
// deployment markers
type DeployEventKind string

const (
	EventVersionCommitted DeployEventKind = "version_committed"
	EventDeployed         DeployEventKind = "deployed"
)

// DeployEvent is one row of the append-only deployment log, consumed by
// external dashboards to correlate committed versions with deploys.
// Maps to: deploy_event table
type DeployEvent struct {
	EventID     uuid.UUID       `db:"event_id" json:"event_id"`
	ArtifactKey string          `db:"artifact_key" json:"artifact_key"`
	TenantID    string          `db:"tenant_id" json:"tenant_id"`
	Version     int             `db:"version" json:"version"`
	Kind        DeployEventKind `db:"kind" json:"kind"`

	DeployedBy *string `db:"deployed_by" json:"deployed_by,omitempty"`
	Notes      *string `db:"notes" json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
)

// DeployEventRepository appends to and reads the deployment log
type DeployEventRepository struct {
	db *db.DB
}

func NewDeployEventRepository(database *db.DB) *DeployEventRepository {
	return &DeployEventRepository{db: database}
}

const insertDeployEventSQL = `INSERT INTO deploy_event (event_id, artifact_key, tenant_id, version, kind, deployed_by, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())`

// Insert appends one event
func (r *DeployEventRepository) Insert(ctx context.Context, e *models.DeployEvent) error {
	_, err := r.db.Exec(ctx, insertDeployEventSQL,
		e.EventID, e.ArtifactKey, e.TenantID, e.Version, e.Kind, e.DeployedBy, e.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert deploy event: %w", err)
	}
	return nil
}

// InsertTx appends one event inside an existing transaction
func (r *DeployEventRepository) InsertTx(ctx context.Context, tx pgx.Tx, e *models.DeployEvent) error {
	_, err := tx.Exec(ctx, insertDeployEventSQL,
		e.EventID, e.ArtifactKey, e.TenantID, e.Version, e.Kind, e.DeployedBy, e.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert deploy event: %w", err)
	}
	return nil
}

// ListByArtifact returns events for an artifact, newest first. limit <= 0
// returns everything.
func (r *DeployEventRepository) ListByArtifact(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error) {
	query := `SELECT event_id, artifact_key, tenant_id, version, kind, deployed_by, notes, created_at
		FROM deploy_event
		WHERE artifact_key = $1 AND tenant_id = $2
		ORDER BY created_at DESC`

	args := []interface{}{artifactKey, tenantID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deploy events: %w", err)
	}
	defer rows.Close()

	var events []*models.DeployEvent
	for rows.Next() {
		var e models.DeployEvent
		if err := rows.Scan(&e.EventID, &e.ArtifactKey, &e.TenantID, &e.Version, &e.Kind,
			&e.DeployedBy, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deploy event: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
)

// VersionRepository handles the append-only version history
type VersionRepository struct {
	db *db.DB
}

func NewVersionRepository(database *db.DB) *VersionRepository {
	return &VersionRepository{db: database}
}

const versionColumns = `artifact_key, tenant_id, version, content, patch_id, change_description, created_at`

func scanVersion(row pgx.Row) (*models.VersionRecord, error) {
	var rec models.VersionRecord
	err := row.Scan(&rec.ArtifactKey, &rec.TenantID, &rec.Version, &rec.Content,
		&rec.PatchID, &rec.ChangeDescription, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertTx appends a version record. The primary key rejects duplicate
// version numbers, which backstops the working-copy guard.
func (r *VersionRepository) InsertTx(ctx context.Context, tx pgx.Tx, rec *models.VersionRecord) error {
	query := `INSERT INTO version_history (artifact_key, tenant_id, version, content, patch_id, change_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`

	_, err := tx.Exec(ctx, query, rec.ArtifactKey, rec.TenantID, rec.Version, rec.Content,
		rec.PatchID, rec.ChangeDescription)
	if err != nil {
		return fmt.Errorf("failed to insert version record: %w", err)
	}

	return nil
}

// Get returns one exact version
func (r *VersionRepository) Get(ctx context.Context, artifactKey, tenantID string, version int) (*models.VersionRecord, error) {
	query := `SELECT ` + versionColumns + `
		FROM version_history
		WHERE artifact_key = $1 AND tenant_id = $2 AND version = $3`

	rec, err := scanVersion(r.db.QueryRow(ctx, query, artifactKey, tenantID, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("version", artifactKey+"@"+strconv.Itoa(version))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return rec, nil
}

// List returns history for an artifact, most recent first. limit <= 0
// returns everything.
func (r *VersionRepository) List(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error) {
	query := `SELECT ` + versionColumns + `
		FROM version_history
		WHERE artifact_key = $1 AND tenant_id = $2
		ORDER BY version DESC`

	args := []interface{}{artifactKey, tenantID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var records []*models.VersionRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// MaxVersion returns the highest recorded version, 0 when history is empty
func (r *VersionRepository) MaxVersion(ctx context.Context, artifactKey, tenantID string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0)
		FROM version_history
		WHERE artifact_key = $1 AND tenant_id = $2`

	var max int
	if err := r.db.QueryRow(ctx, query, artifactKey, tenantID).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max version: %w", err)
	}

	return max, nil
}

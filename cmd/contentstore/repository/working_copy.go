package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
)

// WorkingCopyRepository handles the mutable artifact heads
type WorkingCopyRepository struct {
	db *db.DB
}

func NewWorkingCopyRepository(database *db.DB) *WorkingCopyRepository {
	return &WorkingCopyRepository{db: database}
}

const workingCopyColumns = `artifact_key, tenant_id, content, version, last_patch_id, updated_at`

func scanWorkingCopy(row pgx.Row) (*models.WorkingCopy, error) {
	var wc models.WorkingCopy
	err := row.Scan(&wc.ArtifactKey, &wc.TenantID, &wc.Content, &wc.Version, &wc.LastPatchID, &wc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &wc, nil
}

// Get returns the head for an artifact, or nil when none exists yet
func (r *WorkingCopyRepository) Get(ctx context.Context, artifactKey, tenantID string) (*models.WorkingCopy, error) {
	query := `SELECT ` + workingCopyColumns + `
		FROM working_copy
		WHERE artifact_key = $1 AND tenant_id = $2`

	wc, err := scanWorkingCopy(r.db.QueryRow(ctx, query, artifactKey, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get working copy: %w", err)
	}

	return wc, nil
}

// GetForUpdate reads the head inside a transaction with a row lock, so
// concurrent commits against the same artifact serialize.
func (r *WorkingCopyRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, artifactKey, tenantID string) (*models.WorkingCopy, error) {
	query := `SELECT ` + workingCopyColumns + `
		FROM working_copy
		WHERE artifact_key = $1 AND tenant_id = $2
		FOR UPDATE`

	wc, err := scanWorkingCopy(tx.QueryRow(ctx, query, artifactKey, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock working copy: %w", err)
	}

	return wc, nil
}

// List returns all heads for a tenant ordered by artifact key
func (r *WorkingCopyRepository) List(ctx context.Context, tenantID string) ([]*models.WorkingCopy, error) {
	query := `SELECT ` + workingCopyColumns + `
		FROM working_copy
		WHERE tenant_id = $1
		ORDER BY artifact_key`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list working copies: %w", err)
	}
	defer rows.Close()

	var copies []*models.WorkingCopy
	for rows.Next() {
		wc, err := scanWorkingCopy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan working copy: %w", err)
		}
		copies = append(copies, wc)
	}

	return copies, rows.Err()
}

// InsertTx creates the head row for a brand-new artifact
func (r *WorkingCopyRepository) InsertTx(ctx context.Context, tx pgx.Tx, wc *models.WorkingCopy) error {
	query := `INSERT INTO working_copy (artifact_key, tenant_id, content, version, last_patch_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())`

	_, err := tx.Exec(ctx, query, wc.ArtifactKey, wc.TenantID, wc.Content, wc.Version, wc.LastPatchID)
	if err != nil {
		return fmt.Errorf("failed to insert working copy: %w", err)
	}

	return nil
}

// UpdateTx advances the head, guarded by the version the caller observed.
// Returns the number of rows changed; 0 means the guard did not match.
func (r *WorkingCopyRepository) UpdateTx(ctx context.Context, tx pgx.Tx, wc *models.WorkingCopy, expectVersion int) (int64, error) {
	query := `UPDATE working_copy
		SET content = $1, version = $2, last_patch_id = $3, updated_at = now()
		WHERE artifact_key = $4 AND tenant_id = $5 AND version = $6`

	tag, err := tx.Exec(ctx, query, wc.Content, wc.Version, wc.LastPatchID, wc.ArtifactKey, wc.TenantID, expectVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to update working copy: %w", err)
	}

	return tag.RowsAffected(), nil
}

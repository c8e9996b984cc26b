package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// PatchRepository persists the single-use patch queue
type PatchRepository struct {
	db *db.DB
}

func NewPatchRepository(database *db.DB) *PatchRepository {
	return &PatchRepository{db: database}
}

const patchColumns = `patch_id, tenant_id, kind, target_artifact_hint, change_description, change_code,
	location_section, location_function, location_after_line, status, created_at, applied_at`

func scanPatch(row pgx.Row) (*models.Patch, error) {
	var p models.Patch
	err := row.Scan(&p.PatchID, &p.TenantID, &p.Kind, &p.TargetArtifactHint, &p.ChangeDescription,
		&p.ChangeCode, &p.Location.Section, &p.Location.Function, &p.Location.AfterLine,
		&p.Status, &p.CreatedAt, &p.AppliedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create stores a new pending patch
func (r *PatchRepository) Create(ctx context.Context, p *models.Patch) error {
	query := `INSERT INTO patch (patch_id, tenant_id, kind, target_artifact_hint, change_description, change_code,
			location_section, location_function, location_after_line, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`

	_, err := r.db.Exec(ctx, query, p.PatchID, p.TenantID, p.Kind, p.TargetArtifactHint,
		p.ChangeDescription, p.ChangeCode, p.Location.Section, p.Location.Function,
		p.Location.AfterLine, p.Status)
	if err != nil {
		return fmt.Errorf("failed to create patch: %w", err)
	}

	return nil
}

// GetByID returns one patch
func (r *PatchRepository) GetByID(ctx context.Context, patchID uuid.UUID) (*models.Patch, error) {
	query := `SELECT ` + patchColumns + ` FROM patch WHERE patch_id = $1`

	p, err := scanPatch(r.db.QueryRow(ctx, query, patchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("patch", patchID.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patch: %w", err)
	}

	return p, nil
}

// List returns a tenant's patches, newest first, optionally filtered by
// status. limit <= 0 returns everything.
func (r *PatchRepository) List(ctx context.Context, tenantID string, status models.PatchStatus, limit int) ([]*models.Patch, error) {
	query := `SELECT ` + patchColumns + ` FROM patch WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patches: %w", err)
	}
	defer rows.Close()

	var patches []*models.Patch
	for rows.Next() {
		p, err := scanPatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patch: %w", err)
		}
		patches = append(patches, p)
	}

	return patches, rows.Err()
}

// SetStatus transitions a patch out of pending. The WHERE guard enforces
// single use: once applied or rejected a patch never changes again.
func (r *PatchRepository) SetStatus(ctx context.Context, patchID uuid.UUID, status models.PatchStatus, appliedAt *time.Time) error {
	return r.setStatus(ctx, r.db, patchID, status, appliedAt)
}

// SetStatusTx is SetStatus inside an existing transaction
func (r *PatchRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, patchID uuid.UUID, status models.PatchStatus, appliedAt *time.Time) error {
	return r.setStatus(ctx, tx, patchID, status, appliedAt)
}

// execer is the slice of pool/tx both SetStatus paths need
type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (r *PatchRepository) setStatus(ctx context.Context, q execer, patchID uuid.UUID, status models.PatchStatus, appliedAt *time.Time) error {
	b := NewUpdate("patch").
		Set("status", status).
		Where("patch_id", patchID).
		Where("status", models.PatchStatusPending)
	if appliedAt != nil {
		b.Set("applied_at", *appliedAt)
	}

	query, args, err := b.SQL()
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update patch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either unknown or no longer pending; re-read to say which
		current, getErr := r.GetByID(ctx, patchID)
		if getErr != nil {
			return getErr
		}
		return &apperrors.PatchStateError{PatchID: patchID.String(), Status: string(current.Status)}
	}

	return nil
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/db"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// Store aggregates the per-table repositories and owns the one write path
// that must be atomic: committing a version.
type Store struct {
	db *db.DB

	WorkingCopies *WorkingCopyRepository
	Versions      *VersionRepository
	Patches       *PatchRepository
	Events        *DeployEventRepository
}

func NewStore(database *db.DB) *Store {
	return &Store{
		db:            database,
		WorkingCopies: NewWorkingCopyRepository(database),
		Versions:      NewVersionRepository(database),
		Patches:       NewPatchRepository(database),
		Events:        NewDeployEventRepository(database),
	}
}

// CommitVersion writes a commit atomically: version record, head update,
// correlation event, and optional patch retirement all land or none do.
// The head row is locked first, so a head that moved past req.BaseVersion
// surfaces as a VersionConflictError instead of a lost update.
func (s *Store) CommitVersion(ctx context.Context, req models.CommitRequest) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		head, err := s.WorkingCopies.GetForUpdate(ctx, tx, req.Record.ArtifactKey, req.Record.TenantID)
		if err != nil {
			return err
		}

		switch {
		case head == nil && req.BaseVersion != 0:
			return &apperrors.VersionConflictError{
				ArtifactKey: req.Record.ArtifactKey,
				BaseVersion: req.BaseVersion,
			}
		case head != nil && head.Version != req.BaseVersion:
			return &apperrors.VersionConflictError{
				ArtifactKey: req.Record.ArtifactKey,
				BaseVersion: req.BaseVersion,
				HeadVersion: head.Version,
			}
		}

		if err := s.Versions.InsertTx(ctx, tx, req.Record); err != nil {
			return err
		}

		if head == nil {
			if err := s.WorkingCopies.InsertTx(ctx, tx, req.WorkingCopy); err != nil {
				return err
			}
		} else {
			n, err := s.WorkingCopies.UpdateTx(ctx, tx, req.WorkingCopy, req.BaseVersion)
			if err != nil {
				return err
			}
			if n == 0 {
				return &apperrors.VersionConflictError{
					ArtifactKey: req.Record.ArtifactKey,
					BaseVersion: req.BaseVersion,
					HeadVersion: req.WorkingCopy.Version,
				}
			}
		}

		if req.Event != nil {
			if err := s.Events.InsertTx(ctx, tx, req.Event); err != nil {
				return err
			}
		}

		if req.MarkPatchApplied != nil {
			now := time.Now().UTC()
			if err := s.Patches.SetStatusTx(ctx, tx, *req.MarkPatchApplied, commonmodels.PatchStatusApplied, &now); err != nil {
				return err
			}
		}

		return nil
	})
}

// The thin pass-throughs below let the service layer depend on one
// storage interface instead of four repositories.

func (s *Store) GetWorkingCopy(ctx context.Context, artifactKey, tenantID string) (*models.WorkingCopy, error) {
	return s.WorkingCopies.Get(ctx, artifactKey, tenantID)
}

func (s *Store) ListWorkingCopies(ctx context.Context, tenantID string) ([]*models.WorkingCopy, error) {
	return s.WorkingCopies.List(ctx, tenantID)
}

func (s *Store) GetVersion(ctx context.Context, artifactKey, tenantID string, version int) (*models.VersionRecord, error) {
	return s.Versions.Get(ctx, artifactKey, tenantID, version)
}

func (s *Store) ListVersions(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error) {
	return s.Versions.List(ctx, artifactKey, tenantID, limit)
}

func (s *Store) MaxVersion(ctx context.Context, artifactKey, tenantID string) (int, error) {
	return s.Versions.MaxVersion(ctx, artifactKey, tenantID)
}

func (s *Store) CreatePatch(ctx context.Context, p *commonmodels.Patch) error {
	return s.Patches.Create(ctx, p)
}

func (s *Store) GetPatch(ctx context.Context, patchID uuid.UUID) (*commonmodels.Patch, error) {
	return s.Patches.GetByID(ctx, patchID)
}

func (s *Store) ListPatches(ctx context.Context, tenantID string, status commonmodels.PatchStatus, limit int) ([]*commonmodels.Patch, error) {
	return s.Patches.List(ctx, tenantID, status, limit)
}

func (s *Store) SetPatchStatus(ctx context.Context, patchID uuid.UUID, status commonmodels.PatchStatus, appliedAt *time.Time) error {
	return s.Patches.SetStatus(ctx, patchID, status, appliedAt)
}

func (s *Store) InsertDeployEvent(ctx context.Context, e *models.DeployEvent) error {
	return s.Events.Insert(ctx, e)
}

func (s *Store) ListDeployEvents(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error) {
	return s.Events.ListByArtifact(ctx, artifactKey, tenantID, limit)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// CreatePatch stores a new pending patch, assigning its ID when the
// producer did not.
func (s *VersionStore) CreatePatch(ctx context.Context, p *commonmodels.Patch) error {
	if p.Kind != commonmodels.PatchKindPrompt && p.Kind != commonmodels.PatchKindTool {
		return fmt.Errorf("unknown patch kind %q", p.Kind)
	}
	if p.ChangeCode == "" {
		return fmt.Errorf("patch has no change code")
	}

	if p.PatchID == uuid.Nil {
		p.PatchID = uuid.New()
	}
	p.Status = commonmodels.PatchStatusPending
	p.CreatedAt = time.Now().UTC()

	return s.storage.CreatePatch(ctx, p)
}

// GetPatch returns a patch, scoped to the tenant. A patch belonging to a
// different tenant is indistinguishable from a missing one.
func (s *VersionStore) GetPatch(ctx context.Context, tenantID string, patchID uuid.UUID) (*commonmodels.Patch, error) {
	p, err := s.storage.GetPatch(ctx, patchID)
	if err != nil {
		return nil, err
	}
	if p.TenantID != tenantID {
		return nil, apperrors.NewNotFound("patch", patchID.String())
	}
	return p, nil
}

// ListPatches returns a tenant's patches, optionally filtered by status
func (s *VersionStore) ListPatches(ctx context.Context, tenantID string, status commonmodels.PatchStatus, limit int) ([]*commonmodels.Patch, error) {
	return s.storage.ListPatches(ctx, tenantID, status, limit)
}

// RejectPatch retires a pending patch without applying it
func (s *VersionStore) RejectPatch(ctx context.Context, tenantID string, patchID uuid.UUID) error {
	if _, err := s.GetPatch(ctx, tenantID, patchID); err != nil {
		return err
	}
	return s.storage.SetPatchStatus(ctx, patchID, commonmodels.PatchStatusRejected, nil)
}

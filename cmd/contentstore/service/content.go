package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/escape"
	"github.com/mdwoicke/dentix-ortho-sub002/common/logger"
	"github.com/mdwoicke/dentix-ortho-sub002/common/merge"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/validation"
)

// ContentService is the facade collaborators talk to. It owns the
// merge → escape → validate → commit pipeline; the handlers only bind
// requests and map errors.
type ContentService struct {
	store     *VersionStore
	registry  *Registry
	merger    *merge.Merger
	validator *validation.Validator
	log       *logger.Logger
}

func NewContentService(store *VersionStore, registry *Registry, log *logger.Logger) *ContentService {
	return &ContentService{
		store:     store,
		registry:  registry,
		merger:    merge.NewMerger(),
		validator: validation.NewValidator(),
		log:       log,
	}
}

// ArtifactSummary is one row of the artifact listing
type ArtifactSummary struct {
	ArtifactKey string                   `json:"artifact_key"`
	DisplayName string                   `json:"display_name"`
	Kind        commonmodels.ArtifactKind `json:"kind"`
	Version     int                      `json:"version"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ContentResult is the current head of an artifact
type ContentResult struct {
	Content string `json:"content"`
	Version int    `json:"version"`
}

// ApplyResult is the outcome of a successful patch application or save
type ApplyResult struct {
	NewVersion int      `json:"new_version"`
	Content    string   `json:"content"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ListArtifacts seeds the tenant's configured artifacts and lists their
// heads joined with registry metadata.
func (c *ContentService) ListArtifacts(ctx context.Context, tenantID string) ([]*ArtifactSummary, error) {
	if err := c.store.EnsureSeeded(ctx, tenantID); err != nil {
		return nil, err
	}

	artifacts, err := c.registry.Artifacts(tenantID)
	if err != nil {
		return nil, err
	}
	heads, err := c.store.ListHeads(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*models.WorkingCopy, len(heads))
	for _, wc := range heads {
		byKey[wc.ArtifactKey] = wc
	}

	summaries := make([]*ArtifactSummary, 0, len(artifacts))
	for _, art := range artifacts {
		wc, ok := byKey[art.ArtifactKey]
		if !ok {
			continue
		}
		summaries = append(summaries, &ArtifactSummary{
			ArtifactKey: art.ArtifactKey,
			DisplayName: art.DisplayName,
			Kind:        art.Kind,
			Version:     wc.Version,
			UpdatedAt:   wc.UpdatedAt,
		})
	}
	return summaries, nil
}

// GetContent returns the current working copy content and version
func (c *ContentService) GetContent(ctx context.Context, artifactKey, tenantID string) (*ContentResult, error) {
	wc, err := c.store.GetCurrent(ctx, artifactKey, tenantID)
	if err != nil {
		return nil, err
	}
	return &ContentResult{Content: wc.Content, Version: wc.Version}, nil
}

// GetVersionContent returns one historical version's content
func (c *ContentService) GetVersionContent(ctx context.Context, artifactKey, tenantID string, version int) (string, error) {
	return c.store.GetVersionContent(ctx, artifactKey, tenantID, version)
}

// ApplyPatch runs the full pipeline for a stored patch: merge into the
// current head, escape (template artifacts only), validate, then commit
// and retire the patch in one transaction. Any failure leaves the artifact
// and the patch untouched.
func (c *ContentService) ApplyPatch(ctx context.Context, artifactKey, tenantID string, patchID uuid.UUID) (*ApplyResult, error) {
	patch, err := c.store.GetPatch(ctx, tenantID, patchID)
	if err != nil {
		return nil, err
	}
	if !patch.IsPending() {
		return nil, &apperrors.PatchStateError{PatchID: patchID.String(), Status: string(patch.Status)}
	}

	art, err := c.registry.Resolve(artifactKey, tenantID)
	if err != nil {
		return nil, err
	}
	wc, err := c.store.GetCurrent(ctx, artifactKey, tenantID)
	if err != nil {
		return nil, err
	}

	merged, err := c.merger.Merge(wc.Content, patch, art.Kind)
	if err != nil {
		return nil, err
	}

	candidate, warnings, err := c.gate(ctx, artifactKey, merged, art.Kind)
	if err != nil {
		return nil, err
	}

	newVersion, err := c.store.Commit(ctx, CommitInput{
		ArtifactKey:       artifactKey,
		TenantID:          tenantID,
		Content:           candidate,
		BaseVersion:       wc.Version,
		PatchID:           &patch.PatchID,
		ChangeDescription: patch.ChangeDescription,
		MarkPatchApplied:  &patch.PatchID,
	})
	if err != nil {
		return nil, err
	}

	return &ApplyResult{NewVersion: newVersion, Content: candidate, Warnings: warnings}, nil
}

// SaveDirect commits caller-supplied content, bypassing the patch-hint
// mechanism but not the escape and validation gate.
func (c *ContentService) SaveDirect(ctx context.Context, artifactKey, tenantID, content, changeDescription string) (*ApplyResult, error) {
	art, err := c.registry.Resolve(artifactKey, tenantID)
	if err != nil {
		return nil, err
	}
	wc, err := c.store.GetCurrent(ctx, artifactKey, tenantID)
	if err != nil {
		return nil, err
	}

	candidate, warnings, err := c.gate(ctx, artifactKey, content, art.Kind)
	if err != nil {
		return nil, err
	}

	newVersion, err := c.store.Commit(ctx, CommitInput{
		ArtifactKey:       artifactKey,
		TenantID:          tenantID,
		Content:           candidate,
		BaseVersion:       wc.Version,
		ChangeDescription: changeDescription,
	})
	if err != nil {
		return nil, err
	}

	return &ApplyResult{NewVersion: newVersion, Content: candidate, Warnings: warnings}, nil
}

// gate applies the escaper (template artifacts only) and the validator.
// Invalid content is discarded; no version is created.
func (c *ContentService) gate(ctx context.Context, artifactKey, content string, kind commonmodels.ArtifactKind) (string, []string, error) {
	candidate := content
	if kind.IsTemplate() {
		candidate = escape.Encode(candidate)
	}

	result := c.validator.Check(ctx, candidate, kind)
	if !result.Valid {
		return "", nil, apperrors.NewValidation(artifactKey, result.Errors)
	}
	return candidate, result.Warnings, nil
}

// Rollback produces a new forward version with an older version's content
func (c *ContentService) Rollback(ctx context.Context, artifactKey, tenantID string, targetVersion int) (int, error) {
	return c.store.Rollback(ctx, artifactKey, tenantID, targetVersion)
}

// History returns version records, most recent first
func (c *ContentService) History(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error) {
	return c.store.History(ctx, artifactKey, tenantID, limit)
}

// Diff computes the line-set difference between two versions
func (c *ContentService) Diff(ctx context.Context, artifactKey, tenantID string, v1, v2 int) (*Diff, error) {
	return c.store.DiffVersions(ctx, artifactKey, tenantID, v1, v2)
}

// SyncToDisk writes the current head back to the artifact's source path
func (c *ContentService) SyncToDisk(ctx context.Context, artifactKey, tenantID string) (bool, error) {
	art, err := c.registry.Resolve(artifactKey, tenantID)
	if err != nil {
		return false, err
	}
	wc, err := c.store.GetCurrent(ctx, artifactKey, tenantID)
	if err != nil {
		return false, err
	}

	if err := c.registry.WriteSource(art, wc.Content); err != nil {
		return false, err
	}

	c.log.WithTenant(tenantID).WithArtifact(artifactKey).Info("synced working copy to disk", "version", wc.Version)
	return true, nil
}

// MarkDeployed appends a deployed event to the deployment log
func (c *ContentService) MarkDeployed(ctx context.Context, artifactKey, tenantID string, version int, deployedBy, notes *string) error {
	return c.store.MarkDeployed(ctx, artifactKey, tenantID, version, deployedBy, notes)
}

// DeployEvents returns the deployment log for an artifact
func (c *ContentService) DeployEvents(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error) {
	return c.store.DeployEvents(ctx, artifactKey, tenantID, limit)
}

// CreatePatch stores a new pending patch for later application
func (c *ContentService) CreatePatch(ctx context.Context, tenantID string, patch *commonmodels.Patch) (*commonmodels.Patch, error) {
	patch.TenantID = tenantID
	if err := c.store.CreatePatch(ctx, patch); err != nil {
		return nil, err
	}
	return patch, nil
}

// GetPatch returns one of the tenant's patches
func (c *ContentService) GetPatch(ctx context.Context, tenantID string, patchID uuid.UUID) (*commonmodels.Patch, error) {
	return c.store.GetPatch(ctx, tenantID, patchID)
}

// ListPatches returns the tenant's patches, optionally filtered by status
func (c *ContentService) ListPatches(ctx context.Context, tenantID string, status commonmodels.PatchStatus, limit int) ([]*commonmodels.Patch, error) {
	return c.store.ListPatches(ctx, tenantID, status, limit)
}

// RejectPatch retires a pending patch without applying it
func (c *ContentService) RejectPatch(ctx context.Context, tenantID string, patchID uuid.UUID) error {
	return c.store.RejectPatch(ctx, tenantID, patchID)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/cache"
	"github.com/mdwoicke/dentix-ortho-sub002/common/logger"
	"github.com/mdwoicke/dentix-ortho-sub002/common/queue"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// versionCacheTTL bounds how long immutable version content sits in cache.
// The content never changes; the TTL only caps memory.
const versionCacheTTL = time.Hour

// Storage is the persistence surface the store needs. Implemented by
// repository.Store against Postgres and by in-memory fakes in tests.
type Storage interface {
	GetWorkingCopy(ctx context.Context, artifactKey, tenantID string) (*models.WorkingCopy, error)
	ListWorkingCopies(ctx context.Context, tenantID string) ([]*models.WorkingCopy, error)

	GetVersion(ctx context.Context, artifactKey, tenantID string, version int) (*models.VersionRecord, error)
	ListVersions(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error)
	MaxVersion(ctx context.Context, artifactKey, tenantID string) (int, error)

	CommitVersion(ctx context.Context, req models.CommitRequest) error

	CreatePatch(ctx context.Context, p *commonmodels.Patch) error
	GetPatch(ctx context.Context, patchID uuid.UUID) (*commonmodels.Patch, error)
	ListPatches(ctx context.Context, tenantID string, status commonmodels.PatchStatus, limit int) ([]*commonmodels.Patch, error)
	SetPatchStatus(ctx context.Context, patchID uuid.UUID, status commonmodels.PatchStatus, appliedAt *time.Time) error

	InsertDeployEvent(ctx context.Context, e *models.DeployEvent) error
	ListDeployEvents(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error)
}

// VersionStore manages working copies and the append-only version history
type VersionStore struct {
	storage  Storage
	registry *Registry
	cache    cache.Cache
	queue    queue.Queue
	log      *logger.Logger
}

func NewVersionStore(storage Storage, registry *Registry, c cache.Cache, q queue.Queue, log *logger.Logger) *VersionStore {
	return &VersionStore{
		storage:  storage,
		registry: registry,
		cache:    c,
		queue:    q,
		log:      log,
	}
}

// CommitInput describes one commit. BaseVersion is the head version the
// caller read before producing Content; a mismatch at commit time is a
// VersionConflictError.
type CommitInput struct {
	ArtifactKey string
	TenantID    string
	Content     string
	BaseVersion int

	PatchID           *uuid.UUID
	ChangeDescription string

	// Retire the patch in the same transaction as the commit
	MarkPatchApplied *uuid.UUID
}

// Diff is a coarse line-set difference between two versions: lines present
// in one version's line set but absent from the other's. Sufficient for
// change-volume reporting, not display-quality diffing.
type Diff struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	AddedCount   int      `json:"added_count"`
	RemovedCount int      `json:"removed_count"`
}

// GetCurrent returns the working copy, seeding version 1 from the
// artifact's source file on first access.
func (s *VersionStore) GetCurrent(ctx context.Context, artifactKey, tenantID string) (*models.WorkingCopy, error) {
	wc, err := s.storage.GetWorkingCopy(ctx, artifactKey, tenantID)
	if err != nil {
		return nil, err
	}
	if wc != nil {
		return wc, nil
	}

	if err := s.seed(ctx, artifactKey, tenantID); err != nil {
		return nil, err
	}

	wc, err = s.storage.GetWorkingCopy(ctx, artifactKey, tenantID)
	if err != nil {
		return nil, err
	}
	if wc == nil {
		return nil, fmt.Errorf("working copy for %s missing after seed", artifactKey)
	}
	return wc, nil
}

// EnsureSeeded creates working copy + version 1 for every configured
// artifact of the tenant that has none yet. Idempotent.
func (s *VersionStore) EnsureSeeded(ctx context.Context, tenantID string) error {
	artifacts, err := s.registry.Artifacts(tenantID)
	if err != nil {
		return err
	}

	for _, art := range artifacts {
		wc, err := s.storage.GetWorkingCopy(ctx, art.ArtifactKey, tenantID)
		if err != nil {
			return err
		}
		if wc != nil {
			continue
		}
		if err := s.seed(ctx, art.ArtifactKey, tenantID); err != nil {
			return err
		}
	}
	return nil
}

// ensureSeededKey seeds one artifact if it has no working copy yet. Read
// paths call this so history and snapshots exist even when the first access
// is not a GetCurrent.
func (s *VersionStore) ensureSeededKey(ctx context.Context, artifactKey, tenantID string) error {
	wc, err := s.storage.GetWorkingCopy(ctx, artifactKey, tenantID)
	if err != nil {
		return err
	}
	if wc != nil {
		return nil
	}
	return s.seed(ctx, artifactKey, tenantID)
}

func (s *VersionStore) seed(ctx context.Context, artifactKey, tenantID string) error {
	art, err := s.registry.Resolve(artifactKey, tenantID)
	if err != nil {
		return err
	}

	content, err := s.registry.ReadSource(art)
	if err != nil {
		return err
	}

	_, err = s.Commit(ctx, CommitInput{
		ArtifactKey:       artifactKey,
		TenantID:          tenantID,
		Content:           content,
		BaseVersion:       0,
		ChangeDescription: "seeded from " + art.SourcePath,
	})

	// A concurrent caller seeding the same artifact loses the race here;
	// the artifact is seeded either way.
	var conflict *apperrors.VersionConflictError
	if errors.As(err, &conflict) {
		s.log.WithTenant(tenantID).WithArtifact(artifactKey).Debug("seed lost race, artifact already seeded")
		return nil
	}
	return err
}

// Commit writes a new version atomically: working copy update, history
// append, and a version_committed correlation event. The next version is
// max(history max, working copy version) + 1 so out-of-band history inserts
// never cause a version to be reused.
func (s *VersionStore) Commit(ctx context.Context, in CommitInput) (int, error) {
	maxVersion, err := s.storage.MaxVersion(ctx, in.ArtifactKey, in.TenantID)
	if err != nil {
		return 0, err
	}
	wc, err := s.storage.GetWorkingCopy(ctx, in.ArtifactKey, in.TenantID)
	if err != nil {
		return 0, err
	}

	var headVersion int
	if wc != nil {
		headVersion = wc.Version
	}
	if in.BaseVersion != headVersion {
		return 0, &apperrors.VersionConflictError{
			ArtifactKey: in.ArtifactKey,
			BaseVersion: in.BaseVersion,
			HeadVersion: headVersion,
		}
	}

	next := maxVersion
	if headVersion > next {
		next = headVersion
	}
	next++

	now := time.Now().UTC()
	req := models.CommitRequest{
		BaseVersion: in.BaseVersion,
		WorkingCopy: &models.WorkingCopy{
			ArtifactKey: in.ArtifactKey,
			TenantID:    in.TenantID,
			Content:     in.Content,
			Version:     next,
			LastPatchID: in.PatchID,
			UpdatedAt:   now,
		},
		Record: &models.VersionRecord{
			ArtifactKey:       in.ArtifactKey,
			TenantID:          in.TenantID,
			Version:           next,
			Content:           in.Content,
			PatchID:           in.PatchID,
			ChangeDescription: in.ChangeDescription,
			CreatedAt:         now,
		},
		Event: &models.DeployEvent{
			EventID:     uuid.New(),
			ArtifactKey: in.ArtifactKey,
			TenantID:    in.TenantID,
			Version:     next,
			Kind:        models.EventVersionCommitted,
			CreatedAt:   now,
		},
		MarkPatchApplied: in.MarkPatchApplied,
	}

	if err := s.storage.CommitVersion(ctx, req); err != nil {
		return 0, err
	}

	s.cacheVersion(ctx, in.ArtifactKey, in.TenantID, next, in.Content)
	s.publishUpdate(ctx, in.ArtifactKey, in.TenantID, next)

	s.log.WithTenant(in.TenantID).WithArtifact(in.ArtifactKey).Info("version committed", "version", next)
	return next, nil
}

// Rollback re-commits an older version's content as a new forward version.
// History is never rewritten; versions never decrease.
func (s *VersionStore) Rollback(ctx context.Context, artifactKey, tenantID string, targetVersion int) (int, error) {
	rec, err := s.storage.GetVersion(ctx, artifactKey, tenantID, targetVersion)
	if err != nil {
		return 0, err
	}

	wc, err := s.GetCurrent(ctx, artifactKey, tenantID)
	if err != nil {
		return 0, err
	}

	return s.Commit(ctx, CommitInput{
		ArtifactKey:       artifactKey,
		TenantID:          tenantID,
		Content:           rec.Content,
		BaseVersion:       wc.Version,
		ChangeDescription: fmt.Sprintf("rollback to version %d", targetVersion),
	})
}

// GetVersionContent returns one historical snapshot's content. Version
// content is immutable, so cache hits never go stale.
func (s *VersionStore) GetVersionContent(ctx context.Context, artifactKey, tenantID string, version int) (string, error) {
	if err := s.ensureSeededKey(ctx, artifactKey, tenantID); err != nil {
		return "", err
	}

	key := versionCacheKey(artifactKey, tenantID, version)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return string(cached), nil
	}

	rec, err := s.storage.GetVersion(ctx, artifactKey, tenantID, version)
	if err != nil {
		return "", err
	}

	s.cacheVersion(ctx, artifactKey, tenantID, version, rec.Content)
	return rec.Content, nil
}

// History returns version records most-recent-first
func (s *VersionStore) History(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error) {
	if err := s.ensureSeededKey(ctx, artifactKey, tenantID); err != nil {
		return nil, err
	}
	return s.storage.ListVersions(ctx, artifactKey, tenantID, limit)
}

// ListHeads returns all working copies for a tenant
func (s *VersionStore) ListHeads(ctx context.Context, tenantID string) ([]*models.WorkingCopy, error) {
	return s.storage.ListWorkingCopies(ctx, tenantID)
}

// DiffVersions computes the line-set difference from v1 to v2
func (s *VersionStore) DiffVersions(ctx context.Context, artifactKey, tenantID string, v1, v2 int) (*Diff, error) {
	c1, err := s.GetVersionContent(ctx, artifactKey, tenantID, v1)
	if err != nil {
		return nil, err
	}
	c2, err := s.GetVersionContent(ctx, artifactKey, tenantID, v2)
	if err != nil {
		return nil, err
	}

	d := &Diff{
		Added:   missingLines(c2, c1),
		Removed: missingLines(c1, c2),
	}
	d.AddedCount = len(d.Added)
	d.RemovedCount = len(d.Removed)
	return d, nil
}

// missingLines returns the lines of from whose values do not appear
// anywhere in against, deduplicated, in first-seen order.
func missingLines(from, against string) []string {
	have := make(map[string]bool)
	for _, l := range strings.Split(against, "\n") {
		have[l] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, l := range strings.Split(from, "\n") {
		if !have[l] && !seen[l] {
			out = append(out, l)
			seen[l] = true
		}
	}
	return out
}

// MarkDeployed appends a deployed event for an existing version
func (s *VersionStore) MarkDeployed(ctx context.Context, artifactKey, tenantID string, version int, deployedBy, notes *string) error {
	if err := s.ensureSeededKey(ctx, artifactKey, tenantID); err != nil {
		return err
	}
	if _, err := s.storage.GetVersion(ctx, artifactKey, tenantID, version); err != nil {
		return err
	}

	return s.storage.InsertDeployEvent(ctx, &models.DeployEvent{
		EventID:     uuid.New(),
		ArtifactKey: artifactKey,
		TenantID:    tenantID,
		Version:     version,
		Kind:        models.EventDeployed,
		DeployedBy:  deployedBy,
		Notes:       notes,
		CreatedAt:   time.Now().UTC(),
	})
}

// DeployEvents returns the deployment log for an artifact, newest first
func (s *VersionStore) DeployEvents(ctx context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error) {
	if err := s.ensureSeededKey(ctx, artifactKey, tenantID); err != nil {
		return nil, err
	}
	return s.storage.ListDeployEvents(ctx, artifactKey, tenantID, limit)
}

func versionCacheKey(artifactKey, tenantID string, version int) string {
	return fmt.Sprintf("content:%s:%s:%d", tenantID, artifactKey, version)
}

func (s *VersionStore) cacheVersion(ctx context.Context, artifactKey, tenantID string, version int, content string) {
	key := versionCacheKey(artifactKey, tenantID, version)
	if err := s.cache.Set(ctx, key, []byte(content), versionCacheTTL); err != nil {
		s.log.Warn("failed to cache version content", "key", key, "error", err)
	}
}

func (s *VersionStore) publishUpdate(ctx context.Context, artifactKey, tenantID string, version int) {
	payload, err := json.Marshal(map[string]interface{}{
		"artifact_key": artifactKey,
		"tenant_id":    tenantID,
		"version":      version,
	})
	if err != nil {
		return
	}

	msgKey := tenantID + "/" + artifactKey
	if err := s.queue.Publish(ctx, queue.TopicContentUpdated, msgKey, payload); err != nil {
		s.log.Warn("failed to publish content update", "key", msgKey, "error", err)
	}
}

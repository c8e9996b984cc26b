package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/cache"
	"github.com/mdwoicke/dentix-ortho-sub002/common/logger"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
	"github.com/mdwoicke/dentix-ortho-sub002/common/queue"
)

const seedPrompt = `<Role>
You are a scheduling assistant.
</Role>
<Instructions>
Greet the caller.
</Instructions>`

const seedToolBody = `const requestType = $input.requestType;

async function executeRequest() {
  switch (requestType) {
    case 'slots':
      return await fetchSlots();
    default:
      return { error: 'unknown' };
  }
}

executeRequest();`

// fakeStorage is an in-memory Storage for service tests
type fakeStorage struct {
	mu       sync.Mutex
	copies   map[string]*models.WorkingCopy
	versions map[string][]*models.VersionRecord
	patches  map[uuid.UUID]*commonmodels.Patch
	events   []*models.DeployEvent
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		copies:   make(map[string]*models.WorkingCopy),
		versions: make(map[string][]*models.VersionRecord),
		patches:  make(map[uuid.UUID]*commonmodels.Patch),
	}
}

func storageKey(artifactKey, tenantID string) string {
	return tenantID + "/" + artifactKey
}

func (f *fakeStorage) GetWorkingCopy(_ context.Context, artifactKey, tenantID string) (*models.WorkingCopy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wc, ok := f.copies[storageKey(artifactKey, tenantID)]
	if !ok {
		return nil, nil
	}
	cp := *wc
	return &cp, nil
}

func (f *fakeStorage) ListWorkingCopies(_ context.Context, tenantID string) ([]*models.WorkingCopy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WorkingCopy
	for _, wc := range f.copies {
		if wc.TenantID == tenantID {
			cp := *wc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtifactKey < out[j].ArtifactKey })
	return out, nil
}

func (f *fakeStorage) GetVersion(_ context.Context, artifactKey, tenantID string, version int) (*models.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.versions[storageKey(artifactKey, tenantID)] {
		if rec.Version == version {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFound("version", fmt.Sprintf("%s@%d", artifactKey, version))
}

func (f *fakeStorage) ListVersions(_ context.Context, artifactKey, tenantID string, limit int) ([]*models.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recs := f.versions[storageKey(artifactKey, tenantID)]
	out := make([]*models.VersionRecord, 0, len(recs))
	for _, rec := range recs {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStorage) MaxVersion(_ context.Context, artifactKey, tenantID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, rec := range f.versions[storageKey(artifactKey, tenantID)] {
		if rec.Version > max {
			max = rec.Version
		}
	}
	return max, nil
}

func (f *fakeStorage) CommitVersion(_ context.Context, req models.CommitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := storageKey(req.Record.ArtifactKey, req.Record.TenantID)
	head := f.copies[key]

	headVersion := 0
	if head != nil {
		headVersion = head.Version
	}
	if headVersion != req.BaseVersion {
		return &apperrors.VersionConflictError{
			ArtifactKey: req.Record.ArtifactKey,
			BaseVersion: req.BaseVersion,
			HeadVersion: headVersion,
		}
	}

	rec := *req.Record
	f.versions[key] = append(f.versions[key], &rec)
	wc := *req.WorkingCopy
	f.copies[key] = &wc
	if req.Event != nil {
		ev := *req.Event
		f.events = append(f.events, &ev)
	}
	if req.MarkPatchApplied != nil {
		p, ok := f.patches[*req.MarkPatchApplied]
		if !ok {
			return apperrors.NewNotFound("patch", req.MarkPatchApplied.String())
		}
		if p.Status != commonmodels.PatchStatusPending {
			return &apperrors.PatchStateError{PatchID: p.PatchID.String(), Status: string(p.Status)}
		}
		now := time.Now().UTC()
		p.Status = commonmodels.PatchStatusApplied
		p.AppliedAt = &now
	}
	return nil
}

func (f *fakeStorage) CreatePatch(_ context.Context, p *commonmodels.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.patches[p.PatchID] = &cp
	return nil
}

func (f *fakeStorage) GetPatch(_ context.Context, patchID uuid.UUID) (*commonmodels.Patch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patches[patchID]
	if !ok {
		return nil, apperrors.NewNotFound("patch", patchID.String())
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStorage) ListPatches(_ context.Context, tenantID string, status commonmodels.PatchStatus, limit int) ([]*commonmodels.Patch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*commonmodels.Patch
	for _, p := range f.patches {
		if p.TenantID != tenantID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStorage) SetPatchStatus(_ context.Context, patchID uuid.UUID, status commonmodels.PatchStatus, appliedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patches[patchID]
	if !ok {
		return apperrors.NewNotFound("patch", patchID.String())
	}
	if p.Status != commonmodels.PatchStatusPending {
		return &apperrors.PatchStateError{PatchID: p.PatchID.String(), Status: string(p.Status)}
	}
	p.Status = status
	p.AppliedAt = appliedAt
	return nil
}

func (f *fakeStorage) InsertDeployEvent(_ context.Context, e *models.DeployEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeStorage) ListDeployEvents(_ context.Context, artifactKey, tenantID string, limit int) ([]*models.DeployEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DeployEvent
	for _, e := range f.events {
		if e.ArtifactKey == artifactKey && e.TenantID == tenantID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type testEnv struct {
	svc     *ContentService
	store   *VersionStore
	storage *fakeStorage
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tools"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "system_prompt.txt"), []byte(seedPrompt), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools", "booking.js"), []byte(seedToolBody), 0o644))

	registryYAML := fmt.Sprintf(`tenants:
  dentix:
    root: %s
    artifacts:
      system_prompt:
        kind: prompt-text
        source: prompts/system_prompt.txt
        display_name: System Prompt
      booking_tool:
        kind: javascript-tool
        source: tools/booking.js
`, dir)
	registryPath := filepath.Join(dir, "tenants.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(registryYAML), 0o644))

	registry, err := NewRegistry(registryPath)
	require.NoError(t, err)

	log := logger.New("error", "json")
	mc := cache.NewMemoryCache(log)
	t.Cleanup(func() { _ = mc.Close() })
	mq := queue.NewMemoryQueue(log)
	t.Cleanup(func() { _ = mq.Close() })

	storage := newFakeStorage()
	store := NewVersionStore(storage, registry, mc, mq, log)

	return &testEnv{
		svc:     NewContentService(store, registry, log),
		store:   store,
		storage: storage,
		dir:     dir,
	}
}

func TestVersionStore_SeedOnFirstAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wc, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	assert.Equal(t, 1, wc.Version)
	assert.Equal(t, seedPrompt, wc.Content)

	// Seeding is lazy and happens once
	again, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Version)

	require.NoError(t, env.store.EnsureSeeded(ctx, "dentix"))
	history, err := env.store.History(ctx, "system_prompt", "dentix", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestVersionStore_HistorySeedsOnFirstAccess(t *testing.T) {
	env := newTestEnv(t)

	// No prior GetCurrent: the read path itself must seed version 1
	history, err := env.store.History(context.Background(), "system_prompt", "dentix", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, seedPrompt, history[0].Content)
}

func TestVersionStore_GetVersionContentSeedsOnFirstAccess(t *testing.T) {
	env := newTestEnv(t)

	content, err := env.store.GetVersionContent(context.Background(), "booking_tool", "dentix", 1)
	require.NoError(t, err)
	assert.Equal(t, seedToolBody, content)
}

func TestVersionStore_SeedMissingSourceFile(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.Remove(filepath.Join(env.dir, "tools", "booking.js")))

	_, err := env.store.GetCurrent(context.Background(), "booking_tool", "dentix")
	var readErr *apperrors.ArtifactReadError
	require.ErrorAs(t, err, &readErr)
}

func TestVersionStore_VersionMonotonicity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wc, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		v, err := env.store.Commit(ctx, CommitInput{
			ArtifactKey:       "system_prompt",
			TenantID:          "dentix",
			Content:           fmt.Sprintf("%s\nedit %d", seedPrompt, i),
			BaseVersion:       wc.Version + i,
			ChangeDescription: fmt.Sprintf("edit %d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, wc.Version+i+1, v)
	}

	history, err := env.store.History(ctx, "system_prompt", "dentix", 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, rec := range history {
		assert.Equal(t, 5-i, rec.Version, "history must be most-recent-first with no gaps")
	}

	head, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	assert.Equal(t, 5, head.Version)
}

func TestVersionStore_CommitConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wc, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)

	_, err = env.store.Commit(ctx, CommitInput{
		ArtifactKey: "system_prompt",
		TenantID:    "dentix",
		Content:     "new head",
		BaseVersion: wc.Version,
	})
	require.NoError(t, err)

	// Second writer still holds the old base
	_, err = env.store.Commit(ctx, CommitInput{
		ArtifactKey: "system_prompt",
		TenantID:    "dentix",
		Content:     "competing edit",
		BaseVersion: wc.Version,
	})
	var conflict *apperrors.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, wc.Version, conflict.BaseVersion)
	assert.Equal(t, wc.Version+1, conflict.HeadVersion)
}

func TestVersionStore_RollbackNeverRewritesHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wc, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)

	v2, err := env.store.Commit(ctx, CommitInput{
		ArtifactKey: "system_prompt", TenantID: "dentix",
		Content: "second", BaseVersion: wc.Version,
	})
	require.NoError(t, err)
	_, err = env.store.Commit(ctx, CommitInput{
		ArtifactKey: "system_prompt", TenantID: "dentix",
		Content: "third", BaseVersion: v2,
	})
	require.NoError(t, err)

	newVersion, err := env.store.Rollback(ctx, "system_prompt", "dentix", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, newVersion, "rollback is a new forward version")

	head, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	assert.Equal(t, seedPrompt, head.Content, "head content matches the rollback target")

	// Versions 1..3 are untouched
	for v, want := range map[int]string{1: seedPrompt, 2: "second", 3: "third"} {
		content, err := env.store.GetVersionContent(ctx, "system_prompt", "dentix", v)
		require.NoError(t, err)
		assert.Equal(t, want, content)
	}

	rec, err := env.storage.GetVersion(ctx, "system_prompt", "dentix", 4)
	require.NoError(t, err)
	assert.Contains(t, rec.ChangeDescription, "rollback to version 1")
}

func TestVersionStore_Diff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	wc, err := env.store.GetCurrent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	_, err = env.store.Commit(ctx, CommitInput{
		ArtifactKey: "system_prompt", TenantID: "dentix",
		Content:     "<Role>\nYou are a scheduling assistant.\n</Role>\n<Instructions>\nGreet the caller warmly.\nCollect the patient name.\n</Instructions>",
		BaseVersion: wc.Version,
	})
	require.NoError(t, err)

	diff, err := env.store.DiffVersions(ctx, "system_prompt", "dentix", 1, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Greet the caller warmly.", "Collect the patient name."}, diff.Added)
	assert.ElementsMatch(t, []string{"Greet the caller."}, diff.Removed)
	assert.Equal(t, 2, diff.AddedCount)
	assert.Equal(t, 1, diff.RemovedCount)
}

func TestContentService_ApplyPatchLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patch, err := env.svc.CreatePatch(ctx, "dentix", &commonmodels.Patch{
		Kind:              commonmodels.PatchKindPrompt,
		ChangeDescription: "confirm appointment time",
		ChangeCode:        "Confirm the appointment time before booking.",
		Location:          commonmodels.LocationHint{Section: "Instructions"},
	})
	require.NoError(t, err)
	require.Equal(t, commonmodels.PatchStatusPending, patch.Status)

	result, err := env.svc.ApplyPatch(ctx, "system_prompt", "dentix", patch.PatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewVersion)
	assert.Contains(t, result.Content, "Confirm the appointment time before booking.\n</Instructions>")

	stored, err := env.svc.GetPatch(ctx, "dentix", patch.PatchID)
	require.NoError(t, err)
	assert.Equal(t, commonmodels.PatchStatusApplied, stored.Status)
	require.NotNil(t, stored.AppliedAt)

	// A patch is consumed exactly once
	_, err = env.svc.ApplyPatch(ctx, "system_prompt", "dentix", patch.PatchID)
	var stateErr *apperrors.PatchStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestContentService_ValidationGateLeavesStateUnchanged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	before, err := env.svc.GetContent(ctx, "booking_tool", "dentix")
	require.NoError(t, err)

	// Truncated body: entry function declared but never invoked
	truncated := "const requestType = $input.requestType;\nasync function executeRequest() {\n  return 1;\n}"
	_, err = env.svc.SaveDirect(ctx, "booking_tool", "dentix", truncated, "bad edit")
	var valErr *apperrors.ValidationError
	require.ErrorAs(t, err, &valErr)

	after, err := env.svc.GetContent(ctx, "booking_tool", "dentix")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Content, after.Content)

	history, err := env.svc.History(ctx, "booking_tool", "dentix", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed validation must not append a version")
}

func TestContentService_NoSafeInsertionPointLeavesPatchPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patch, err := env.svc.CreatePatch(ctx, "dentix", &commonmodels.Patch{
		Kind:              commonmodels.PatchKindTool,
		ChangeDescription: "add cancellation branch",
		ChangeCode:        "case 'cancel': return await cancelAppointment();",
	})
	require.NoError(t, err)

	_, err = env.svc.ApplyPatch(ctx, "booking_tool", "dentix", patch.PatchID)
	var nsip *apperrors.NoSafeInsertionPointError
	require.ErrorAs(t, err, &nsip)

	stored, err := env.svc.GetPatch(ctx, "dentix", patch.PatchID)
	require.NoError(t, err)
	assert.Equal(t, commonmodels.PatchStatusPending, stored.Status, "a failed merge must not consume the patch")

	head, err := env.svc.GetContent(ctx, "booking_tool", "dentix")
	require.NoError(t, err)
	assert.Equal(t, 1, head.Version)
}

func TestContentService_EscapeAppliedToPromptsOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.SaveDirect(ctx, "system_prompt", "dentix",
		"<Role>\nGreet {patient_name} by name.\n</Role>", "add placeholder")
	require.NoError(t, err)
	assert.Contains(t, result.Content, "{{patient_name}}", "prompt braces must be template-escaped")

	// Code artifacts keep their braces untouched
	toolResult, err := env.svc.SaveDirect(ctx, "booking_tool", "dentix", seedToolBody, "no-op edit")
	require.NoError(t, err)
	assert.Equal(t, seedToolBody, toolResult.Content)
}

func TestContentService_RejectPatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patch, err := env.svc.CreatePatch(ctx, "dentix", &commonmodels.Patch{
		Kind:       commonmodels.PatchKindTool,
		ChangeCode: "case 'x': return 1;",
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.RejectPatch(ctx, "dentix", patch.PatchID))

	stored, err := env.svc.GetPatch(ctx, "dentix", patch.PatchID)
	require.NoError(t, err)
	assert.Equal(t, commonmodels.PatchStatusRejected, stored.Status)

	// Rejected patches cannot be applied
	_, err = env.svc.ApplyPatch(ctx, "booking_tool", "dentix", patch.PatchID)
	var stateErr *apperrors.PatchStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestContentService_PatchTenantScoping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	patch, err := env.svc.CreatePatch(ctx, "dentix", &commonmodels.Patch{
		Kind:       commonmodels.PatchKindPrompt,
		ChangeCode: "Be concise.",
		Location:   commonmodels.LocationHint{Section: "Role"},
	})
	require.NoError(t, err)

	_, err = env.svc.GetPatch(ctx, "other-tenant", patch.PatchID)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestContentService_SyncToDisk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.SaveDirect(ctx, "system_prompt", "dentix",
		"<Role>\nUpdated.\n</Role>", "rewrite")
	require.NoError(t, err)

	ok, err := env.svc.SyncToDisk(ctx, "system_prompt", "dentix")
	require.NoError(t, err)
	assert.True(t, ok)

	onDisk, err := os.ReadFile(filepath.Join(env.dir, "prompts", "system_prompt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "<Role>\nUpdated.\n</Role>", string(onDisk))
}

func TestContentService_MarkDeployed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.GetContent(ctx, "system_prompt", "dentix")
	require.NoError(t, err)

	by := "ops@example.com"
	require.NoError(t, env.svc.MarkDeployed(ctx, "system_prompt", "dentix", 1, &by, nil))

	events, err := env.svc.DeployEvents(ctx, "system_prompt", "dentix", 0)
	require.NoError(t, err)

	var deployed int
	for _, e := range events {
		if e.Kind == models.EventDeployed {
			deployed++
			assert.Equal(t, 1, e.Version)
			require.NotNil(t, e.DeployedBy)
			assert.Equal(t, by, *e.DeployedBy)
		}
	}
	assert.Equal(t, 1, deployed)

	// Unknown versions cannot be marked
	err = env.svc.MarkDeployed(ctx, "system_prompt", "dentix", 99, nil, nil)
	var notFound *apperrors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestContentService_ListArtifactsSeedsEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summaries, err := env.svc.ListArtifacts(ctx, "dentix")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "booking_tool", summaries[0].ArtifactKey)
	assert.Equal(t, commonmodels.KindJavaScriptTool, summaries[0].Kind)
	assert.Equal(t, 1, summaries[0].Version)

	assert.Equal(t, "system_prompt", summaries[1].ArtifactKey)
	assert.Equal(t, "System Prompt", summaries[1].DisplayName)
}

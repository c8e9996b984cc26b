package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
	"gopkg.in/yaml.v3"
)

// registryFile mirrors the tenants.yaml layout:
//
//	tenants:
//	  dentix-ortho:
//	    root: ./content/dentix-ortho
//	    artifacts:
//	      system_prompt:
//	        kind: prompt-text
//	        source: prompts/system_prompt.txt
//	        display_name: System Prompt
type registryFile struct {
	Tenants map[string]tenantEntry `yaml:"tenants"`
}

type tenantEntry struct {
	Root      string                     `yaml:"root"`
	Artifacts map[string]models.Artifact `yaml:"artifacts"`
}

var knownKinds = map[models.ArtifactKind]bool{
	models.KindPromptText:     true,
	models.KindJSONTool:       true,
	models.KindJavaScriptTool: true,
	models.KindFlowJSON:       true,
}

// Registry holds the per-tenant artifact mapping. The mapping is fixed
// configuration loaded once at startup, never mutated afterwards, so reads
// need no locking.
type Registry struct {
	tenants map[string]map[string]*models.Artifact
}

// NewRegistry loads and validates the mapping file
func NewRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}

	tenants := make(map[string]map[string]*models.Artifact, len(file.Tenants))
	for tenantID, entry := range file.Tenants {
		artifacts := make(map[string]*models.Artifact, len(entry.Artifacts))
		for key, art := range entry.Artifacts {
			art.ArtifactKey = key
			art.TenantID = tenantID
			if !knownKinds[art.Kind] {
				return nil, fmt.Errorf("registry: tenant %s artifact %s has unknown kind %q", tenantID, key, art.Kind)
			}
			if art.SourcePath == "" {
				return nil, fmt.Errorf("registry: tenant %s artifact %s has no source path", tenantID, key)
			}
			art.SourcePath = filepath.Join(entry.Root, art.SourcePath)
			if art.DisplayName == "" {
				art.DisplayName = key
			}
			artifacts[key] = &art
		}
		tenants[tenantID] = artifacts
	}

	return &Registry{tenants: tenants}, nil
}

// Resolve maps an artifact key to its tenant-scoped metadata
func (r *Registry) Resolve(artifactKey, tenantID string) (*models.Artifact, error) {
	artifacts, ok := r.tenants[tenantID]
	if !ok {
		return nil, apperrors.NewNotFound("tenant", tenantID)
	}
	art, ok := artifacts[artifactKey]
	if !ok {
		return nil, apperrors.NewNotFound("artifact", artifactKey)
	}
	return art, nil
}

// Artifacts returns a tenant's full mapping, sorted by key
func (r *Registry) Artifacts(tenantID string) ([]*models.Artifact, error) {
	artifacts, ok := r.tenants[tenantID]
	if !ok {
		return nil, apperrors.NewNotFound("tenant", tenantID)
	}

	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*models.Artifact, 0, len(keys))
	for _, k := range keys {
		out = append(out, artifacts[k])
	}
	return out, nil
}

// Tenants returns the configured tenant IDs, sorted
func (r *Registry) Tenants() []string {
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadSource loads an artifact's canonical on-disk content
func (r *Registry) ReadSource(art *models.Artifact) (string, error) {
	raw, err := os.ReadFile(art.SourcePath)
	if err != nil {
		return "", &apperrors.ArtifactReadError{SourcePath: art.SourcePath, Err: err}
	}
	return string(raw), nil
}

// WriteSource writes content back to the artifact's canonical location,
// overwriting whatever is there.
func (r *Registry) WriteSource(art *models.Artifact, content string) error {
	if err := os.WriteFile(art.SourcePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write artifact source %s: %w", art.SourcePath, err)
	}
	return nil
}

package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdwoicke/dentix-ortho-sub002/common/apperrors"
	commonmodels "github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

func writeRegistry(t *testing.T, yaml string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	reg, err := NewRegistry(path)
	require.NoError(t, err)
	return reg
}

func TestRegistry_Resolve(t *testing.T) {
	reg := writeRegistry(t, `tenants:
  dentix:
    root: /srv/content/dentix
    artifacts:
      system_prompt:
        kind: prompt-text
        source: prompts/system_prompt.txt
        display_name: System Prompt
      booking_tool:
        kind: javascript-tool
        source: tools/booking.js
`)

	art, err := reg.Resolve("system_prompt", "dentix")
	require.NoError(t, err)
	assert.Equal(t, commonmodels.KindPromptText, art.Kind)
	assert.Equal(t, "dentix", art.TenantID)
	assert.Equal(t, "/srv/content/dentix/prompts/system_prompt.txt", art.SourcePath)
	assert.Equal(t, "System Prompt", art.DisplayName)

	// Display name falls back to the key
	tool, err := reg.Resolve("booking_tool", "dentix")
	require.NoError(t, err)
	assert.Equal(t, "booking_tool", tool.DisplayName)
}

func TestRegistry_UnknownTenantAndArtifact(t *testing.T) {
	reg := writeRegistry(t, `tenants:
  dentix:
    root: /srv
    artifacts:
      system_prompt:
        kind: prompt-text
        source: p.txt
`)

	var notFound *apperrors.NotFoundError
	_, err := reg.Resolve("system_prompt", "nope")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "tenant", notFound.Resource)

	_, err = reg.Resolve("nope", "dentix")
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "artifact", notFound.Resource)
}

func TestRegistry_RejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tenants:
  dentix:
    root: /srv
    artifacts:
      weird:
        kind: python-tool
        source: w.py
`), 0o644))

	_, err := NewRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestRegistry_ArtifactsSortedPerTenant(t *testing.T) {
	reg := writeRegistry(t, `tenants:
  a:
    root: /srv/a
    artifacts:
      zeta:
        kind: prompt-text
        source: z.txt
      alpha:
        kind: prompt-text
        source: a.txt
  b:
    root: /srv/b
    artifacts:
      only:
        kind: flow-json
        source: o.json
`)

	arts, err := reg.Artifacts("a")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "alpha", arts[0].ArtifactKey)
	assert.Equal(t, "zeta", arts[1].ArtifactKey)

	assert.Equal(t, []string{"a", "b"}, reg.Tenants())
}

func TestRegistry_ReadSourceMissingFile(t *testing.T) {
	reg := writeRegistry(t, `tenants:
  dentix:
    root: /nonexistent
    artifacts:
      system_prompt:
        kind: prompt-text
        source: p.txt
`)

	art, err := reg.Resolve("system_prompt", "dentix")
	require.NoError(t, err)

	_, err = reg.ReadSource(art)
	var readErr *apperrors.ArtifactReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "/nonexistent/p.txt", readErr.SourcePath)
}

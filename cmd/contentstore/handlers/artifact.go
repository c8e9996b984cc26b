package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/container"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/middleware"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/service"
	"github.com/mdwoicke/dentix-ortho-sub002/common/bootstrap"
)

// ArtifactHandler handles HTTP requests for artifact content
type ArtifactHandler struct {
	components *bootstrap.Components
	content    *service.ContentService
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(c *container.Container) *ArtifactHandler {
	return &ArtifactHandler{
		components: c.Components,
		content:    c.ContentService,
	}
}

// ListArtifacts lists the tenant's artifacts with their head versions
// GET /api/v1/artifacts
func (h *ArtifactHandler) ListArtifacts(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	summaries, err := h.content.ListArtifacts(ctx, tenantID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"artifacts": summaries,
	})
}

// GetContent returns the current working copy
// GET /api/v1/artifacts/:artifact_key
func (h *ArtifactHandler) GetContent(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	result, err := h.content.GetContent(ctx, artifactKey, tenantID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// SaveDirect commits caller-supplied content through the escape+validate gate
// PUT /api/v1/artifacts/:artifact_key
func (h *ArtifactHandler) SaveDirect(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	var req struct {
		Content           string `json:"content"`
		ChangeDescription string `json:"change_description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "content is required",
		})
	}

	h.components.Logger.Info("saving artifact content",
		"tenant_id", tenantID,
		"artifact_key", artifactKey,
	)

	result, err := h.content.SaveDirect(ctx, artifactKey, tenantID, req.Content, req.ChangeDescription)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// SyncToDisk writes the current head back to the artifact's source path
// POST /api/v1/artifacts/:artifact_key/sync
func (h *ArtifactHandler) SyncToDisk(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	synced, err := h.content.SyncToDisk(ctx, artifactKey, tenantID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"synced": synced,
	})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/container"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/middleware"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/service"
	"github.com/mdwoicke/dentix-ortho-sub002/common/bootstrap"
)

// VersionHandler handles HTTP requests for version history
type VersionHandler struct {
	components *bootstrap.Components
	content    *service.ContentService
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(c *container.Container) *VersionHandler {
	return &VersionHandler{
		components: c.Components,
		content:    c.ContentService,
	}
}

// History returns version records, most recent first
// GET /api/v1/artifacts/:artifact_key/versions?limit=20
func (h *VersionHandler) History(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": "limit must be a non-negative integer",
			})
		}
	}

	records, err := h.content.History(ctx, artifactKey, tenantID, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions": records,
	})
}

// GetVersionContent returns one historical snapshot's content
// GET /api/v1/artifacts/:artifact_key/versions/:version
func (h *VersionHandler) GetVersionContent(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "version must be a positive integer",
		})
	}

	content, err := h.content.GetVersionContent(ctx, artifactKey, tenantID, version)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version": version,
		"content": content,
	})
}

// Rollback re-commits an older version's content as a new forward version
// POST /api/v1/artifacts/:artifact_key/rollback
func (h *VersionHandler) Rollback(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	var req struct {
		TargetVersion int `json:"target_version"`
	}
	if err := c.Bind(&req); err != nil || req.TargetVersion < 1 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "target_version is required and must be a positive integer",
		})
	}

	h.components.Logger.Info("rolling back artifact",
		"tenant_id", tenantID,
		"artifact_key", artifactKey,
		"target_version", req.TargetVersion,
	)

	newVersion, err := h.content.Rollback(ctx, artifactKey, tenantID, req.TargetVersion)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"new_version": newVersion,
	})
}

// Diff returns the line-set difference between two versions
// GET /api/v1/artifacts/:artifact_key/diff?from=1&to=2
func (h *VersionHandler) Diff(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	from, err1 := strconv.Atoi(c.QueryParam("from"))
	to, err2 := strconv.Atoi(c.QueryParam("to"))
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "from and to query params are required positive integers",
		})
	}

	diff, err := h.content.Diff(ctx, artifactKey, tenantID, from, to)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, diff)
}

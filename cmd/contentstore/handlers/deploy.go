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

// DeployHandler handles HTTP requests for the deployment log
type DeployHandler struct {
	components *bootstrap.Components
	content    *service.ContentService
}

// NewDeployHandler creates a new deploy handler
func NewDeployHandler(c *container.Container) *DeployHandler {
	return &DeployHandler{
		components: c.Components,
		content:    c.ContentService,
	}
}

// MarkDeployed appends a deployed event for an existing version
// POST /api/v1/artifacts/:artifact_key/versions/:version/deployed
func (h *DeployHandler) MarkDeployed(c echo.Context) error {
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

	var req struct {
		DeployedBy *string `json:"deployed_by"`
		Notes      *string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	if err := h.content.MarkDeployed(ctx, artifactKey, tenantID, version, req.DeployedBy, req.Notes); err != nil {
		return writeError(c, err)
	}

	h.components.Logger.Info("version marked deployed",
		"tenant_id", tenantID,
		"artifact_key", artifactKey,
		"version", version,
	)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"marked": true,
	})
}

// ListDeployEvents returns the deployment log for an artifact
// GET /api/v1/artifacts/:artifact_key/deploy-events?limit=20
func (h *DeployHandler) ListDeployEvents(c echo.Context) error {
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

	events, err := h.content.DeployEvents(ctx, artifactKey, tenantID, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

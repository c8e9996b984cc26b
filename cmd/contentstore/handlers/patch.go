package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/container"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/middleware"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/service"
	"github.com/mdwoicke/dentix-ortho-sub002/common/bootstrap"
	"github.com/mdwoicke/dentix-ortho-sub002/common/models"
)

// PatchHandler handles HTTP requests for the patch lifecycle
type PatchHandler struct {
	components *bootstrap.Components
	content    *service.ContentService
}

// NewPatchHandler creates a new patch handler
func NewPatchHandler(c *container.Container) *PatchHandler {
	return &PatchHandler{
		components: c.Components,
		content:    c.ContentService,
	}
}

// CreatePatch stores a new pending patch
// POST /api/v1/patches
func (h *PatchHandler) CreatePatch(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	var req struct {
		Kind               models.PatchKind    `json:"kind"`
		TargetArtifactHint string              `json:"target_artifact_hint"`
		ChangeDescription  string              `json:"change_description"`
		ChangeCode         string              `json:"change_code"`
		Location           models.LocationHint `json:"location"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}
	if req.ChangeCode == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "change_code is required",
		})
	}
	if req.Kind != models.PatchKindPrompt && req.Kind != models.PatchKindTool {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "kind must be prompt or tool",
		})
	}

	patch, err := h.content.CreatePatch(ctx, tenantID, &models.Patch{
		Kind:               req.Kind,
		TargetArtifactHint: req.TargetArtifactHint,
		ChangeDescription:  req.ChangeDescription,
		ChangeCode:         req.ChangeCode,
		Location:           req.Location,
	})
	if err != nil {
		return writeError(c, err)
	}

	h.components.Logger.Info("patch created",
		"tenant_id", tenantID,
		"patch_id", patch.PatchID,
		"kind", patch.Kind,
	)

	return c.JSON(http.StatusCreated, patch)
}

// ListPatches lists the tenant's patches, optionally filtered by status
// GET /api/v1/patches?status=pending&limit=20
func (h *PatchHandler) ListPatches(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	status := models.PatchStatus(c.QueryParam("status"))
	switch status {
	case "", models.PatchStatusPending, models.PatchStatusApplied, models.PatchStatusRejected:
	default:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "status must be pending, applied, or rejected",
		})
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

	patches, err := h.content.ListPatches(ctx, tenantID, status, limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"patches": patches,
	})
}

// GetPatch returns one patch
// GET /api/v1/patches/:patch_id
func (h *PatchHandler) GetPatch(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	patchID, err := uuid.Parse(c.Param("patch_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "patch_id must be a UUID",
		})
	}

	patch, err := h.content.GetPatch(ctx, tenantID, patchID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, patch)
}

// RejectPatch retires a pending patch without applying it
// POST /api/v1/patches/:patch_id/reject
func (h *PatchHandler) RejectPatch(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	patchID, err := uuid.Parse(c.Param("patch_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "patch_id must be a UUID",
		})
	}

	if err := h.content.RejectPatch(ctx, tenantID, patchID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": models.PatchStatusRejected,
	})
}

// ApplyPatch runs merge → escape → validate → commit for a stored patch
// POST /api/v1/artifacts/:artifact_key/patches/:patch_id/apply
func (h *PatchHandler) ApplyPatch(c echo.Context) error {
	ctx := c.Request().Context()
	artifactKey := c.Param("artifact_key")

	tenantID, err := middleware.RequireTenant(c)
	if err != nil {
		return err
	}

	patchID, err := uuid.Parse(c.Param("patch_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "patch_id must be a UUID",
		})
	}

	h.components.Logger.Info("applying patch",
		"tenant_id", tenantID,
		"artifact_key", artifactKey,
		"patch_id", patchID,
	)

	result, err := h.content.ApplyPatch(ctx, artifactKey, tenantID, patchID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

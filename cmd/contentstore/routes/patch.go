package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/container"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/handlers"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/middleware"
)

// RegisterPatchRoutes registers patch lifecycle routes
func RegisterPatchRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewPatchHandler(c)

	patches := e.Group("/api/v1/patches")
	patches.Use(middleware.ExtractTenant())
	{
		patches.POST("", h.CreatePatch)
		patches.GET("", h.ListPatches)
		patches.GET("/:patch_id", h.GetPatch)
		patches.POST("/:patch_id/reject", h.RejectPatch)
	}

	// Application targets a specific artifact
	artifacts := e.Group("/api/v1/artifacts")
	artifacts.Use(middleware.ExtractTenant())
	{
		artifacts.POST("/:artifact_key/patches/:patch_id/apply", h.ApplyPatch)
	}
}

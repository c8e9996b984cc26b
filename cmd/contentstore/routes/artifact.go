package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/container"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/handlers"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/middleware"
)

// RegisterArtifactRoutes registers artifact content and version routes
func RegisterArtifactRoutes(e *echo.Echo, c *container.Container) {
	artifactHandler := handlers.NewArtifactHandler(c)
	versionHandler := handlers.NewVersionHandler(c)
	deployHandler := handlers.NewDeployHandler(c)

	artifacts := e.Group("/api/v1/artifacts")
	artifacts.Use(middleware.ExtractTenant())
	{
		artifacts.GET("", artifactHandler.ListArtifacts)
		artifacts.GET("/:artifact_key", artifactHandler.GetContent)
		artifacts.PUT("/:artifact_key", artifactHandler.SaveDirect)
		artifacts.POST("/:artifact_key/sync", artifactHandler.SyncToDisk)

		artifacts.GET("/:artifact_key/versions", versionHandler.History)
		artifacts.GET("/:artifact_key/versions/:version", versionHandler.GetVersionContent)
		artifacts.POST("/:artifact_key/rollback", versionHandler.Rollback)
		artifacts.GET("/:artifact_key/diff", versionHandler.Diff)

		artifacts.POST("/:artifact_key/versions/:version/deployed", deployHandler.MarkDeployed)
		artifacts.GET("/:artifact_key/deploy-events", deployHandler.ListDeployEvents)
	}
}

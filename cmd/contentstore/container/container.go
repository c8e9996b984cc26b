package container

import (
	"fmt"

	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/repository"
	"github.com/mdwoicke/dentix-ortho-sub002/cmd/contentstore/service"
	"github.com/mdwoicke/dentix-ortho-sub002/common/bootstrap"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	Store *repository.Store

	// Services
	Registry       *service.Registry
	VersionStore   *service.VersionStore
	ContentService *service.ContentService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	// Initialize repositories
	store := repository.NewStore(components.DB)

	// Load the fixed tenant → artifact mapping
	registry, err := service.NewRegistry(components.Config.Registry.TenantsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant registry: %w", err)
	}

	// Initialize services (bottom-up: dependencies first)
	versionStore := service.NewVersionStore(
		store,
		registry,
		components.Cache,
		components.Queue,
		components.Logger,
	)
	contentService := service.NewContentService(versionStore, registry, components.Logger)

	return &Container{
		Components:     components,
		Store:          store,
		Registry:       registry,
		VersionStore:   versionStore,
		ContentService: contentService,
	}, nil
}

package settings

import (
	"context"

	"github.com/alatoul/ride-hailing/pkg/models"
)

// RepositoryInterface defines the settings storage operations
type RepositoryInterface interface {
	GetOrCreate(ctx context.Context, defaults models.Settings) (*models.Settings, error)
	// Update locks the row for defaults.Key, creating it first if needed,
	// runs apply on it and writes the result. apply may run more than once.
	Update(ctx context.Context, defaults models.Settings, apply func(*models.Settings)) (*models.Settings, error)
}

// ServiceInterface is what the HTTP handler needs from the service
type ServiceInterface interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) (*models.Settings, error)
	UpdatePricing(ctx context.Context, req *models.UpdatePricingRequest) (*models.Settings, error)
}

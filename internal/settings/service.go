package settings

import (
	"context"
	"time"

	"github.com/alatoul/ride-hailing/pkg/async"
	"github.com/alatoul/ride-hailing/pkg/common"
	"github.com/alatoul/ride-hailing/pkg/eventbus"
	"github.com/alatoul/ride-hailing/pkg/logger"
	"github.com/alatoul/ride-hailing/pkg/models"
	"github.com/alatoul/ride-hailing/pkg/tracing"
	"github.com/alatoul/ride-hailing/pkg/validation"
	"go.uber.org/zap"
)

const (
	eventSource    = "settings-service"
	publishTimeout = 5 * time.Second
)

// Service owns the platform settings row. Nothing is cached: every read
// goes to the repository so rate changes apply to the next quote.
type Service struct {
	repo      RepositoryInterface
	publisher eventbus.Publisher
}

// NewService creates a settings service. publisher may be nil.
func NewService(repo RepositoryInterface, publisher eventbus.Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// GetSettings returns the settings row, creating it with defaults on first use.
func (s *Service) GetSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := s.repo.GetOrCreate(ctx, models.DefaultSettings())
	if err != nil {
		return nil, common.NewInternalError("failed to load settings", err)
	}
	return settings, nil
}

// GetPricing returns the current fare rates.
func (s *Service) GetPricing(ctx context.Context) (models.Pricing, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return models.Pricing{}, err
	}
	return settings.Pricing(), nil
}

// UpdateSettings applies a partial update of any settings field.
func (s *Service) UpdateSettings(ctx context.Context, req *models.UpdateSettingsRequest) (*models.Settings, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	return s.update(ctx, "UpdateSettings", req.Apply)
}

// UpdatePricing applies a partial update of the fare rates only.
func (s *Service) UpdatePricing(ctx context.Context, req *models.UpdatePricingRequest) (*models.Settings, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	return s.update(ctx, "UpdatePricing", req.Apply)
}

func (s *Service) update(ctx context.Context, op string, apply func(*models.Settings)) (*models.Settings, error) {
	ctx, span := tracing.StartSpan(ctx, eventSource, op)
	defer span.End()

	var before models.Pricing
	settings, err := s.repo.Update(ctx, models.DefaultSettings(), func(row *models.Settings) {
		before = row.Pricing()
		apply(row)
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, common.NewInternalError("failed to update settings", err)
	}

	if after := settings.Pricing(); after != before {
		logger.InfoContext(ctx, "pricing updated",
			zap.Float64("platform_fee_percent", after.PlatformFeePercent),
			zap.Float64("minimum_fare", after.MinimumFare),
			zap.Float64("base_rate_per_mile", after.BaseRatePerMile),
			zap.Float64("base_rate_per_minute", after.BaseRatePerMinute),
		)
		s.announcePricing(ctx, settings)
	}

	return settings, nil
}

func (s *Service) announcePricing(ctx context.Context, settings *models.Settings) {
	if s.publisher == nil {
		return
	}

	p := settings.Pricing()
	event, err := eventbus.NewEvent(eventbus.SubjectPricingUpdated, eventSource, eventbus.PricingUpdatedData{
		PlatformFeePercent: p.PlatformFeePercent,
		MinimumFare:        p.MinimumFare,
		BaseRatePerMile:    p.BaseRatePerMile,
		BaseRatePerMinute:  p.BaseRatePerMinute,
		UpdatedAt:          settings.UpdatedAt,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to build pricing event", zap.Error(err))
		return
	}

	async.GoWithTimeout(ctx, "publish-pricing-updated", publishTimeout, func(ctx context.Context) {
		if err := s.publisher.Publish(ctx, eventbus.SubjectPricingUpdated, event); err != nil {
			logger.WarnContext(ctx, "failed to publish pricing event", zap.Error(err))
		}
	})
}

package container

import (
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/repository"
	"github.com/lyzr/adstudio/cmd/adstudio/service"
	"github.com/lyzr/adstudio/common/bootstrap"
	"github.com/lyzr/adstudio/common/ratelimit"
	"github.com/lyzr/adstudio/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	VersionRepo *repository.VersionRepository
	MixerRepo   *repository.MixerRepository
	AdRepo      *repository.AdRepository

	// Services
	VersionService *service.VersionService
	MixerService   *service.MixerService
	StudioService  *service.StudioService
	AdService      *service.AdService

	// RateLimiter is nil unless write rate limiting is enabled
	RateLimiter  *ratelimit.RateLimiter
	RatePolicies ratelimit.Policies
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	if components.Store == nil {
		return nil, fmt.Errorf("container requires a store")
	}

	rules, err := validation.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create content rules: %w", err)
	}

	// Initialize repositories
	versionRepo := repository.NewVersionRepository(components.Store)
	mixerRepo := repository.NewMixerRepository(components.Store)
	adRepo := repository.NewAdRepository(components.Store)

	// Initialize services (bottom-up: dependencies first)
	var publisher service.EventPublisher
	if components.Queue != nil {
		publisher = components.Queue
	}

	versionService := service.NewVersionService(
		versionRepo,
		adRepo,
		service.NewContentNormalizer(rules),
		components.Logger,
	)
	mixerService := service.NewMixerService(
		versionService,
		mixerRepo,
		adRepo,
		publisher,
		components.Telemetry,
		service.MixerOptionsFromConfig(components.Config),
		components.Logger,
	)
	studioService := service.NewStudioService(versionService, mixerService, components.Logger)
	adService := service.NewAdService(adRepo, versionService, mixerService, components.Logger)

	var limiter *ratelimit.RateLimiter
	if components.Config.RateLimit.Enabled && components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(
			components.Redis.GetUnderlying(),
			components.Config.Store.KeyPrefix,
			components.Logger,
		)
	}

	return &Container{
		Components:     components,
		VersionRepo:    versionRepo,
		MixerRepo:      mixerRepo,
		AdRepo:         adRepo,
		VersionService: versionService,
		MixerService:   mixerService,
		StudioService:  studioService,
		AdService:      adService,
		RateLimiter:    limiter,
		RatePolicies:   ratelimit.PoliciesFromConfig(components.Config.RateLimit),
	}, nil
}

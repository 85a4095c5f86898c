package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/content-review/internal/config"
	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/factory"
	"github.com/mikey/content-review/internal/keyword"
	"github.com/mikey/content-review/internal/logging"
	"github.com/mikey/content-review/internal/ports"
	"github.com/mikey/content-review/internal/rules"
	"github.com/mikey/content-review/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideReviewPipeline(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register review service
	if err := container.Provide(func(
		matcher core.RuleMatcher,
		censor core.RemoteCensor,
		cacheRepo core.CacheRepository,
		f *factory.CacheFactory,
		logger *zap.Logger,
	) (*core.ReviewService, error) {
		ttl, err := f.GetCacheTTL()
		if err != nil {
			return nil, err
		}
		return core.NewReviewService(matcher, censor, cacheRepo, logger.Named("review"), f.IsCacheEnabled(), ttl), nil
	}); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(logger *zap.Logger) *utils.TextProcessor {
		return utils.NewTextProcessor(logger.Named("text"))
	}); err != nil {
		return nil, err
	}

	// Register frontends
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory) ([]ports.Frontend, error) {
		return f.CreateFrontends()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideReviewPipeline registers the rule store, the keyword matcher and
// the remote censor
func provideReviewPipeline(container *dig.Container) error {
	if err := container.Provide(factory.NewRuleStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.RuleStoreFactory) (*rules.Store, error) {
		return f.CreateRuleStore()
	}); err != nil {
		return err
	}

	if err := container.Provide(func(store *rules.Store, logger *zap.Logger) core.RuleMatcher {
		return keyword.NewMatcher(store, logger.Named("keyword"))
	}); err != nil {
		return err
	}

	if err := container.Provide(factory.NewCensorFactory); err != nil {
		return err
	}
	return container.Provide(func(f *factory.CensorFactory) (core.RemoteCensor, error) {
		return f.CreateRemoteCensor()
	})
}

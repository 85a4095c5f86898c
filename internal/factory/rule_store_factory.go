package factory

import (
	"github.com/mikey/content-review/internal/config"
	"github.com/mikey/content-review/internal/rules"
	"go.uber.org/zap"
)

// RuleStoreFactory creates the rule store backed by the configured file
type RuleStoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewRuleStoreFactory creates a new rule store factory
func NewRuleStoreFactory(cfg *config.Config, logger *zap.Logger) *RuleStoreFactory {
	return &RuleStoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRuleStore creates the store and loads the rule file. A file that
// cannot be loaded leaves the store empty.
func (f *RuleStoreFactory) CreateRuleStore() (*rules.Store, error) {
	rulesCfg := f.cfg.GetRules()
	logger := f.logger.Named("rules")

	file, err := rules.NewCSVFile(rulesCfg.Path, rulesCfg.Encoding, logger)
	if err != nil {
		return nil, err
	}

	store := rules.NewStore(file, logger)
	if _, err := store.Load(); err != nil {
		logger.Warn("Starting with an empty rule set",
			zap.String("path", rulesCfg.Path),
			zap.Error(err))
	}
	return store, nil
}

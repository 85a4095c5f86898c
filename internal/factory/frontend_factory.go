package factory

import (
	"fmt"

	"github.com/mikey/content-review/internal/adapters/httpapi"
	"github.com/mikey/content-review/internal/adapters/smtpintake"
	"github.com/mikey/content-review/internal/config"
	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/ports"
	"github.com/mikey/content-review/internal/rules"
	"github.com/mikey/content-review/internal/utils"
	"go.uber.org/zap"
)

// FrontendFactory creates the enabled intake surfaces
type FrontendFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.ReviewService
	store         *rules.Store
	textProcessor *utils.TextProcessor
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.ReviewService,
	store *rules.Store,
	textProcessor *utils.TextProcessor,
) *FrontendFactory {
	return &FrontendFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		store:         store,
		textProcessor: textProcessor,
	}
}

// CreateFrontends creates every frontend enabled in the configuration
func (f *FrontendFactory) CreateFrontends() ([]ports.Frontend, error) {
	var frontends []ports.Frontend

	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	if serverCfg.Enabled {
		frontends = append(frontends, httpapi.NewServer(f.service, f.store, f.logger.Named("http"), httpapi.Options{
			ListenAddress: serverCfg.ListenAddress,
			MaxImageBytes: serverCfg.MaxImageBytes,
			MaxTextBytes:  serverCfg.MaxTextBytes,
			ReadTimeout:   serverCfg.ReadTimeout,
			WriteTimeout:  serverCfg.WriteTimeout,
		}))
	}

	smtpCfg := f.cfg.GetSMTP()
	if smtpCfg.Enabled {
		frontends = append(frontends, smtpintake.NewGateway(f.service, f.textProcessor, f.logger.Named("smtp"), smtpintake.Options{
			ListenAddress: smtpCfg.ListenAddress,
			Domain:        smtpCfg.Domain,
			BlockRejected: smtpCfg.BlockRejected,
			MaxBodySize:   smtpCfg.MaxBodySize,
			RelayEnabled:  smtpCfg.RelayEnabled,
			RelayAddress:  smtpCfg.RelayAddress,
			RelayPort:     smtpCfg.RelayPort,
			StatusHeader:  smtpCfg.StatusHeader,
			ReasonHeader:  smtpCfg.ReasonHeader,
		}))
	}

	if len(frontends) == 0 {
		return nil, fmt.Errorf("%w: neither server nor smtp frontend is enabled", core.ErrConfiguration)
	}
	return frontends, nil
}

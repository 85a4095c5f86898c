package factory

import (
	"fmt"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/mikey/content-review/internal/adapters/baidu"
	"github.com/mikey/content-review/internal/adapters/openai"
	"github.com/mikey/content-review/internal/config"
	"github.com/mikey/content-review/internal/core"
	"go.uber.org/zap"
)

// CensorFactory creates the remote censor selected in the configuration
type CensorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCensorFactory creates a new censor factory
func NewCensorFactory(cfg *config.Config, logger *zap.Logger) *CensorFactory {
	return &CensorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRemoteCensor creates a remote censor based on the configuration
func (f *CensorFactory) CreateRemoteCensor() (core.RemoteCensor, error) {
	provider := f.cfg.GetCensor().Provider

	switch provider {
	case "baidu":
		return f.createBaidu()
	case "openai":
		return f.createOpenAI()
	default:
		return nil, fmt.Errorf("%w: unsupported censor provider: %s", core.ErrConfiguration, provider)
	}
}

func (f *CensorFactory) createBaidu() (core.RemoteCensor, error) {
	baiduCfg, err := f.cfg.GetBaidu()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	httpClient := cleanhttp.DefaultPooledClient()
	tokens, err := baidu.NewCredentialCache(
		httpClient,
		baiduCfg.TokenURL,
		baiduCfg.APIKey,
		baiduCfg.SecretKey,
		baiduCfg.TokenTimeout,
		baiduCfg.ExpirySkew,
		f.logger.Named("credentials"),
	)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Using Baidu content censor", zap.String("text_url", baiduCfg.TextURL))
	return baidu.NewClient(
		httpClient,
		tokens,
		baiduCfg.TextURL,
		baiduCfg.ImageURL,
		baiduCfg.TextTimeout,
		baiduCfg.ImageTimeout,
		f.logger.Named("baidu"),
	), nil
}

func (f *CensorFactory) createOpenAI() (core.RemoteCensor, error) {
	openaiCfg, err := f.cfg.GetOpenAI()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	f.logger.Info("Using OpenAI moderation", zap.String("model", openaiCfg.ModelName))
	return openai.NewCensorFromConfig(
		openaiCfg.APIKey,
		openaiCfg.BaseURL,
		openaiCfg.ModelName,
		openaiCfg.Timeout,
		f.logger.Named("openai"),
	)
}

package di

import (
	"flag"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/content-review/internal/config"
	"github.com/mikey/content-review/internal/core"
	"github.com/mikey/content-review/internal/logging"
	"github.com/mikey/content-review/internal/utils"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Provider flags
	Provider        string
	BaiduAPIKey     string
	BaiduSecretKey  string
	OpenAIAPIKey    string
	OpenAIModelName string

	// Rule flags
	RulesPath     string
	RulesEncoding string

	// Input flags
	Text        string
	InputFile   string
	ImageFile   string
	MaxBodySize int
	JSONOutput  bool

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.StringVar(&flags.Provider, "provider", "baidu", "Censor provider (baidu, openai)")
	flag.StringVar(&flags.BaiduAPIKey, "baidu-api-key", "", "Baidu API key")
	flag.StringVar(&flags.BaiduSecretKey, "baidu-secret-key", "", "Baidu secret key")
	flag.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")
	flag.StringVar(&flags.OpenAIModelName, "openai-model", "omni-moderation-latest", "OpenAI moderation model")

	flag.StringVar(&flags.RulesPath, "rules", "./public/assets/text_check.csv", "Keyword rule file")
	flag.StringVar(&flags.RulesEncoding, "rules-encoding", "utf-8", "Rule file encoding (utf-8, gbk, gb18030)")

	flag.StringVar(&flags.Text, "text", "", "Text to review")
	flag.StringVar(&flags.InputFile, "file", "", "Text file to review (use stdin if neither -text, -file nor -image is given)")
	flag.StringVar(&flags.ImageFile, "image", "", "Image file to review")
	flag.IntVar(&flags.MaxBodySize, "max-body-size", 0, "Truncate text input to this many bytes (0 disables)")
	flag.BoolVar(&flags.JSONOutput, "json", false, "Print the verdict as JSON")

	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideReviewPipeline(container); err != nil {
		return nil, err
	}

	// Register review service with no cache
	if err := container.Provide(func(
		matcher core.RuleMatcher,
		censor core.RemoteCensor,
		logger *zap.Logger,
	) *core.ReviewService {
		return core.NewReviewService(
			matcher,
			censor,
			nil, // No cache for CLI
			logger.Named("review"),
			false,
			time.Duration(0),
		)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(func(logger *zap.Logger) *utils.TextProcessor {
		return utils.NewTextProcessor(logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags.
// Unset credentials may still come from the environment.
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()
	v.SetEnvPrefix("CONTENT_REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.Set("censor.provider", flags.Provider)
	v.Set("rules.path", flags.RulesPath)
	v.Set("rules.encoding", flags.RulesEncoding)

	switch flags.Provider {
	case "baidu":
		if flags.BaiduAPIKey != "" {
			v.Set("baidu.api_key", flags.BaiduAPIKey)
		}
		if flags.BaiduSecretKey != "" {
			v.Set("baidu.secret_key", flags.BaiduSecretKey)
		}
	case "openai":
		if flags.OpenAIAPIKey != "" {
			v.Set("openai.api_key", flags.OpenAIAPIKey)
		}
		v.Set("openai.model_name", flags.OpenAIModelName)
	}

	return config.NewFromViper(v)
}

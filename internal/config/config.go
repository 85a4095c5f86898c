package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/content-review/")
	v.AddConfigPath("$HOME/.content-review")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("CONTENT_REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)

	v.AutomaticEnv()
	v.SetEnvPrefix("CONTENT_REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Censor provider defaults
	v.SetDefault("censor.provider", "baidu")

	// Baidu defaults
	v.SetDefault("baidu.api_key", "")
	v.SetDefault("baidu.secret_key", "")
	v.SetDefault("baidu.token_url", "https://aip.baidubce.com/oauth/2.0/token")
	v.SetDefault("baidu.text_url", "https://aip.baidubce.com/rest/2.0/solution/v1/text_censor/v2/user_defined")
	v.SetDefault("baidu.image_url", "https://aip.baidubce.com/rest/2.0/solution/v1/img_censor/v2/user_defined")
	v.SetDefault("baidu.token_timeout", "5s")
	v.SetDefault("baidu.text_timeout", "10s")
	v.SetDefault("baidu.image_timeout", "10s")
	v.SetDefault("baidu.expiry_skew", "60s")

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "omni-moderation-latest")
	v.SetDefault("openai.timeout", "10s")

	// Rule defaults
	v.SetDefault("rules.path", "./public/assets/text_check.csv")
	v.SetDefault("rules.encoding", "utf-8")

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_address", "0.0.0.0:3000")
	v.SetDefault("server.max_image_bytes", 10<<20)
	v.SetDefault("server.max_text_bytes", 0)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// SMTP intake defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.block_rejected", true)
	v.SetDefault("smtp.max_body_size", 20000)
	v.SetDefault("smtp.relay.address", "127.0.0.1")
	v.SetDefault("smtp.relay.port", 10026)
	v.SetDefault("smtp.relay.enabled", true)
	v.SetDefault("smtp.headers.status", "X-Review-Status")
	v.SetDefault("smtp.headers.reason", "X-Review-Reason")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/review_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/content_review")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

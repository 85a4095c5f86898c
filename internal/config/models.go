package config

import (
	"fmt"
	"time"
)

// CensorConfig selects the remote censor provider
type CensorConfig struct {
	Provider string
}

// BaiduConfig represents the configuration for the Baidu content censor API
type BaiduConfig struct {
	APIKey       string
	SecretKey    string
	TokenURL     string
	TextURL      string
	ImageURL     string
	TokenTimeout time.Duration
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	ExpirySkew   time.Duration
}

// OpenAIConfig represents the configuration for the OpenAI moderation API
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	ModelName string
	Timeout   time.Duration
}

// RulesConfig locates the keyword rule file
type RulesConfig struct {
	Path     string
	Encoding string
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Enabled       bool
	ListenAddress string
	MaxImageBytes int64
	MaxTextBytes  int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// SMTPConfig represents the mail intake configuration
type SMTPConfig struct {
	Enabled       bool
	ListenAddress string
	Domain        string
	BlockRejected bool
	MaxBodySize   int
	RelayEnabled  bool
	RelayAddress  string
	RelayPort     int
	StatusHeader  string
	ReasonHeader  string
}

// GetCensor returns the censor provider configuration
func (c *Config) GetCensor() CensorConfig {
	return CensorConfig{
		Provider: c.GetString("censor.provider"),
	}
}

// GetBaidu returns the Baidu configuration
func (c *Config) GetBaidu() (BaiduConfig, error) {
	cfg := BaiduConfig{
		APIKey:    c.GetString("baidu.api_key"),
		SecretKey: c.GetString("baidu.secret_key"),
		TokenURL:  c.GetString("baidu.token_url"),
		TextURL:   c.GetString("baidu.text_url"),
		ImageURL:  c.GetString("baidu.image_url"),
	}

	var err error
	if cfg.TokenTimeout, err = c.duration("baidu.token_timeout"); err != nil {
		return cfg, err
	}
	if cfg.TextTimeout, err = c.duration("baidu.text_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ImageTimeout, err = c.duration("baidu.image_timeout"); err != nil {
		return cfg, err
	}
	if cfg.ExpirySkew, err = c.duration("baidu.expiry_skew"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() (OpenAIConfig, error) {
	timeout, err := c.duration("openai.timeout")
	if err != nil {
		return OpenAIConfig{}, err
	}
	return OpenAIConfig{
		APIKey:    c.GetString("openai.api_key"),
		BaseURL:   c.GetString("openai.base_url"),
		ModelName: c.GetString("openai.model_name"),
		Timeout:   timeout,
	}, nil
}

// GetRules returns the rule file configuration
func (c *Config) GetRules() RulesConfig {
	return RulesConfig{
		Path:     c.GetString("rules.path"),
		Encoding: c.GetString("rules.encoding"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Enabled:       c.GetBool("server.enabled"),
		ListenAddress: c.GetString("server.listen_address"),
		MaxImageBytes: c.GetInt64("server.max_image_bytes"),
		MaxTextBytes:  c.GetInt64("server.max_text_bytes"),
	}

	var err error
	if cfg.ReadTimeout, err = c.duration("server.read_timeout"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = c.duration("server.write_timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GetSMTP returns the mail intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:       c.GetBool("smtp.enabled"),
		ListenAddress: c.GetString("smtp.listen_address"),
		Domain:        c.GetString("smtp.domain"),
		BlockRejected: c.GetBool("smtp.block_rejected"),
		MaxBodySize:   c.GetInt("smtp.max_body_size"),
		RelayEnabled:  c.GetBool("smtp.relay.enabled"),
		RelayAddress:  c.GetString("smtp.relay.address"),
		RelayPort:     c.GetInt("smtp.relay.port"),
		StatusHeader:  c.GetString("smtp.headers.status"),
		ReasonHeader:  c.GetString("smtp.headers.reason"),
	}
}

func (c *Config) duration(key string) (time.Duration, error) {
	d, err := c.GetDuration(key)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	cfg := CacheConfig{
		Enabled:    c.GetBool("cache.enabled"),
		Type:       c.GetString("cache.type"),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
		RedisURL:   c.GetString("cache.redis_url"),
	}

	var err error
	if cfg.TTL, err = c.duration("cache.ttl"); err != nil {
		return cfg, err
	}
	if cfg.CleanupFrequency, err = c.duration("cache.cleanup_frequency"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

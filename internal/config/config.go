package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	DLQ       DLQConfig       `mapstructure:"dlq"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type WebhookConfig struct {
	Secret       string   `mapstructure:"secret"`
	AllowedKinds []string `mapstructure:"allowed_kinds"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

type IngestConfig struct {
	// PersistenceMode is "async" (ack first, persist in background) or
	// "sync" (block the ack on the store write).
	PersistenceMode string `mapstructure:"persistence_mode"`
}

type GitHubConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Token         string        `mapstructure:"token"`
	AppID         string        `mapstructure:"app_id"`
	PrivateKeyPEM string        `mapstructure:"private_key_pem"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type DLQConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	NatsURL string `mapstructure:"nats_url"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("webhook.max_body_bytes", 1048576)
	v.SetDefault("ingest.persistence_mode", "async")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.timeout", "10s")
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.requests", 1000)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.nats_url", "nats://localhost:4222")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hookbridge")
	}

	// Environment variables override
	v.SetEnvPrefix("HOOKBRIDGE")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateServe checks the fields the serve command cannot run without.
// Missing secrets are a startup failure, never a per-request one.
func (c *Config) ValidateServe() error {
	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook.secret is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}

// UpstreamConfigured reports whether any upstream credentials are present.
// Without them the serve command skips the issue proxy routes.
func (c *Config) UpstreamConfigured() bool {
	return c.GitHub.Token != "" || (c.GitHub.AppID != "" && c.GitHub.PrivateKeyPEM != "")
}

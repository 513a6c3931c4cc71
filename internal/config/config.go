// Package config loads and validates the gateway configuration from a TOML
// file with environment overrides. The resulting Config is immutable after
// startup and shared by reference.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderPassthrough = "passthrough"
	ProviderQnA         = "qna"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Model   ModelConfig   `mapstructure:"model"`
}

type ServerConfig struct {
	Host        string          `mapstructure:"host"`
	Port        int             `mapstructure:"port"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig parameterizes the shared token bucket gating all inbound
// requests: Rate is the sustained requests-per-second refill, Burst the
// bucket depth.
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
}

type BackendConfig struct {
	Endpoint       string      `mapstructure:"endpoint"`
	Provider       string      `mapstructure:"provider"`
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	Auth           AuthConfig  `mapstructure:"auth"`
	Proxies        ProxyConfig `mapstructure:"proxies"`
}

// AuthConfig names the mutual-TLS identity presented to the backend.
type AuthConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

type ProxyConfig struct {
	HTTP  string `mapstructure:"http"`
	HTTPS string `mapstructure:"https"`
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"` // "none", "memory" or "redis"
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	RedisAddr  string `mapstructure:"redis_addr"`
	Prefix     string `mapstructure:"prefix"`
}

// ModelConfig describes the single model advertised on /v1/models. It is
// static configuration, not derived from backend capability discovery.
type ModelConfig struct {
	ID      string `mapstructure:"id"`
	OwnedBy string `mapstructure:"owned_by"`
}

func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from path (or the default search paths when path
// is empty), applies CHATGATE_* environment overrides, and validates the
// result. Validation failures here are startup-fatal by design.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/chatgate")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CHATGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about, so keys
	// without defaults must be bound explicitly or Unmarshal never sees
	// their environment values.
	for _, key := range []string{
		"backend.endpoint",
		"backend.auth.cert_file",
		"backend.auth.key_file",
		"backend.proxies.http",
		"backend.proxies.https",
		"server.cors_origins",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing file is tolerated only when no explicit path was given;
		// env vars may still supply a complete configuration.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit.rate", 10.0)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("backend.provider", ProviderQnA)
	v.SetDefault("backend.timeout_seconds", 30)
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.prefix", "chatgate")
	v.SetDefault("cache.redis_addr", "127.0.0.1:6379")
	v.SetDefault("model.id", "default-model")
	v.SetDefault("model.owned_by", "chatgate")
}

// Validate checks everything that must hold before the gateway may bind.
func (c *Config) Validate() error {
	if c.Backend.Endpoint == "" {
		return errors.New("backend.endpoint is required")
	}
	switch c.Backend.Provider {
	case ProviderPassthrough, ProviderQnA:
	default:
		return fmt.Errorf("unknown backend.provider %q (valid: %s, %s)",
			c.Backend.Provider, ProviderPassthrough, ProviderQnA)
	}
	if c.Backend.Auth.CertFile == "" || c.Backend.Auth.KeyFile == "" {
		return errors.New("backend.auth.cert_file and backend.auth.key_file are required")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return errors.New("backend.timeout_seconds must be positive")
	}

	// An empty allow-list would silently reject every browser caller (or
	// worse, tempt an allow-all fallback), so it is a misconfiguration.
	if len(c.Server.CORSOrigins) == 0 {
		return errors.New("server.cors_origins must list at least one allowed origin")
	}
	if c.Server.RateLimit.Rate <= 0 {
		return errors.New("server.rate_limit.rate must be positive")
	}
	if c.Server.RateLimit.Burst <= 0 {
		return errors.New("server.rate_limit.burst must be positive")
	}

	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown cache.backend %q (valid: none, memory, redis)", c.Cache.Backend)
	}
	if c.Model.ID == "" {
		return errors.New("model.id must not be empty")
	}
	return nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   RateLimitConfig{Rate: 10, Burst: 20},
		},
		Backend: BackendConfig{
			Endpoint:       "https://backend.example.com/infer",
			Provider:       ProviderQnA,
			TimeoutSeconds: 30,
			Auth: AuthConfig{
				CertFile: "/etc/chatgate/client.crt",
				KeyFile:  "/etc/chatgate/client.key",
			},
		},
		Cache: CacheConfig{Backend: "none", TTLSeconds: 300},
		Model: ModelConfig{ID: "default-model", OwnedBy: "chatgate"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing endpoint", func(c *Config) { c.Backend.Endpoint = "" }, "backend.endpoint"},
		{"unknown provider", func(c *Config) { c.Backend.Provider = "camel" }, "provider"},
		{"missing cert", func(c *Config) { c.Backend.Auth.CertFile = "" }, "cert_file"},
		{"missing key", func(c *Config) { c.Backend.Auth.KeyFile = "" }, "cert_file"},
		{"zero timeout", func(c *Config) { c.Backend.TimeoutSeconds = 0 }, "timeout"},
		{"empty cors allow-list", func(c *Config) { c.Server.CORSOrigins = nil }, "cors_origins"},
		{"zero rate", func(c *Config) { c.Server.RateLimit.Rate = 0 }, "rate"},
		{"negative rate", func(c *Config) { c.Server.RateLimit.Rate = -1 }, "rate"},
		{"zero burst", func(c *Config) { c.Server.RateLimit.Burst = 0 }, "burst"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"empty model id", func(c *Config) { c.Model.ID = "" }, "model.id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[server]
host = "0.0.0.0"
port = 9090
cors_origins = ["http://localhost:3000", "https://ui.example.com"]

[server.rate_limit]
rate = 5.0
burst = 10

[backend]
endpoint = "https://backend.example.com/infer"
provider = "passthrough"
timeout_seconds = 15

[backend.auth]
cert_file = "/tmp/client.crt"
key_file = "/tmp/client.key"

[backend.proxies]
https = "http://proxy.internal:3128"

[cache]
backend = "memory"
ttl_seconds = 60

[model]
id = "assistant-v1"
owned_by = "platform-team"
`
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "https://ui.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5.0, cfg.Server.RateLimit.Rate)
	assert.Equal(t, 10, cfg.Server.RateLimit.Burst)
	assert.Equal(t, ProviderPassthrough, cfg.Backend.Provider)
	assert.Equal(t, "http://proxy.internal:3128", cfg.Backend.Proxies.HTTPS)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "assistant-v1", cfg.Model.ID)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	// Missing endpoint and CORS origins: validation must fail at load time.
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 8080\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

// With no config file at all, the environment must be able to carry a
// complete configuration, including the keys that have no defaults.
func TestLoadFromEnvironmentOnly(t *testing.T) {
	t.Setenv("CHATGATE_BACKEND_ENDPOINT", "https://backend.example.com/infer")
	t.Setenv("CHATGATE_BACKEND_AUTH_CERT_FILE", "/tmp/client.crt")
	t.Setenv("CHATGATE_BACKEND_AUTH_KEY_FILE", "/tmp/client.key")
	t.Setenv("CHATGATE_SERVER_CORS_ORIGINS", "http://localhost:3000,https://ui.example.com")
	t.Setenv("CHATGATE_BACKEND_PROXIES_HTTPS", "http://proxy.internal:3128")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.com/infer", cfg.Backend.Endpoint)
	assert.Equal(t, "/tmp/client.crt", cfg.Backend.Auth.CertFile)
	assert.Equal(t, "/tmp/client.key", cfg.Backend.Auth.KeyFile)
	assert.Equal(t, []string{"http://localhost:3000", "https://ui.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://proxy.internal:3128", cfg.Backend.Proxies.HTTPS)
	// Defaults still fill everything the environment left alone.
	assert.Equal(t, ProviderQnA, cfg.Backend.Provider)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

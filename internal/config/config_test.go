package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/felixgeelhaar/blueprint/internal/errors"
	"github.com/felixgeelhaar/blueprint/internal/log"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "g-secret")
	path := writeFile(t, "blueprint.yaml", `
provider:
  name: gemini
  api_key: ${TEST_GEMINI_KEY}
  model: gemini-2.0-flash
  requests_per_second: 2.5
  timeout: 45s
cache:
  enabled: false
server:
  addr: 127.0.0.1:9090
publish:
  oci:
    reference: ghcr.io/acme/shop:v1
  object_store:
    endpoint: minio:9000
    bucket: blueprints
events:
  nats_url: nats://localhost:4222
log:
  level: debug
  format: json
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, "g-secret", cfg.Provider.APIKey)
	assert.Equal(t, 2.5, cfg.Provider.RequestsPerSecond)
	assert.Equal(t, 45*time.Second, cfg.Provider.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	// Unset fields keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "blueprint.export", cfg.Events.SubjectPrefix)
	assert.Equal(t, "ghcr.io/acme/shop:v1", cfg.Publish.OCI.Reference)
	assert.Equal(t, "blueprints", cfg.Publish.ObjectStore.Bucket)

	s := cfg.Provider.Settings()
	assert.Equal(t, "gemini", s.Name)
	assert.Equal(t, 45*time.Second, s.Timeout)

	assert.Equal(t, log.LevelDebug, cfg.Log.Logger().Config().Level)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing, false)
	assert.True(t, berrors.HasCode(err, berrors.ErrCodeFileNotFound))

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default().Provider.Model, cfg.Provider.Model)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "provider: [unterminated")
	_, err := Load(path, false)
	assert.True(t, berrors.HasCode(err, berrors.ErrCodeConfigInvalid))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BLUEPRINT_PROVIDER": "gemini",
		"BLUEPRINT_API_KEY":  " key ",
		"BLUEPRINT_MODEL":    "gemini-pro",
		"BLUEPRINT_ADDR":     ":7000",
		"BLUEPRINT_RPS":      "4",
		"BLUEPRINT_BASE_URL": "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "gemini", cfg.Provider.Name)
	assert.Equal(t, "key", cfg.Provider.APIKey)
	assert.Equal(t, "gemini-pro", cfg.Provider.Model)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 4.0, cfg.Provider.RequestsPerSecond)
	assert.Empty(t, cfg.Provider.BaseURL, "empty values do not override")

	env["BLUEPRINT_RPS"] = "fast"
	assert.True(t, berrors.HasCode(Default().ApplyEnv(lookup), berrors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "claude" }, "provider.name"},
		{"negative rps", func(c *Config) { c.Provider.RequestsPerSecond = -1 }, "requests_per_second"},
		{"zero timeout", func(c *Config) { c.Provider.Timeout = 0 }, "provider.timeout"},
		{"cache size", func(c *Config) { c.Cache.Size = 0 }, "cache.size"},
		{"addr", func(c *Config) { c.Server.Addr = " " }, "server.addr"},
		{"bucket", func(c *Config) { c.Publish.ObjectStore.Endpoint = "minio:9000" }, "bucket"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, berrors.HasCode(err, berrors.ErrCodeConfigInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blueprint.yaml")
	cfg := Default()
	cfg.Provider.Model = "gpt-4o"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "BLUEPRINT_TEST_DOTENV=from-file\n")
	t.Setenv("BLUEPRINT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("BLUEPRINT_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("BLUEPRINT_TEST_DOTENV"))
}

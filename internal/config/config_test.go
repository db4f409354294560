package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, int64(5*1024*1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 40, cfg.Session.HistoryLimit)
	assert.Equal(t, 16, cfg.Session.HydrateLimit)
	assert.Equal(t, 30, cfg.Session.IdleMinutes)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9999
  bind: lan
  allowedOrigins:
    - "https://shop.example"
openai:
  apiKey: sk-test
  model: gpt-4o
woocommerce:
  baseUrl: https://shop.example
  consumerKey: ck_live
  consumerSecret: cs_live
  useZoneShipping: true
session:
  store: memory
  idleMinutes: 60
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, []string{"https://shop.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.VisionModel, "vision model falls back to the chat model")
	assert.Equal(t, "https://shop.example", cfg.Woo.BaseURL)
	assert.True(t, cfg.Woo.UseZoneShipping)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 60, cfg.Session.IdleMinutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{not yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_WC_SECRET", "cs_from_env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
woocommerce:
  baseUrl: https://shop.example
  consumerKey: ck_live
  consumerSecret: ${TEST_WC_SECRET}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cs_from_env", cfg.Woo.ConsumerSecret)
}

func TestLoadUnsetEnvVarLeftIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
openai:
  apiKey: ${DEFINITELY_NOT_SET_VAR_X}
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${DEFINITELY_NOT_SET_VAR_X}", cfg.OpenAI.APIKey)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("WC_URL", "https://env.example")
	t.Setenv("SALESBOT_LOG_LEVEL", "DEBUG")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "https://env.example", cfg.Woo.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw, "missing file yields an empty map")

	SetValueAtPath(raw, []string{"server", "port"}, 9001)
	require.NoError(t, SaveRaw(path, raw))

	raw2, err := LoadRaw(path)
	require.NoError(t, err)
	val, ok := GetValueAtPath(raw2, []string{"server", "port"})
	require.True(t, ok)
	assert.Equal(t, 9001, val)

	assert.True(t, UnsetValueAtPath(raw2, []string{"server", "port"}))
	_, ok = GetValueAtPath(raw2, []string{"server", "port"})
	assert.False(t, ok)
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_EnvOverride(t *testing.T) {
	t.Setenv("SALESBOT_HOME", "/tmp/salesbot-test")

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/salesbot-test", p.Base)
	assert.Equal(t, filepath.Join("/tmp/salesbot-test", "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join("/tmp/salesbot-test", "data"), p.Data)
	assert.Equal(t, filepath.Join("/tmp/salesbot-test", "uploads"), p.Uploads)
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	t.Setenv("SALESBOT_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.Base, p.Data, p.Uploads, p.Logs} {
		assert.DirExists(t, dir)
	}
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "server", []string{"server"}, false},
		{"two segments", "server.port", []string{"server", "port"}, false},
		{"three segments", "woocommerce.baseUrl.x", []string{"woocommerce", "baseUrl", "x"}, false},
		{"empty", "", nil, true},
		{"empty segment", "server..port", nil, true},
		{"leading dot", ".server", nil, true},
		{"trailing dot", "server.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked prototype", "prototype.x", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetValueAtPath_CreatesIntermediates(t *testing.T) {
	root := map[string]any{}
	SetValueAtPath(root, []string{"a", "b", "c"}, "deep")

	val, ok := GetValueAtPath(root, []string{"a", "b", "c"})
	require.True(t, ok)
	assert.Equal(t, "deep", val)
}

func TestUnsetValueAtPath_Missing(t *testing.T) {
	root := map[string]any{"a": map[string]any{}}
	assert.False(t, UnsetValueAtPath(root, []string{"a", "b"}))
	assert.False(t, UnsetValueAtPath(root, []string{"x", "y"}))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Path)
	}
	return out
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_BadPort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 70000
	assert.Contains(t, issuePaths(Validate(&cfg)), "server.port")
}

func TestValidate_BadBind(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Bind = "tailnet"
	assert.Contains(t, issuePaths(Validate(&cfg)), "server.bind")
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	assert.Contains(t, issuePaths(Validate(&cfg)), "logging.level")
}

func TestValidate_BadSessionStore(t *testing.T) {
	cfg := Defaults()
	cfg.Session.Store = "redis"
	assert.Contains(t, issuePaths(Validate(&cfg)), "session.store")

	cfg = Defaults()
	cfg.Session.IdleMinutes = -1
	assert.Contains(t, issuePaths(Validate(&cfg)), "session.idleMinutes")
}

func TestValidate_PartialStoreCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Woo.BaseURL = "https://shop.example"
	assert.Contains(t, issuePaths(Validate(&cfg)), "woocommerce")

	cfg.Woo.ConsumerKey = "ck"
	cfg.Woo.ConsumerSecret = "cs"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_NonHTTPStoreURL(t *testing.T) {
	cfg := Defaults()
	cfg.Woo.BaseURL = "ftp://shop.example"
	cfg.Woo.ConsumerKey = "ck"
	cfg.Woo.ConsumerSecret = "cs"
	assert.Contains(t, issuePaths(Validate(&cfg)), "woocommerce.baseUrl")
}

func TestValidate_FacebookTokenPairing(t *testing.T) {
	cfg := Defaults()
	cfg.Facebook.PageAccessToken = "token"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "facebook.verifyToken", issues[0].Path)

	cfg.Facebook.VerifyToken = "verify"
	assert.Empty(t, Validate(&cfg))
}

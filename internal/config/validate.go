package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	if cfg.Session.IdleMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.idleMinutes",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Session.IdleMinutes),
		})
	}

	// Partial store credentials are a misconfiguration; all-or-nothing.
	wooSet := 0
	for _, v := range []string{cfg.Woo.BaseURL, cfg.Woo.ConsumerKey, cfg.Woo.ConsumerSecret} {
		if v != "" {
			wooSet++
		}
	}
	if wooSet > 0 && wooSet < 3 {
		issues = append(issues, ValidationIssue{
			Path:    "woocommerce",
			Message: "baseUrl, consumerKey and consumerSecret must all be set together",
		})
	}
	if cfg.Woo.BaseURL != "" && !strings.HasPrefix(cfg.Woo.BaseURL, "http") {
		issues = append(issues, ValidationIssue{
			Path:    "woocommerce.baseUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Woo.BaseURL),
		})
	}

	if cfg.Facebook.PageAccessToken != "" && cfg.Facebook.VerifyToken == "" {
		issues = append(issues, ValidationIssue{
			Path:    "facebook.verifyToken",
			Message: "required when pageAccessToken is set",
		})
	}

	return issues
}

package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           3000,
			Bind:           "loopback",
			UploadDir:      "uploads",
			MaxUploadBytes: 5 * 1024 * 1024,
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o-mini",
		},
		Session: SessionConfig{
			HistoryLimit: 40,
			HydrateLimit: 16,
			IdleMinutes:  30,
			Store:        "sqlite",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

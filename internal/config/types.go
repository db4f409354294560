package config

// Config is the root configuration for the sales bot.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	OpenAI   OpenAIConfig   `yaml:"openai,omitempty"`
	Woo      WooConfig      `yaml:"woocommerce,omitempty"`
	Facebook FacebookConfig `yaml:"facebook,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	UploadDir      string   `yaml:"uploadDir,omitempty"`
	MaxUploadBytes int64    `yaml:"maxUploadBytes,omitempty"`
}

// OpenAIConfig configures the model provider.
type OpenAIConfig struct {
	APIKey      string `yaml:"apiKey,omitempty"`
	BaseURL     string `yaml:"baseUrl,omitempty"`
	Model       string `yaml:"model,omitempty"`
	VisionModel string `yaml:"visionModel,omitempty"`
}

// WooConfig configures the WooCommerce store connection.
type WooConfig struct {
	BaseURL         string `yaml:"baseUrl,omitempty"`
	ConsumerKey     string `yaml:"consumerKey,omitempty"`
	ConsumerSecret  string `yaml:"consumerSecret,omitempty"`
	UseZoneShipping bool   `yaml:"useZoneShipping,omitempty"`
}

// FacebookConfig configures the Messenger webhook.
type FacebookConfig struct {
	VerifyToken     string `yaml:"verifyToken,omitempty"`
	PageAccessToken string `yaml:"pageAccessToken,omitempty"`
}

// SessionConfig defines session behavior.
type SessionConfig struct {
	HistoryLimit int    `yaml:"historyLimit,omitempty"` // turns sent to the model
	HydrateLimit int    `yaml:"hydrateLimit,omitempty"` // turns loaded from the store on first contact
	IdleMinutes  int    `yaml:"idleMinutes,omitempty"`  // 0 disables idle eviction
	Store        string `yaml:"store,omitempty"`        // "sqlite" | "memory"
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

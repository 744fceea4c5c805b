package config

import "time"

// Config holds relay configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// DatabasePath is the message journal location. Empty selects the
	// in-memory store.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// AssistURL is the answer-generation service base URL. Empty disables
	// assistant orchestration.
	AssistURL      string        `mapstructure:"assist_url" yaml:"assist_url"`
	AssistIdentity string        `mapstructure:"assist_identity" yaml:"assist_identity"`
	AssistTimeout  time.Duration `mapstructure:"assist_timeout" yaml:"assist_timeout"`
	AssistWindow   int           `mapstructure:"assist_window" yaml:"assist_window"`

	TypingTTL    time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "nexus-relay.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "nexus",
		JWTAudience:       "nexus-relay",
		AssistIdentity:    "nexus",
		AssistTimeout:     30 * time.Second,
		AssistWindow:      5,
		TypingTTL:         1500 * time.Millisecond,
		HistoryLimit:      50,
	}
}

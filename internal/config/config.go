// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Classifier ClassifierConfig
	Store      StoreConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Agent      AgentConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// ClassifierConfig holds remote classifier configuration.
type ClassifierConfig struct {
	BaseURL string `envconfig:"CLASSIFIER_URL" default:"http://127.0.0.1:5000"`
	// Timeout of 0 keeps classifier calls unbounded; a hang then stalls
	// only the affected tab's sequence.
	Timeout           time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"0"`
	RequestsPerSecond float64       `envconfig:"CLASSIFIER_RPS" default:"0"`
}

// StoreConfig holds persistence configuration. An empty Dir selects the
// in-memory store.
type StoreConfig struct {
	Dir string `envconfig:"STORE_DIR" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// AgentConfig holds in-page agent configuration.
type AgentConfig struct {
	// LexiconPath optionally overrides the built-in phishing-cue list.
	LexiconPath string `envconfig:"LEXICON_PATH" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Classifier: ClassifierConfig{
			BaseURL: "http://127.0.0.1:5000",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

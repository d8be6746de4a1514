// Package config handles Herald configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./herald.yaml, ~/.config/herald/herald.yaml, /etc/herald/herald.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"herald.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "herald", "herald.yaml"))
	}

	paths = append(paths, "/etc/herald/herald.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Herald configuration.
type Config struct {
	Discord   DiscordConfig   `yaml:"discord"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Responder ResponderConfig `yaml:"responder"`
	LogLevel  string          `yaml:"log_level"`
}

// DiscordConfig defines the chat gateway connection.
type DiscordConfig struct {
	// Token is the bot token, used for both the REST API and the
	// realtime gateway.
	Token string `yaml:"token"`
}

// OpenAIConfig defines the completion service connection.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	// Empty uses the public endpoint.
	BaseURL string `yaml:"base_url"`
}

// ResponderConfig tunes the response-orchestration loop.
type ResponderConfig struct {
	// SeedDepth is how many messages preceding the trigger are fetched
	// as the initial conversation history.
	SeedDepth int `yaml:"seed_depth"`
	// TypingIntervalSec is how often the typing indicator is refreshed
	// while a response is in flight.
	TypingIntervalSec int `yaml:"typing_interval_sec"`
	// RateLimit is the per-author messages-per-minute budget.
	// 0 disables rate limiting.
	RateLimit int `yaml:"rate_limit"`
}

// TypingInterval returns the configured typing refresh interval, or the
// default when unset. Discord typing indicators expire after roughly ten
// seconds, so the default refreshes comfortably inside that window.
func (r ResponderConfig) TypingInterval() time.Duration {
	if r.TypingIntervalSec <= 0 {
		return 8 * time.Second
	}
	return time.Duration(r.TypingIntervalSec) * time.Second
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so secrets can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Responder.SeedDepth <= 0 {
		c.Responder.SeedDepth = 5
	}
}

func (c *Config) validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

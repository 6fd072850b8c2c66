// Package config provides configuration management for the ChatAds relay
// server. It handles loading and parsing YAML configuration files and gives
// structured access to application settings: server port, debug/log output
// switches, and the upstream ChatAds client tunables (endpoint, timeout,
// retry policy, circuit breaker thresholds, quota warning cutoffs).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ChatAdsConfig holds the upstream client settings. Values are immutable once
// a client has been constructed from them; changing the file produces new
// clients on reload rather than mutating live ones.
type ChatAdsConfig struct {
	// BaseURL is the scheme+host of the ChatAds API.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// Endpoint is the message-send path appended to BaseURL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// TimeoutSeconds bounds a single upstream attempt.
	TimeoutSeconds float64 `yaml:"timeout-seconds" json:"timeout-seconds"`

	// MaxRetries is the total number of attempts per call (not additional retries).
	MaxRetries int `yaml:"max-retries" json:"max-retries"`

	// BackoffSeconds is the base delay; attempt n sleeps base * 2^(n-1).
	BackoffSeconds float64 `yaml:"backoff-seconds" json:"backoff-seconds"`

	// CircuitBreaker gates upstream calls after repeated failures.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit-breaker" json:"circuit-breaker"`

	// MinuteWarnRatio is the used/limit ratio at which the per-minute quota
	// warning fires.
	MinuteWarnRatio float64 `yaml:"minute-warn-ratio" json:"minute-warn-ratio"`
}

// CircuitBreakerConfig holds the failure-tracking thresholds.
type CircuitBreakerConfig struct {
	// Enabled toggles the breaker; when false every call goes straight out.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int `yaml:"failure-threshold" json:"failure-threshold"`

	// CooldownSeconds is how long the breaker stays open before a trial call.
	CooldownSeconds float64 `yaml:"cooldown-seconds" json:"cooldown-seconds"`
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the TCP port the relay server listens on.
	Port int `yaml:"port" json:"-"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile redirects logs from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// ChatAds holds the upstream client settings.
	ChatAds ChatAdsConfig `yaml:"chatads" json:"chatads"`
}

// Timeout returns the per-attempt timeout as a duration.
func (c ChatAdsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// BackoffBase returns the base inter-attempt delay as a duration.
func (c ChatAdsConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffSeconds * float64(time.Second))
}

// Cooldown returns the breaker's open-state window as a duration.
func (c CircuitBreakerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds * float64(time.Second))
}

// URL returns the full upstream endpoint URL.
func (c ChatAdsConfig) URL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.Endpoint
}

// Validate checks the client settings and aggregates every problem found into
// a single error so misconfiguration surfaces completely on first load.
func (c ChatAdsConfig) Validate() error {
	var problems []string
	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "base-url must not be empty")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("base-url %q is not an absolute URL", c.BaseURL))
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		problems = append(problems, fmt.Sprintf("endpoint %q must start with /", c.Endpoint))
	}
	if c.TimeoutSeconds <= 0 {
		problems = append(problems, "timeout-seconds must be positive")
	}
	if c.MaxRetries < 1 {
		problems = append(problems, "max-retries must be at least 1")
	}
	if c.BackoffSeconds < 0 {
		problems = append(problems, "backoff-seconds must not be negative")
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold < 1 {
			problems = append(problems, "circuit-breaker.failure-threshold must be at least 1")
		}
		if c.CircuitBreaker.CooldownSeconds <= 0 {
			problems = append(problems, "circuit-breaker.cooldown-seconds must be positive")
		}
	}
	if c.MinuteWarnRatio <= 0 || c.MinuteWarnRatio > 1 {
		problems = append(problems, "minute-warn-ratio must be in (0, 1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid chatads configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NewDefaultConfig creates a new Config with sensible defaults. This allows
// the relay to run without a config file as long as CHATADS_API_KEY is set.
func NewDefaultConfig() *Config {
	return &Config{
		Port: 8420,
		ChatAds: ChatAdsConfig{
			BaseURL:        "https://api.getchatads.com",
			Endpoint:       "/v1/message/send",
			TimeoutSeconds: 10,
			MaxRetries:     3,
			BackoffSeconds: 0.5,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				CooldownSeconds:  30,
			},
			MinuteWarnRatio: 0.8,
		},
	}
}

// GenerateDefaultConfigYAML renders NewDefaultConfig() as YAML, used by
// --init to seed a config file.
func GenerateDefaultConfigYAML() []byte {
	data, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return []byte("port: 8420\n")
	}
	return data
}

// LoadConfig reads a YAML configuration file from the given path, unmarshals
// it over the defaults and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile. If optional is true and the
// file is missing or empty, the defaults are returned instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if optional && len(data) == 0 {
		return NewDefaultConfig(), nil
	}

	// Start from defaults so absent keys keep sensible values.
	cfg := *NewDefaultConfig()
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err = cfg.ChatAds.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

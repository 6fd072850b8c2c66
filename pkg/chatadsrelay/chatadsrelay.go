// Package chatadsrelay provides the public API for embedding the relay as a
// library. It wraps the internal pipeline with a stable, minimal surface.
package chatadsrelay

import (
	"context"
	"time"

	"github.com/getchatads/chatads-relay/internal/api"
	"github.com/getchatads/chatads-relay/internal/chatads"
	"github.com/getchatads/chatads-relay/internal/config"
)

// Config is the application configuration.
type Config = config.Config

// ChatAdsConfig holds the upstream client settings.
type ChatAdsConfig = config.ChatAdsConfig

// Request is one inbound message for affiliate matching.
type Request = chatads.Request

// Result is the normalized outcome of one relay call.
type Result = chatads.Result

// HealthStatus reports upstream reachability.
type HealthStatus = chatads.HealthStatus

// Relay is the request pipeline: validation, retries, circuit breaking and
// envelope normalization.
type Relay = chatads.Relay

// Server is the HTTP front of the relay.
type Server = api.Server

// ServerOption customises HTTP server construction.
type ServerOption = api.ServerOption

// Result status values.
const (
	StatusSuccess = chatads.StatusSuccess
	StatusNoMatch = chatads.StatusNoMatch
	StatusError   = chatads.StatusError
)

// EnvAPIKey is the environment variable holding the ChatAds API key.
const EnvAPIKey = config.EnvAPIKey

// NewConfig creates a new default configuration.
func NewConfig() *Config {
	return config.NewDefaultConfig()
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// NewRelay creates a standalone pipeline without the HTTP layer, for callers
// that embed the relay in their own process.
func NewRelay(cfg ChatAdsConfig) *Relay {
	return chatads.NewRelay(cfg, chatads.NewMetricsCollector())
}

// NewServer creates a relay HTTP server.
func NewServer(cfg *Config, configFilePath string, opts ...ServerOption) *Server {
	return api.NewServer(cfg, configFilePath, opts...)
}

// WithKeepAliveEndpoint enables the keep-alive endpoint with the provided
// timeout and callback.
func WithKeepAliveEndpoint(timeout time.Duration, onTimeout func()) ServerOption {
	return api.WithKeepAliveEndpoint(timeout, onTimeout)
}

// Run is a convenience function to create and run a server until the context
// is cancelled.
func Run(ctx context.Context, cfg *Config) error {
	server := api.NewServer(cfg, "")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

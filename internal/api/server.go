// Package api provides the HTTP server of the ChatAds relay. It exposes the
// message-send pipeline, the upstream health probe and Prometheus metrics,
// and supports hot-reloading the configuration without dropping connections.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/getchatads/chatads-relay/internal/chatads"
	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
	metrics            *chatads.MetricsCollector
	keepAliveEnabled   bool
	keepAliveTimeout   time.Duration
	keepAliveOnTimeout func()
}

// ServerOption customises HTTP server construction.
type ServerOption func(*serverOptionConfig)

// WithMiddleware appends additional Gin middleware during server construction.
func WithMiddleware(mw ...gin.HandlerFunc) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator allows callers to mutate the Gin engine prior to middleware setup.
func WithEngineConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// WithMetricsCollector replaces the collector built by default.
func WithMetricsCollector(m *chatads.MetricsCollector) ServerOption {
	return func(cfg *serverOptionConfig) {
		cfg.metrics = m
	}
}

// WithKeepAliveEndpoint enables the keep-alive endpoint with the provided
// timeout and callback. The callback fires once when no heartbeat arrives
// within the timeout window.
func WithKeepAliveEndpoint(timeout time.Duration, onTimeout func()) ServerOption {
	return func(cfg *serverOptionConfig) {
		if timeout <= 0 || onTimeout == nil {
			return
		}
		cfg.keepAliveEnabled = true
		cfg.keepAliveTimeout = timeout
		cfg.keepAliveOnTimeout = onTimeout
	}
}

// Server is the relay's HTTP front. It owns the Gin engine, the underlying
// http.Server and the relay pipeline the handlers call into.
type Server struct {
	engine *gin.Engine
	server *http.Server

	mu    sync.RWMutex
	cfg   *config.Config
	relay *chatads.Relay

	metrics *chatads.MetricsCollector

	// oldConfigYaml stores a YAML snapshot of the previous configuration so
	// reloads can diff against it even when the object was mutated in place.
	oldConfigYaml []byte

	configFilePath string

	keepAliveEnabled   bool
	keepAliveTimeout   time.Duration
	keepAliveOnTimeout func()
	keepAliveHeartbeat chan struct{}
	keepAliveStop      chan struct{}
}

// NewServer creates and initializes a relay server instance: engine, logging
// and CORS middleware, routes and the HTTP listener bound to cfg.Port.
func NewServer(cfg *config.Config, configFilePath string, opts ...ServerOption) *Server {
	optionState := &serverOptionConfig{}
	for i := range opts {
		opts[i](optionState)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}

	engine.Use(log.GinLogger())
	engine.Use(log.GinRecovery())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}
	engine.Use(corsMiddleware())

	metrics := optionState.metrics
	if metrics == nil {
		metrics = chatads.NewMetricsCollector()
	}

	s := &Server{
		engine:         engine,
		cfg:            cfg,
		relay:          chatads.NewRelay(cfg.ChatAds, metrics),
		metrics:        metrics,
		configFilePath: configFilePath,
	}
	s.oldConfigYaml, _ = yaml.Marshal(cfg)

	s.setupRoutes()

	if optionState.keepAliveEnabled {
		s.enableKeepAlive(optionState.keepAliveTimeout, optionState.keepAliveOnTimeout)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}
	return s
}

// Handler exposes the routing engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Relay returns the current pipeline. Reloads may swap it, so handlers must
// fetch it per request instead of caching it.
func (s *Server) Relay() *chatads.Relay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relay
}

// Config returns the currently applied configuration.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Start begins listening for and serving HTTP requests. It blocks until the
// server stops and returns an error only for unrecoverable failures.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}

	log.Debugf("starting relay server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %v", errServe)
	}
	return nil
}

// Stop gracefully shuts down the server without interrupting active
// connections, then releases the relay's pooled upstream connections.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("stopping relay server...")

	if s.keepAliveEnabled {
		select {
		case s.keepAliveStop <- struct{}{}:
		default:
		}
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}

	s.Relay().Registry().Clear()
	log.Debug("relay server stopped")
	return nil
}

// UpdateConfig applies a reloaded configuration. Logging switches take effect
// in place; a changed chatads section rebuilds the relay so new clients pick
// up the new endpoint, timeouts and breaker thresholds.
func (s *Server) UpdateConfig(newCfg *config.Config) {
	var oldCfg *config.Config
	if len(s.oldConfigYaml) > 0 {
		_ = yaml.Unmarshal(s.oldConfigYaml, &oldCfg)
	}

	if oldCfg == nil || oldCfg.Debug != newCfg.Debug {
		log.SetDebug(newCfg.Debug)
		if oldCfg != nil {
			log.Debugf("debug mode updated from %t to %t", oldCfg.Debug, newCfg.Debug)
		}
	}

	if oldCfg != nil && oldCfg.LoggingToFile != newCfg.LoggingToFile {
		if err := log.ConfigureLogOutput(newCfg.LoggingToFile); err != nil {
			log.Errorf("failed to reconfigure log output: %v", err)
		} else {
			log.Debugf("logging-to-file updated from %t to %t", oldCfg.LoggingToFile, newCfg.LoggingToFile)
		}
	}

	if oldCfg == nil || oldCfg.ChatAds != newCfg.ChatAds {
		s.swapRelay(newCfg.ChatAds)
		log.Info("chatads settings updated; client cache reset")
	}

	if oldCfg != nil && oldCfg.Port != newCfg.Port {
		log.Warnf("port changed from %d to %d; a restart is required to rebind", oldCfg.Port, newCfg.Port)
	}

	s.mu.Lock()
	s.cfg = newCfg
	s.mu.Unlock()
	s.oldConfigYaml, _ = yaml.Marshal(newCfg)
}

func (s *Server) swapRelay(cfg config.ChatAdsConfig) {
	s.mu.Lock()
	old := s.relay
	s.relay = chatads.NewRelay(cfg, s.metrics)
	s.mu.Unlock()

	if old != nil {
		old.Registry().Clear()
	}
}

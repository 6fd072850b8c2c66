// Package main provides the entry point for the ChatAds relay server. The
// relay sits between tool-calling clients and the ChatAds affiliate-matching
// API, absorbing retries, circuit breaking and response normalization so
// callers always receive a well-formed result.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/getchatads/chatads-relay/internal/api"
	"github.com/getchatads/chatads-relay/internal/buildinfo"
	"github.com/getchatads/chatads-relay/internal/config"
	"github.com/getchatads/chatads-relay/internal/logging"
	log "github.com/getchatads/chatads-relay/internal/logging"
	"github.com/getchatads/chatads-relay/internal/watcher"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath   string
		port         int
		debug        bool
		initConfig   bool
		showVersion  bool
		idleShutdown time.Duration
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.IntVar(&port, "port", 0, "Override the listen port from the config")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&initConfig, "init", false, "Write a default config file and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.DurationVar(&idleShutdown, "idle-shutdown", 0,
		"Exit after this long without a /keep-alive heartbeat (0 disables)")
	flag.Parse()

	if showVersion {
		fmt.Printf("chatads-relay Version: %s, Commit: %s, BuiltAt: %s\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	if strings.HasPrefix(configPath, "~/") {
		if home, errHome := os.UserHomeDir(); errHome == nil {
			configPath = filepath.Join(home, configPath[2:])
		}
	}

	if initConfig {
		doInitConfig(configPath)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// Missing config file is fine: the relay runs on defaults as long as the
	// API key is available in the environment or per-request headers.
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if debug {
		cfg.Debug = true
	}
	if port > 0 {
		cfg.Port = port
	}

	if errOut := logging.ConfigureLogOutput(cfg.LoggingToFile); errOut != nil {
		log.Fatalf("failed to configure log output: %v", errOut)
	}
	logging.SetDebug(cfg.Debug)

	log.Infof("chatads-relay Version: %s, Commit: %s, BuiltAt: %s",
		buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if config.ResolveAPIKey("") == "" {
		log.Warnf("%s is not set; requests must carry an x-api-key header", config.EnvAPIKey)
	}

	if err := runServer(cfg, configPath, idleShutdown); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// runServer owns the server lifecycle: it starts the HTTP listener and the
// config watcher, then blocks until a signal, an idle timeout or a listener
// failure ends the process.
func runServer(cfg *config.Config, configFilePath string, idleShutdown time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []api.ServerOption
	if idleShutdown > 0 {
		// The idle timeout rides the same cancellation path as SIGINT.
		opts = append(opts, api.WithKeepAliveEndpoint(idleShutdown, stop))
	}
	server := api.NewServer(cfg, configFilePath, opts...)

	w, err := watcher.NewWatcher(configFilePath, server.UpdateConfig)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	defer watcherCancel()
	if err := w.Start(watcherCtx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}
	defer func() {
		if errStop := w.Stop(); errStop != nil {
			log.Errorf("failed to stop config watcher: %v", errStop)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Infof("relay listening on :%d", cfg.Port)

	select {
	case <-ctx.Done():
		log.Debug("shutdown requested, stopping...")
	case errServe := <-serverErr:
		return errServe
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// doInitConfig writes the default configuration template, refusing to clobber
// an existing file.
func doInitConfig(configPath string) {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(configPath, config.GenerateDefaultConfigYAML(), 0o600); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Created: %s\n", configPath)
}

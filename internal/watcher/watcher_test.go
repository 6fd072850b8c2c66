package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getchatads/chatads-relay/internal/config"
)

func writeConfig(t *testing.T, path string, port int) {
	t.Helper()
	body := fmt.Sprintf("port: %d\n", port)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func startWatcher(t *testing.T, path string) (*Watcher, chan *config.Config) {
	t.Helper()
	reloads := make(chan *config.Config, 4)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloads <- cfg })
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w, reloads
}

func waitForReload(t *testing.T, reloads chan *config.Config, wantPort int) {
	t.Helper()
	select {
	case cfg := <-reloads:
		if cfg.Port != wantPort {
			t.Errorf("Expected reloaded port %d, got %d", wantPort, cfg.Port)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected a config reload, got none")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, 8420)

	_, reloads := startWatcher(t, path)

	writeConfig(t, path, 9001)
	waitForReload(t, reloads, 9001)
}

func TestWatcherSkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, 8420)

	_, reloads := startWatcher(t, path)

	// Identical bytes: the hash gate must swallow the event.
	writeConfig(t, path, 8420)

	select {
	case <-reloads:
		t.Error("Expected no reload for identical content")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcherKeepsConfigOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, 8420)

	_, reloads := startWatcher(t, path)

	if err := os.WriteFile(path, []byte("port: [broken\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	select {
	case <-reloads:
		t.Fatal("Expected no reload for unparsable config")
	case <-time.After(600 * time.Millisecond):
	}

	// A subsequent valid write must still come through.
	writeConfig(t, path, 9002)
	waitForReload(t, reloads, 9002)
}

func TestWatcherSurvivesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, 8420)

	_, reloads := startWatcher(t, path)

	// Editor-style save: write a temp file, rename it over the target.
	tmp := filepath.Join(dir, "config.yaml.tmp")
	writeConfig(t, tmp, 9003)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("failed to rename config: %v", err)
	}
	waitForReload(t, reloads, 9003)
}

func TestWatcherMissingFileIsNotFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	w, err := NewWatcher(path, func(cfg *config.Config) {})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Errorf("Expected missing config file to be tolerated, got %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
}

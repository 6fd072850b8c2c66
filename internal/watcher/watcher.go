// Package watcher monitors the relay's configuration file and hot-reloads it
// when the content changes. Events are debounced and gated on a content hash
// so editor write bursts and no-op saves do not trigger spurious reloads.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getchatads/chatads-relay/internal/config"
	log "github.com/getchatads/chatads-relay/internal/logging"
)

const (
	// replaceCheckDelay lets an atomic replace (write temp + rename) settle
	// before deciding whether the config file is really gone.
	replaceCheckDelay    = 50 * time.Millisecond
	configReloadDebounce = 150 * time.Millisecond
)

// Watcher watches a single configuration file and invokes the reload
// callback with freshly parsed configuration after each material change.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu             sync.Mutex
	reloadTimer    *time.Timer
	lastConfigHash string
}

// NewWatcher creates a watcher for the given config file. The callback runs
// on the watcher goroutine; it must not block for long.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}, nil
}

// Start begins watching the configuration file. A missing file is not an
// error; the relay then runs on defaults and the watcher stays idle.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := os.Stat(w.configPath); err == nil {
		if errAdd := w.watcher.Add(w.configPath); errAdd != nil {
			log.Errorf("failed to watch config file %s: %v", w.configPath, errAdd)
			return errAdd
		}
		w.primeConfigHash()
		log.Debugf("watching config file: %s", w.configPath)
	} else {
		log.Infof("config file %s not found, running with defaults (use --init to create)", w.configPath)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop cancels any pending reload and closes the underlying watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
		w.reloadTimer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

// primeConfigHash records the current file content hash so the first event
// after startup only reloads when the content actually differs.
func (w *Watcher) primeConfigHash() {
	data, err := os.ReadFile(w.configPath)
	if err != nil || len(data) == 0 {
		return
	}
	sum := sha256.Sum256(data)
	w.mu.Lock()
	w.lastConfigHash = hex.EncodeToString(sum[:])
	w.mu.Unlock()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.configPath {
		return
	}
	log.Debugf("file system event detected: %s %s", event.Op.String(), event.Name)

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// Atomic replace surfaces as Rename or Remove and drops the watch on
		// the old inode. Re-arm against the new file if one appeared.
		time.Sleep(replaceCheckDelay)
		if _, err := os.Stat(w.configPath); err != nil {
			log.Warnf("config file %s removed; keeping last loaded configuration", w.configPath)
			return
		}
		if err := w.watcher.Add(w.configPath); err != nil {
			log.Errorf("failed to re-watch config file %s: %v", w.configPath, err)
			return
		}
		w.scheduleConfigReload()
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.scheduleConfigReload()
	}
}

// scheduleConfigReload collapses event bursts into one reload per debounce
// window.
func (w *Watcher) scheduleConfigReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.mu.Lock()
		w.reloadTimer = nil
		w.mu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	sum := sha256.Sum256(data)
	newHash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	unchanged := w.lastConfigHash != "" && w.lastConfigHash == newHash
	w.mu.Unlock()
	if unchanged {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	if w.reloadConfig() {
		w.mu.Lock()
		w.lastConfigHash = newHash
		w.mu.Unlock()
	}
}

// reloadConfig parses the file and hands the result to the callback. A file
// that fails to parse or validate leaves the running configuration in place.
func (w *Watcher) reloadConfig() bool {
	newConfig, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("failed to reload config: %v", err)
		return false
	}
	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
	return true
}

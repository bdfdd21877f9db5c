package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"mcphub/internal/filewatch"
	"mcphub/pkg/logging"
)

// ErrNotFileBacked is returned by WatchConfig when the configuration did not come from a file.
var ErrNotFileBacked = errors.New("configuration is not file-backed")

// Source is the argument to UpdateConfig: either a path to load or an in-memory document.
type Source struct {
	Path   string
	Config *HubConfig
}

// FromPath returns a Source that loads the document at path.
func FromPath(path string) Source {
	return Source{Path: path}
}

// FromObject returns a Source carrying an in-memory document.
func FromObject(cfg HubConfig) Source {
	return Source{Config: &cfg}
}

// Kind returns "path" or "object".
func (s Source) Kind() string {
	if s.Config != nil {
		return "object"
	}
	return "path"
}

// Manager owns the hub configuration. It loads it from a file or holds an in-memory
// document, persists updates, and when watching, notifies subscribers of external
// edits to the file.
//
// Explicit UpdateConfig calls are not broadcast; the caller is expected to act on
// its own update. Only changes detected on disk that differ from the in-memory
// document reach subscribers, so the manager's own writes never echo back.
type Manager struct {
	mu     sync.RWMutex
	path   string
	config HubConfig

	debounce time.Duration
	detector *filewatch.Detector
	// watchCtx is the context the current watch was started with
	watchCtx context.Context

	subsMu sync.Mutex
	subs   map[int]chan HubConfig
	nextID int
	closed bool
}

// NewManager creates a manager backed by the file at path.
func NewManager(path string) *Manager {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Manager{
		path:     path,
		debounce: DefaultDebounce,
		subs:     make(map[int]chan HubConfig),
	}
}

// NewManagerFromObject creates a manager holding cfg in memory only.
func NewManagerFromObject(cfg HubConfig) *Manager {
	return &Manager{
		config:   cfg.Clone(),
		debounce: DefaultDebounce,
		subs:     make(map[int]chan HubConfig),
	}
}

// SetDebounce overrides the file watch debounce interval. It must be called before WatchConfig.
func (m *Manager) SetDebounce(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debounce = d
}

// Path returns the backing file path, or "" for in-memory configuration.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// IsFileBacked reports whether the configuration originates from a file.
func (m *Manager) IsFileBacked() bool {
	return m.Path() != ""
}

// LoadConfig loads the backing file, or validates the in-memory document.
// Failures are ConfigurationErrors.
func (m *Manager) LoadConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		if m.config.MCPServers == nil {
			m.config.MCPServers = map[string]ServerConfig{}
		}
		if err := m.config.Validate(); err != nil {
			return NewConfigurationError("", ErrorTypeValidation, "invalid configuration", err)
		}
		return nil
	}

	cfg, err := LoadFile(m.path)
	if err != nil {
		return err
	}
	m.config = cfg
	logging.Info("Config", "Loaded configuration from %s (%d servers)", m.path, len(cfg.MCPServers))
	return nil
}

// GetConfig returns a copy of the current document.
func (m *Manager) GetConfig() HubConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Clone()
}

// UpdateConfig replaces the configuration.
//
// A path source loads and validates that file and makes it the new backing file.
// An object source is validated and, when it differs from the current document and
// the manager is file-backed, written to the backing file.
func (m *Manager) UpdateConfig(ctx context.Context, src Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if src.Config == nil {
		return m.updateFromPath(ctx, src.Path)
	}

	next := src.Config.Clone()
	if err := next.Validate(); err != nil {
		return NewConfigurationError(m.Path(), ErrorTypeValidation, "invalid configuration", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Equal(next) {
		logging.Debug("Config", "Configuration unchanged, nothing to persist")
		return nil
	}

	if m.path != "" {
		if err := WriteFile(m.path, next); err != nil {
			return err
		}
		logging.Info("Config", "Persisted configuration to %s", m.path)
	}
	m.config = next
	return nil
}

func (m *Manager) updateFromPath(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("configuration source has neither a path nor a document")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	oldPath := m.path
	m.path = path
	m.config = cfg
	rewatch := oldPath != path && m.detector != nil
	watchCtx := m.watchCtx
	m.mu.Unlock()

	logging.Info("Config", "Loaded configuration from %s (%d servers)", path, len(cfg.MCPServers))

	if rewatch {
		m.stopWatching()
		return m.WatchConfig(watchCtx)
	}
	return nil
}

// WatchConfig starts watching the backing file. Calling it while already watching
// is a no-op. The watch ends when ctx is cancelled or Close is called.
func (m *Manager) WatchConfig(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return ErrNotFileBacked
	}
	if m.detector != nil && m.detector.IsRunning() {
		return nil
	}

	detector := filewatch.New(m.path, "ConfigWatcher", m.debounce)
	if err := detector.Start(ctx, m.reload); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.path, err)
	}
	m.detector = detector
	m.watchCtx = ctx
	logging.Info("ConfigWatcher", "Watching %s for changes", m.path)
	return nil
}

func (m *Manager) stopWatching() {
	m.mu.Lock()
	detector := m.detector
	m.detector = nil
	m.mu.Unlock()

	if detector != nil {
		detector.Stop()
	}
}

// reload runs on the watcher goroutine after a debounced change.
func (m *Manager) reload() {
	m.mu.RLock()
	path := m.path
	m.mu.RUnlock()

	cfg, err := LoadFile(path)
	if err != nil {
		logging.Warn("ConfigWatcher", "Ignoring invalid configuration change in %s: %v", path, err)
		return
	}

	m.mu.Lock()
	if m.config.Equal(cfg) {
		m.mu.Unlock()
		logging.Debug("ConfigWatcher", "Configuration file touched but content unchanged")
		return
	}
	m.config = cfg
	m.mu.Unlock()

	logging.Info("ConfigWatcher", "Configuration changed on disk (%d servers)", len(cfg.MCPServers))
	m.broadcast(cfg)
}

// Subscribe returns a channel receiving the new document after each detected
// change, and a function that ends the subscription. A subscriber that falls
// behind only sees the latest document.
func (m *Manager) Subscribe() (<-chan HubConfig, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	ch := make(chan HubConfig, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextID
	m.nextID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

func (m *Manager) broadcast(cfg HubConfig) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- cfg.Clone():
			continue
		default:
		}
		// Replace the stale pending document; broadcast is the only sender.
		select {
		case <-ch:
		default:
		}
		ch <- cfg.Clone()
	}
}

// Close stops watching and closes all subscriptions.
func (m *Manager) Close() error {
	m.stopWatching()

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
	return nil
}

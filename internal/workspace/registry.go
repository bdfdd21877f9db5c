package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mcphub/internal/config"
	"mcphub/internal/filewatch"
	"mcphub/internal/lockfile"
	"mcphub/pkg/logging"
)

// DocumentName is the registry file name inside the state directory.
const DocumentName = "workspaces.json"

// Entry records the hub instance serving one workspace.
type Entry struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartTime time.Time `json:"startTime"`
}

// Table maps a workspace identity (an absolute directory path) to its entry.
type Table map[string]Entry

// Identities returns the table keys in sorted order.
func (t Table) Identities() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Event is delivered to subscribers whenever the registry document changes.
type Event struct {
	Workspaces Table
}

// Options configures a Registry. Process-wide facts are explicit here so tests can
// supply synthetic identities and pids.
type Options struct {
	// StateDir holds the registry document. Defaults to config.GetDefaultStateDir().
	StateDir string

	// Identity is this hub's workspace key. Defaults to the working directory.
	Identity string

	// PID is recorded for this hub. Defaults to os.Getpid().
	PID int

	// ProcessAlive probes recorded pids during cleanup. Defaults to lockfile.ProcessAlive.
	ProcessAlive func(pid int) bool

	// Lock tuning; zero values select the lockfile defaults.
	LockRetryDelay  time.Duration
	LockMaxAttempts int
	LockStaleAfter  time.Duration

	// Debounce is the quiet period before a document change is reported.
	Debounce time.Duration

	// Now stamps registrations. Defaults to time.Now.
	Now func() time.Time
}

// Registry is the cross-process table of running hub instances, one per workspace.
// Every mutation is a read-modify-write of the shared document under its lock file.
type Registry struct {
	opts  Options
	store *lockfile.Store[Table]

	mu       sync.Mutex
	detector *filewatch.Detector

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// New creates a registry, resolving defaults for unset options.
func New(opts Options) (*Registry, error) {
	if opts.StateDir == "" {
		dir, err := config.GetDefaultStateDir()
		if err != nil {
			return nil, err
		}
		opts.StateDir = dir
	}
	if opts.Identity == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine workspace directory: %w", err)
		}
		opts.Identity = wd
	}
	if abs, err := filepath.Abs(opts.Identity); err == nil {
		opts.Identity = filepath.Clean(abs)
	}
	if opts.PID == 0 {
		opts.PID = os.Getpid()
	}
	if opts.ProcessAlive == nil {
		opts.ProcessAlive = lockfile.ProcessAlive
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store := lockfile.NewStore[Table](filepath.Join(opts.StateDir, DocumentName), lockfile.Options{
		RetryDelay:   opts.LockRetryDelay,
		MaxAttempts:  opts.LockMaxAttempts,
		StaleAfter:   opts.LockStaleAfter,
		PID:          opts.PID,
		ProcessAlive: opts.ProcessAlive,
	})

	return &Registry{
		opts:  opts,
		store: store,
		subs:  make(map[int]chan Event),
	}, nil
}

// Identity returns this hub's workspace key.
func (r *Registry) Identity() string {
	return r.opts.Identity
}

// DocumentPath returns the path of the registry document.
func (r *Registry) DocumentPath() string {
	return r.store.Path()
}

// Initialize ensures the state directory and the registry document exist.
func (r *Registry) Initialize(ctx context.Context) error {
	if err := r.store.Init(ctx, Table{}); err != nil {
		return fmt.Errorf("failed to initialize workspace registry: %w", err)
	}
	return nil
}

// Register records this hub as serving its workspace on port, replacing any
// previous entry for the same workspace.
func (r *Registry) Register(ctx context.Context, port int) error {
	entry := Entry{
		PID:       r.opts.PID,
		Port:      port,
		StartTime: r.opts.Now().UTC().Truncate(time.Millisecond),
	}

	err := r.store.Update(ctx, func(t *Table) (bool, error) {
		if *t == nil {
			*t = Table{}
		}
		(*t)[r.opts.Identity] = entry
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to register workspace %s: %w", r.opts.Identity, err)
	}

	logging.Info("Workspace", "Registered %s (pid %d, port %d)", r.opts.Identity, entry.PID, port)
	return nil
}

// Deregister removes this hub's entry. Failures are logged, never returned, since
// it runs on shutdown paths that must complete.
func (r *Registry) Deregister(ctx context.Context) {
	removed := false
	err := r.store.Update(ctx, func(t *Table) (bool, error) {
		if _, ok := (*t)[r.opts.Identity]; !ok {
			return false, nil
		}
		delete(*t, r.opts.Identity)
		removed = true
		return true, nil
	})
	if err != nil {
		logging.Error("Workspace", err, "Failed to deregister %s", r.opts.Identity)
		return
	}
	if removed {
		logging.Info("Workspace", "Deregistered %s", r.opts.Identity)
	}
}

// GetActiveWorkspaces returns the current table. Read failures yield an empty table.
func (r *Registry) GetActiveWorkspaces() Table {
	t, err := r.store.Read()
	if err != nil {
		logging.Warn("Workspace", "Failed to read workspace registry: %v", err)
		return Table{}
	}
	if t == nil {
		return Table{}
	}
	return t
}

// CleanupStaleEntries removes every entry whose process is no longer running and
// returns how many were removed. The document is rewritten only when something
// was removed. Failures are logged and reported as zero removals.
func (r *Registry) CleanupStaleEntries(ctx context.Context) int {
	var stale []string
	err := r.store.Update(ctx, func(t *Table) (bool, error) {
		stale = stale[:0]
		for id, entry := range *t {
			if !r.opts.ProcessAlive(entry.PID) {
				stale = append(stale, id)
			}
		}
		for _, id := range stale {
			delete(*t, id)
		}
		return len(stale) > 0, nil
	})
	if err != nil {
		logging.Error("Workspace", err, "Failed to clean up stale workspace entries")
		return 0
	}

	if len(stale) > 0 {
		sort.Strings(stale)
		logging.Info("Workspace", "Removed %d stale workspace entries: %v", len(stale), stale)
	}
	return len(stale)
}

// StartWatching begins watching the registry document; each change is re-read and
// delivered to subscribers. It is a no-op when already watching. Failures are logged.
func (r *Registry) StartWatching(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.detector != nil {
		return
	}

	detector := filewatch.New(r.store.Path(), "Workspace", r.opts.Debounce)
	if err := detector.Start(ctx, r.onDocumentChanged); err != nil {
		logging.Error("Workspace", err, "Failed to watch workspace registry %s", r.store.Path())
		return
	}
	r.detector = detector
	logging.Debug("Workspace", "Watching workspace registry %s", r.store.Path())
}

// StopWatching stops the watch started by StartWatching. It is a no-op when not watching.
func (r *Registry) StopWatching() {
	r.mu.Lock()
	detector := r.detector
	r.detector = nil
	r.mu.Unlock()

	if detector != nil {
		detector.Stop()
	}
}

// IsWatching reports whether the registry document is being watched.
func (r *Registry) IsWatching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detector != nil
}

func (r *Registry) onDocumentChanged() {
	t, err := r.store.Read()
	if err != nil {
		logging.Warn("Workspace", "Failed to re-read workspace registry: %v", err)
		return
	}
	if t == nil {
		t = Table{}
	}
	logging.Debug("Workspace", "Workspace registry changed (%d entries)", len(t))
	r.publish(Event{Workspaces: t})
}

// Subscribe returns a channel of change events and a function ending the
// subscription. A subscriber that falls behind only sees the latest table.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	ch := make(chan Event, 1)
	if r.closed {
		close(ch)
		return ch, func() {}
	}

	id := r.nextID
	r.nextID++
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subsMu.Lock()
			defer r.subsMu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

func (r *Registry) publish(ev Event) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- copyEvent(ev):
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		ch <- copyEvent(ev)
	}
}

func copyEvent(ev Event) Event {
	t := make(Table, len(ev.Workspaces))
	for k, v := range ev.Workspaces {
		t[k] = v
	}
	return Event{Workspaces: t}
}

// Shutdown stops watching, deregisters this hub and closes all subscriptions.
func (r *Registry) Shutdown(ctx context.Context) {
	r.StopWatching()
	r.Deregister(ctx)

	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	r.closed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

package filewatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mcphub/pkg/logging"
)

// DefaultDebounce is used when New is given a zero interval.
const DefaultDebounce = 100 * time.Millisecond

// Detector watches a single file and reports debounced changes to it.
//
// The parent directory is watched rather than the file itself so that atomic
// replacements (write to temp file, rename over target) are observed, and so the
// file may be created after watching starts.
type Detector struct {
	mu sync.Mutex

	// path is the cleaned absolute path of the watched file
	path string

	// subsystem is the logging subsystem used for this detector
	subsystem string

	// debounceInterval is how long to wait for additional changes
	debounceInterval time.Duration

	// watcher is the fsnotify watcher instance
	watcher *fsnotify.Watcher

	// stopCh signals shutdown; done is closed when the event loop exits
	stopCh chan struct{}
	done   chan struct{}

	// running indicates if the detector is active
	running bool
}

// New creates a detector for path. subsystem names the component in log lines.
func New(path, subsystem string, debounceInterval time.Duration) *Detector {
	if debounceInterval <= 0 {
		debounceInterval = DefaultDebounce
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Detector{
		path:             filepath.Clean(path),
		subsystem:        subsystem,
		debounceInterval: debounceInterval,
	}
}

// Path returns the watched file path.
func (d *Detector) Path() string {
	return d.path
}

// IsRunning reports whether the detector is watching.
func (d *Detector) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Start begins watching. onChange runs on the detector's own goroutine, once per
// debounced burst of events, and calls are never concurrent. Starting a running
// detector is a no-op.
func (d *Detector) Start(ctx context.Context, onChange func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		watcher.Close()
		return err
	}

	d.watcher = watcher
	d.stopCh = make(chan struct{})
	d.done = make(chan struct{})
	d.running = true

	go d.processEvents(ctx, watcher, d.stopCh, d.done, onChange)

	logging.Debug(d.subsystem, "Started watching %s", d.path)
	return nil
}

// processEvents handles filesystem events until stopped. The debounce timer lives
// on this goroutine so onChange calls are delivered in order.
func (d *Detector) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh, done chan struct{}, onChange func()) {
	defer close(done)
	defer d.releaseAfterExit(watcher, stopCh)

	timer := time.NewTimer(d.debounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !d.relevant(event) {
				continue
			}
			timer.Reset(d.debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error(d.subsystem, err, "Filesystem watcher error on %s", d.path)

		case <-timer.C:
			onChange()
		}
	}
}

// releaseAfterExit marks the detector stopped and closes the watcher when the
// event loop ended on its own (context cancelled or watcher channels closed).
// After Stop, or once a newer Start owns the detector, it does nothing.
func (d *Detector) releaseAfterExit(watcher *fsnotify.Watcher, stopCh chan struct{}) {
	d.mu.Lock()
	owned := d.running && d.stopCh == stopCh
	if owned {
		d.running = false
		d.watcher = nil
	}
	d.mu.Unlock()

	if !owned {
		return
	}
	if err := watcher.Close(); err != nil {
		logging.Error(d.subsystem, err, "Error closing filesystem watcher for %s", d.path)
	}
	logging.Debug(d.subsystem, "Stopped watching %s", d.path)
}

// relevant filters events down to writes, creates, renames and removals of the
// watched file.
func (d *Detector) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != d.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// Stop stops watching and waits for the event loop to exit. Stopping a detector
// that is not running is a no-op. Stop must not be called from onChange.
func (d *Detector) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}

	d.running = false
	close(d.stopCh)
	done := d.done
	watcher := d.watcher
	d.watcher = nil
	d.mu.Unlock()

	<-done

	if err := watcher.Close(); err != nil {
		logging.Error(d.subsystem, err, "Error closing filesystem watcher for %s", d.path)
		return err
	}

	logging.Debug(d.subsystem, "Stopped watching %s", d.path)
	return nil
}

package lockfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"mcphub/pkg/logging"
)

// ErrLockTimeout is returned when the lock could not be acquired within the attempt budget.
var ErrLockTimeout = errors.New("timed out acquiring lock")

const (
	// DefaultRetryDelay is the fixed wait between acquisition attempts.
	DefaultRetryDelay = 50 * time.Millisecond
	// DefaultMaxAttempts bounds how many times acquisition is attempted.
	DefaultMaxAttempts = 10
	// DefaultStaleAfter is the minimum age of a lock file held by a dead process
	// before it is reclaimed.
	DefaultStaleAfter = 5 * time.Second
)

// Options tunes lock acquisition. Zero values select the defaults.
type Options struct {
	RetryDelay  time.Duration
	MaxAttempts int

	// StaleAfter is how old a lock file must be, with a dead holder, before it is
	// removed. A negative value disables reclamation.
	StaleAfter time.Duration

	// PID is written into the lock file. Defaults to os.Getpid().
	PID int

	// ProcessAlive probes a pid. Defaults to ProcessAlive.
	ProcessAlive func(pid int) bool
}

func (o Options) withDefaults() Options {
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.StaleAfter == 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.PID == 0 {
		o.PID = os.Getpid()
	}
	if o.ProcessAlive == nil {
		o.ProcessAlive = ProcessAlive
	}
	return o
}

// Lock is an advisory cross-process lock backed by an exclusively created file.
//
// Every participant must use the same path. The file content is the holder's pid
// and is only used for diagnostics and stale-holder detection.
type Lock struct {
	path string
	opts Options

	// mu serializes holders inside this process so goroutines do not spend the
	// attempt budget racing each other for the file.
	mu sync.Mutex
}

// New creates a lock on path. Nothing touches the filesystem until WithLock.
func New(path string, opts Options) *Lock {
	return &Lock{
		path: path,
		opts: opts.withDefaults(),
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// WithLock runs fn while holding the lock. The lock file is always removed
// afterwards, whatever fn returns.
func (l *Lock) WithLock(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	return fn()
}

func (l *Lock) acquire(ctx context.Context) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := l.tryCreate()
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, fs.ErrExist) {
			l.reclaimIfStale()
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(l.opts.RetryDelay)),
		backoff.WithMaxTries(uint(l.opts.MaxAttempts)),
	)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("acquiring lock %s: %w", l.path, ctxErr)
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w %s after %d attempts", ErrLockTimeout, l.path, attempts)
	}
	return fmt.Errorf("failed to create lock file %s: %w", l.path, err)
}

func (l *Lock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(strconv.Itoa(l.opts.PID)); err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	return nil
}

func (l *Lock) release() {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Lockfile", "Failed to remove lock file %s: %v", l.path, err)
	}
}

// reclaimIfStale removes the lock file when its holder is dead and the file is
// older than StaleAfter. The file is first renamed aside, so a competing holder
// that recreated it after the checks is detected and its file linked back.
func (l *Lock) reclaimIfStale() {
	if l.opts.StaleAfter < 0 {
		return
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return
	}
	age := time.Since(info.ModTime())
	if age < l.opts.StaleAfter {
		return
	}

	pid, err := ReadHolder(l.path)
	if err == nil && l.opts.ProcessAlive(pid) {
		return
	}

	grave := l.path + ".stale-" + uuid.NewString()
	if err := os.Rename(l.path, grave); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Lockfile", "Failed to move stale lock %s aside: %v", l.path, err)
		}
		return
	}
	defer os.Remove(grave)

	if !l.sameStaleHolder(grave, info) {
		if err := os.Link(grave, l.path); err != nil {
			logging.Warn("Lockfile", "Failed to restore lock %s taken over during reclaim: %v", l.path, err)
		}
		return
	}
	logging.Warn("Lockfile", "Removed stale lock %s (holder pid %d, age %s)", l.path, pid, age.Round(time.Millisecond))
}

// sameStaleHolder reports whether the file moved to grave is the one examined
// as stale and still names a dead holder.
func (l *Lock) sameStaleHolder(grave string, examined os.FileInfo) bool {
	moved, err := os.Stat(grave)
	if err != nil {
		return false
	}
	if !os.SameFile(examined, moved) || !moved.ModTime().Equal(examined.ModTime()) {
		return false
	}
	pid, err := ReadHolder(grave)
	return err != nil || !l.opts.ProcessAlive(pid)
}

// ReadHolder returns the pid recorded in a lock file.
func ReadHolder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content %q: %w", string(data), err)
	}
	return pid, nil
}

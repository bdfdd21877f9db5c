package lockfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store gives read-modify-write access to a JSON document shared between processes.
// Every Update runs under the companion lock at path + ".lock"; writes replace the
// document atomically, so Read never sees a partial file and needs no lock.
type Store[T any] struct {
	path string
	lock *Lock
}

// NewStore creates a store for the JSON document at path.
func NewStore[T any](path string, opts Options) *Store[T] {
	return &Store[T]{
		path: path,
		lock: New(path+".lock", opts),
	}
}

// Path returns the document path.
func (s *Store[T]) Path() string {
	return s.path
}

// LockPath returns the companion lock file path.
func (s *Store[T]) LockPath() string {
	return s.lock.Path()
}

// Init ensures the parent directory and the document exist, writing initial when
// the document is missing. Calling it again is a no-op.
func (s *Store[T]) Init(ctx context.Context, initial T) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}

	return s.lock.WithLock(ctx, func() error {
		if _, err := os.Stat(s.path); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", s.path, err)
		}
		return s.write(initial)
	})
}

// Read decodes the current document. A missing or empty file yields the zero value.
func (s *Store[T]) Read() (T, error) {
	var doc T
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Update reads the document, applies fn and writes the result back, all under the
// lock. The document is rewritten only when fn reports a change.
func (s *Store[T]) Update(ctx context.Context, fn func(doc *T) (bool, error)) error {
	return s.lock.WithLock(ctx, func() error {
		doc, err := s.Read()
		if err != nil {
			return err
		}
		changed, err := fn(&doc)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return s.write(doc)
	})
}

func (s *Store[T]) write(doc T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}
	return WriteFileAtomic(s.path, append(data, '\n'), 0o644)
}

// WriteFileAtomic writes data to a uniquely named temporary file next to path and
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

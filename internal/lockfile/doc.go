// Package lockfile provides mutually exclusive read-modify-write access to a JSON
// document shared between processes on one machine.
//
// Mutual exclusion uses a lock file created with O_CREATE|O_EXCL. A blocked caller
// retries at a fixed delay (DefaultRetryDelay) up to a fixed attempt budget
// (DefaultMaxAttempts) and then fails with ErrLockTimeout. Any other creation error
// is returned immediately. A lock file left behind by a dead process is removed once
// it is older than Options.StaleAfter.
//
//	store := lockfile.NewStore[map[string]Entry](path, lockfile.Options{})
//	err := store.Update(ctx, func(doc *map[string]Entry) (bool, error) {
//	    (*doc)[key] = entry
//	    return true, nil
//	})
//
// The lock is advisory. It only protects participants that use the same path and
// this protocol.
package lockfile

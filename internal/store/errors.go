package store

import (
	"errors"
	"fmt"
)

// ErrInitialization means the backend never signalled readiness within
// the bounded wait. Fatal for the session: operations refuse to proceed.
var ErrInitialization = errors.New("store: backend initialization timed out")

// ErrKeyNotFound is returned by KV drivers on a missing key.
var ErrKeyNotFound = errors.New("store: key not found")

// StorageError means a single backend call failed and, where a fallback
// existed, the fallback failed too. The operation did not take effect.
type StorageError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s on %s backend: %v", e.Op, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

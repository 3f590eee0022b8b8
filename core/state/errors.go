package state

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCode    = errors.New("bytecode not found")
	ErrCorruptAccount = errors.New("corrupt account record")
	ErrCorruptCode    = errors.New("bytecode does not match its hash")
)

// FatalStoreError is raised when the base state cannot serve a location the
// block refers to. Re-execution cannot fix it, so the whole block is dropped.
type FatalStoreError struct {
	Key VersionKey
	Err error
}

func (e *FatalStoreError) Error() string {
	return fmt.Sprintf("fatal store error at %s: %v", e.Key, e.Err)
}

func (e *FatalStoreError) Unwrap() error { return e.Err }

// DependencyError is returned by a versioned read that ran into an estimate
// left by a lower transaction. The current incarnation must be abandoned and
// retried once TxIndex re-executes.
type DependencyError struct {
	TxIndex int
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("found dependency on tx %d", e.TxIndex)
}

// IsDependency reports whether err carries a read dependency and returns the
// blocking transaction index.
func IsDependency(err error) (int, bool) {
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		return depErr.TxIndex, true
	}
	return -1, false
}

// Package backend builds the session backend the dashboard persists
// browser sessions in.
package backend

import (
	"context"
	"time"

	"expensedash/internal/session"
)

// CleanupFunc releases whatever the backend holds open.
type CleanupFunc func() error

// Purger drops session values not touched since cutoff.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result is a ready-to-use backend.
type Result struct {
	Provider session.Provider
	// Ready reports whether the backend is usable; never nil.
	Ready func(ctx context.Context) error
	// Purger is nil for backends that forget sessions on their own.
	Purger  Purger
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

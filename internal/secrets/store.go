// Package secrets abstracts the versioned secret backend.
//
// The ledger never stores raw values, only the version references returned
// here. Put has create-or-update semantics; versioning is the backend's.
package secrets

import (
	"context"
	"errors"
	"time"

	"github.com/credstack/rotor/internal/secure"
)

// ErrNotFound is returned when no secret exists at the requested path.
var ErrNotFound = errors.New("secret not found")

// Version identifies one stored revision of a secret without its value.
type Version struct {
	// Ref is the backend's opaque version identifier (KV v2 version number,
	// Secrets Manager VersionId, ...).
	Ref string

	// CreatedAt is when the backend recorded this revision.
	CreatedAt time.Time
}

// Store is the client interface to the secret backend.
type Store interface {
	// Get retrieves the current value and its version reference.
	// The caller owns the returned buffer and must Destroy it.
	Get(ctx context.Context, path string) (*secure.Buffer, Version, error)

	// Put writes a new value, creating the secret if needed, and returns the
	// version reference the backend assigned.
	Put(ctx context.Context, path string, value *secure.Buffer, description string) (Version, error)
}

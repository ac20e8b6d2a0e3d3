package rotation

import (
	"context"
	"errors"
)

// ErrNoRecord is returned by ledger lookups when a secret type has never
// been rotated.
var ErrNoRecord = errors.New("no rotation record")

// Ledger persists rotation records, one per secret type, and enforces
// mutual exclusion between concurrent rotations.
type Ledger interface {
	// Begin atomically records the start of a rotation. It returns
	// *errors.AlreadyInProgressError when a non-terminal record for the same
	// secret type exists, unless that record's rollback deadline has passed,
	// in which case the stale record is marked EXPIRED and superseded. The
	// superseded record, if any, is returned so the caller can emit its
	// terminal notification.
	Begin(ctx context.Context, rec *Record) (*Record, error)

	// Update persists the current state of an open rotation.
	Update(ctx context.Context, rec *Record) error

	// Get returns the most recent record for a secret type, or ErrNoRecord.
	Get(ctx context.Context, secretType string) (*Record, error)

	// All returns the most recent record of every secret type.
	All(ctx context.Context) ([]Record, error)
}

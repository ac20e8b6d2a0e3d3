// Package errors defines the rotation failure taxonomy.
//
// Every failure mode of a rotation maps to exactly one type here, so callers
// can branch with errors.As/errors.Is instead of string matching. The types
// mirror the outcomes recorded in the ledger: a precondition violation makes
// no state change, a preflight failure needs no rollback, an apply or
// verification failure triggers rollback, and a rollback failure is terminal
// until an operator intervenes.
package errors

import (
	"fmt"
	"time"
)

// AlreadyInProgressError is returned when a rotation for the same secret
// type holds the ledger lock. No state is changed.
type AlreadyInProgressError struct {
	SecretType string
	RotationID string
	StartedAt  time.Time
}

func (e *AlreadyInProgressError) Error() string {
	if e.RotationID != "" {
		return fmt.Sprintf("rotation already in progress for %s (rotation %s started %s)",
			e.SecretType, e.RotationID, e.StartedAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("rotation already in progress for %s", e.SecretType)
}

// PreflightError is returned when the environment is not safe to mutate.
// Nothing has been generated or written, so no rollback is needed.
type PreflightError struct {
	Check  string
	Reason string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("preflight check %s failed: %s", e.Check, e.Reason)
}

// ApplyError is returned when writing the new value to the backend or the
// dependent system fails. The coordinator rolls back whatever partial
// change occurred.
type ApplyError struct {
	SecretType string
	Stage      string // "backend" or "dependent"
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed for %s at %s: %v", e.SecretType, e.Stage, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// VerificationTimeoutError is returned when the new value never passed a
// functional probe within the bounded retry budget.
type VerificationTimeoutError struct {
	SecretType string
	Attempts   int
	Backoff    time.Duration
	LastErr    error
}

func (e *VerificationTimeoutError) Error() string {
	msg := fmt.Sprintf("verification of %s did not succeed within %d attempts (%s backoff)",
		e.SecretType, e.Attempts, e.Backoff)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

func (e *VerificationTimeoutError) Unwrap() error {
	return e.LastErr
}

// RollbackError is the most severe failure: the rollback itself could not
// restore the old credential. The rotation is marked unrecoverable and no
// further automated action is taken.
type RollbackError struct {
	SecretType string
	RotationID string
	Err        error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback of %s failed (rotation %s), manual intervention required: %v",
		e.SecretType, e.RotationID, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid or missing configuration value with a
// suggestion for the operator.
type ConfigError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  try: " + e.Suggestion
	}
	return msg
}

// Package rotation holds the rotation record, its state machine, and the
// coordinator that drives a credential through it.
package rotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents where a rotation is in its lifecycle.
type Status string

const (
	// StatusInProgress indicates the new value is being generated and applied.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusVerifying indicates the new value is being probed.
	StatusVerifying Status = "VERIFYING"

	// StatusCompleted indicates the rotation succeeded.
	StatusCompleted Status = "COMPLETED"

	// StatusRollingBack indicates verification failed and the old value is
	// being restored.
	StatusRollingBack Status = "ROLLING_BACK"

	// StatusRolledBack indicates the old value was restored successfully.
	StatusRolledBack Status = "ROLLED_BACK"

	// StatusFailedUnrecoverable indicates the rollback itself failed. No
	// further automated action is taken.
	StatusFailedUnrecoverable Status = "FAILED_UNRECOVERABLE"

	// StatusExpired marks a record left open past its rollback deadline.
	StatusExpired Status = "EXPIRED"
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRolledBack, StatusFailedUnrecoverable, StatusExpired:
		return true
	}
	return false
}

// ValidTransitions defines the forward-only state machine. Any non-terminal
// status may additionally move to EXPIRED.
var ValidTransitions = map[Status][]Status{
	StatusInProgress:  {StatusVerifying, StatusRollingBack, StatusExpired},
	StatusVerifying:   {StatusCompleted, StatusRollingBack, StatusExpired},
	StatusRollingBack: {StatusRolledBack, StatusFailedUnrecoverable, StatusExpired},
}

// CanTransitionTo checks whether moving to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, valid := range ValidTransitions[s] {
		if valid == next {
			return true
		}
	}
	return false
}

// Record is the persisted audit trail of one rotation. It references secret
// values only by the version refs the backend assigned, never the values
// themselves.
type Record struct {
	RotationID       string    `json:"rotation_id"`
	SecretType       string    `json:"secret_type"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time,omitempty"`
	OldVersionRef    string    `json:"old_version_ref,omitempty"`
	NewVersionRef    string    `json:"new_version_ref,omitempty"`
	Status           Status    `json:"status"`
	RollbackDeadline time.Time `json:"rollback_deadline"`
	LastError        string    `json:"last_error,omitempty"`
}

// NewRecord opens a rotation for secretType. The rollback deadline bounds
// the window in which the old value is assumed to still be restorable.
func NewRecord(secretType string, now time.Time, rollbackWindow time.Duration) *Record {
	return &Record{
		RotationID:       uuid.NewString(),
		SecretType:       secretType,
		StartTime:        now,
		Status:           StatusInProgress,
		RollbackDeadline: now.Add(rollbackWindow),
	}
}

// TransitionTo moves the record to next, rejecting anything the state
// machine does not allow. Terminal transitions set the end time, and any
// non-success terminal transition records the diagnostic.
func (r *Record) TransitionTo(next Status, now time.Time, cause error) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid status transition from %s to %s", r.Status, next)
	}

	r.Status = next
	if next.IsTerminal() {
		r.EndTime = now
		if next != StatusCompleted && cause != nil {
			r.LastError = cause.Error()
		}
	}
	return nil
}

// Expired reports whether a still-open record has outlived its rollback
// deadline.
func (r *Record) Expired(now time.Time) bool {
	return !r.Status.IsTerminal() && now.After(r.RollbackDeadline)
}

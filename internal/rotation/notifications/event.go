// Package notifications delivers rotation lifecycle events to the
// configured channels. Delivery is best-effort: a channel being down never
// changes a rotation's outcome.
package notifications

import (
	"time"
)

// Level is the severity of an event.
type Level string

const (
	// LevelInfo covers rotation start and success.
	LevelInfo Level = "INFO"

	// LevelWarning covers degraded but recovered outcomes.
	LevelWarning Level = "WARNING"

	// LevelCritical covers rollbacks and unrecoverable failures.
	LevelCritical Level = "CRITICAL"
)

// Event is one rotation lifecycle notification.
type Event struct {
	Level      Level
	Message    string
	RotationID string
	SecretType string

	// Status is the rotation record status at the time of the event.
	Status string

	// Err is set for failure events.
	Err error

	Timestamp time.Time
}

// AllLevels returns every valid level.
func AllLevels() []Level {
	return []Level{LevelInfo, LevelWarning, LevelCritical}
}

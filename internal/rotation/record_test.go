package rotation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := NewRecord("jwt", now, 30*time.Minute)

	assert.NotEmpty(t, rec.RotationID)
	assert.Equal(t, "jwt", rec.SecretType)
	assert.Equal(t, StatusInProgress, rec.Status)
	assert.Equal(t, now, rec.StartTime)
	assert.Equal(t, now.Add(30*time.Minute), rec.RollbackDeadline)
	assert.True(t, rec.EndTime.IsZero())
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusInProgress, StatusVerifying, true},
		{StatusInProgress, StatusRollingBack, true},
		{StatusInProgress, StatusExpired, true},
		{StatusInProgress, StatusCompleted, false},
		{StatusVerifying, StatusCompleted, true},
		{StatusVerifying, StatusRollingBack, true},
		{StatusVerifying, StatusInProgress, false},
		{StatusRollingBack, StatusRolledBack, true},
		{StatusRollingBack, StatusFailedUnrecoverable, true},
		{StatusRollingBack, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusRolledBack, StatusVerifying, false},
		{StatusExpired, StatusInProgress, false},
		{StatusFailedUnrecoverable, StatusRollingBack, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StatusInProgress.IsTerminal())
	assert.False(t, StatusVerifying.IsTerminal())
	assert.False(t, StatusRollingBack.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusRolledBack.IsTerminal())
	assert.True(t, StatusFailedUnrecoverable.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestTransitionToSetsTerminalFields(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)

	rec := NewRecord("database", start, 30*time.Minute)
	require.NoError(t, rec.TransitionTo(StatusVerifying, start, nil))
	require.NoError(t, rec.TransitionTo(StatusRollingBack, start, nil))

	cause := errors.New("probe never succeeded")
	require.NoError(t, rec.TransitionTo(StatusRolledBack, end, cause))

	assert.Equal(t, StatusRolledBack, rec.Status)
	assert.Equal(t, end, rec.EndTime)
	assert.Equal(t, "probe never succeeded", rec.LastError)
}

func TestTransitionToCompletedLeavesNoError(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := NewRecord("jwt", start, 30*time.Minute)
	require.NoError(t, rec.TransitionTo(StatusVerifying, start, nil))
	require.NoError(t, rec.TransitionTo(StatusCompleted, start.Add(time.Minute), nil))

	assert.Empty(t, rec.LastError)
	assert.False(t, rec.EndTime.IsZero())
}

func TestTransitionToRejectsInvalid(t *testing.T) {
	t.Parallel()

	rec := NewRecord("jwt", time.Now().UTC(), 30*time.Minute)
	err := rec.TransitionTo(StatusCompleted, time.Now().UTC(), nil)
	require.Error(t, err)
	assert.Equal(t, StatusInProgress, rec.Status)
}

func TestRecordExpired(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	rec := NewRecord("redis", start, 30*time.Minute)

	assert.False(t, rec.Expired(start.Add(29*time.Minute)))
	assert.True(t, rec.Expired(start.Add(31*time.Minute)))

	// Terminal records never expire.
	require.NoError(t, rec.TransitionTo(StatusVerifying, start, nil))
	require.NoError(t, rec.TransitionTo(StatusCompleted, start.Add(time.Minute), nil))
	assert.False(t, rec.Expired(start.Add(2*time.Hour)))
}

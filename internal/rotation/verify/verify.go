// Package verify runs the bounded retry loop that decides whether a newly
// applied credential actually works.
package verify

import (
	"context"
	"time"

	roterrors "github.com/credstack/rotor/internal/errors"
)

// Clock abstracts time so the retry loop is testable without wall time.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep waits for d or until the context is canceled.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy bounds the retry loop for one secret type.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Run probes until success or the attempt budget is exhausted, sleeping
// between attempts. It returns how many attempts were made; on exhaustion
// the error is a *VerificationTimeoutError wrapping the last probe failure.
func Run(ctx context.Context, clock Clock, secretType string, policy Policy, probe func(context.Context) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = probe(ctx)
		if lastErr == nil {
			return attempt, nil
		}

		if attempt < policy.MaxAttempts {
			if err := clock.Sleep(ctx, policy.Backoff); err != nil {
				return attempt, err
			}
		}
	}

	return policy.MaxAttempts, &roterrors.VerificationTimeoutError{
		SecretType: secretType,
		Attempts:   policy.MaxAttempts,
		Backoff:    policy.Backoff,
		LastErr:    lastErr,
	}
}

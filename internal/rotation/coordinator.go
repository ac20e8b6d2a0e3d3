package rotation

import (
	"context"
	"errors"
	"fmt"

	"github.com/credstack/rotor/internal/config"
	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/reload"
	"github.com/credstack/rotor/internal/rotation/notifications"
	"github.com/credstack/rotor/internal/rotation/preflight"
	"github.com/credstack/rotor/internal/rotation/rollback"
	"github.com/credstack/rotor/internal/rotation/strategy"
	"github.com/credstack/rotor/internal/rotation/verify"
	"github.com/credstack/rotor/internal/secrets"
	"github.com/credstack/rotor/internal/secure"
)

// Notifier receives rotation lifecycle events. *notifications.Manager
// satisfies it; tests substitute a recorder.
type Notifier interface {
	Send(event notifications.Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Send(notifications.Event) {}

// Outcome summarizes one finished rotation attempt.
type Outcome struct {
	SecretType string
	RotationID string
	Status     Status
	Attempts   int
	Err        error
}

// Coordinator drives a credential through the rotation state machine:
// preflight, generate, record, apply, reload, bounded verify, and rollback
// on failure. It owns all writes to the secret backend and the ledger;
// strategies only touch the dependent system.
type Coordinator struct {
	def      *config.Definition
	store    secrets.Store
	ledger   Ledger
	registry *strategy.Registry
	checker  *preflight.Checker
	reloader reload.Reloader
	restorer *rollback.Controller
	notifier Notifier
	clock    verify.Clock
	logger   *logging.Logger
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(
	def *config.Definition,
	store secrets.Store,
	ledger Ledger,
	registry *strategy.Registry,
	checker *preflight.Checker,
	reloader reload.Reloader,
	restorer *rollback.Controller,
	notifier Notifier,
	logger *logging.Logger,
) *Coordinator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Coordinator{
		def:      def,
		store:    store,
		ledger:   ledger,
		registry: registry,
		checker:  checker,
		reloader: reloader,
		restorer: restorer,
		notifier: notifier,
		clock:    verify.RealClock{},
		logger:   logger,
	}
}

// SetClock replaces the clock. Used in tests.
func (c *Coordinator) SetClock(clock verify.Clock) {
	c.clock = clock
}

// Rotate runs one full rotation of secretType. Every path out of this
// function after the ledger record is opened leaves the record in a
// terminal status and emits exactly one terminal notification.
func (c *Coordinator) Rotate(ctx context.Context, secretType string) Outcome {
	cfg, err := c.def.GetSecret(secretType)
	if err != nil {
		return Outcome{SecretType: secretType, Err: err}
	}
	reg, err := c.registry.Get(secretType)
	if err != nil {
		return Outcome{SecretType: secretType, Err: err}
	}
	strat := reg.Strategy

	c.logger.Step("Running preflight checks")
	if _, err := c.checker.Run(ctx); err != nil {
		return Outcome{SecretType: secretType, Err: err}
	}

	// Capture the old value before anything changes. First rotations have
	// no old value and nothing to roll back to.
	oldValue, oldVersion, err := c.store.Get(ctx, cfg.Path)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return Outcome{SecretType: secretType, Err: fmt.Errorf("failed to read current value: %w", err)}
	}
	if oldValue != nil {
		defer oldValue.Destroy()
	}

	rec := NewRecord(secretType, c.clock.Now(), c.def.RollbackWindow.Std())
	rec.OldVersionRef = oldVersion.Ref
	expired, err := c.ledger.Begin(ctx, rec)
	if err != nil {
		return Outcome{SecretType: secretType, Err: err}
	}
	if expired != nil {
		// The ledger closed out a stale rotation to let us in. That is a
		// terminal transition like any other, so it gets its notification.
		c.observe(expired)
		c.logger.Warn("Rotation %s of %s expired past its rollback deadline", expired.RotationID, secretType)
		c.notifier.Send(notifications.Event{
			Level:      notifications.LevelWarning,
			Message:    fmt.Sprintf("Stale rotation of %s expired past its rollback deadline", secretType),
			RotationID: expired.RotationID,
			SecretType: secretType,
			Status:     expired.Status.String(),
		})
	}

	rotationsStarted.WithLabelValues(secretType).Inc()
	c.logger.Step("Rotation %s started for %s", rec.RotationID, secretType)
	c.notifier.Send(notifications.Event{
		Level:      notifications.LevelInfo,
		Message:    fmt.Sprintf("Rotation of %s started", secretType),
		RotationID: rec.RotationID,
		SecretType: secretType,
		Status:     rec.Status.String(),
	})

	c.logger.Step("Generating new value for %s", secretType)
	newValue, err := strat.Generate(ctx)
	if err != nil {
		// Nothing was written anywhere, so the rollback is a pure
		// bookkeeping transition.
		return c.abandon(ctx, rec, fmt.Errorf("failed to generate new value: %w", err))
	}
	defer newValue.Destroy()

	c.logger.Step("Writing new value to backend")
	newVersion, err := c.store.Put(ctx, cfg.Path, newValue, fmt.Sprintf("rotation %s", rec.RotationID))
	if err != nil {
		return c.abandon(ctx, rec, &roterrors.ApplyError{SecretType: secretType, Stage: "backend", Err: err})
	}
	rec.NewVersionRef = newVersion.Ref
	if err := c.ledger.Update(ctx, rec); err != nil {
		return c.restore(ctx, rec, cfg, strat, oldValue, newValue, fmt.Errorf("failed to update ledger: %w", err))
	}

	c.logger.Step("Applying new value to dependent system")
	if err := strat.Apply(ctx, oldValue, newValue); err != nil {
		return c.restore(ctx, rec, cfg, strat, oldValue, newValue,
			&roterrors.ApplyError{SecretType: secretType, Stage: "dependent", Err: err})
	}

	if err := c.reloader.Reload(ctx); err != nil {
		return c.restore(ctx, rec, cfg, strat, oldValue, newValue, err)
	}

	if err := c.transition(ctx, rec, StatusVerifying, nil); err != nil {
		return c.restore(ctx, rec, cfg, strat, oldValue, newValue, err)
	}

	c.logger.Step("Verifying new value (up to %d attempts, %s apart)", reg.Policy.MaxAttempts, reg.Policy.Backoff)
	attempts, err := verify.Run(ctx, c.clock, secretType, reg.Policy, func(ctx context.Context) error {
		return strat.Verify(ctx, newValue)
	})
	verificationAttempts.WithLabelValues(secretType).Observe(float64(attempts))
	if err != nil {
		out := c.restore(ctx, rec, cfg, strat, oldValue, newValue, err)
		out.Attempts = attempts
		return out
	}

	if err := c.transition(ctx, rec, StatusCompleted, nil); err != nil {
		return Outcome{SecretType: secretType, RotationID: rec.RotationID, Status: rec.Status, Attempts: attempts, Err: err}
	}
	c.observe(rec)
	c.logger.Info("Rotation %s completed for %s (verified on attempt %d)", rec.RotationID, secretType, attempts)
	c.notifier.Send(notifications.Event{
		Level:      notifications.LevelInfo,
		Message:    fmt.Sprintf("Rotation of %s completed", secretType),
		RotationID: rec.RotationID,
		SecretType: secretType,
		Status:     rec.Status.String(),
	})
	return Outcome{SecretType: secretType, RotationID: rec.RotationID, Status: StatusCompleted, Attempts: attempts}
}

// abandon closes a rotation that failed before anything landed in the
// backend or the dependent system. The old value is still live, so the
// rollback transition is purely administrative.
func (c *Coordinator) abandon(ctx context.Context, rec *Record, cause error) Outcome {
	if err := c.transition(ctx, rec, StatusRollingBack, cause); err != nil {
		c.logger.Error("ledger update failed: %v", err)
	}
	if err := c.transition(ctx, rec, StatusRolledBack, cause); err != nil {
		c.logger.Error("ledger update failed: %v", err)
	}
	c.observe(rec)
	c.notifyFailure(rec, cause)
	return Outcome{SecretType: rec.SecretType, RotationID: rec.RotationID, Status: rec.Status, Err: cause}
}

// restore runs a full rollback after a partial rotation and records the
// terminal status: ROLLED_BACK when the old value is verified live again,
// FAILED_UNRECOVERABLE when even the rollback failed.
func (c *Coordinator) restore(ctx context.Context, rec *Record, cfg config.SecretConfig, strat strategy.Strategy, oldValue, newValue *secure.Buffer, cause error) Outcome {
	if err := c.transition(ctx, rec, StatusRollingBack, cause); err != nil {
		c.logger.Error("ledger update failed: %v", err)
	}

	if rbErr := c.restorer.Rollback(ctx, rec.SecretType, cfg.Path, strat, oldValue, newValue); rbErr != nil {
		terminal := &roterrors.RollbackError{SecretType: rec.SecretType, RotationID: rec.RotationID, Err: rbErr}
		if err := c.transition(ctx, rec, StatusFailedUnrecoverable, terminal); err != nil {
			c.logger.Error("ledger update failed: %v", err)
		}
		c.observe(rec)
		c.notifyFailure(rec, terminal)
		return Outcome{SecretType: rec.SecretType, RotationID: rec.RotationID, Status: rec.Status, Err: terminal}
	}

	if err := c.transition(ctx, rec, StatusRolledBack, cause); err != nil {
		c.logger.Error("ledger update failed: %v", err)
	}
	c.observe(rec)
	c.notifyFailure(rec, cause)
	return Outcome{SecretType: rec.SecretType, RotationID: rec.RotationID, Status: rec.Status, Err: cause}
}

func (c *Coordinator) transition(ctx context.Context, rec *Record, next Status, cause error) error {
	if err := rec.TransitionTo(next, c.clock.Now(), cause); err != nil {
		return err
	}
	return c.ledger.Update(ctx, rec)
}

func (c *Coordinator) observe(rec *Record) {
	rotationsFinished.WithLabelValues(rec.SecretType, rec.Status.String()).Inc()
	if !rec.EndTime.IsZero() {
		rotationDuration.WithLabelValues(rec.SecretType).Observe(rec.EndTime.Sub(rec.StartTime).Seconds())
	}
}

func (c *Coordinator) notifyFailure(rec *Record, cause error) {
	c.logger.Error("Rotation %s of %s ended %s: %v", rec.RotationID, rec.SecretType, rec.Status, cause)
	c.notifier.Send(notifications.Event{
		Level:      notifications.LevelCritical,
		Message:    fmt.Sprintf("Rotation of %s ended %s", rec.SecretType, rec.Status),
		RotationID: rec.RotationID,
		SecretType: rec.SecretType,
		Status:     rec.Status.String(),
		Err:        cause,
	})
}

// RotateAll rotates the given secret types one at a time, waiting out the
// cooldown between consecutive rotations so dependent systems settle. An
// empty list means every registered type. Failures do not stop the run.
func (c *Coordinator) RotateAll(ctx context.Context, types []string) []Outcome {
	if len(types) == 0 {
		types = c.registry.Types()
	}

	cooldown := c.def.RotateAll.Cooldown.Std()
	outcomes := make([]Outcome, 0, len(types))
	for i, secretType := range types {
		if i > 0 && cooldown > 0 {
			c.logger.Step("Cooling down %s before rotating %s", cooldown, secretType)
			if err := c.clock.Sleep(ctx, cooldown); err != nil {
				outcomes = append(outcomes, Outcome{SecretType: secretType, Err: err})
				break
			}
		}
		outcomes = append(outcomes, c.Rotate(ctx, secretType))
	}
	return outcomes
}

// Status returns the most recent rotation record for a secret type.
func (c *Coordinator) Status(ctx context.Context, secretType string) (*Record, error) {
	return c.ledger.Get(ctx, secretType)
}

// StatusAll returns the most recent record of every secret type.
func (c *Coordinator) StatusAll(ctx context.Context) ([]Record, error) {
	return c.ledger.All(ctx)
}

// Probe runs a single verification pass against the currently stored value
// without rotating anything.
func (c *Coordinator) Probe(ctx context.Context, secretType string) error {
	cfg, err := c.def.GetSecret(secretType)
	if err != nil {
		return err
	}
	reg, err := c.registry.Get(secretType)
	if err != nil {
		return err
	}

	value, _, err := c.store.Get(ctx, cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to read current value: %w", err)
	}
	defer value.Destroy()

	return reg.Strategy.Verify(ctx, value)
}

// DryRun exercises preflight and generation without writing anything.
func (c *Coordinator) DryRun(ctx context.Context, secretType string) error {
	if _, err := c.def.GetSecret(secretType); err != nil {
		return err
	}
	reg, err := c.registry.Get(secretType)
	if err != nil {
		return err
	}

	if _, err := c.checker.Run(ctx); err != nil {
		return err
	}

	value, err := reg.Strategy.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate new value: %w", err)
	}
	value.Destroy()

	c.logger.Info("Dry run for %s passed; no changes made", secretType)
	return nil
}

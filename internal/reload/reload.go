// Package reload pushes a freshly rotated value out to its dependent
// consumers, typically by restarting or signaling them.
package reload

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/credstack/rotor/internal/logging"
)

// Reloader triggers dependent consumers to pick up the current secret
// values. Invoked after the forward apply and again after a rollback
// re-store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ExecReloader runs a configured command.
type ExecReloader struct {
	command []string
	logger  *logging.Logger
	timeout time.Duration
}

// NewExecReloader creates a reloader for the given argv.
func NewExecReloader(command []string, logger *logging.Logger) *ExecReloader {
	return &ExecReloader{
		command: command,
		logger:  logger,
		timeout: 60 * time.Second,
	}
}

// Reload runs the command and waits for it to exit.
func (r *ExecReloader) Reload(ctx context.Context) error {
	if len(r.command) == 0 {
		return fmt.Errorf("no reload command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Step("Reloading dependent consumers: %s", r.command[0])
	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("reload command failed: %w (output: %s)", err, string(output))
	}

	r.logger.Debug("Reload command output: %s", string(output))
	return nil
}

// NopReloader is used when no reload hook is configured.
type NopReloader struct{}

func (NopReloader) Reload(context.Context) error {
	return nil
}

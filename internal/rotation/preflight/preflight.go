// Package preflight checks the environment before a rotation is allowed to
// mutate anything. Disk pressure is a hard failure; everything else warns.
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/credstack/rotor/internal/config"
	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/logging"
)

// Outcome of one check.
type Outcome string

const (
	OutcomeOK   Outcome = "ok"
	OutcomeWarn Outcome = "warn"
	OutcomeFail Outcome = "fail"
)

// Result is one line of the preflight report.
type Result struct {
	Check   string  `json:"check"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
}

// Checker runs the configured environment checks.
type Checker struct {
	cfg    config.PreflightConfig
	logger *logging.Logger
	client *http.Client

	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// NewChecker creates a checker for the given thresholds.
func NewChecker(cfg config.PreflightConfig, logger *logging.Logger) *Checker {
	return &Checker{
		cfg:           cfg,
		logger:        logger,
		client:        &http.Client{Timeout: 5 * time.Second},
		diskUsage:     disk.UsageWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
	}
}

// Run executes every check. The report always covers all checks; the error
// is non-nil only when a hard check failed, and is a *PreflightError.
func (c *Checker) Run(ctx context.Context) ([]Result, error) {
	var results []Result
	var hard *roterrors.PreflightError

	diskResult := c.checkDisk(ctx)
	results = append(results, diskResult)
	if diskResult.Outcome == OutcomeFail {
		hard = &roterrors.PreflightError{Check: diskResult.Check, Reason: diskResult.Detail}
	}

	results = append(results, c.checkMemory(ctx))
	for _, target := range c.cfg.Liveness {
		results = append(results, c.checkLiveness(ctx, target))
	}

	for _, r := range results {
		switch r.Outcome {
		case OutcomeWarn:
			c.logger.Warn("preflight %s: %s", r.Check, r.Detail)
		case OutcomeFail:
			c.logger.Error("preflight %s: %s", r.Check, r.Detail)
		default:
			c.logger.Debug("preflight %s: %s", r.Check, r.Detail)
		}
	}

	if hard != nil {
		return results, hard
	}
	return results, nil
}

func (c *Checker) checkDisk(ctx context.Context) Result {
	usage, err := c.diskUsage(ctx, c.cfg.DiskPath)
	if err != nil {
		return Result{
			Check:   "disk",
			Outcome: OutcomeFail,
			Detail:  fmt.Sprintf("cannot stat %s: %v", c.cfg.DiskPath, err),
		}
	}

	detail := fmt.Sprintf("%s at %.1f%% (limit %.0f%%)", c.cfg.DiskPath, usage.UsedPercent, c.cfg.DiskLimitPct)
	if usage.UsedPercent > c.cfg.DiskLimitPct {
		return Result{Check: "disk", Outcome: OutcomeFail, Detail: detail}
	}
	return Result{Check: "disk", Outcome: OutcomeOK, Detail: detail}
}

func (c *Checker) checkMemory(ctx context.Context) Result {
	vm, err := c.virtualMemory(ctx)
	if err != nil {
		return Result{
			Check:   "memory",
			Outcome: OutcomeWarn,
			Detail:  fmt.Sprintf("cannot read memory stats: %v", err),
		}
	}

	detail := fmt.Sprintf("%.1f%% used (warn above %.0f%%)", vm.UsedPercent, c.cfg.MemoryWarnPct)
	if vm.UsedPercent > c.cfg.MemoryWarnPct {
		return Result{Check: "memory", Outcome: OutcomeWarn, Detail: detail}
	}
	return Result{Check: "memory", Outcome: OutcomeOK, Detail: detail}
}

func (c *Checker) checkLiveness(ctx context.Context, target config.LivenessTarget) Result {
	check := "liveness:" + target.Name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return Result{Check: check, Outcome: OutcomeWarn, Detail: fmt.Sprintf("bad url: %v", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Check: check, Outcome: OutcomeWarn, Detail: fmt.Sprintf("unreachable: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Check: check, Outcome: OutcomeWarn, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}
	return Result{Check: check, Outcome: OutcomeOK, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
}

package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/config"
	roterrors "github.com/credstack/rotor/internal/errors"
	"github.com/credstack/rotor/internal/logging"
)

func newTestChecker(diskPct, memPct float64, targets []config.LivenessTarget) *Checker {
	c := NewChecker(config.PreflightConfig{
		DiskPath:      "/",
		DiskLimitPct:  85,
		MemoryWarnPct: 90,
		Liveness:      targets,
	}, logging.New(false, true))

	c.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{UsedPercent: diskPct}, nil
	}
	c.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{UsedPercent: memPct}, nil
	}
	return c
}

func outcomeOf(t *testing.T, results []Result, check string) Outcome {
	t.Helper()
	for _, r := range results {
		if r.Check == check {
			return r.Outcome
		}
	}
	t.Fatalf("no result for check %s", check)
	return ""
}

func TestRunAllHealthy(t *testing.T) {
	t.Parallel()

	results, err := newTestChecker(50, 40, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcomeOf(t, results, "disk"))
	assert.Equal(t, OutcomeOK, outcomeOf(t, results, "memory"))
}

func TestRunDiskPressureIsHardFailure(t *testing.T) {
	t.Parallel()

	results, err := newTestChecker(92, 40, nil).Run(context.Background())

	var pf *roterrors.PreflightError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, "disk", pf.Check)
	assert.Equal(t, OutcomeFail, outcomeOf(t, results, "disk"))
}

func TestRunMemoryPressureOnlyWarns(t *testing.T) {
	t.Parallel()

	results, err := newTestChecker(50, 95, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeWarn, outcomeOf(t, results, "memory"))
}

func TestRunLiveness(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	checker := newTestChecker(50, 40, []config.LivenessTarget{
		{Name: "api", URL: healthy.URL},
		{Name: "worker", URL: broken.URL},
	})

	results, err := checker.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcomeOf(t, results, "liveness:api"))
	assert.Equal(t, OutcomeWarn, outcomeOf(t, results, "liveness:worker"))
}

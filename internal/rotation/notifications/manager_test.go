package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credstack/rotor/internal/logging"
)

// capturingProvider records every event it is asked to deliver.
type capturingProvider struct {
	mu     sync.Mutex
	name   string
	levels []string
	events []Event
	err    error
}

func (p *capturingProvider) Name() string { return p.name }

func (p *capturingProvider) Send(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturingProvider) SupportsLevel(level Level) bool {
	return supportsLevel(p.levels, level)
}

func (p *capturingProvider) Validate(context.Context) error { return nil }

func (p *capturingProvider) captured() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func waitForEvents(t *testing.T, p *capturingProvider, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := p.captured(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events", n)
	return nil
}

func TestManagerDeliversToAllProviders(t *testing.T) {
	t.Parallel()

	first := &capturingProvider{name: "first"}
	second := &capturingProvider{name: "second"}

	manager := NewManager(10, logging.New(false, true))
	manager.RegisterProvider(first)
	manager.RegisterProvider(second)
	manager.Start(context.Background())
	defer manager.Stop()

	manager.Send(Event{
		Level:      LevelInfo,
		Message:    "Rotation completed",
		RotationID: "rot-1",
		SecretType: "jwt",
		Status:     "COMPLETED",
	})

	events := waitForEvents(t, first, 1)
	assert.Equal(t, "rot-1", events[0].RotationID)
	assert.False(t, events[0].Timestamp.IsZero())
	waitForEvents(t, second, 1)
}

func TestManagerFiltersByLevel(t *testing.T) {
	t.Parallel()

	criticalOnly := &capturingProvider{name: "pager", levels: []string{"CRITICAL"}}

	manager := NewManager(10, logging.New(false, true))
	manager.RegisterProvider(criticalOnly)
	manager.Start(context.Background())

	manager.Send(Event{Level: LevelInfo, Message: "started"})
	manager.Send(Event{Level: LevelCritical, Message: "rollback failed"})
	manager.Stop()

	events := criticalOnly.captured()
	require.Len(t, events, 1)
	assert.Equal(t, LevelCritical, events[0].Level)
}

func TestManagerProviderFailureDoesNotPropagate(t *testing.T) {
	t.Parallel()

	failing := &capturingProvider{name: "down", err: errors.New("connection refused")}
	working := &capturingProvider{name: "up"}

	manager := NewManager(10, logging.New(false, true))
	manager.RegisterProvider(failing)
	manager.RegisterProvider(working)
	manager.Start(context.Background())

	manager.Send(Event{Level: LevelCritical, Message: "rollback"})
	manager.Stop()

	assert.Len(t, failing.captured(), 1)
	assert.Len(t, working.captured(), 1)
}

func TestManagerSendBeforeStartIsDropped(t *testing.T) {
	t.Parallel()

	provider := &capturingProvider{name: "late"}
	manager := NewManager(10, logging.New(false, true))
	manager.RegisterProvider(provider)

	manager.Send(Event{Level: LevelInfo, Message: "too early"})

	manager.Start(context.Background())
	manager.Stop()
	assert.Empty(t, provider.captured())
}

func TestManagerStopDrainsQueue(t *testing.T) {
	t.Parallel()

	provider := &capturingProvider{name: "slow"}
	manager := NewManager(10, logging.New(false, true))
	manager.RegisterProvider(provider)
	manager.Start(context.Background())

	for i := 0; i < 5; i++ {
		manager.Send(Event{Level: LevelInfo, Message: "event"})
	}
	manager.Stop()

	assert.Len(t, provider.captured(), 5)
}

package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/credstack/rotor/internal/logging"
)

// DefaultQueueSize is the maximum number of events that can be queued.
const DefaultQueueSize = 100

// Manager fans rotation events out to every registered provider from a
// bounded async queue, so a slow channel cannot block a rotation.
type Manager struct {
	providers []Provider
	logger    *logging.Logger
	queue     chan Event
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	done      chan struct{}

	droppedCount int64
	droppedMu    sync.Mutex
}

// NewManager creates a manager with the specified queue size. A size of 0
// uses DefaultQueueSize.
func NewManager(queueSize int, logger *logging.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		providers: make([]Provider, 0),
		logger:    logger,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
}

// RegisterProvider adds a delivery channel.
func (m *Manager) RegisterProvider(provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers = append(m.providers, provider)
}

// Providers returns a copy of the registered providers.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	providers := make([]Provider, len(m.providers))
	copy(providers, m.providers)
	return providers
}

// Start begins the background delivery worker. Must be called before Send.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.worker(ctx)
}

// Stop shuts the manager down after draining pending events.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.done)
	m.wg.Wait()
}

// Send queues an event. It never blocks; when the queue is full the event
// is dropped and counted.
func (m *Manager) Send(event Event) {
	m.mu.RLock()
	if !m.running {
		m.mu.RUnlock()
		return
	}
	m.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case m.queue <- event:
	default:
		m.droppedMu.Lock()
		m.droppedCount++
		m.droppedMu.Unlock()
		notificationsDropped.Inc()
	}
}

// DroppedCount returns how many events overflowed the queue.
func (m *Manager) DroppedCount() int64 {
	m.droppedMu.Lock()
	defer m.droppedMu.Unlock()
	return m.droppedCount
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			m.drainQueue()
			return
		case <-m.done:
			m.drainQueue()
			return
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.dispatch(ctx, event)
		}
	}
}

// drainQueue delivers whatever is still queued, each with a short budget.
func (m *Manager) drainQueue() {
	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.dispatch(drainCtx, event)
			cancel()
		default:
			return
		}
	}
}

// dispatch sends an event to every provider that wants its level. Failures
// are logged and counted, never propagated.
func (m *Manager) dispatch(ctx context.Context, event Event) {
	m.mu.RLock()
	providers := m.providers
	m.mu.RUnlock()

	for _, provider := range providers {
		if !provider.SupportsLevel(event.Level) {
			continue
		}

		if err := provider.Send(ctx, event); err != nil {
			notificationFailures.WithLabelValues(provider.Name()).Inc()
			m.logger.Warn("Notification via %s failed: %v", provider.Name(), err)
			continue
		}
		notificationsSent.WithLabelValues(provider.Name()).Inc()
	}
}

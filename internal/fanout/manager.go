package fanout

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"gochat/internal/config"
	"gochat/internal/logger"
)

const deliverTimeout = 5 * time.Second

// Manager routes events to its observers on a fixed set of shard goroutines.
// Events for the same message always land on the same shard, so observers see
// them in the order they were notified.
type Manager struct {
	observers map[string]Observer
	shards    []chan Event
	mu        sync.RWMutex
	wg        sync.WaitGroup
	closed    bool
	dropped   atomic.Uint64
}

func NewManager(workers, bufferSize int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}

	m := &Manager{
		observers: make(map[string]Observer),
		shards:    make([]chan Event, workers),
	}
	for i := range m.shards {
		m.shards[i] = make(chan Event, bufferSize)
		m.wg.Add(1)
		go m.processEvents(m.shards[i])
	}
	return m
}

func NewManagerFromConfig(cfg *config.Config) *Manager {
	return NewManager(cfg.Fanout.Workers, cfg.Fanout.ChannelBufferSize)
}

func (m *Manager) Subscribe(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[observer.Name()] = observer
	logger.Get().Info().Str("observer", observer.Name()).Msg("observer subscribed")
}

func (m *Manager) Unsubscribe(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.observers, name)
}

// Notify queues event without blocking. A full shard drops the event.
func (m *Manager) Notify(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.shards[m.shardFor(event)] <- event:
	default:
		m.dropped.Add(1)
		logger.FromContext(ctx).Warn().
			Str("event", event.Name).
			Uint64("message_id", event.MessageID).
			Msg("fanout shard full, dropping event")
	}
}

// Dropped reports how many events were discarded on full shards.
func (m *Manager) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Manager) shardFor(event Event) int {
	key := event.MessageID
	if key == 0 {
		key = event.ConversationID
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	return int(xxhash.Sum64(buf[:]) % uint64(len(m.shards)))
}

func (m *Manager) processEvents(queue <-chan Event) {
	defer m.wg.Done()
	for event := range queue {
		m.deliver(event)
	}
}

func (m *Manager) deliver(event Event) {
	m.mu.RLock()
	observers := make([]Observer, 0, len(m.observers))
	for _, obs := range m.observers {
		observers = append(observers, obs)
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	for _, observer := range observers {
		if err := observer.Update(ctx, event); err != nil {
			logger.Get().Warn().Err(err).
				Str("observer", observer.Name()).
				Str("event", event.Name).
				Msg("observer update failed")
		}
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, shard := range m.shards {
		close(shard)
	}
	m.mu.Unlock()

	m.wg.Wait()
	logger.Get().Info().Msg("fanout manager shutdown complete")
}

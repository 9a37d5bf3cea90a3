package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Type names a correlation lifecycle event.
type Type string

const (
	Dispatched   Type = "dispatched"
	Completed    Type = "completed"
	Failed       Type = "failed"
	TimedOut     Type = "timeout"
	ResultStored Type = "result_stored"
)

// Event describes one step of an invocation
type Event struct {
	Type       Type      `json:"type"`
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Time       time.Time `json:"timestamp"`
}

// Subscription receives published events until it is closed.
type Subscription struct {
	hub  *Hub
	ch   chan Event
	once sync.Once
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close ends the subscription.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	dropped atomic.Uint64
}

// NewHub creates an event hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	s := &Subscription{hub: h, ch: make(chan Event, buffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Event subscriber added", zap.Int("subscribers", h.Len()))
	return s
}

// Publish delivers ev to every subscriber. A nil hub discards it.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.once.Do(func() { close(s.ch) })
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

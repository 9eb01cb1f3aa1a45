package signal

import (
	"sync"
	"time"

	"go-meeting-core/core/logger"
)

// Event is one outbound domain signal, e.g. "booking.confirmed".
type Event struct {
	Topic      string    `json:"topic"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Handler func(Event)

// Sink forwards events to an external transport (Kafka, webhook, ...).
type Sink interface {
	Deliver(Event) error
}

// Registry is a callback registry for domain signals. Handlers run
// synchronously with Publish; sinks are best-effort and run on their own
// goroutine so a slow broker never blocks the publishing operation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	sinks    []Sink
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

func (r *Registry) Subscribe(topic string, h Handler) {
	r.mu.Lock()
	r.handlers[topic] = append(r.handlers[topic], h)
	r.mu.Unlock()
}

func (r *Registry) AttachSink(s Sink) {
	r.mu.Lock()
	r.sinks = append(r.sinks, s)
	r.mu.Unlock()
}

func (r *Registry) Publish(topic string, payload any) {
	event := Event{Topic: topic, Payload: payload, OccurredAt: time.Now()}

	r.mu.RLock()
	handlers := r.handlers[topic]
	sinks := r.sinks
	r.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}

	for _, s := range sinks {
		go func(s Sink) {
			if err := s.Deliver(event); err != nil {
				logger.Warn("Signal:Sink:DeliverError", "topic", topic, "error", err)
			}
		}(s)
	}
}

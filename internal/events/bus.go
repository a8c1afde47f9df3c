package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives an emitted event. Handlers run synchronously on the
// emitting goroutine's call to Emit, matching how the cache invalidation
// listeners in this pipeline need to observe the mutation before the
// caller proceeds (see internal/scoring's graph-version bump).
type Handler func(EventWithData)

// Bus is a minimal in-process publish/subscribe dispatcher. It intentionally
// does not buffer or fan out across goroutines: every pipeline component
// that cares about an event (graph cache, embedding cache) subscribes
// directly and is invoked inline.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates an empty Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers fn to run whenever an event of the given type is emitted.
func (b *Bus) Subscribe(eventType EventType, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], fn)
}

// Emit dispatches data to every subscriber of its event type.
func (b *Bus) Emit(component string, data EventData) {
	evt := EventWithData{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Component: component,
		Data:      data,
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().Interface("panic", r).Str("event_type", string(evt.Type)).Msg("event handler panicked")
				}
			}()
			h(evt)
		}()
	}
}

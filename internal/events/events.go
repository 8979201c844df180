package events

import (
	"sync"

	console "github.com/quanghuy1242/auther-sub001/internal/utils/logger"
)

var log = console.New("EVENTS")

type Handler func(interface{})

// Bus is a minimal in-process pub/sub. Handlers run on their own goroutines;
// emitters never block on a slow subscriber.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var defaultBus = NewBus()

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

func (b *Bus) On(event string, handler Handler) {
	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], handler)
	b.mu.Unlock()
	log.Debug("registered handler for %s", event)
}

func (b *Bus) Emit(event string, data interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event]))
	copy(handlers, b.handlers[event])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("event handler for %s panicked: %v", event, r)
				}
			}()
			h(data)
		}(handler)
	}
}

// On registers a handler on the default bus
func On(event string, handler Handler) {
	defaultBus.On(event, handler)
}

// Emit publishes on the default bus
func Emit(event string, data interface{}) {
	defaultBus.Emit(event, data)
}

package eventbus

import (
	"reflect"
	"sync"
)

// Handler handles a published event.
type Handler func(event any)

// Bus provides in-process pub/sub keyed by event type. It decouples the
// view-state setter from the components that re-render on change.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]Handler)}
}

// Subscribe registers handler for events of the same concrete type as proto.
func (b *Bus) Subscribe(proto any, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(proto)
	b.handlers[t] = append(b.handlers[t], handler)
}

// Publish delivers event to all subscribers asynchronously.
func (b *Bus) Publish(event any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[reflect.TypeOf(event)] {
		go h(event)
	}
}

// PublishSync delivers event to all subscribers on the caller's goroutine,
// in subscription order.
func (b *Bus) PublishSync(event any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[reflect.TypeOf(event)] {
		h(event)
	}
}

// SubscriberCount returns the number of subscribers for proto's event type.
func (b *Bus) SubscriberCount(proto any) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[reflect.TypeOf(proto)])
}

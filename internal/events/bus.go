// ABOUTME: Typed in-process publish/subscribe bus owned by the app context
// ABOUTME: Handlers run synchronously on the publishing goroutine, in subscription order

package events

import (
	"sort"
	"sync"
)

// Kind names an event type.
type Kind string

// Event is anything publishable on a Bus.
type Event interface {
	Kind() Kind
}

type handler struct {
	id int
	fn func(Event)
}

// Bus delivers events to subscribers. The zero value is not usable; use NewBus.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	byKind   map[Kind]map[int]func(Event)
	wildcard map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		byKind:   make(map[Kind]map[int]func(Event)),
		wildcard: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for events of type E and returns a function that
// cancels the subscription.
func Subscribe[E Event](b *Bus, fn func(E)) (unsubscribe func()) {
	var zero E
	kind := zero.Kind()
	return b.add(kind, func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}

// SubscribeAll registers fn for every event.
func (b *Bus) SubscribeAll(fn func(Event)) (unsubscribe func()) {
	return b.add("", fn)
}

func (b *Bus) add(kind Kind, fn func(Event)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if kind == "" {
		b.wildcard[id] = fn
	} else {
		if b.byKind[kind] == nil {
			b.byKind[kind] = make(map[int]func(Event))
		}
		b.byKind[kind][id] = fn
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if kind == "" {
				delete(b.wildcard, id)
				return
			}
			delete(b.byKind[kind], id)
		})
	}
}

// Publish delivers e to current subscribers. Subscribers added or removed
// during delivery take effect on the next Publish.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]handler, 0, len(b.byKind[e.Kind()])+len(b.wildcard))
	for id, fn := range b.byKind[e.Kind()] {
		handlers = append(handlers, handler{id: id, fn: fn})
	}
	for id, fn := range b.wildcard {
		handlers = append(handlers, handler{id: id, fn: fn})
	}
	b.mu.RUnlock()

	sort.Slice(handlers, func(i, j int) bool { return handlers[i].id < handlers[j].id })
	for _, h := range handlers {
		h.fn(e)
	}
}

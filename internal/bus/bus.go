// Package bus implements the in-process synchronous event bus that decouples
// the credential manager from consumers of its state changes (logout, token
// rotation). Without it the networking layer would import the application
// state owner, which itself depends on the networking layer.
package bus

import "sync"

// Event is any value published on the bus. Concrete event types live in
// events.go.
type Event interface {
	EventName() string
}

// Listener receives published events. Listeners run synchronously on the
// publisher's goroutine, in subscription order.
type Listener func(Event)

// Bus is a synchronous publish/subscribe channel. There is no persistence or
// replay: a late subscriber does not see past events.
//
// The zero value is not usable; call New.
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   []subscription
}

type subscription struct {
	id int64
	fn Listener
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns an unsubscribe function. Unsubscribing
// twice is a no-op.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every current subscriber synchronously, in subscription
// order. The subscriber list is snapshotted first so a listener may
// subscribe or unsubscribe during delivery without corrupting iteration.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	snapshot := make([]subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.fn(event)
	}
}

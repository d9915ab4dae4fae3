package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Subscriber receives published events. A returned error is logged only.
type Subscriber func(Event) error

// Publisher is the write side of the bus, as seen by producers.
type Publisher interface {
	Publish(Event)
}

type subscription struct {
	id      uint64
	handler Subscriber
}

// Bus is an in-process callback registry. Publish calls every handler
// synchronously in subscription order; a failing handler never keeps the
// event from the others.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns its unsubscribe function. Calling the
// returned function more than once is safe.
func (b *Bus) Subscribe(h Subscriber) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := deliver(s.handler, e); err != nil {
			zap.L().Warn("event handler failed",
				zap.String("event", string(e.Type)),
				zap.Uint64("subscription", s.id),
				zap.Error(err),
			)
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func deliver(h Subscriber, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(e)
}

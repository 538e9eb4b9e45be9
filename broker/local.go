package broker

import (
	"context"
	"sync"
)

// LocalBroker fans events out to handlers in the same process. It serves
// single-host deployments and tests.
type LocalBroker struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Event)
}

// NewLocalBroker returns an empty LocalBroker.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{handlers: make(map[int]func(Event))}
}

// Start registers handlerFunc until ctx is done.
func (b *LocalBroker) Start(ctx context.Context, handlerFunc func(Event)) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handlerFunc
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
}

// Publish delivers ev to every registered handler before returning.
func (b *LocalBroker) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

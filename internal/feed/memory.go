package feed

import (
	"context"
	"sync"
)

type subscriber struct {
	id int
	fn Handler
}

// MemoryFeed is an in-process feed with the same delivery contract as
// the Redis transport. Used by tests and single-process deployments.
type MemoryFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscriber
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string][]subscriber)}
}

// Publish synchronously fans the event out to table and scoped subscribers.
func (f *MemoryFeed) Publish(_ context.Context, ev Event, scope string) error {
	f.mu.RLock()
	handlers := append([]subscriber{}, f.subs[channelName(ev.Table, "")]...)
	if scope != "" {
		handlers = append(handlers, f.subs[channelName(ev.Table, scope)]...)
	}
	f.mu.RUnlock()

	for _, sub := range handlers {
		sub.fn(ev)
	}
	return nil
}

// Subscribe registers fn for the table/scope channel.
func (f *MemoryFeed) Subscribe(_ context.Context, table, scope string, fn Handler) (func(), error) {
	name := channelName(table, scope)

	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs[name] = append(f.subs[name], subscriber{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		kept := f.subs[name][:0]
		for _, sub := range f.subs[name] {
			if sub.id != id {
				kept = append(kept, sub)
			}
		}
		f.subs[name] = kept
	}, nil
}

// Package event provides an ordered broadcaster whose subscriber list may be
// changed while a broadcast is running.
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

type Subscriber[T any] func(ctx context.Context, arg T) error

// Subscription identifies one subscriber so it can be removed later.
type Subscription uint64

type entry[T any] struct {
	id Subscription
	fn Subscriber[T]
}

// Bus is a copy-on-write list of subscribers. Invoke takes a snapshot of the
// list when it starts and calls every subscriber in that snapshot one after
// the other, in subscription order.
type Bus[T any] struct {
	mu          sync.Mutex
	nextId      Subscription
	subscribers atomic.Pointer[[]entry[T]]
}

func (b *Bus[T]) HasSubscribers() bool {
	return b.Len() > 0
}

// Invoke calls every subscriber with arg. A failing or panicking subscriber
// does not stop the rest; their errors are combined and returned.
func (b *Bus[T]) Invoke(ctx context.Context, arg T) error {
	snapshot := b.snapshot()
	var errs error
	for _, subscriber := range snapshot {
		errs = multierr.Append(errs, call(ctx, subscriber.fn, arg))
	}
	return errs
}

func (b *Bus[T]) Len() int {
	return len(b.snapshot())
}

func (b *Bus[T]) Subscribe(fn Subscriber[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	current := b.snapshot()
	next := make([]entry[T], len(current), len(current)+1)
	copy(next, current)
	next = append(next, entry[T]{id: b.nextId, fn: fn})
	b.subscribers.Store(&next)
	return b.nextId
}

// Unsubscribe removes the subscriber. Removing an unknown subscription is a
// no-op.
func (b *Bus[T]) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.snapshot()
	next := make([]entry[T], 0, len(current))
	for _, subscriber := range current {
		if subscriber.id != id {
			next = append(next, subscriber)
		}
	}
	if len(next) == len(current) {
		return
	}
	b.subscribers.Store(&next)
}

func (b *Bus[T]) snapshot() []entry[T] {
	current := b.subscribers.Load()
	if current == nil {
		return nil
	}
	return *current
}

func call[T any](ctx context.Context, fn Subscriber[T], arg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return fn(ctx, arg)
}

func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

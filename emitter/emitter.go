// Package emitter provides a generic synchronous publish/subscribe primitive.
//
// Handlers registered for an event kind are invoked in registration order,
// synchronously within the publishing call. A handler that panics is recovered
// and logged, and never prevents the remaining handlers from running.
// Publishing never queues and never blocks on consumers.
package emitter

import (
	"sync"

	"github.com/scanbridge/go-scanbridge/logger"
)

// Handler processes one published payload.
type Handler[T any] func(payload T)

// Subscription is the handle returned by Subscribe and SubscribeOnce.
// It identifies one registration; pass it to Unsubscribe to remove it.
// Unsubscribing an already removed subscription is a no-op.
type Subscription[K comparable, T any] struct {
	kind    K
	fn      Handler[T]
	once    bool
	removed bool // guarded by the owning emitter's mutex
}

// Kind returns the event kind this subscription is registered for.
func (s *Subscription[K, T]) Kind() K { return s.kind }

// Emitter dispatches typed payloads to handlers keyed by event kind.
// It is safe for concurrent use.
type Emitter[K comparable, T any] struct {
	mu     sync.Mutex
	logger logger.Logger
	subs   map[K][]*Subscription[K, T]
}

// New creates an Emitter. If l is nil the package default logger is used.
func New[K comparable, T any](l logger.Logger) *Emitter[K, T] {
	if l == nil {
		l = logger.GetLogger()
	}
	return &Emitter[K, T]{
		logger: l,
		subs:   make(map[K][]*Subscription[K, T]),
	}
}

// Subscribe registers fn for the given event kind and returns its subscription
// handle. Handlers are invoked in registration order.
func (e *Emitter[K, T]) Subscribe(kind K, fn Handler[T]) *Subscription[K, T] {
	return e.subscribe(kind, fn, false)
}

// SubscribeOnce registers fn for a single invocation. The subscription is
// removed before fn runs, so it is gone even if fn panics.
func (e *Emitter[K, T]) SubscribeOnce(kind K, fn Handler[T]) *Subscription[K, T] {
	return e.subscribe(kind, fn, true)
}

func (e *Emitter[K, T]) subscribe(kind K, fn Handler[T], once bool) *Subscription[K, T] {
	sub := &Subscription[K, T]{kind: kind, fn: fn, once: once}
	if fn == nil {
		sub.removed = true
		return sub
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[kind] = append(e.subs[kind], sub)

	return sub
}

// Unsubscribe removes the given subscription. It is a no-op if sub is nil or
// has already been removed.
func (e *Emitter[K, T]) Unsubscribe(sub *Subscription[K, T]) {
	if sub == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.remove(sub)
}

// UnsubscribeAll removes every subscription for the given kinds, or every
// subscription of the emitter when no kind is given.
func (e *Emitter[K, T]) UnsubscribeAll(kinds ...K) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(kinds) == 0 {
		for kind, subs := range e.subs {
			for _, sub := range subs {
				sub.removed = true
			}
			delete(e.subs, kind)
		}
		return
	}

	for _, kind := range kinds {
		for _, sub := range e.subs[kind] {
			sub.removed = true
		}
		delete(e.subs, kind)
	}
}

// Count returns the number of currently registered handlers for kind.
func (e *Emitter[K, T]) Count(kind K) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.subs[kind])
}

// Publish synchronously invokes every handler registered for kind in
// registration order. Once-subscriptions are removed before their handler
// runs. Publish returns after the last handler has returned.
func (e *Emitter[K, T]) Publish(kind K, payload T) {
	e.mu.Lock()
	subs := e.subs[kind]
	active := make([]*Subscription[K, T], 0, len(subs))
	for _, sub := range subs {
		active = append(active, sub)
		if sub.once {
			e.remove(sub)
		}
	}
	e.mu.Unlock()

	for _, sub := range active {
		e.invoke(kind, sub.fn, payload)
	}
}

// invoke calls a handler with panic protection.
func (e *Emitter[K, T]) invoke(kind K, fn Handler[T], payload T) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in event handler", "kind", kind, "panic", r)
		}
	}()

	fn(payload)
}

// remove unregisters sub; the caller must hold e.mu.
func (e *Emitter[K, T]) remove(sub *Subscription[K, T]) {
	if sub.removed {
		return
	}
	sub.removed = true

	subs := e.subs[sub.kind]
	for i, cur := range subs {
		if cur == sub {
			e.subs[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subs[sub.kind]) == 0 {
		delete(e.subs, sub.kind)
	}
}

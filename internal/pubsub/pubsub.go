// Package pubsub provides a keyed registry of one-shot callbacks, used to
// bridge a single pending request/response exchange across asynchronous
// boundaries.
//
// At most one outstanding exchange exists per key (keys are scoped per
// agent type and id), so no request-id correlation scheme is needed. The
// registry is an owned object, not process-global state; its lifetime is
// tied to the orchestrator that created it.
package pubsub

import (
	"context"
	"fmt"
	"sync"
)

// ErrUnawaitedPublish is returned when publishing to a key with no
// subscriber. It indicates a protocol violation: something published before
// the corresponding subscriber attached.
var ErrUnawaitedPublish = fmt.Errorf("pubsub: publish to unawaited key")

// Callback receives a published value.
type Callback func(v any)

// Registry maps a string key to at most one pending callback.
type Registry struct {
	mu   sync.Mutex
	subs map[string]Callback
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Callback)}
}

// Sub registers fn for key, overwriting any existing registration.
// Last writer wins.
func (r *Registry) Sub(key string, fn Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[key] = fn
}

// Unsub removes the registration for key, if any.
func (r *Registry) Unsub(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, key)
}

// Pub invokes the callback registered for key and removes the
// registration. Returns ErrUnawaitedPublish when no callback is registered.
func (r *Registry) Pub(key string, v any) error {
	r.mu.Lock()
	fn, ok := r.subs[key]
	if ok {
		delete(r.subs, key)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnawaitedPublish, key)
	}
	fn(v)
	return nil
}

// Once subscribes to key and blocks until a value is published or ctx is
// done. The wait is unbounded by design when ctx has no deadline: these
// exchanges wait on human input.
func (r *Registry) Once(ctx context.Context, key string) (any, error) {
	ch := make(chan any, 1)
	r.Sub(key, func(v any) {
		ch <- v
	})

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		r.Unsub(key)
		return nil, ctx.Err()
	}
}

// Pending reports whether key currently has a subscriber.
func (r *Registry) Pending(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[key]
	return ok
}

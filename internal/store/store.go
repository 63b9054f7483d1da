// Package store provides a minimal observable value container. It holds one
// state snapshot and notifies subscribers synchronously on every update.
package store

import "sync"

// Store holds a single snapshot of T. Set and Update replace the snapshot
// and invoke every subscriber, in registration order, before returning.
//
// Notification is synchronous: a subscriber that calls Set again re-enters
// the notification loop on the same goroutine. That must not deadlock, so
// the lock is never held while subscribers run. Guarding against infinite
// update cycles is the subscriber's job.
type Store[T any] struct {
	mu       sync.Mutex
	snapshot T
	subs     []subscriber[T]
	nextID   uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// New creates a store seeded with the given snapshot.
func New[T any](initial T) *Store[T] {
	return &Store[T]{snapshot: initial}
}

// Get returns the current snapshot.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Set replaces the snapshot and synchronously notifies every subscriber
// with the new value.
func (s *Store[T]) Set(next T) {
	s.mu.Lock()
	s.snapshot = next
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}

// Update applies fn to the current snapshot and behaves like Set with the
// result.
func (s *Store[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.snapshot)
	s.snapshot = next
	subs := make([]subscriber[T], len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners registered first are notified first.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of active subscriptions.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

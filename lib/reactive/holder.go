// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reactive

import "sync"

// Source is a value that Derive can watch for changes. Holder and
// Derived implement it.
type Source interface {
	// attach registers signal to receive a non-blocking notification
	// on every change. The returned function unregisters it.
	attach(signal chan<- struct{}) (detach func())
}

// Holder is an observable value with latest-wins delivery.
//
// The zero value is not usable; create holders with NewHolder.
type Holder[T any] struct {
	mu          sync.Mutex
	value       T
	version     uint64
	subscribers map[*Subscription[T]]struct{}
	signals     map[*signalEntry]struct{}
}

type signalEntry struct {
	channel chan<- struct{}
}

// NewHolder returns a Holder containing initial.
func NewHolder[T any](initial T) *Holder[T] {
	return &Holder[T]{
		value:       initial,
		subscribers: make(map[*Subscription[T]]struct{}),
		signals:     make(map[*signalEntry]struct{}),
	}
}

// Get returns the current value.
func (h *Holder[T]) Get() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// Version returns the number of times the value has been replaced.
func (h *Holder[T]) Version() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// Set replaces the value and notifies every subscriber and watcher.
func (h *Holder[T]) Set(value T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setLocked(value)
}

// Update replaces the value with fn applied to the current value,
// atomically with respect to other writers, and returns the new value.
func (h *Holder[T]) Update(fn func(T) T) T {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := fn(h.value)
	h.setLocked(next)
	return next
}

func (h *Holder[T]) setLocked(value T) {
	h.value = value
	h.version++
	for subscription := range h.subscribers {
		subscription.offer(value)
	}
	for entry := range h.signals {
		select {
		case entry.channel <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a Subscription primed with the current value.
// The caller must Close the subscription when done with it.
func (h *Holder[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscription := &Subscription[T]{
		holder:  h,
		channel: make(chan T, 1),
	}
	subscription.channel <- h.value
	h.subscribers[subscription] = struct{}{}
	return subscription
}

func (h *Holder[T]) attach(signal chan<- struct{}) func() {
	entry := &signalEntry{channel: signal}
	h.mu.Lock()
	h.signals[entry] = struct{}{}
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.signals, entry)
		h.mu.Unlock()
	}
}

// Subscription delivers a Holder's values. Only the most recent
// undelivered value is retained.
type Subscription[T any] struct {
	holder  *Holder[T]
	channel chan T
	closed  bool
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription[T]) C() <-chan T {
	return s.channel
}

// Close unregisters the subscription and closes its channel.
// Close is idempotent.
func (s *Subscription[T]) Close() {
	s.holder.mu.Lock()
	defer s.holder.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.holder.subscribers, s)
	close(s.channel)
}

// offer replaces any pending value with value. Called with the
// holder's mutex held, which makes the holder the only sender.
func (s *Subscription[T]) offer(value T) {
	select {
	case s.channel <- value:
		return
	default:
	}
	select {
	case <-s.channel:
	default:
	}
	select {
	case s.channel <- value:
	default:
	}
}

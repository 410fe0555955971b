/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package eventbus fans capability events out to multiple subscribers over
// bounded channels. Publish never blocks: when a subscriber's buffer is full
// the oldest buffered event is evicted to make room (drop-oldest), and every
// drop is counted rather than silent.
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrSubscriberExists is returned when Subscribe reuses an id.
	ErrSubscriberExists = errors.New("subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe names an unknown id.
	ErrSubscriberNotFound = errors.New("subscriber id not found")

	// ErrBusClosed is returned for operations on a closed bus.
	ErrBusClosed = errors.New("bus is closed")
)

const defaultBufferSize = 16

// Stats is a point-in-time view of delivery counters.
type Stats struct {
	Published   uint64
	Delivered   uint64
	Dropped     uint64
	Subscribers map[string]SubscriberStats
}

type SubscriberStats struct {
	Delivered uint64
	Dropped   uint64
}

type subscriber[T any] struct {
	ch        chan T
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Bus distributes values to all subscribers with a drop-oldest policy.
// All methods are safe for concurrent use.
type Bus[T any] struct {
	mu        sync.RWMutex
	subs      map[string]*subscriber[T]
	closed    bool
	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func New[T any]() *Bus[T] {
	return &Bus[T]{
		subs: make(map[string]*subscriber[T]),
	}
}

// Subscribe registers a consumer and returns its receive channel. The buffer
// bounds how far the consumer may lag before old events are evicted.
func (b *Bus[T]) Subscribe(id string, buffer int) (<-chan T, error) {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	if _, exists := b.subs[id]; exists {
		return nil, ErrSubscriberExists
	}

	sub := &subscriber[T]{ch: make(chan T, buffer)}
	b.subs[id] = sub

	return sub.ch, nil
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bus[T]) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	sub, exists := b.subs[id]
	if !exists {
		return ErrSubscriberNotFound
	}

	delete(b.subs, id)
	close(sub.ch)

	return nil
}

// Publish delivers the value to every subscriber without blocking. With no
// subscribers the event is dropped, but the drop shows up in Stats.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.published.Add(1)

	if len(b.subs) == 0 {
		b.dropped.Add(1)
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
			sub.delivered.Add(1)
			b.delivered.Add(1)

			continue
		default:
		}

		// Buffer full: evict the oldest event, then retry once.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		default:
		}

		select {
		case sub.ch <- v:
			sub.delivered.Add(1)
			b.delivered.Add(1)
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

// Stats returns a snapshot of global and per-subscriber counters.
func (b *Bus[T]) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: make(map[string]SubscriberStats, len(b.subs)),
	}

	for id, sub := range b.subs {
		stats.Subscribers[id] = SubscriberStats{
			Delivered: sub.delivered.Load(),
			Dropped:   sub.dropped.Load(),
		}
	}

	return stats
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}

	return nil
}

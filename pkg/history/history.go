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

// Package history provides the bounded record buffer every capability keeps.
// Entries are capped by count and by age; both caps are enforced on every
// mutating call, never lazily.
package history

import (
	"sync"
	"time"
)

// Ring is a concurrency-safe bounded buffer of timestamped records.
// A maxLen of 0 means unbounded by count; a maxAge of 0 means unbounded by
// age.
type Ring[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
	maxLen  int
	maxAge  time.Duration
	now     func() time.Time
}

type entry[T any] struct {
	value T
	at    time.Time
}

func NewRing[T any](maxLen int, maxAge time.Duration) *Ring[T] {
	return &Ring[T]{
		maxLen: maxLen,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Append adds a record stamped with the current time and trims both caps.
func (r *Ring[T]) Append(v T) {
	r.AppendAt(v, r.nowFunc()())
}

// AppendAt adds a record with an explicit timestamp. Used by capabilities
// whose records carry their own creation time.
func (r *Ring[T]) AppendAt(v T, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry[T]{value: v, at: at})
	r.trimLocked()
}

// Items returns a copy of the live records, oldest first. Age trimming is
// applied before the read so expired entries never escape.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trimLocked()

	out := make([]T, len(r.entries))
	for i := range r.entries {
		out[i] = r.entries[i].value
	}

	return out
}

// Last returns the most recent record, or false when the buffer is empty.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trimLocked()

	if len(r.entries) == 0 {
		var zero T
		return zero, false
	}

	return r.entries[len(r.entries)-1].value, true
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trimLocked()

	return len(r.entries)
}

func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
}

func (r *Ring[T]) trimLocked() {
	if r.maxAge > 0 {
		cutoff := r.nowFunc()().Add(-r.maxAge)

		idx := 0
		for idx < len(r.entries) && r.entries[idx].at.Before(cutoff) {
			idx++
		}

		if idx > 0 {
			r.entries = append(r.entries[:0], r.entries[idx:]...)
		}
	}

	if r.maxLen > 0 && len(r.entries) > r.maxLen {
		overflow := len(r.entries) - r.maxLen
		r.entries = append(r.entries[:0], r.entries[overflow:]...)
	}
}

func (r *Ring[T]) nowFunc() func() time.Time {
	if r.now != nil {
		return r.now
	}

	return time.Now
}

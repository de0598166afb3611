// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package inbound implements the inbound buffer (spec §4.A): a
// fixed-capacity array of documents rented from a pool, accumulated by
// a single reader goroutine until a size-or-time threshold fires.
//
// Not thread-safe by contract (spec §4.A: "a single reader feeds it");
// callers must serialize access, which channel.Channel's reader loop
// does by construction.
package inbound

import (
	"time"

	"github.com/elastic/go-ingest-channel/internal/arraypool"
)

// Buffer accumulates documents of type T until ThresholdsHit reports
// true, at which point the caller calls Reset to take ownership of
// the accumulated array and hand it off to an outbound buffer.
type Buffer[T any] struct {
	pool            *arraypool.Pool[T]
	maxSize         int
	forceFlushAfter time.Duration
	now             func() time.Time

	items           []T
	firstWrite      time.Time
	firstWaitToRead time.Time
}

// New returns an empty Buffer. maxSize is the size threshold (spec's
// outbound_max_size: the inbound buffer's capacity is the target
// outbound batch size, not the total inbound queue capacity).
func New[T any](pool *arraypool.Pool[T], maxSize int, forceFlushAfter time.Duration) *Buffer[T] {
	return &Buffer[T]{
		pool:            pool,
		maxSize:         maxSize,
		forceFlushAfter: forceFlushAfter,
		now:             time.Now,
		items:           pool.Get(),
	}
}

// Add appends item to the buffer, recording the first-write timestamp
// if this is the first item since the last Reset.
func (b *Buffer[T]) Add(item T) {
	if len(b.items) == 0 {
		b.firstWrite = b.now()
	}
	b.items = append(b.items, item)
}

// Len reports the number of items accumulated since the last Reset.
func (b *Buffer[T]) Len() int { return len(b.items) }

// MarkWaitToRead records the first time the reader loop began waiting
// for the next item since the last Reset. It is a no-op on subsequent
// calls until Reset runs again.
//
// Spec §9 Design Notes: the time-based flush must key off this
// timestamp, not FirstWriteTimestamp — "this distinction matters for
// low-rate streams": a channel that goes quiet right after a flush
// starts its force-flush countdown from the moment the reader went
// idle, not from whenever the next document happens to arrive.
func (b *Buffer[T]) MarkWaitToRead() {
	if b.firstWaitToRead.IsZero() {
		b.firstWaitToRead = b.now()
	}
}

// ThresholdsHit reports whether the buffer should be flushed: either
// it has reached maxSize, or force_flush_after has elapsed since
// MarkWaitToRead was first called since the last Reset. An empty
// buffer never reports true, matching spec §4.C: "Waking on the time
// deadline with an empty buffer is a no-op."
func (b *Buffer[T]) ThresholdsHit() bool {
	if len(b.items) == 0 {
		return false
	}
	if len(b.items) >= b.maxSize {
		return true
	}
	if !b.firstWaitToRead.IsZero() && b.now().Sub(b.firstWaitToRead) > b.forceFlushAfter {
		return true
	}
	return false
}

// DeadlineRemaining returns how long the reader loop should wait
// before waking to re-check ThresholdsHit on a timer, per spec §4.C:
// "The deadline is the remaining portion of
// outbound_max_lifetime − (now − first_wait_to_read)."
func (b *Buffer[T]) DeadlineRemaining() time.Duration {
	if b.firstWaitToRead.IsZero() {
		return b.forceFlushAfter
	}
	remaining := b.forceFlushAfter - b.now().Sub(b.firstWaitToRead)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FirstWriteTimestamp returns the time the first item was added since
// the last Reset, or the zero Time if the buffer is empty.
func (b *Buffer[T]) FirstWriteTimestamp() time.Time { return b.firstWrite }

// WaitToReadTimestamp returns the time MarkWaitToRead was first called
// since the last Reset, or the zero Time if it has not been called.
func (b *Buffer[T]) WaitToReadTimestamp() time.Time { return b.firstWaitToRead }

// Reset takes ownership of the accumulated array, rents a fresh one
// from the pool for future writes, and clears both timestamps. The
// caller owns the returned slice exclusively; Buffer never touches it
// again.
func (b *Buffer[T]) Reset() []T {
	owned := b.items
	b.items = b.pool.Get()
	b.firstWrite = time.Time{}
	b.firstWaitToRead = time.Time{}
	return owned
}

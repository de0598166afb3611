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

// Package outbound implements the outbound buffer (spec §4.B): an
// immutable snapshot of a flushed inbound buffer, owned exclusively by
// whichever worker goroutine drains it from the outbound queue.
package outbound

import (
	"time"

	"github.com/gofrs/uuid"

	"github.com/elastic/go-ingest-channel/internal/arraypool"
)

// Buffer is a value object wrapping a rented array, a count of valid
// elements, and the timestamp of the first write into the inbound
// buffer it was swapped from. Release returns the array to pool;
// Release must be called exactly once, by whichever worker received
// this Buffer from the outbound queue (spec §9 Design Notes: "the
// worker that receives the outbound buffer is solely responsible for
// release").
type Buffer[T any] struct {
	// ID correlates log lines and export_response callbacks for
	// retries of the same batch across attempts.
	ID              string
	Owned           []T
	Count           int
	FirstWrite      time.Time
	FirstWaitToRead time.Time

	pool *arraypool.Pool[T]
}

// New wraps owned (an array rented from pool, with Count valid
// elements at the front) into a Buffer.
func New[T any](pool *arraypool.Pool[T], owned []T, firstWrite, firstWaitToRead time.Time) *Buffer[T] {
	id, _ := uuid.NewV4()
	return &Buffer[T]{
		ID:              id.String(),
		Owned:           owned,
		Count:           len(owned),
		FirstWrite:      firstWrite,
		FirstWaitToRead: firstWaitToRead,
		pool:            pool,
	}
}

// Slice returns a bounded view of the first Count elements.
func (b *Buffer[T]) Slice() []T { return b.Owned[:b.Count] }

// Release returns the underlying array to the pool it was rented
// from. After Release, b must not be used again.
func (b *Buffer[T]) Release() {
	if b.pool != nil {
		b.pool.Put(b.Owned)
	}
}

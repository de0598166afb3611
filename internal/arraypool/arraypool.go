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

// Package arraypool rents and returns fixed-capacity slices so the
// inbound/outbound buffer swap (spec §4.A/4.B, Design Notes "scoped
// buffer ownership across async boundaries") can move an owned array
// from the reader goroutine to a worker goroutine without an
// allocation on every flush. Ownership is a convention enforced by the
// callers (channel.Channel): exactly one goroutine holds a rented
// slice at a time, and only that goroutine may call Put.
package arraypool

import "sync"

// Pool rents slices of T with a fixed capacity.
type Pool[T any] struct {
	capacity int
	pool     sync.Pool
}

// New returns a Pool that rents slices with the given capacity.
func New[T any](capacity int) *Pool[T] {
	p := &Pool[T]{capacity: capacity}
	p.pool.New = func() interface{} {
		s := make([]T, capacity)
		return &s
	}
	return p
}

// Get returns a slice of length 0 and the pool's fixed capacity. The
// caller owns it exclusively until it calls Put.
func (p *Pool[T]) Get() []T {
	s := p.pool.Get().(*[]T)
	return (*s)[:0]
}

// Put returns a slice rented from Get back to the pool. The slice's
// elements are zeroed first so the pool never pins document payloads
// in memory beyond what's visible in flight.
func (p *Pool[T]) Put(s []T) {
	if cap(s) != p.capacity {
		// Foreign-sized slice (e.g. a test double); drop it rather
		// than poisoning the pool with the wrong capacity.
		return
	}
	var zero T
	full := s[:p.capacity]
	for i := range full {
		full[i] = zero
	}
	s = full[:0]
	p.pool.Put(&s)
}

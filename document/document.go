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

// Package document defines the capability surface the routing
// strategy (spec §4.F) needs from a document, without requiring the
// document type to implement any interface.
//
// Design Notes §9 flags the source's delegate-heavy configuration
// (separate id/timestamp/content-hash callbacks threaded through
// config) as a pattern to replace with "a small capability trait the
// document type implements, or an explicit routing accessor value
// object passed at channel construction — avoids reflection in the
// hot path." RoutingAccessor is that value object: three plain
// functions, supplied once at construction, each returning
// (value, ok) so "absent" is representable without sentinel values.
package document

import "time"

// RoutingAccessor extracts the fields routing.Index needs from a
// document of type T. Any field may be nil, meaning "never present";
// ID and ContentHash may also return ok=false per call for documents
// that sometimes carry the field and sometimes don't (e.g. a client
// generates an id for updates but not for inserts).
type RoutingAccessor[T any] struct {
	// ID returns the document's identifier, if it has one.
	ID func(T) (id string, ok bool)
	// ContentHash returns a content fingerprint, if the caller
	// computed one. Presence of both ID and ContentHash selects the
	// scripted-hash-update routing variant.
	ContentHash func(T) (hash string, ok bool)
	// Timestamp returns the document's timestamp. If nil or it
	// returns ok=false, routing.Index falls back to time.Now().
	Timestamp func(T) (ts time.Time, ok bool)
}

// WithDefaults returns a copy of a with any nil function replaced by
// one that always reports absence, so callers of routing.Index never
// need to nil-check.
func (a RoutingAccessor[T]) WithDefaults() RoutingAccessor[T] {
	if a.ID == nil {
		a.ID = func(T) (string, bool) { return "", false }
	}
	if a.ContentHash == nil {
		a.ContentHash = func(T) (string, bool) { return "", false }
	}
	if a.Timestamp == nil {
		a.Timestamp = func(T) (time.Time, bool) { return time.Time{}, false }
	}
	return a
}

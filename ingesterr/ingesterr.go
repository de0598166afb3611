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

// Package ingesterr defines the error taxonomy from spec §7: the kinds
// of failure the channel, bootstrap sequencer, and orchestrator can
// produce, and how each kind propagates (retried, rejected, surfaced
// via callback, or raised).
package ingesterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error for the purposes of retry/propagation
// policy. See spec §7 "Error taxonomy (kinds)".
type Kind int

const (
	// KindUnknown is the zero value; never intentionally produced.
	KindUnknown Kind = iota
	// KindTransientTransport covers connection refused, timeouts, 5xx
	// at the transport level. Retried up to export_max_retries.
	KindTransientTransport
	// KindThrottle covers HTTP 429 responses. Retried up to
	// export_max_retries, whole batch.
	KindThrottle
	// KindPerItem covers a 4xx (other than 429) on an individual bulk
	// item. Rejected, never retried.
	KindPerItem
	// KindProvisioning covers any non-2xx response from a bootstrap
	// step. Governed by bootstrap.Policy.
	KindProvisioning
	// KindSerialization covers a per-document JSON encoding failure.
	// The offending item is rejected; the rest of the batch proceeds.
	KindSerialization
	// KindCancellation covers a cancel token firing during a
	// suspending operation.
	KindCancellation
	// KindInvariant covers programmer error, e.g. writing to a closed
	// channel. Always raised; never silently swallowed.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindTransientTransport:
		return "transient_transport"
	case KindThrottle:
		return "throttle"
	case KindPerItem:
		return "per_item"
	case KindProvisioning:
		return "provisioning"
	case KindSerialization:
		return "serialization"
	case KindCancellation:
		return "cancellation"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind, optionally wrapping a cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap constructs an *Error of the given kind, wrapping cause with
// pkg/errors so a stack trace is attached at the call site.
func Wrap(kind Kind, cause error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: errors.WithStack(cause)}
}

// Is reports whether err is an *Error of the given kind, unwrapping as
// needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrClosed is returned by producer-facing methods once try_complete
// has run; an invariant violation per spec §7.
var ErrClosed = New(KindInvariant, "channel is closed")

// ErrCanceled is a KindCancellation sentinel. The channel's suspending
// methods do not return it: on cancellation they return ctx.Err().
var ErrCanceled = New(KindCancellation, "operation canceled")

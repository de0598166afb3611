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

// Package docencoding implements the two serializer hooks spec §6
// describes ("write a document into a growable byte buffer
// synchronously" / "write a document into a stream asynchronously")
// plus the default reflective fallback used when the caller supplies
// neither.
//
// The fast path recognizes documents implementing fastjson.Marshaler
// from go.elastic.co/fastjson — the same non-reflective, allocation-
// light marshaling interface the teacher's own model types
// (model.APMEvent's BeatEvent) satisfy — and falls back to
// encoding/json for everything else.
package docencoding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"go.elastic.co/fastjson"
)

// Encoder writes a document of type T into a growable buffer. It is
// the synchronous hook from spec §6; implementations must not retain
// buf beyond the call.
type Encoder[T any] func(buf *bytes.Buffer, doc T) error

// AsyncEncoder writes a document of type T into an io.Writer. It is
// the asynchronous hook from spec §6, used when the caller's
// serializer streams rather than buffers.
type AsyncEncoder[T any] func(ctx context.Context, w io.Writer, doc T) error

// FastJSONMarshaler is satisfied by documents that can serialize
// themselves without reflection, matching go.elastic.co/fastjson's
// generated marshalers.
type FastJSONMarshaler interface {
	MarshalFastJSON(w *fastjson.Writer) error
}

// Default returns an Encoder that uses the fastjson fast path when T
// is a FastJSONMarshaler, otherwise falls back to encoding/json.Marshal
// — the "default reflective serializer" spec §6 names as the
// fallback when the caller supplies neither hook.
func Default[T any]() Encoder[T] {
	var zero T
	if _, ok := any(zero).(FastJSONMarshaler); ok {
		return func(buf *bytes.Buffer, doc T) error {
			m := any(doc).(FastJSONMarshaler)
			var w fastjson.Writer
			if err := m.MarshalFastJSON(&w); err != nil {
				return err
			}
			_, err := buf.Write(w.Bytes())
			return err
		}
	}
	return func(buf *bytes.Buffer, doc T) error {
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = buf.Write(b)
		return err
	}
}

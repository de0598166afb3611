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

package bulkbody

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

// Builder accumulates (header, body) pairs into a single ndjson bulk
// request body. It is reusable across requests via Reset, matching
// the teacher's pooledReader/bytes.Buffer reuse in modelindexer —
// spec §4.E requires "a growable buffer that is reusable across
// requests."
type Builder struct {
	buf   bytes.Buffer
	items int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Reset empties the builder so it can be reused for the next request.
func (b *Builder) Reset() {
	b.buf.Reset()
	b.items = 0
}

// Len returns the number of (header, body) pairs added since the last
// Reset.
func (b *Builder) Len() int { return b.items }

// Bytes returns the accumulated ndjson body. The returned slice aliases
// the builder's internal buffer and is invalidated by the next Add or
// Reset call.
func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

// Add appends one bulk operation to the body: the header line,
// followed by the (possibly wrapped) document body line.
func (b *Builder) Add(h Header, docBody []byte) error {
	headerJSON, err := marshalHeader(h)
	if err != nil {
		return errors.Wrap(err, "marshaling bulk header")
	}
	b.buf.Write(headerJSON)
	b.buf.WriteByte('\n')

	body := docBody
	switch h.Verb {
	case Update:
		body, err = wrapDocAsUpsert(docBody)
	case ScriptedHashUpdate:
		body, err = wrapScriptedUpsert(docBody, h.ScriptedUpsertParams)
	}
	if err != nil {
		return errors.Wrap(err, "wrapping bulk body")
	}
	b.buf.Write(body)
	b.buf.WriteByte('\n')
	b.items++
	return nil
}

func marshalHeader(h Header) ([]byte, error) {
	key := h.Verb.jsonKey()
	root := []byte("{}")
	var err error
	root, err = sjson.SetBytes(root, key, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	if h.TargetIndex != "" {
		if root, err = sjson.SetBytes(root, key+"._index", h.TargetIndex); err != nil {
			return nil, err
		}
	}
	if h.DocumentID != "" {
		if root, err = sjson.SetBytes(root, key+"._id", h.DocumentID); err != nil {
			return nil, err
		}
	}
	if h.Pipeline != "" {
		if root, err = sjson.SetBytes(root, key+".pipeline", h.Pipeline); err != nil {
			return nil, err
		}
	}
	if len(h.DynamicTemplates) > 0 {
		if root, err = sjson.SetBytes(root, key+".dynamic_templates", h.DynamicTemplates); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func wrapDocAsUpsert(docBody []byte) ([]byte, error) {
	out := []byte(`{"doc_as_upsert":true}`)
	return sjson.SetRawBytes(out, "doc", docBody)
}

func wrapScriptedUpsert(docBody []byte, p *ScriptedUpsertParams) ([]byte, error) {
	if p == nil {
		return nil, errors.New("scripted_hash_update header missing ScriptedUpsertParams")
	}
	tracking := make([]string, 0, len(p.BatchTrackingFields))
	for k := range p.BatchTrackingFields {
		tracking = append(tracking, k)
	}
	sort.Strings(tracking) // deterministic script source across calls

	out := []byte("{}")
	var err error
	if out, err = sjson.SetBytes(out, "script.lang", "painless"); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "script.source", PainlessScriptSource(p.HashField, tracking)); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "script.params.hash", p.CombinedHash); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "script.params.doc", docBody); err != nil {
		return nil, err
	}
	for _, k := range tracking {
		if out, err = sjson.SetBytes(out, "script.params."+k, p.BatchTrackingFields[k]); err != nil {
			return nil, err
		}
	}
	if out, err = sjson.SetRawBytes(out, "upsert", docBody); err != nil {
		return nil, err
	}
	return out, nil
}

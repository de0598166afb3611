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

// Package esbulk wires routing.Strategy, bulkbody.Builder,
// docencoding.Encoder, and estransport.Interface together into a
// channel.Exporter: the concrete shipping mechanism the generic
// channel package calls per batch.
package esbulk

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/elastic/go-ingest-channel/bulkbody"
	"github.com/elastic/go-ingest-channel/bulkresp"
	"github.com/elastic/go-ingest-channel/docencoding"
	"github.com/elastic/go-ingest-channel/estransport"
	"github.com/elastic/go-ingest-channel/routing"
)

// Exporter implements channel.Exporter[T] against a real (or mocked)
// Elasticsearch transport, routing each document with strategy and
// encoding it with encode.
type Exporter[T any] struct {
	transport estransport.Interface
	baseURL   string
	strategy  routing.Strategy[T]
	encode    docencoding.Encoder[T]

	scratch sync.Pool
}

// exportScratch bundles the per-request ndjson builder and a scratch
// encode buffer so both are recycled together, matching the teacher's
// pooledReader (modelindexer) pairing of a bytes.Buffer with the
// encoder that writes into it. Pooled on the Exporter, the natural
// owner of the batches it ships — spec §4.E's "growable buffer that is
// reusable across requests."
type exportScratch struct {
	builder *bulkbody.Builder
	buf     bytes.Buffer
}

func (e *Exporter[T]) getScratch() *exportScratch {
	if s, ok := e.scratch.Get().(*exportScratch); ok {
		return s
	}
	return &exportScratch{builder: bulkbody.NewBuilder()}
}

func (e *Exporter[T]) putScratch(s *exportScratch) {
	s.builder.Reset()
	s.buf.Reset()
	e.scratch.Put(s)
}

// New returns an Exporter. If encode is nil, docencoding.Default[T]()
// is used.
func New[T any](transport estransport.Interface, baseURL string, strategy routing.Strategy[T], encode docencoding.Encoder[T]) *Exporter[T] {
	if encode == nil {
		encode = docencoding.Default[T]()
	}
	return &Exporter[T]{transport: transport, baseURL: baseURL, strategy: strategy, encode: encode}
}

// Export routes, encodes, and ships docs as a single ndjson bulk
// request, then classifies the response per document. Documents that
// fail to encode or route are rejected inline without reaching the
// wire; every other document is classified from the bulk response.
//
// All Strategy implementations in this module produce a single
// URLPath per strategy instance regardless of which document is being
// routed (routing.Index falls back to the generic "/_bulk" endpoint
// precisely so per-document index names can vary within one request),
// so the first successfully-routed document's URLPath is used for the
// whole batch.
func (e *Exporter[T]) Export(ctx context.Context, docs []T) ([]bulkresp.Classification, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	scratch := e.getScratch()
	defer e.putScratch(scratch)
	builder := scratch.builder

	inline := make([]bulkresp.Classification, 0)
	sent := make([]int, 0, len(docs))
	urlPath := ""

	for idx, doc := range docs {
		target := e.strategy.Route(doc)
		if urlPath == "" {
			urlPath = target.URLPath
		}

		scratch.buf.Reset()
		if err := e.encode(&scratch.buf, doc); err != nil {
			inline = append(inline, rejectClassification(idx, "serialization_error", err.Error()))
			continue
		}
		if err := builder.Add(target.Header, scratch.buf.Bytes()); err != nil {
			inline = append(inline, rejectClassification(idx, "encoding_error", err.Error()))
			continue
		}
		sent = append(sent, idx)
	}

	if builder.Len() == 0 {
		sort.Slice(inline, func(i, j int) bool { return inline[i].Index < inline[j].Index })
		return inline, nil
	}

	req, err := estransport.NewHTTPRequest(ctx, e.baseURL, estransport.Request{
		Method:      "POST",
		Path:        urlPath,
		Body:        builder.Bytes(),
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return nil, err
	}

	status, body, err := estransport.Do(e.transport, req)
	if err != nil {
		return nil, err
	}

	envelope, err := bulkresp.Decode(body)
	if err != nil {
		return nil, err
	}

	classified := bulkresp.Classify(status, envelope, len(sent))
	out := make([]bulkresp.Classification, 0, len(classified)+len(inline))
	for _, c := range classified {
		c.Index = sent[c.Index]
		out = append(out, c)
	}
	out = append(out, inline...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func rejectClassification(idx int, errType, reason string) bulkresp.Classification {
	return bulkresp.Classification{
		Index:   idx,
		Outcome: bulkresp.RejectItem,
		Item:    bulkresp.Item{Error: &bulkresp.ItemError{Type: errType, Reason: reason}},
	}
}

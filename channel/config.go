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

package channel

import (
	"context"
	"runtime"
	"time"

	"go.elastic.co/apm"

	"github.com/elastic/go-ingest-channel/bulkresp"
)

// FullMode controls what a producer-facing write does once the
// inbound queue is saturated (spec §4.C "full_mode").
type FullMode int

const (
	// FullModeWait makes WaitToWriteAsync block until room is available.
	// TryWrite never blocks in either mode.
	FullModeWait FullMode = iota
	// FullModeDropWrite makes every write non-blocking: a full inbound
	// queue drops the document and invokes BufferItemDropped.
	FullModeDropWrite
)

// Config configures a Channel. All duration and size fields describe
// the producer/consumer pipeline of spec §4: a bounded inbound queue
// feeding an inbound buffer (size/time flush) feeding a bounded
// outbound queue drained by a worker pool.
type Config[T any] struct {
	// InboundMaxSize bounds the inbound queue (spec's inbound_queue_max_size).
	InboundMaxSize int
	// OutboundMaxSize is the inbound buffer's flush-size threshold, i.e.
	// the target batch size (spec's outbound_buffer_max_size). The
	// outbound queue itself holds up to ExportMaxConcurrency batches.
	OutboundMaxSize int
	// OutboundMaxLifetime is the force-flush time threshold (spec's
	// outbound_buffer_max_lifetime / force_flush_after).
	OutboundMaxLifetime time.Duration

	// ExportMaxConcurrency bounds the worker pool. If zero, defaults to
	// min(ceil(InboundMaxSize/OutboundMaxSize), 2*NumCPU) per spec §4.C.
	ExportMaxConcurrency int
	// ExportMaxRetries bounds how many additional attempts a batch gets
	// after a retryable outcome, beyond the initial attempt.
	ExportMaxRetries int
	// ExportBackoff computes the delay before retry attempt n (1-based).
	// Defaults to a simple exponential backoff capped at 30s.
	ExportBackoff func(attempt int) time.Duration

	// FullMode controls saturation behavior. Defaults to FullModeWait.
	FullMode FullMode
	// DrainSize is how many inbound queue slots wait_to_write_async
	// waits to free up before re-checking, when FullMode is
	// FullModeWait (spec §4.C "drain_size": an adaptive backoff so a
	// single producer unblocking doesn't thundering-herd every other
	// blocked producer).
	DrainSize int

	// Exporter ships a drained batch to its destination and classifies
	// the outcome per document.
	Exporter Exporter[T]

	// Tracer, if non-nil, wraps every export attempt in an APM
	// transaction. Nil (the default) traces nothing.
	Tracer *apm.Tracer

	// BufferItemDropped is invoked (if non-nil) whenever a document is
	// dropped rather than enqueued: TryWrite on a full queue in either
	// FullMode, which includes WaitToWriteAsync under FullModeDropWrite.
	BufferItemDropped func(doc T)
	// PublishToOutbound is invoked just before a flushed inbound buffer
	// is handed to the outbound queue.
	PublishToOutbound func(batchID string, count int)
	// OutboundExited is invoked once by TryComplete, after the reader
	// loop and every export worker have returned.
	OutboundExited func()
	// ExportResponse is invoked after every export attempt (including
	// retries) with the batch id and the classifications produced.
	ExportResponse func(batchID string, classifications []bulkresp.Classification)
}

// Exporter ships a batch of documents to their destination, returning
// a per-document classification for every document in docs (in the
// same order) or an error if the export round trip itself failed
// (e.g. transport error) — which the caller treats as a whole-batch
// retry candidate.
type Exporter[T any] interface {
	Export(ctx context.Context, docs []T) ([]bulkresp.Classification, error)
}

func (c *Config[T]) applyDefaults() {
	if c.OutboundMaxSize <= 0 {
		c.OutboundMaxSize = 1
	}
	if c.InboundMaxSize <= 0 {
		c.InboundMaxSize = c.OutboundMaxSize
	}
	if c.ExportMaxConcurrency <= 0 {
		want := (c.InboundMaxSize + c.OutboundMaxSize - 1) / c.OutboundMaxSize
		maxWant := 2 * runtime.NumCPU()
		if want > maxWant {
			want = maxWant
		}
		if want < 1 {
			want = 1
		}
		c.ExportMaxConcurrency = want
	}
	if c.ExportBackoff == nil {
		c.ExportBackoff = defaultBackoff
	}
	if c.DrainSize <= 0 {
		c.DrainSize = 1
	}
}

func defaultBackoff(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 30*time.Second {
			return 30 * time.Second
		}
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

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
	"time"

	"github.com/dustin/go-humanize"
	"go.elastic.co/apm"

	"github.com/elastic/go-ingest-channel/bulkresp"
	"github.com/elastic/go-ingest-channel/channel/internal/outbound"
)

// startWorkers launches the export worker pool via the same
// errgroup.Group pattern the teacher uses for its bulk indexer's
// background flushes. Each worker pulls batches off the outbound queue
// until it's closed by TryComplete.
func (c *Channel[T]) startWorkers() {
	for i := 0; i < c.cfg.ExportMaxConcurrency; i++ {
		c.workers.Go(func() error {
			for batch := range c.outboundQueue {
				c.exportBatch(batch)
			}
			return nil
		})
	}
}

// exportBatch drives a batch through the Exporter, retrying whatever
// subset of it comes back RetryItem/RetryEntireBatch (or fails at the
// transport level) up to cfg.ExportMaxRetries additional attempts.
// Once shutdown begins (TryComplete closes stop), the current round
// trip still completes and backoff waits are cut short, but the
// remaining retry attempts still run, back to back.
func (c *Channel[T]) exportBatch(batch *outbound.Buffer[T]) {
	defer batch.Release()

	docs := batch.Slice()
	pendingIdx := make([]int, len(docs))
	for i := range docs {
		pendingIdx[i] = i
	}

	attempt := 0
	for len(pendingIdx) > 0 {
		attempt++
		subset := make([]T, len(pendingIdx))
		for i, idx := range pendingIdx {
			subset[i] = docs[idx]
		}

		classifications, err := c.exportWithSpan(subset, batch.ID)
		if err != nil {
			c.counters.failed.Add(1)
			c.logger.Errorw("export attempt failed", "batch_id", batch.ID, "attempt", attempt, "error", err)
			if c.cfg.ExportResponse != nil {
				c.cfg.ExportResponse(batch.ID, nil)
			}
			if attempt > c.cfg.ExportMaxRetries {
				c.markTerminal(len(pendingIdx))
				c.counters.rejected.Add(uint64(len(pendingIdx)))
				c.logger.Warnw("dropping documents after exhausting export retries",
					"batch_id", batch.ID, "documents", humanize.Comma(int64(len(pendingIdx))))
				return
			}
			c.sleepBackoff(attempt)
			continue
		}

		if c.cfg.ExportResponse != nil {
			c.cfg.ExportResponse(batch.ID, classifications)
		}

		var next []int
		terminal := 0
		for _, cl := range classifications {
			origIdx := pendingIdx[cl.Index]
			switch cl.Outcome {
			case bulkresp.Accepted:
				c.counters.accepted.Add(1)
				terminal++
			case bulkresp.RejectItem:
				c.counters.rejected.Add(1)
				terminal++
			case bulkresp.RetryItem, bulkresp.RetryEntireBatch:
				next = append(next, origIdx)
			}
		}
		c.markTerminal(terminal)

		if len(next) == 0 {
			return
		}
		if attempt > c.cfg.ExportMaxRetries {
			c.markTerminal(len(next))
			c.counters.rejected.Add(uint64(len(next)))
			c.logger.Warnw("dropping documents after exhausting export retries",
				"batch_id", batch.ID, "documents", humanize.Comma(int64(len(next))))
			return
		}
		pendingIdx = next
		c.sleepBackoff(attempt)
	}
}

// exportWithSpan runs the configured Exporter inside an APM transaction
// when cfg.Tracer is set, mirroring how beater/api/firehose runs
// request handling inside a request.Context transaction — a bulk
// export is this library's equivalent unit of traced work. A nil
// Tracer (the default) skips tracing entirely at zero cost.
//
// Exports always run under context.Background(), never c.ctx: a batch
// can still be sitting in the outbound queue, or mid-flight, when
// TryComplete signals shutdown, and handing it a context that's about
// to be (or already was) canceled would turn a normal drain into a
// burst of rejected documents. c.ctx is reserved for a hard abort and
// is never threaded into Export.
func (c *Channel[T]) exportWithSpan(docs []T, batchID string) ([]bulkresp.Classification, error) {
	if c.cfg.Tracer == nil {
		return c.cfg.Exporter.Export(context.Background(), docs)
	}
	tx := c.cfg.Tracer.StartTransaction("channel.export", "bulk_export")
	tx.Context.SetLabel("batch_id", batchID)
	tx.Context.SetLabel("documents", len(docs))
	ctx := apm.ContextWithTransaction(context.Background(), tx)
	defer tx.End()

	classifications, err := c.cfg.Exporter.Export(ctx, docs)
	if err != nil {
		tx.Result = "error"
	} else {
		tx.Result = "success"
	}
	return classifications, err
}

// sleepBackoff waits out the retry backoff, but cuts the wait short
// once shutdown begins so a worker doesn't sit idle through a full
// backoff window while TryComplete is waiting on it.
func (c *Channel[T]) sleepBackoff(attempt int) {
	timer := time.NewTimer(c.cfg.ExportBackoff(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.stop:
	}
}

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
	"time"

	"github.com/dustin/go-humanize"

	"github.com/elastic/go-ingest-channel/channel/internal/inbound"
	"github.com/elastic/go-ingest-channel/channel/internal/outbound"
)

// readLoop is the single goroutine that owns the inbound buffer. It
// drains the inbound queue, accumulating documents until size or time
// thresholds fire, then hands the accumulated batch to the outbound
// queue. Spec §9 Design Notes: "a single reader feeds [the inbound
// buffer]" — all mutation of buf happens here, so inbound.Buffer needs
// no internal locking.
func (c *Channel[T]) readLoop() {
	defer close(c.readerDone)

	buf := inbound.New(c.pool, c.cfg.OutboundMaxSize, c.cfg.OutboundMaxLifetime)
	consumedSinceSignal := 0

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		firstWrite := buf.FirstWriteTimestamp()
		firstWaitToRead := buf.WaitToReadTimestamp()
		owned := buf.Reset()

		batch := outbound.New(c.pool, owned, firstWrite, firstWaitToRead)
		c.logger.Warnw("flushing inbound buffer to outbound queue",
			"batch_id", batch.ID, "documents", humanize.Comma(int64(batch.Count)))
		if c.cfg.PublishToOutbound != nil {
			c.cfg.PublishToOutbound(batch.ID, batch.Count)
		}
		c.outboundQueue <- batch
	}

	for {
		buf.MarkWaitToRead()

		if buf.ThresholdsHit() {
			flush()
		}

		timer := time.NewTimer(buf.DeadlineRemaining())
		select {
		case doc := <-c.inboundQueue:
			timer.Stop()
			buf.Add(doc)
			consumedSinceSignal++
			if consumedSinceSignal >= c.cfg.DrainSize {
				consumedSinceSignal = 0
				c.room.signal()
			}
			if buf.ThresholdsHit() {
				flush()
			}

		case <-timer.C:
			// Time deadline fired; ThresholdsHit is re-checked at the
			// top of the next iteration. An empty buffer never reports
			// true there, so this is a no-op on a quiet channel.

		case <-c.stop:
			timer.Stop()
			c.drainRemaining(buf, flush)
			return
		}
	}
}

// drainRemaining empties whatever is still sitting in the inbound
// queue (non-blocking) into buf and flushes once, so documents written
// just before TryComplete are not silently lost.
func (c *Channel[T]) drainRemaining(buf *inbound.Buffer[T], flush func()) {
	for {
		select {
		case doc := <-c.inboundQueue:
			buf.Add(doc)
		default:
			flush()
			return
		}
	}
}

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

// Package channel implements the bulk ingest channel: a bounded
// producer/consumer pipeline that accumulates documents into batches
// and ships them to Elasticsearch via an Exporter, with retry/backoff
// and drain support.
//
// The pipeline has three stages, each owned by a different goroutine
// population: producers write into a bounded inbound queue; a single
// reader goroutine drains that queue into a size/time-flushing inbound
// buffer and publishes completed batches onto a bounded outbound
// queue; a pool of worker goroutines drains the outbound queue and
// calls the configured Exporter, retrying per bulkresp.Classification.
package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elastic/go-ingest-channel/channel/internal/outbound"
	"github.com/elastic/go-ingest-channel/ingesterr"
	"github.com/elastic/go-ingest-channel/internal/arraypool"
	"github.com/elastic/go-ingest-channel/internal/logs"
)

// roomBroadcaster lets WaitToWriteAsync block on room opening up in
// the inbound queue without busy-polling, while batching wakeups so a
// single freed slot doesn't thundering-herd every blocked producer
// (spec §4.C "drain_size"). Every DrainSize items the reader consumes,
// it closes the current generation channel (waking everyone blocked on
// it) and installs a fresh one.
type roomBroadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newRoomBroadcaster() *roomBroadcaster {
	return &roomBroadcaster{ch: make(chan struct{})}
}

func (r *roomBroadcaster) wait() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

func (r *roomBroadcaster) signal() {
	r.mu.Lock()
	old := r.ch
	r.ch = make(chan struct{})
	r.mu.Unlock()
	close(old)
}

// Channel is the producer/consumer bulk ingest pipeline for documents
// of type T. Construct with New; call TryComplete to begin shutdown
// and WaitForDrainAsync to wait for in-flight documents to finish.
type Channel[T any] struct {
	cfg  Config[T]
	pool *arraypool.Pool[T]

	inboundQueue  chan T
	outboundQueue chan *outbound.Buffer[T]
	room          *roomBroadcaster

	logger *logs.Limiter

	mu      sync.RWMutex
	closing bool

	// stop is closed by TryComplete to tell the reader and worker select
	// loops that shutdown has begun; it is the only signal ever used to
	// cut short a drain-time wait. ctx/cancel are kept separate and are
	// never wired into an Exporter.Export call — they exist as a hard
	// abort handle and are canceled only once every export has finished,
	// purely to release the context's resources.
	stop       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	readerDone chan struct{}
	workers    errgroup.Group

	counters statsCounters
	pending  atomic.Int64
}

// New constructs and starts a Channel: the reader loop and the worker
// pool are both running by the time New returns.
func New[T any](logger *zap.SugaredLogger, cfg Config[T]) (*Channel[T], error) {
	cfg.applyDefaults()
	if cfg.Exporter == nil {
		return nil, ingesterr.New(ingesterr.KindInvariant, "channel: Exporter must not be nil")
	}

	pool := arraypool.New[T](cfg.OutboundMaxSize)
	ctx, cancel := context.WithCancel(context.Background())

	c := &Channel[T]{
		cfg:           cfg,
		pool:          pool,
		inboundQueue:  make(chan T, cfg.InboundMaxSize),
		outboundQueue: make(chan *outbound.Buffer[T], cfg.ExportMaxConcurrency),
		room:          newRoomBroadcaster(),
		logger:        logs.RateLimited(logger, 5*time.Second),
		stop:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		readerDone:    make(chan struct{}),
	}

	go c.readLoop()
	c.startWorkers()

	return c, nil
}

// TryWrite enqueues doc without blocking. It reports false, increments
// Stats.Dropped, and invokes BufferItemDropped if the inbound queue is
// currently full — regardless of FullMode, since TryWrite's contract
// is always non-blocking (spec §4.C).
func (c *Channel[T]) TryWrite(doc T) bool {
	c.mu.RLock()
	closing := c.closing
	c.mu.RUnlock()
	if closing {
		return false
	}

	select {
	case c.inboundQueue <- doc:
		c.counters.added.Add(1)
		c.counters.active.Add(1)
		c.pending.Add(1)
		return true
	default:
		c.counters.dropped.Add(1)
		if c.cfg.BufferItemDropped != nil {
			c.cfg.BufferItemDropped(doc)
		}
		return false
	}
}

// WaitToWriteAsync enqueues doc, honoring FullMode. Under
// FullModeDropWrite it behaves exactly like TryWrite (never blocks).
// Under FullModeWait it blocks until room opens in the inbound queue,
// ctx is canceled, or the channel is closing.
func (c *Channel[T]) WaitToWriteAsync(ctx context.Context, doc T) error {
	if c.cfg.FullMode == FullModeDropWrite {
		c.TryWrite(doc)
		return nil
	}

	for {
		c.mu.RLock()
		closing := c.closing
		c.mu.RUnlock()
		if closing {
			return ingesterr.ErrClosed
		}

		select {
		case c.inboundQueue <- doc:
			c.counters.added.Add(1)
			c.counters.active.Add(1)
			c.pending.Add(1)
			return nil
		default:
		}

		wait := c.room.wait()
		select {
		case c.inboundQueue <- doc:
			c.counters.added.Add(1)
			c.counters.active.Add(1)
			c.pending.Add(1)
			return nil
		case <-wait:
			continue
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return ingesterr.ErrClosed
		}
	}
}

// TryWriteMany calls TryWrite for each document, returning the number
// accepted.
func (c *Channel[T]) TryWriteMany(docs []T) int {
	accepted := 0
	for _, d := range docs {
		if c.TryWrite(d) {
			accepted++
		}
	}
	return accepted
}

// WaitToWriteManyAsync calls WaitToWriteAsync for each document in
// order, stopping at the first error.
func (c *Channel[T]) WaitToWriteManyAsync(ctx context.Context, docs []T) error {
	for _, d := range docs {
		if err := c.WaitToWriteAsync(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// TryComplete shuts the channel down: new writes are rejected, any
// partially filled inbound buffer is flushed immediately, and the
// reader and worker goroutines are signaled to exit once the outbound
// queue drains. TryComplete blocks until the reader and every worker
// have returned, so every export has finished by the time it returns.
//
// Shutdown is signaled via stop, not ctx: the reader still has to
// flush its final partial batch onto the outbound queue after this
// point, and a worker still has to export it. That drain-time export
// (and any export already in flight) must not be handed a context
// that's already canceled, or a ctx-respecting transport turns it into
// an immediate error with no effective backoff — rejecting documents
// that were never actually given a chance to ship. ctx is canceled
// only after every worker has returned, solely to release its
// resources.
func (c *Channel[T]) TryComplete() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	c.mu.Unlock()

	close(c.stop)
	<-c.readerDone
	close(c.outboundQueue)
	_ = c.workers.Wait() // exportBatch never returns an error; failures are classified and counted instead
	c.cancel()

	if c.cfg.OutboundExited != nil {
		c.cfg.OutboundExited()
	}
}

// WaitForDrainAsync blocks until every enqueued document has reached a
// terminal outcome (accepted, rejected, dropped, or retries
// exhausted), or ctx is canceled. Implemented as a short poll against
// an atomic pending counter rather than a condition variable: a batch
// drain is not latency-sensitive enough to justify the extra
// synchronization machinery.
func (c *Channel[T]) WaitForDrainAsync(ctx context.Context) error {
	const pollInterval = 10 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if c.pending.Load() <= 0 {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns a snapshot of the channel's lifetime counters.
func (c *Channel[T]) Stats() Stats {
	return c.counters.snapshot()
}

// markTerminal decrements the pending counter and Active stat for n
// documents that just reached a terminal outcome. Called by workers.
func (c *Channel[T]) markTerminal(n int) {
	if n <= 0 {
		return
	}
	c.pending.Add(-int64(n))
	c.counters.active.Add(^uint64(n - 1)) // active -= n
}

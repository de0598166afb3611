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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elastic/go-ingest-channel/bulkresp"
)

type doc struct {
	ID string
}

// mockExporter classifies every document as Accepted by default; tests
// override classify to exercise retry/reject paths.
type mockExporter struct {
	mu       sync.Mutex
	attempts int
	calls    [][]doc

	classify func(attempt int, docs []doc) ([]bulkresp.Classification, error)
}

func (m *mockExporter) Export(ctx context.Context, docs []doc) ([]bulkresp.Classification, error) {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.calls = append(m.calls, append([]doc(nil), docs...))
	m.mu.Unlock()

	if m.classify != nil {
		return m.classify(attempt, docs)
	}
	out := make([]bulkresp.Classification, len(docs))
	for i := range docs {
		out[i] = bulkresp.Classification{Index: i, Outcome: bulkresp.Accepted}
	}
	return out, nil
}

func acceptAll(_ int, docs []doc) ([]bulkresp.Classification, error) {
	out := make([]bulkresp.Classification, len(docs))
	for i := range docs {
		out[i] = bulkresp.Classification{Index: i, Outcome: bulkresp.Accepted}
	}
	return out, nil
}

func testLogger() *zap.SugaredLogger {
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar()
}

func TestChannelFlushesBySize(t *testing.T) {
	exp := &mockExporter{classify: acceptAll}
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      4,
		OutboundMaxSize:     2,
		OutboundMaxLifetime: time.Hour,
		Exporter:            exp,
	})
	require.NoError(t, err)

	assert.True(t, c.TryWrite(doc{ID: "a"}))
	assert.True(t, c.TryWrite(doc{ID: "b"}))

	require.NoError(t, c.WaitForDrainAsync(ctxWithTimeout(t)))
	assert.Equal(t, uint64(2), c.Stats().Accepted)

	c.TryComplete()
}

func TestChannelFlushesByTime(t *testing.T) {
	exp := &mockExporter{classify: acceptAll}
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      4,
		OutboundMaxSize:     10,
		OutboundMaxLifetime: 20 * time.Millisecond,
		Exporter:            exp,
	})
	require.NoError(t, err)

	assert.True(t, c.TryWrite(doc{ID: "only"}))

	require.NoError(t, c.WaitForDrainAsync(ctxWithTimeout(t)))
	assert.Equal(t, uint64(1), c.Stats().Accepted)

	c.TryComplete()
}

func TestChannelRetriesRetryableItemsAndAccepts(t *testing.T) {
	exp := &mockExporter{classify: func(attempt int, docs []doc) ([]bulkresp.Classification, error) {
		if attempt == 1 {
			return []bulkresp.Classification{{Index: 0, Outcome: bulkresp.RetryItem}}, nil
		}
		return []bulkresp.Classification{{Index: 0, Outcome: bulkresp.Accepted}}, nil
	}}
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      4,
		OutboundMaxSize:     1,
		OutboundMaxLifetime: time.Hour,
		ExportMaxRetries:    2,
		ExportBackoff:       func(int) time.Duration { return time.Millisecond },
		Exporter:            exp,
	})
	require.NoError(t, err)

	c.TryWrite(doc{ID: "x"})
	require.NoError(t, c.WaitForDrainAsync(ctxWithTimeout(t)))

	assert.Equal(t, uint64(1), c.Stats().Accepted)
	assert.Equal(t, 2, exp.attempts)
	c.TryComplete()
}

func TestChannelRejectsAfterExhaustingRetries(t *testing.T) {
	exp := &mockExporter{classify: func(_ int, docs []doc) ([]bulkresp.Classification, error) {
		return []bulkresp.Classification{{Index: 0, Outcome: bulkresp.RetryEntireBatch}}, nil
	}}
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      4,
		OutboundMaxSize:     1,
		OutboundMaxLifetime: time.Hour,
		ExportMaxRetries:    1,
		ExportBackoff:       func(int) time.Duration { return time.Millisecond },
		Exporter:            exp,
	})
	require.NoError(t, err)

	c.TryWrite(doc{ID: "x"})
	require.NoError(t, c.WaitForDrainAsync(ctxWithTimeout(t)))

	assert.Equal(t, uint64(1), c.Stats().Rejected)
	assert.Equal(t, uint64(0), c.Stats().Accepted)
	assert.Equal(t, 2, exp.attempts) // initial attempt + 1 retry
	c.TryComplete()
}

func TestChannelDropsWritesWhenFullUnderDropWriteMode(t *testing.T) {
	blocked := make(chan struct{})
	exp := &mockExporter{classify: func(_ int, docs []doc) ([]bulkresp.Classification, error) {
		<-blocked
		return acceptAll(0, docs)
	}}
	var dropped []doc
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      1,
		OutboundMaxSize:     1,
		OutboundMaxLifetime: time.Hour,
		FullMode:            FullModeDropWrite,
		Exporter:            exp,
		BufferItemDropped:   func(d doc) { dropped = append(dropped, d) },
	})
	require.NoError(t, err)

	// Fill the single inbound slot; the reader may or may not have
	// drained it yet, so retry a few times until we observe a drop.
	for i := 0; i < 1000 && len(dropped) == 0; i++ {
		c.TryWrite(doc{ID: "fill"})
	}
	close(blocked)
	c.TryComplete()

	assert.NotEmpty(t, dropped)
}

func TestWaitToWriteAsyncRespectsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	exp := &mockExporter{classify: func(_ int, docs []doc) ([]bulkresp.Classification, error) {
		<-blocked
		return acceptAll(0, docs)
	}}
	c, err := New[doc](testLogger(), Config[doc]{
		InboundMaxSize:      1,
		OutboundMaxSize:     1,
		OutboundMaxLifetime: time.Hour,
		FullMode:            FullModeWait,
		DrainSize:           1,
		Exporter:            exp,
	})
	require.NoError(t, err)

	// Saturate the whole pipeline so the next write must block: the
	// reader keeps draining the inbound queue until the worker is stuck
	// in Export, the outbound queue is full and the reader itself is
	// blocked handing off a batch. A single failed TryWrite does not
	// mean that point has been reached, so keep writing for a while.
	for deadline := time.Now().Add(50 * time.Millisecond); time.Now().Before(deadline); {
		c.TryWrite(doc{ID: "fill"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.WaitToWriteAsync(ctx, doc{ID: "blocked"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(blocked)
	c.TryComplete()
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

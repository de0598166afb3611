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

import "sync/atomic"

// Stats is a snapshot of a Channel's lifetime counters, mirroring the
// counter style of Elasticsearch client bulk indexers: monotonically
// increasing totals a caller can diff between polls.
type Stats struct {
	// Added is the number of documents successfully enqueued.
	Added uint64
	// Dropped is the number of documents dropped because the inbound
	// queue was full when TryWrite ran (in either FullMode).
	Dropped uint64
	// Active is the number of documents currently in flight: enqueued
	// but not yet terminally classified.
	Active uint64
	// Accepted is the number of documents Elasticsearch accepted.
	Accepted uint64
	// Rejected is the number of documents permanently rejected (4xx
	// other than a retryable envelope-level 429, or exhausted retries).
	Rejected uint64
	// Failed is the number of export attempts that failed at the
	// transport level (network/timeout), independent of per-document
	// outcomes.
	Failed uint64
}

type statsCounters struct {
	added    atomic.Uint64
	dropped  atomic.Uint64
	active   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
	failed   atomic.Uint64
}

func (c *statsCounters) snapshot() Stats {
	return Stats{
		Added:    c.added.Load(),
		Dropped:  c.dropped.Load(),
		Active:   c.active.Load(),
		Accepted: c.accepted.Load(),
		Rejected: c.rejected.Load(),
		Failed:   c.failed.Load(),
	}
}

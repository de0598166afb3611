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

// Package logs adapts *zap.SugaredLogger the way apm-server's
// libbeat/logp wraps zap: a thin decorator that rate-limits noisy log
// lines (e.g. one log line per failed bulk item would otherwise flood
// stderr under sustained per-item rejections) without hiding the
// underlying zap API from callers who want structured fields.
package logs

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimited wraps logger so that, for any distinct message string,
// at most one line is emitted per `every` window; subsequent calls
// with the same message are dropped and the suppressed count is
// folded into the field "suppressed" the next time the message fires.
//
// This mirrors modelindexer.New's use of logs.WithRateLimit(logRateLimit)
// in the teacher, generalized from a package-level constant to a
// reusable decorator any caller can apply to any *zap.SugaredLogger.
func RateLimited(logger *zap.SugaredLogger, every time.Duration) *Limiter {
	return &Limiter{
		logger: logger,
		every:  every,
		last:   make(map[string]time.Time),
		drops:  make(map[string]int),
	}
}

// Limiter is a rate-limited façade over a *zap.SugaredLogger.
type Limiter struct {
	logger *zap.SugaredLogger
	every  time.Duration

	mu    sync.Mutex
	last  map[string]time.Time
	drops map[string]int
}

func (l *Limiter) allow(msg string) (ok bool, suppressed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if last, seen := l.last[msg]; seen && now.Sub(last) < l.every {
		l.drops[msg]++
		return false, 0
	}
	suppressed = l.drops[msg]
	l.drops[msg] = 0
	l.last[msg] = now
	return true, suppressed
}

// Errorw logs msg at error level with the given structured fields,
// subject to the rate limit.
func (l *Limiter) Errorw(msg string, kv ...interface{}) {
	if ok, suppressed := l.allow(msg); ok {
		if suppressed > 0 {
			kv = append(kv, "suppressed", suppressed)
		}
		l.logger.Errorw(msg, kv...)
	}
}

// Warnw logs msg at warn level with the given structured fields,
// subject to the rate limit.
func (l *Limiter) Warnw(msg string, kv ...interface{}) {
	if ok, suppressed := l.allow(msg); ok {
		if suppressed > 0 {
			kv = append(kv, "suppressed", suppressed)
		}
		l.logger.Warnw(msg, kv...)
	}
}

// Unwrap returns the underlying logger for unrestricted, non-rate-limited use.
func (l *Limiter) Unwrap() *zap.SugaredLogger { return l.logger }

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

// Package routing implements the three document-routing strategies
// (spec §4.F): DataStream, Index, and WiredStream. Each decides, per
// document, the bulk operation header, the target URL path, and the
// refresh target — spec §9 Design Notes calls for "a closed tagged
// union" of exactly these three variants rather than open-ended
// dynamic dispatch, so Strategy is a small interface with exactly
// three implementations in this package.
package routing

import (
	"time"

	"github.com/elastic/go-ingest-channel/bulkbody"
	"github.com/elastic/go-ingest-channel/document"
	"github.com/elastic/go-ingest-channel/internal/xhash"
)

// Target is what a Strategy produces for a single document: the bulk
// header to emit, the URL path to POST the containing batch to, and
// the name to refresh after a drain.
type Target struct {
	Header        bulkbody.Header
	URLPath       string
	RefreshTarget string
}

// Strategy routes a document of type T to a Target.
type Strategy[T any] interface {
	Route(doc T) Target
	// BootstrapRequired reports whether the bootstrap sequencer (§4.G)
	// has any work to do for this strategy. WiredStream's bootstrap is
	// a no-op per spec §4.F.
	BootstrapRequired() bool
}

// DataStream always emits create headers without an _index field; the
// target is implied by the URL. Spec §4.F.
type DataStream[T any] struct {
	// Name is the data stream name, e.g. "logs-app-default".
	Name string
}

func (d DataStream[T]) Route(T) Target {
	return Target{
		Header:        bulkbody.Header{Verb: bulkbody.Create},
		URLPath:       "/" + d.Name + "/_bulk",
		RefreshTarget: d.Name,
	}
}

func (d DataStream[T]) BootstrapRequired() bool { return true }

// WiredStream emits create headers without _index, against a managed
// stream endpoint whose bootstrap is a no-op (the managed service
// owns provisioning). Spec §4.F.
type WiredStream[T any] struct {
	// Endpoint is the managed stream's bulk endpoint path, e.g.
	// "/_wired/my-stream/_bulk".
	Endpoint string
	// Name is used only as the refresh target / diagnostics label.
	Name string
}

func (w WiredStream[T]) Route(T) Target {
	return Target{
		Header:        bulkbody.Header{Verb: bulkbody.Create},
		URLPath:       w.Endpoint,
		RefreshTarget: w.Name,
	}
}

func (w WiredStream[T]) BootstrapRequired() bool { return false }

// IndexConfig configures the Index strategy.
type IndexConfig[T any] struct {
	// Template is an index name, optionally with a "{0:yyyy.MM.dd}"
	// style date placeholder for rolling indices.
	Template string
	// Accessor extracts id/content-hash/timestamp from a document.
	Accessor document.RoutingAccessor[T]
	// ChannelFingerprint returns the current bootstrap fingerprint,
	// consulted lazily so a strategy constructed before bootstrap runs
	// still picks up the fingerprint once it's computed (spec §3:
	// "channel_fingerprint (computed by the first step that produces
	// it)"). May be nil if scripted-hash routing is never used.
	ChannelFingerprint func() string
	// HashField is the document field the scripted-hash update's
	// Painless script compares/overwrites. Defaults to "_fp_hash" if
	// empty.
	HashField string
	// Now returns the current time; defaults to time.Now. Overridable
	// for deterministic tests.
	Now func() time.Time
}

// Index is the context-driven routing strategy (spec §4.F "Index
// (context-driven)"): for each document, reads id/content-hash/
// timestamp and picks create / index / scripted_hash_update
// accordingly.
type Index[T any] struct {
	cfg IndexConfig[T]
}

// NewIndex returns an Index strategy with defaults applied.
func NewIndex[T any](cfg IndexConfig[T]) *Index[T] {
	cfg.Accessor = cfg.Accessor.WithDefaults()
	if cfg.HashField == "" {
		cfg.HashField = "_fp_hash"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Index[T]{cfg: cfg}
}

func (s *Index[T]) BootstrapRequired() bool { return true }

// Route implements Strategy[T].
func (s *Index[T]) Route(doc T) Target {
	ts, ok := s.cfg.Accessor.Timestamp(doc)
	if !ok {
		ts = s.cfg.Now()
	}
	indexName, constant := FormatIndexName(s.cfg.Template, ts)

	id, hasID := s.cfg.Accessor.ID(doc)
	hash, hasHash := s.cfg.Accessor.ContentHash(doc)

	var header bulkbody.Header
	switch {
	case hasHash && hasID:
		fp := ""
		if s.cfg.ChannelFingerprint != nil {
			fp = s.cfg.ChannelFingerprint()
		}
		header = bulkbody.Header{
			Verb:       bulkbody.ScriptedHashUpdate,
			DocumentID: id,
			ScriptedUpsertParams: &bulkbody.ScriptedUpsertParams{
				CombinedHash: xhash.Combine(fp, hash),
				HashField:    s.cfg.HashField,
			},
		}
	case hasID:
		header = bulkbody.Header{Verb: bulkbody.Index, DocumentID: id}
	default:
		header = bulkbody.Header{Verb: bulkbody.Create}
	}
	if !constant {
		header.TargetIndex = indexName
	}

	target := Target{Header: header, RefreshTarget: indexName}
	if constant {
		target.URLPath = "/" + indexName + "/_bulk"
	} else {
		target.URLPath = "/_bulk"
	}
	return target
}

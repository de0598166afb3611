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

// Package xhash computes the short, stable hashes the bootstrap
// sequencer and the scripted-hash routing strategy rely on: the
// "channel fingerprint" (settings ∥ mappings) written into a
// template's _meta.hash, and the per-document combined fingerprint
// used to short-circuit scripted upserts.
//
// xxhash is chosen because it is already a transitive dependency of
// the teacher (pulled in by badger) and is exactly the class of fast,
// non-cryptographic hash the spec calls for: a mismatched hash simply
// forces a rewrite, and preimage resistance is not a requirement. The
// scripted upsert compares only the hash field, with no full-document
// comparison, so a collision makes it treat a changed document as
// unchanged.
package xhash

import (
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a short stable hex hash of the concatenation of
// parts, in order. Used for the channel fingerprint
// (hash(settings_body ∥ mappings_body)).
func Fingerprint(parts ...[]byte) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.Write(p)
		// Separator guards against ("ab","c") and ("a","bc") colliding.
		_, _ = d.Write([]byte{0})
	}
	return hex.EncodeToString(d.Sum(nil))
}

// Combine folds a document's content hash with the channel fingerprint
// so that a mapping/settings change invalidates every cached
// per-document hash, per spec §3 "Channel fingerprint".
func Combine(channelFingerprint, contentHash string) string {
	return Fingerprint([]byte(channelFingerprint), []byte(contentHash))
}

// Uint64 returns the raw 64-bit hash, useful where callers want a
// compact numeric form (e.g. embedding in a Painless script parameter)
// rather than the hex string.
func Uint64(s string) uint64 {
	return xxhash.Sum64String(s)
}

// FormatUint64 renders a uint64 hash as base-36 text: shorter than hex
// for the same bit width, useful when the hash is embedded in an
// index name segment or script parameter where brevity matters.
func FormatUint64(v uint64) string {
	return strconv.FormatUint(v, 36)
}

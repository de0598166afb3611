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

// Package bulkresp implements the response interpreter (spec §4.D):
// it zips a bulk response's items against the submitted slice, in
// order, and classifies each pairing into one of the outcomes the
// worker pool (channel package) needs to decide retry vs. reject.
//
// Classification rules (spec §4.D, §4.C "Failure modes", §7 error
// taxonomy — a 429 or 5xx envelope status is TransientTransport and
// retries the whole batch; a 5xx reported against an individual item
// inside an otherwise-2xx envelope retries only that item):
//
//	2xx                -> Accepted
//	429 (envelope)      -> RetryEntireBatch
//	500-599 (envelope)  -> RetryEntireBatch
//	5xx (per item)      -> RetryItem
//	anything else       -> RejectItem
package bulkresp

import "encoding/json"

// Outcome classifies a single response item.
type Outcome int

const (
	Accepted Outcome = iota
	RetryEntireBatch
	RetryItem
	RejectItem
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RetryEntireBatch:
		return "retry_entire_batch"
	case RetryItem:
		return "retry_item"
	case RejectItem:
		return "reject_item"
	default:
		return "unknown"
	}
}

// Item is a single element of a bulk response's "items" array, after
// unwrapping the action-keyed object Elasticsearch wraps each item in
// (e.g. {"index": {...}}, {"create": {...}}).
type Item struct {
	Action string `json:"-"`
	Status int    `json:"status"`
	Error  *ItemError `json:"error,omitempty"`
}

// ItemError is the per-item error object the bulk response embeds for
// non-2xx items; Reason is surfaced verbatim to rejection callbacks.
type ItemError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Envelope is the top-level shape of a bulk response.
type Envelope struct {
	Took   int    `json:"took"`
	Errors bool   `json:"errors"`
	Items  []map[string]Item `json:"items"`
}

// Decode parses a raw bulk response body.
func Decode(body []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Classification pairs a submitted index (position in the original
// slice) with its interpreted outcome and, for RejectItem, the
// server's error detail.
type Classification struct {
	Index   int
	Outcome Outcome
	Item    Item
}

// Classify zips envelope's items with a slice of n submitted
// documents (by position) and returns exactly n Classifications, one
// per submitted document, so a caller can always account for every
// document it sent — none silently vanish, regardless of how
// malformed or short the response turns out to be.
//
// envelopeStatus is the overall HTTP status code of the response. Both
// 429 and any 500-599 there override any per-item classification with
// RetryEntireBatch for every submitted document: spec §7 classifies a
// whole-response 5xx as TransientTransport, same retry treatment as
// 429, and distinct from an individual item reporting 5xx inside an
// otherwise-2xx envelope (handled per item, below).
func Classify(envelopeStatus int, envelope *Envelope, n int) []Classification {
	if envelopeStatus == 429 || (envelopeStatus >= 500 && envelopeStatus < 600) {
		out := make([]Classification, n)
		for i := range out {
			out[i] = Classification{Index: i, Outcome: RetryEntireBatch}
		}
		return out
	}

	out := make([]Classification, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(envelope.Items) {
			out = append(out, missingClassification(i))
			continue
		}

		matched := false
		for action, item := range envelope.Items[i] {
			item.Action = action
			out = append(out, Classification{Index: i, Outcome: classifyItem(item), Item: item})
			matched = true
			break // exactly one key per item object
		}
		if !matched {
			out = append(out, missingClassification(i))
		}
	}
	return out
}

// missingClassification covers an index the response never accounted
// for (a short or empty items array against a 2xx envelope, or an
// empty per-item object). There's no server-reported reason to retry,
// so it's rejected rather than retried forever.
func missingClassification(index int) Classification {
	return Classification{
		Index:   index,
		Outcome: RejectItem,
		Item: Item{
			Error: &ItemError{
				Type:   "missing_response_item",
				Reason: "bulk response did not include an item for this document",
			},
		},
	}
}

// classifyItem applies spec §4.D's per-item rule. Note 429 is handled
// only at the envelope level by Classify, never here: an individual
// item reporting 429 without the envelope doing so is treated as
// "anything else" (reject), per the spec's explicit statement that
// 5xx and 429 use two different retry policies and must not be
// conflated.
func classifyItem(item Item) Outcome {
	switch {
	case item.Status >= 200 && item.Status < 300:
		return Accepted
	case item.Status >= 500 && item.Status < 600:
		return RetryItem
	default:
		return RejectItem
	}
}

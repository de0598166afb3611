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

package bulkresp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPerItemReject(t *testing.T) {
	body := []byte(`{
		"took": 1, "errors": true,
		"items": [
			{"create": {"status": 201}},
			{"create": {"status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad"}}},
			{"create": {"status": 201}}
		]
	}`)
	env, err := Decode(body)
	require.NoError(t, err)

	cls := Classify(200, env, 3)
	require.Len(t, cls, 3)
	assert.Equal(t, Accepted, cls[0].Outcome)
	assert.Equal(t, RejectItem, cls[1].Outcome)
	assert.Equal(t, "bad", cls[1].Item.Error.Reason)
	assert.Equal(t, Accepted, cls[2].Outcome)
}

func TestClassify5xxRetriesItemOnly(t *testing.T) {
	body := []byte(`{"items":[{"index":{"status":503}},{"index":{"status":201}}]}`)
	env, err := Decode(body)
	require.NoError(t, err)

	cls := Classify(200, env, 2)
	assert.Equal(t, RetryItem, cls[0].Outcome)
	assert.Equal(t, Accepted, cls[1].Outcome)
}

func TestClassify429AtEnvelopeRetriesWholeBatch(t *testing.T) {
	env := &Envelope{}
	cls := Classify(429, env, 3)
	require.Len(t, cls, 3)
	for _, c := range cls {
		assert.Equal(t, RetryEntireBatch, c.Outcome)
	}
}

func TestClassifyItemLevel429WithoutEnvelopeIsRejected(t *testing.T) {
	body := []byte(`{"items":[{"index":{"status":429}}]}`)
	env, err := Decode(body)
	require.NoError(t, err)

	cls := Classify(200, env, 1)
	require.Len(t, cls, 1)
	assert.Equal(t, RejectItem, cls[0].Outcome)
}

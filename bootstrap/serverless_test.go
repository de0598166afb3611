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

package bootstrap

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectServerlessStatefulClusterExposesXPack(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("HEAD", serverlessProbePath, func(req *http.Request) (*http.Response, error) {
		return resp(200, "{}")
	})

	bctx := baseContext(transport)
	require.NoError(t, DetectServerless(context.Background(), bctx))
	assert.False(t, bctx.IsServerless)
}

func TestDetectServerlessServerlessClusterHasNoXPack(t *testing.T) {
	transport := newRoutedTransport()
	// No handler registered for /_xpack: routedTransport.Perform's
	// default response is 404, matching a serverless deployment.

	bctx := baseContext(transport)
	require.NoError(t, DetectServerless(context.Background(), bctx))
	assert.True(t, bctx.IsServerless)
}

func TestDetectServerlessFeedsLifecyclePolicyStepSkip(t *testing.T) {
	transport := newRoutedTransport()
	bctx := baseContext(transport)
	bctx.LifecyclePolicyName = "orders-ilm"
	bctx.LifecyclePolicyBody = []byte(`{"policy":{}}`)

	require.NoError(t, DetectServerless(context.Background(), bctx))
	require.True(t, bctx.IsServerless)

	require.NoError(t, LifecyclePolicyStep(context.Background(), bctx))
	assert.Equal(t, 0, transport.countCalls("GET", "/_ilm/policy/orders-ilm"))
	assert.Equal(t, 0, transport.countCalls("PUT", "/_ilm/policy/orders-ilm"))
}

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

package estransport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/require"
)

// roundTripperFunc adapts the go-elasticsearch esutil test suite's
// RoundTripFunc-style fake (github.com/elastic/go-elasticsearch/v8's
// own mockTransport in its esutil tests) to http.RoundTripper, which
// is what elasticsearch.Config.Transport expects.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// Interface is shaped to match esapi.Transport (Perform(*http.Request)
// (*http.Response, error)) precisely so a real *elasticsearch.Client
// satisfies it without an adapter type. This test is the compile-time
// and run-time proof of that claim: estransport.Do is driven straight
// through a *elasticsearch.Client built from the standard
// elasticsearch.NewClient constructor.
var _ Interface = (*elasticsearch.Client)(nil)

func TestElasticsearchClientSatisfiesInterface(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(`{"acknowledged":true}`)),
				Header:     make(http.Header),
			}, nil
		}),
	})
	require.NoError(t, err)

	req, err := NewHTTPRequest(context.Background(), "", Request{Method: "PUT", Path: "/_component_template/orders-settings"})
	require.NoError(t, err)

	status, body, err := Do(client, req)
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.Contains(t, string(body), "acknowledged")
}

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
	"io"
	"net/http"
	"strings"
)

// mockTransport mirrors the RoundTripFunc-style fake used throughout
// the go-elasticsearch esutil test suite
// (9976e9bd_shouldend-go-elasticsearch…bulk_indexer_internal_test.go),
// adapted to Interface's Perform method instead of http.RoundTripper.
type mockTransport struct {
	PerformFunc func(*http.Request) (*http.Response, error)
}

func (t *mockTransport) Perform(req *http.Request) (*http.Response, error) {
	if t.PerformFunc != nil {
		return t.PerformFunc(req)
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
	}, nil
}

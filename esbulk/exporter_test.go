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

package esbulk

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/go-ingest-channel/bulkresp"
	"github.com/elastic/go-ingest-channel/routing"
)

type order struct {
	ID string
}

type mockTransport struct {
	perform func(*http.Request) (*http.Response, error)
}

func (m *mockTransport) Perform(req *http.Request) (*http.Response, error) {
	return m.perform(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestExportDataStreamAllAccepted(t *testing.T) {
	var capturedPath string
	transport := &mockTransport{perform: func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.Path
		return jsonResponse(200, `{"took":1,"errors":false,"items":[{"create":{"status":201}},{"create":{"status":201}}]}`), nil
	}}

	exp := New[order](transport, "http://es.local:9200", routing.DataStream[order]{Name: "logs-app-default"}, nil)
	results, err := exp.Export(context.Background(), []order{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, bulkresp.Accepted, r.Outcome)
	}
	assert.Equal(t, "/logs-app-default/_bulk", capturedPath)
}

func TestExportEnvelope429RetriesWholeBatch(t *testing.T) {
	transport := &mockTransport{perform: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(429, `{"took":1,"errors":true,"items":[]}`), nil
	}}
	exp := New[order](transport, "http://es.local:9200", routing.DataStream[order]{Name: "logs-app-default"}, nil)
	results, err := exp.Export(context.Background(), []order{{ID: "a"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, bulkresp.RetryEntireBatch, results[0].Outcome)
}

func TestExportTransportErrorPropagates(t *testing.T) {
	boom := assert.AnError
	transport := &mockTransport{perform: func(req *http.Request) (*http.Response, error) {
		return nil, boom
	}}
	exp := New[order](transport, "http://es.local:9200", routing.DataStream[order]{Name: "logs-app-default"}, nil)
	_, err := exp.Export(context.Background(), []order{{ID: "a"}})
	assert.ErrorIs(t, err, boom)
}

func TestExportSerializationFailureRejectsInlineWithoutNetworkCall(t *testing.T) {
	called := false
	transport := &mockTransport{perform: func(req *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(200, `{}`), nil
	}}
	// encode always fails, so no document ever reaches the wire.
	exp := New[order](transport, "http://es.local:9200", routing.DataStream[order]{Name: "logs"},
		func(_ *bytes.Buffer, _ order) error { return assert.AnError })

	results, err := exp.Export(context.Background(), []order{{ID: "a"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, bulkresp.RejectItem, results[0].Outcome)
	assert.False(t, called)
}

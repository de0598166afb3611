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
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type call struct {
	method string
	path   string
	body   []byte
}

type routedTransport struct {
	mu       sync.Mutex
	calls    []call
	handlers map[string]func(*http.Request) (*http.Response, error)
}

func newRoutedTransport() *routedTransport {
	return &routedTransport{handlers: make(map[string]func(*http.Request) (*http.Response, error))}
}

func (t *routedTransport) on(method, path string, h func(*http.Request) (*http.Response, error)) {
	t.handlers[method+" "+path] = h
}

func (t *routedTransport) Perform(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	t.mu.Lock()
	t.calls = append(t.calls, call{method: req.Method, path: req.URL.Path, body: body})
	t.mu.Unlock()

	if h, ok := t.handlers[req.Method+" "+req.URL.Path]; ok {
		return h(req)
	}
	return &http.Response{StatusCode: 404, Body: io.NopCloser(strings.NewReader(`{}`))}, nil
}

func (t *routedTransport) countCalls(method, path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c.method == method && c.path == path {
			n++
		}
	}
	return n
}

func resp(status int, body string) (*http.Response, error) {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}, nil
}

func testLogger() *zap.SugaredLogger {
	core, _ := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar()
}

func baseContext(transport *routedTransport) *Context {
	return &Context{
		Transport:        transport,
		TemplateName:     "orders",
		TemplateWildcard: "orders-*",
		SettingsProvider: func() []byte { return []byte(`{"settings":{"number_of_shards":1}}`) },
		MappingsProvider: func() []byte { return []byte(`{"mappings":{"properties":{}}}`) },
	}
}

func TestComponentTemplatesStepAlwaysPutsAndSetsFingerprint(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("PUT", "/_component_template/orders-settings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })
	transport.on("PUT", "/_component_template/orders-mappings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	bctx := baseContext(transport)
	err := ComponentTemplatesStep(context.Background(), bctx)
	require.NoError(t, err)
	assert.NotEmpty(t, bctx.ChannelFingerprint)
	assert.Equal(t, 1, transport.countCalls("PUT", "/_component_template/orders-settings"))
	assert.Equal(t, 1, transport.countCalls("PUT", "/_component_template/orders-mappings"))
}

func TestIndexTemplateStepShortCircuitsOnMatchingHash(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, ``) })
	transport.on("GET", "/_index_template/orders", func(*http.Request) (*http.Response, error) {
		return resp(200, `{"index_templates":[{"index_template":{"template":{"mappings":{"_meta":{"hash":"abc123"}}}}}]}`)
	})

	bctx := baseContext(transport)
	bctx.ChannelFingerprint = "abc123"

	err := IndexTemplateStep(context.Background(), bctx)
	require.NoError(t, err)
	assert.Equal(t, 0, transport.countCalls("PUT", "/_index_template/orders"))
}

func TestIndexTemplateStepPutsWhenHashDiffers(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, ``) })
	transport.on("GET", "/_index_template/orders", func(*http.Request) (*http.Response, error) {
		return resp(200, `{"index_templates":[{"index_template":{"template":{"mappings":{"_meta":{"hash":"old"}}}}}]}`)
	})
	transport.on("PUT", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	bctx := baseContext(transport)
	bctx.ChannelFingerprint = "new-hash"

	err := IndexTemplateStep(context.Background(), bctx)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.countCalls("PUT", "/_index_template/orders"))
}

func TestIndexTemplateStepPutsWhenAbsent(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(404, ``) })
	transport.on("PUT", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	bctx := baseContext(transport)
	bctx.ChannelFingerprint = "new-hash"

	err := IndexTemplateStep(context.Background(), bctx)
	require.NoError(t, err)
	assert.Equal(t, 1, transport.countCalls("PUT", "/_index_template/orders"))
}

func TestSequencerPolicyNoneSkipsEverySteps(t *testing.T) {
	transport := newRoutedTransport()
	seq := NewSequencer(testLogger(), PolicyNone)
	ok, err := seq.Run(context.Background(), baseContext(transport))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, transport.calls)
}

func TestSequencerPolicySilentSwallowsStepFailure(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("PUT", "/_component_template/orders-settings", func(*http.Request) (*http.Response, error) { return resp(500, `boom`) })
	transport.on("PUT", "/_component_template/orders-mappings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(404, ``) })
	transport.on("PUT", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	seq := NewSequencer(testLogger(), PolicySilent)
	ok, err := seq.Run(context.Background(), baseContext(transport))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSequencerPolicyFailureReturnsAggregatedError(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("PUT", "/_component_template/orders-settings", func(*http.Request) (*http.Response, error) { return resp(500, `boom`) })
	transport.on("PUT", "/_component_template/orders-mappings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(404, ``) })
	transport.on("PUT", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	seq := NewSequencer(testLogger(), PolicyFailure)
	ok, err := seq.Run(context.Background(), baseContext(transport))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestSequencerRunsAllStepsAndProvisionsCleanly(t *testing.T) {
	transport := newRoutedTransport()
	transport.on("PUT", "/_component_template/orders-settings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })
	transport.on("PUT", "/_component_template/orders-mappings", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })
	transport.on("HEAD", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(404, ``) })
	transport.on("PUT", "/_index_template/orders", func(*http.Request) (*http.Response, error) { return resp(200, `{}`) })

	seq := NewSequencer(testLogger(), PolicyFailure)
	ok, err := seq.Run(context.Background(), baseContext(transport))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, transport.countCalls("PUT", "/_index_template/orders"))
}

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

// Package estransport declares the narrow HTTP transport interface the
// channel, bootstrap sequencer, and alias manager consume (spec §6).
// The channel never constructs a transport; one is injected. The
// interface is shaped to match esapi.Transport from
// github.com/elastic/go-elasticsearch/v8 (Perform(*http.Request)
// (*http.Response, error)) so a real *elasticsearch.Client satisfies
// it with no adapter.
package estransport

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Interface is the transport contract consumed throughout this
// module. It intentionally has the same method set as
// github.com/elastic/go-elasticsearch/v8/esapi.Transport so that:
//
//	var _ estransport.Interface = (*elasticsearch.Client)(nil)
//
// holds without an adapter type.
type Interface interface {
	Perform(req *http.Request) (*http.Response, error)
}

// Request is a minimal description of an HTTP call against
// Elasticsearch, built by the bulk exporter (esbulk), bootstrap steps,
// alias manager, and orchestrator. It exists so those callers don't need to
// construct *http.Request directly (and so tests can assert on it
// without parsing URLs back out of a constructed request).
type Request struct {
	Method      string
	Path        string
	Query       map[string]string
	Body        []byte
	ContentType string
}

// NewHTTPRequest builds an *http.Request from a Request, rooted at
// baseURL, for use against an Interface.
func NewHTTPRequest(ctx context.Context, baseURL string, r Request) (*http.Request, error) {
	u := baseURL + r.Path
	if len(r.Query) > 0 {
		q := make([]byte, 0, 64)
		first := true
		for k, v := range r.Query {
			if first {
				q = append(q, '?')
				first = false
			} else {
				q = append(q, '&')
			}
			q = append(q, k...)
			q = append(q, '=')
			q = append(q, v...)
		}
		u += string(q)
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, u, body)
	if err != nil {
		return nil, err
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	return req, nil
}

// Do performs req against t and returns the status code and body
// bytes, closing the response body. It's a convenience used by
// bootstrap steps and the alias manager, which don't need streaming
// responses the way the bulk request builder's caller might.
func Do(t Interface, req *http.Request) (status int, body []byte, err error) {
	resp, err := t.Perform(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err = readAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

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

// Package alias implements the "latest" + "search" alias swap pattern
// for timestamped index rotations (spec §4.H).
package alias

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	glob "github.com/ryanuber/go-glob"
	"github.com/tidwall/gjson"

	"github.com/elastic/go-ingest-channel/estransport"
)

// Manager applies alias swaps against a single Elasticsearch cluster.
// It serializes its own _aliases calls but, per spec §5, makes no
// attempt to protect against another process touching the same
// aliases concurrently.
type Manager struct {
	transport estransport.Interface
	baseURL   string

	mu sync.Mutex
}

// New returns a Manager.
func New(transport estransport.Interface, baseURL string) *Manager {
	return &Manager{transport: transport, baseURL: baseURL}
}

// Swap applies the "latest" alias (and, if searchAlias is non-empty,
// the alias named searchAlias) to index, atomically removing it from whatever
// index in pattern currently holds it. If index is empty, it is
// resolved to the alphabetically-last concrete index matching pattern
// via _resolve/index — spec §4.H's fallback "for callers who don't
// know the concrete index", which only works because the configured
// date pattern is chosen to be alphabetically monotonic.
func (m *Manager) Swap(ctx context.Context, index, pattern, searchAlias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index == "" {
		resolved, err := m.resolveLatestIndex(ctx, pattern)
		if err != nil {
			return errors.Wrap(err, "resolving concrete index for alias swap")
		}
		index = resolved
	}

	latestAlias := format(pattern, "latest")

	actions := make([]map[string]interface{}, 0, 4)
	actions = m.appendSwapActions(ctx, actions, pattern, latestAlias, index)
	if searchAlias != "" {
		actions = m.appendSwapActions(ctx, actions, pattern, searchAlias, index)
	}

	body, err := buildAliasesBody(actions)
	if err != nil {
		return errors.Wrap(err, "building _aliases body")
	}

	status, respBody, err := perform(ctx, m.transport, m.baseURL, "POST", "/_aliases", body)
	if err != nil {
		return errors.Wrap(err, "posting _aliases")
	}
	if status >= 300 {
		return fmt.Errorf("_aliases POST returned %d: %s", status, respBody)
	}
	return nil
}

// appendSwapActions adds a remove-then-add pair for aliasName to
// actions: remove from whatever index in pattern currently holds it
// (if any), then add it to index. Posting both actions in the same
// _aliases request body makes the swap atomic (spec §8 property 6).
func (m *Manager) appendSwapActions(ctx context.Context, actions []map[string]interface{}, pattern, aliasName, index string) []map[string]interface{} {
	if holder, err := m.currentHolder(ctx, pattern, aliasName); err == nil && holder != "" && holder != index {
		actions = append(actions, map[string]interface{}{
			"remove": map[string]interface{}{"index": holder, "alias": aliasName},
		})
	}
	actions = append(actions, map[string]interface{}{
		"add": map[string]interface{}{"index": index, "alias": aliasName},
	})
	return actions
}

// currentHolder returns the concrete index in pattern currently
// holding aliasName, or "" if none does.
func (m *Manager) currentHolder(ctx context.Context, pattern, aliasName string) (string, error) {
	status, body, err := perform(ctx, m.transport, m.baseURL, "GET", "/"+pattern+"/_alias/"+aliasName, nil)
	if err != nil {
		return "", err
	}
	if status == 404 {
		return "", nil
	}
	var holder string
	gjson.ParseBytes(body).ForEach(func(key, _ gjson.Result) bool {
		if glob.Glob(pattern, key.String()) {
			holder = key.String()
			return false
		}
		return true
	})
	return holder, nil
}

// resolveLatestIndex resolves the alphabetically-last concrete index
// matching pattern via _resolve/index.
func (m *Manager) resolveLatestIndex(ctx context.Context, pattern string) (string, error) {
	status, body, err := perform(ctx, m.transport, m.baseURL, "GET", "/_resolve/index/"+pattern, nil)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("_resolve/index returned %d", status)
	}
	names := make([]string, 0)
	gjson.GetBytes(body, "indices").ForEach(func(_, v gjson.Result) bool {
		names = append(names, v.Get("name").String())
		return true
	})
	if len(names) == 0 {
		return "", fmt.Errorf("no index matched pattern %q", pattern)
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

// format substitutes the literal token "*" in pattern with suffix,
// e.g. format("products-*", "latest") -> "products-latest".
func format(pattern, suffix string) string {
	return strings.Replace(pattern, "*", suffix, 1)
}

func perform(ctx context.Context, t estransport.Interface, baseURL, method, path string, body []byte) (int, []byte, error) {
	req, err := estransport.NewHTTPRequest(ctx, baseURL, estransport.Request{
		Method:      method,
		Path:        path,
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		return 0, nil, err
	}
	return estransport.Do(t, req)
}

func buildAliasesBody(actions []map[string]interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{"actions": actions})
}

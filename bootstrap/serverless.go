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

	"github.com/pkg/errors"
)

// serverlessProbePath is the well-known endpoint whose presence/shape
// lets a client distinguish a stateful Elasticsearch deployment from
// Elasticsearch Serverless. Spec §9 Design Notes: "One HEAD against a
// known endpoint at bootstrap time, cached on the context; steps
// consult the cache."
const serverlessProbePath = "/_xpack"

// DetectServerless performs the single HEAD request the Design Notes
// call for and stores the result in bctx.IsServerless so that
// LifecyclePolicyStep (and any other step that needs to know) can
// consult the cached value instead of probing repeatedly. Serverless
// deployments don't expose "/_xpack"; a stateful cluster always does.
//
// Callers that already know whether they're targeting serverless
// (e.g. from their own deployment configuration) should set
// bctx.IsServerless directly and skip this call entirely — it exists
// for the common case where a Context is built once and reused across
// channels against a cluster whose flavor isn't otherwise known to the
// caller.
func DetectServerless(ctx context.Context, bctx *Context) error {
	status, _, err := perform(ctx, bctx.Transport, "HEAD", serverlessProbePath, nil)
	if err != nil {
		return errors.Wrap(err, "probing for serverless deployment")
	}
	bctx.IsServerless = status == 404
	return nil
}

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
	"time"

	"github.com/hashicorp/go-multierror"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/elastic/go-ingest-channel/internal/logs"
)

// cacheTTL bounds how long the Sequencer trusts its own
// already-provisioned note for a given template name + fingerprint
// pair before re-checking the server. Short enough that a mapping
// change on the server is picked up promptly; long enough that many
// Channels constructed back-to-back against the same template (the
// common per-tenant-channel pattern) skip the HEAD/GET round trip
// entirely.
const cacheTTL = 5 * time.Minute

// Sequencer runs an ordered list of idempotent bootstrap Steps under a
// Policy (spec §4.G).
type Sequencer struct {
	policy Policy
	steps  []Step
	cache  *gocache.Cache
	logger *logs.Limiter
}

// NewSequencer returns a Sequencer running DefaultSteps under policy.
// The index template step is wrapped with an in-process cache so that
// many Channels constructed against the same template in the same
// process skip the HEAD/GET short-circuit check itself on a cache hit
// — the component template step still runs unconditionally every time
// (spec §8 scenario 6: "component template PUTs still occur, they are
// unconditional").
func NewSequencer(logger *zap.SugaredLogger, policy Policy) *Sequencer {
	s := &Sequencer{
		policy: policy,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logs.RateLimited(logger, time.Minute),
	}
	s.steps = []Step{
		LifecyclePolicyStep,
		ComponentTemplatesStep,
		InferenceEndpointStep,
		DataStreamRetentionStep,
		s.cachedIndexTemplateStep,
	}
	return s
}

// WithSteps overrides the step list entirely, for tests or callers
// composing a custom ordering.
func (s *Sequencer) WithSteps(steps []Step) *Sequencer {
	s.steps = steps
	return s
}

// cachedIndexTemplateStep consults the local cache for
// (TemplateName, ChannelFingerprint) before falling through to
// IndexTemplateStep's own HEAD/GET short-circuit check.
func (s *Sequencer) cachedIndexTemplateStep(ctx context.Context, bctx *Context) error {
	key := s.cacheKey(bctx)
	if _, found := s.cache.Get(key); found {
		s.logger.Warnw("index template provisioning short-circuited by cache", "template", bctx.TemplateName)
		return nil
	}
	if err := IndexTemplateStep(ctx, bctx); err != nil {
		return err
	}
	s.cache.SetDefault(key, struct{}{})
	return nil
}

func (s *Sequencer) cacheKey(bctx *Context) string {
	return bctx.TemplateName + "|" + bctx.ChannelFingerprint
}

// Run executes the sequencer's steps against bctx.
//
//   - PolicyNone skips every step and reports success immediately.
//   - PolicySilent runs every step regardless of earlier failures,
//     aggregating failures with go-multierror, and reports false (with
//     a nil error) if any step failed — "no exception escapes" (spec
//     §4.G).
//   - PolicyFailure runs every step the same way, but returns the
//     aggregated multierror to the caller instead of swallowing it.
func (s *Sequencer) Run(ctx context.Context, bctx *Context) (bool, error) {
	if s.policy == PolicyNone {
		return true, nil
	}

	var merr *multierror.Error
	for _, step := range s.steps {
		if err := step(ctx, bctx); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	switch s.policy {
	case PolicySilent:
		if err := merr.ErrorOrNil(); err != nil {
			s.logger.Errorw("bootstrap step failed under silent policy", "template", bctx.TemplateName, "error", err)
			return false, nil
		}
		return true, nil
	default: // PolicyFailure
		err := merr.ErrorOrNil()
		return err == nil, err
	}
}

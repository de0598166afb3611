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

// Package bootstrap implements the provisioning sequencer (spec §4.G):
// an ordered list of idempotent steps that bring component templates,
// index templates, lifecycle policies, inference endpoints, and (for
// data streams) retention settings up to date before a channel opens
// for writes.
package bootstrap

import (
	"github.com/elastic/go-ingest-channel/estransport"
)

// Context is the bootstrap context shared by every step (spec §3):
// written by at most one step at a time, since steps run sequentially,
// and read freely by later steps.
type Context struct {
	Transport estransport.Interface

	TemplateName     string
	TemplateWildcard string

	// MappingsProvider and SettingsProvider return the opaque template
	// bodies the caller owns; the channel never infers schema (§1
	// Non-goals).
	MappingsProvider func() []byte
	SettingsProvider func() []byte

	// DataStreamType selects the inferred built-in components PUT into
	// the index template: "logs", "metrics", or "" for a plain index.
	DataStreamType string
	// IsDataStream controls whether the index template's body includes
	// the {"data_stream":{}} marker.
	IsDataStream bool

	AdditionalSettings map[string]interface{}

	// IsServerless, once set by the caller or by DetectServerless,
	// skips the lifecycle-policy step entirely.
	IsServerless bool

	// LifecyclePolicyName and LifecyclePolicyBody configure step 1.
	// An empty name skips the step.
	LifecyclePolicyName string
	LifecyclePolicyBody []byte

	// InferenceEndpointID and InferenceEndpointBody configure step 3.
	// An empty ID skips the step.
	InferenceEndpointID    string
	InferenceEndpointBody  []byte
	ReuseExistingInference bool

	// RetentionPeriod, if non-empty, is folded into the index
	// template's data stream lifecycle block by step 5. Step 4 itself
	// has no HTTP side effect (spec §4.G step 4).
	RetentionPeriod string

	// ChannelFingerprint is computed by step 2 and consulted by step 5
	// and by routing.IndexConfig.ChannelFingerprint.
	ChannelFingerprint string

	// SharedProperties lets steps (or callers inspecting Context after
	// Run) stash arbitrary provisioning state without widening Context
	// itself for every new step.
	SharedProperties map[string]interface{}
}

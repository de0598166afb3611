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
	"fmt"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/elastic/go-ingest-channel/estransport"
	"github.com/elastic/go-ingest-channel/internal/xhash"
)

// Step is a pure function over the shared Context: it performs
// whatever provisioning HTTP calls it needs and returns an error on
// failure. Spec §9 Design Notes: "each step is a pure function over
// the context... simple list of such functions, no inheritance
// hierarchy required."
type Step func(ctx context.Context, bctx *Context) error

func perform(ctx context.Context, t estransport.Interface, method, path string, body []byte) (int, []byte, error) {
	req, err := estransport.NewHTTPRequest(ctx, "", estransport.Request{
		Method:      method,
		Path:        path,
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		return 0, nil, errors.Wrapf(err, "building %s %s", method, path)
	}
	return estransport.Do(t, req)
}

// DefaultSteps returns the canonical bootstrap ordering (spec §4.G).
func DefaultSteps() []Step {
	return []Step{
		LifecyclePolicyStep,
		ComponentTemplatesStep,
		InferenceEndpointStep,
		DataStreamRetentionStep,
		IndexTemplateStep,
	}
}

// LifecyclePolicyStep is step 1: GETs the ILM policy; PUTs it only if
// absent. Skipped entirely on serverless or when no policy name is
// configured.
func LifecyclePolicyStep(ctx context.Context, bctx *Context) error {
	if bctx.IsServerless || bctx.LifecyclePolicyName == "" {
		return nil
	}
	path := "/_ilm/policy/" + bctx.LifecyclePolicyName
	status, _, err := perform(ctx, bctx.Transport, "GET", path, nil)
	if err != nil {
		return errors.Wrap(err, "fetching lifecycle policy")
	}
	if status == 200 {
		return nil
	}
	status, body, err := perform(ctx, bctx.Transport, "PUT", path, bctx.LifecyclePolicyBody)
	if err != nil {
		return errors.Wrap(err, "creating lifecycle policy")
	}
	if status >= 300 {
		return fmt.Errorf("lifecycle policy PUT returned %d: %s", status, body)
	}
	return nil
}

// ComponentTemplatesStep is step 2: always PUTs the settings and
// mappings component templates, embedding a freshly computed
// _meta.hash into the mappings template, and stores the resulting
// fingerprint in bctx.ChannelFingerprint.
func ComponentTemplatesStep(ctx context.Context, bctx *Context) error {
	settingsBody := bctx.SettingsProvider()
	mappingsBody := bctx.MappingsProvider()

	fingerprint := xhash.Fingerprint(settingsBody, mappingsBody)
	bctx.ChannelFingerprint = fingerprint

	mappingsWithHash, err := sjson.SetRawBytes(mappingsBody, "_meta.hash", []byte(`"`+fingerprint+`"`))
	if err != nil {
		return errors.Wrap(err, "embedding fingerprint into mappings template")
	}

	if status, body, err := perform(ctx, bctx.Transport, "PUT", "/_component_template/"+bctx.TemplateName+"-settings", settingsBody); err != nil {
		return errors.Wrap(err, "PUT settings component template")
	} else if status >= 300 {
		return fmt.Errorf("settings component template PUT returned %d: %s", status, body)
	}

	if status, body, err := perform(ctx, bctx.Transport, "PUT", "/_component_template/"+bctx.TemplateName+"-mappings", mappingsWithHash); err != nil {
		return errors.Wrap(err, "PUT mappings component template")
	} else if status >= 300 {
		return fmt.Errorf("mappings component template PUT returned %d: %s", status, body)
	}

	return nil
}

// InferenceEndpointStep is step 3: optional. GETs the inference
// endpoint; no-ops if present and reuse is requested.
func InferenceEndpointStep(ctx context.Context, bctx *Context) error {
	if bctx.InferenceEndpointID == "" {
		return nil
	}
	path := "/_inference/sparse_embedding/" + bctx.InferenceEndpointID
	status, _, err := perform(ctx, bctx.Transport, "GET", path, nil)
	if err != nil {
		return errors.Wrap(err, "fetching inference endpoint")
	}
	if status == 200 && bctx.ReuseExistingInference {
		return nil
	}
	status, body, err := perform(ctx, bctx.Transport, "PUT", path, bctx.InferenceEndpointBody)
	if err != nil {
		return errors.Wrap(err, "creating inference endpoint")
	}
	if status >= 300 {
		return fmt.Errorf("inference endpoint PUT returned %d: %s", status, body)
	}
	return nil
}

// DataStreamRetentionStep is step 4. It does nothing itself: the
// retention period is whatever the caller set in bctx.RetentionPeriod,
// and IndexTemplateStep reads it from there. It makes no HTTP call.
func DataStreamRetentionStep(_ context.Context, _ *Context) error {
	return nil
}

// IndexTemplateStep is step 5: HEADs the index template; if present,
// compares its stored _meta.hash against bctx.ChannelFingerprint and
// short-circuits on a match. Otherwise PUTs a composed template body.
func IndexTemplateStep(ctx context.Context, bctx *Context) error {
	path := "/_index_template/" + bctx.TemplateName

	status, _, err := perform(ctx, bctx.Transport, "HEAD", path, nil)
	if err != nil {
		return errors.Wrap(err, "checking for existing index template")
	}
	if status == 200 {
		_, getBody, err := perform(ctx, bctx.Transport, "GET", path, nil)
		if err != nil {
			return errors.Wrap(err, "fetching existing index template")
		}
		existingHash := gjson.GetBytes(getBody, "index_templates.0.index_template.template.mappings._meta.hash").String()
		if existingHash == bctx.ChannelFingerprint {
			return nil
		}
	}

	body, err := composeIndexTemplateBody(bctx)
	if err != nil {
		return errors.Wrap(err, "composing index template body")
	}

	status, respBody, err := perform(ctx, bctx.Transport, "PUT", path, body)
	if err != nil {
		return errors.Wrap(err, "PUT index template")
	}
	if status >= 300 {
		return fmt.Errorf("index template PUT returned %d: %s", status, respBody)
	}
	return nil
}

func composeIndexTemplateBody(bctx *Context) ([]byte, error) {
	composedOf := []string{bctx.TemplateName + "-settings", bctx.TemplateName + "-mappings"}
	switch bctx.DataStreamType {
	case "logs":
		composedOf = append(composedOf, "logs-settings", "logs-mappings")
	case "metrics":
		composedOf = append(composedOf, "metrics-settings", "metrics-mappings")
	}
	composedOf = append(composedOf, "data-streams-mappings")

	body := []byte("{}")
	var err error
	if body, err = sjson.SetBytes(body, "index_patterns", []string{bctx.TemplateWildcard}); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "composed_of", composedOf); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "priority", 201); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "template.mappings._meta.hash", bctx.ChannelFingerprint); err != nil {
		return nil, err
	}
	if bctx.IsDataStream {
		if body, err = sjson.SetRawBytes(body, "data_stream", []byte("{}")); err != nil {
			return nil, err
		}
		if bctx.RetentionPeriod != "" {
			if body, err = sjson.SetBytes(body, "template.lifecycle.data_retention", bctx.RetentionPeriod); err != nil {
				return nil, err
			}
		}
	}
	for k, v := range bctx.AdditionalSettings {
		if body, err = sjson.SetBytes(body, "template.settings."+k, v); err != nil {
			return nil, err
		}
	}
	return body, nil
}

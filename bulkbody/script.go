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

package bulkbody

import "fmt"

// PainlessScriptSource renders the inline script body for a
// ScriptedHashUpdate header. Its contract (spec §4.F): if the stored
// document's hashField equals params.hash, the update is a no-op
// (ctx.op = "none"); otherwise the document is replaced with the
// upsert body and hashField is overwritten, along with any batch-
// tracking fields named in trackingFields.
//
// hashField is a first-class parameter (not a constant) because spec
// §9 Open Questions calls out that field names used by server-side
// scripts must be treated as configuration, not baked-in literals.
func PainlessScriptSource(hashField string, trackingFields []string) string {
	src := fmt.Sprintf(
		`if (ctx._source.%[1]s == params.hash) { ctx.op = "none"; } else { ctx._source = params.doc; ctx._source.%[1]s = params.hash;`,
		hashField,
	)
	for _, f := range trackingFields {
		src += fmt.Sprintf(` ctx._source.%[1]s = params.%[1]s;`, f)
	}
	src += " }"
	return src
}

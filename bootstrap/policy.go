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

// Policy selects how the Sequencer reacts to a step failure (spec §4.G).
type Policy int

const (
	// PolicyNone skips the entire sequence and reports success.
	PolicyNone Policy = iota
	// PolicySilent runs every step; any failure makes Run report false
	// without returning an error.
	PolicySilent
	// PolicyFailure runs every step; any failure is returned as an
	// aggregated error.
	PolicyFailure
)

func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicySilent:
		return "silent"
	case PolicyFailure:
		return "failure"
	default:
		return "unknown"
	}
}

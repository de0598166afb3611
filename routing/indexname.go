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

package routing

import (
	"strings"
	"time"
)

// dateTokens lists the date-pattern tokens recognized inside a
// "{0:...}" placeholder, longest-first within any shared prefix
// (yyyy before yy) so the scan below always consumes the longest
// applicable token.
var dateTokens = []struct {
	token  string
	layout string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"ss", "05"},
}

func formatDatePattern(spec string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(spec); {
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(spec[i:], dt.token) {
				b.WriteString(t.Format(dt.layout))
				i += len(dt.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(spec[i])
			i++
		}
	}
	return b.String()
}

// FormatIndexName expands an index template of the form
// "orders-{0:yyyy.MM.dd}" against t, returning the expanded name and
// whether the template was constant (contained no "{0:...}"
// placeholder at all). A constant template is embedded in the bulk
// request URL and omitted from every per-document header, per spec
// §4.F's "per-request size optimization".
func FormatIndexName(template string, t time.Time) (name string, constant bool) {
	start := strings.Index(template, "{0:")
	if start < 0 {
		return template, true
	}
	end := strings.Index(template[start:], "}")
	if end < 0 {
		return template, true
	}
	end += start
	spec := template[start+3 : end]
	return template[:start] + formatDatePattern(spec, t) + template[end+1:], false
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"encoding/json"

	"goflowwriter/internal/domain"
)

// scriptMetadata is the metadata.json sidecar emitted alongside the two text
// script dialects. It records how project names map to the identifiers used in
// the emitted script, plus any runtime helper functions the script depends on.
// Empty maps and the function list are omitted from the JSON entirely.
type scriptMetadata struct {
	Characters map[string]string `json:"characters,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
	Flows      map[string]string `json:"flows,omitempty"`
	Functions  []string          `json:"functions,omitempty"`
	Lines      map[string]string `json:"lines,omitempty"`
}

func buildScriptMetadata(sheets []domain.Sheet, vars []Variable, identFor func(Variable) string) *scriptMetadata {
	md := &scriptMetadata{}
	for _, s := range sheets {
		name := s.Name
		if name == "" {
			name = s.Shortcut
		}
		if md.Characters == nil {
			md.Characters = make(map[string]string)
		}
		md.Characters[s.ID] = name
	}
	for _, v := range vars {
		if md.Variables == nil {
			md.Variables = make(map[string]string)
		}
		md.Variables[v.Identifier] = identFor(v)
	}
	return md
}

func (m *scriptMetadata) addFlow(name, ident string) {
	if m.Flows == nil {
		m.Flows = make(map[string]string)
	}
	m.Flows[name] = ident
}

func (m *scriptMetadata) addLine(tag, text string) {
	if m.Lines == nil {
		m.Lines = make(map[string]string)
	}
	m.Lines[tag] = text
}

func (m *scriptMetadata) file(pretty bool) *File {
	var b []byte
	if pretty {
		b, _ = json.MarshalIndent(m, "", "  ")
	} else {
		b, _ = json.Marshal(m)
	}
	return &File{Name: "metadata.json", Content: b}
}

// marshalJSON honors the pretty-print export option for the JSON targets.
func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

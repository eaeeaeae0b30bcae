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
	"fmt"
	"strings"

	"goflowwriter/internal/domain"
)

// tableCSVSerializer flattens each flow into one CSV table: one row per node
// with a sequential generated row name, a pipe-separated next-node-ids column
// and the node's property map embedded as JSON text in a cell. Variables get
// their own table. All fields are quoted per RFC 4180 when needed.
type tableCSVSerializer struct{}

func (s *tableCSVSerializer) ContentType() string   { return "text/csv" }
func (s *tableCSVSerializer) FileExtension() string { return ".csv" }
func (s *tableCSVSerializer) FormatLabel() string   { return "CSV tables" }

func (s *tableCSVSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true, SectionSheets: true}
}

func (s *tableCSVSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	res := &Result{}

	for _, f := range flowsInScope(p, opt) {
		res.Files = append(res.Files, File{
			Name:    flowTitle(f) + s.FileExtension(),
			Content: []byte(flowTable(f)),
		})
	}

	if vars := CollectVariables(sheetsInScope(p, opt)); len(vars) > 0 {
		res.Files = append(res.Files, File{
			Name:    "variables" + s.FileExtension(),
			Content: []byte(variableTable(vars)),
		})
	}

	return res, nil
}

func flowTable(f *domain.Flow) string {
	// Outgoing targets per node, in connection declaration order.
	next := make(map[string][]string)
	for _, c := range f.Connections {
		next[c.SourceNodeID] = append(next[c.SourceNodeID], c.TargetNodeID)
	}

	var b strings.Builder
	writeCSVRow(&b, "row", "id", "type", "text", "next", "properties")
	for i, n := range f.Nodes {
		text := ""
		if n.Kind() == domain.NodeDialogue {
			text = StripHTML(n.DialoguePayload().Text)
		}
		props := ""
		if len(n.Data) > 0 {
			if raw, err := json.Marshal(n.Data); err == nil {
				props = string(raw)
			}
		}
		writeCSVRow(&b,
			fmt.Sprintf("row_%03d", i+1),
			n.ID,
			string(n.Kind()),
			text,
			strings.Join(next[n.ID], "|"),
			props,
		)
	}
	return b.String()
}

func variableTable(vars []Variable) string {
	var b strings.Builder
	writeCSVRow(&b, "row", "identifier", "type", "default")
	for i, v := range vars {
		writeCSVRow(&b,
			fmt.Sprintf("row_%03d", i+1),
			v.Identifier,
			variableType(v.Block),
			fmt.Sprintf("%v", v.Default),
		)
	}
	return b.String()
}

func writeCSVRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(CSVEscape(f))
	}
	b.WriteString("\r\n")
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"goflowwriter/internal/domain"
)

//go:embed story.schema.json
var manifestSchema []byte

// ValidateManifest checks raw manifest bytes against the embedded JSON schema.
// The returned error lists every schema violation, one per line.
func ValidateManifest(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(manifestSchema)
	docLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var b strings.Builder
	b.WriteString("manifest does not conform to schema:")
	for _, e := range result.Errors() {
		b.WriteString("\n  ")
		b.WriteString(e.String())
	}
	return fmt.Errorf("%s", b.String())
}

// ValidateProject marshals the project and validates it against the manifest
// schema, then applies structural checks the schema cannot express.
func ValidateProject(p *domain.Project) error {
	if p == nil {
		return fmt.Errorf("nil project")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}
	if err := ValidateManifest(data); err != nil {
		return err
	}
	return validateReferences(p)
}

// validateReferences checks identifier uniqueness and that connections point at
// nodes that exist in their flow.
func validateReferences(p *domain.Project) error {
	var problems []string
	sheetIDs := make(map[string]bool, len(p.Sheets))
	for _, s := range p.Sheets {
		if sheetIDs[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate sheet id %q", s.ID))
		}
		sheetIDs[s.ID] = true
		blockIDs := make(map[string]bool, len(s.Blocks))
		for _, bl := range s.Blocks {
			if blockIDs[bl.ID] {
				problems = append(problems, fmt.Sprintf("sheet %q: duplicate block id %q", s.ID, bl.ID))
			}
			blockIDs[bl.ID] = true
		}
	}
	flowIDs := make(map[string]bool, len(p.Flows))
	for i := range p.Flows {
		f := &p.Flows[i]
		if flowIDs[f.ID] {
			problems = append(problems, fmt.Sprintf("duplicate flow id %q", f.ID))
		}
		flowIDs[f.ID] = true
		nodeIDs := make(map[string]bool, len(f.Nodes))
		for _, n := range f.Nodes {
			if nodeIDs[n.ID] {
				problems = append(problems, fmt.Sprintf("flow %q: duplicate node id %q", f.ID, n.ID))
			}
			nodeIDs[n.ID] = true
		}
		for _, c := range f.Connections {
			if !nodeIDs[c.SourceNodeID] {
				problems = append(problems, fmt.Sprintf("flow %q: connection source %q does not exist", f.ID, c.SourceNodeID))
			}
			if !nodeIDs[c.TargetNodeID] {
				problems = append(problems, fmt.Sprintf("flow %q: connection target %q does not exist", f.ID, c.TargetNodeID))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("project validation failed:\n  %s", strings.Join(problems, "\n  "))
}

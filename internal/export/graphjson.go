/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import "goflowwriter/internal/domain"

// graphJSONSerializer renders the generic node-graph shape: sheets, flows,
// nodes, edges and their raw property maps pass through nearly 1:1. Every
// entity gets a deterministic GUID hashed from its stable key, so exporting
// the same project twice yields byte-identical identifiers.
type graphJSONSerializer struct{}

func (s *graphJSONSerializer) ContentType() string   { return "application/json" }
func (s *graphJSONSerializer) FileExtension() string { return ".json" }
func (s *graphJSONSerializer) FormatLabel() string   { return "Graph JSON" }

func (s *graphJSONSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{
		SectionFlows:  true,
		SectionSheets: true,
		SectionScenes: true,
	}
}

type graphDoc struct {
	Project graphProject `json:"project"`
	Sheets  []graphSheet `json:"sheets,omitempty"`
	Flows   []graphFlow  `json:"flows,omitempty"`
	Scenes  []graphScene `json:"scenes,omitempty"`
}

type graphProject struct {
	GUID     string          `json:"guid"`
	Name     string          `json:"name"`
	Metadata domain.Metadata `json:"metadata,omitempty"`
}

type graphSheet struct {
	GUID     string       `json:"guid"`
	ID       string       `json:"id"`
	Shortcut string       `json:"shortcut"`
	Name     string       `json:"name"`
	Blocks   []graphBlock `json:"blocks"`
}

type graphBlock struct {
	GUID       string `json:"guid"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Label      string `json:"label"`
	Value      any    `json:"value,omitempty"`
	IsConstant bool   `json:"isConstant,omitempty"`
	Variable   string `json:"variable,omitempty"`
}

type graphFlow struct {
	GUID     string      `json:"guid"`
	ID       string      `json:"id"`
	Shortcut string      `json:"shortcut"`
	Name     string      `json:"name"`
	Nodes    []graphNode `json:"nodes"`
	Edges    []graphEdge `json:"edges"`
}

type graphNode struct {
	GUID       string         `json:"guid"`
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

type graphEdge struct {
	GUID      string `json:"guid"`
	Source    string `json:"source"`
	SourcePin string `json:"sourcePin"`
	Target    string `json:"target"`
	TargetPin string `json:"targetPin"`
}

type graphScene struct {
	GUID        string `json:"guid"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	SlugLine    string `json:"slugLine,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *graphJSONSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	doc := graphDoc{
		Project: graphProject{
			GUID:     GenerateGUID("project:" + p.Name),
			Name:     p.Name,
			Metadata: p.Metadata,
		},
	}

	for _, sh := range sheetsInScope(p, opt) {
		gs := graphSheet{
			GUID:     GenerateGUID("sheet:" + sh.ID),
			ID:       sh.ID,
			Shortcut: sh.Shortcut,
			Name:     sh.Name,
		}
		for _, b := range sh.Blocks {
			gb := graphBlock{
				GUID:       GenerateGUID("block:" + sh.ID + "/" + b.ID),
				ID:         b.ID,
				Type:       string(b.Type),
				Label:      b.Config.Label,
				Value:      b.Value,
				IsConstant: b.IsConstant,
			}
			if b.IsVariable() {
				gb.Variable = b.Identifier(sh)
			}
			gs.Blocks = append(gs.Blocks, gb)
		}
		doc.Sheets = append(doc.Sheets, gs)
	}

	for _, f := range flowsInScope(p, opt) {
		gf := graphFlow{
			GUID:     GenerateGUID("flow:" + f.ID),
			ID:       f.ID,
			Shortcut: f.Shortcut,
			Name:     f.Name,
		}
		for _, n := range f.Nodes {
			gf.Nodes = append(gf.Nodes, graphNode{
				GUID:       GenerateGUID("node:" + f.ID + "/" + n.ID),
				ID:         n.ID,
				Type:       string(n.Kind()),
				Properties: n.Data,
			})
		}
		for _, c := range f.Connections {
			gf.Edges = append(gf.Edges, graphEdge{
				GUID:      GenerateGUID("edge:" + f.ID + "/" + c.SourceNodeID + "/" + c.SourcePin + "/" + c.TargetNodeID + "/" + c.TargetPin),
				Source:    c.SourceNodeID,
				SourcePin: c.SourcePin,
				Target:    c.TargetNodeID,
				TargetPin: c.TargetPin,
			})
		}
		doc.Flows = append(doc.Flows, gf)
	}

	for _, sc := range scenesInScope(p, opt) {
		doc.Scenes = append(doc.Scenes, graphScene{
			GUID:        GenerateGUID("scene:" + sc.ID),
			ID:          sc.ID,
			Name:        sc.Name,
			Location:    sc.Location,
			SlugLine:    sc.SlugLine,
			Description: sc.Description,
		})
	}

	b, err := marshalJSON(doc, opt.PrettyPrint)
	if err != nil {
		return nil, err
	}
	return &Result{Files: []File{{
		Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
		Content: b,
	}}}, nil
}

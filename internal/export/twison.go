/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strconv"

	"goflowwriter/internal/domain"
)

// twisonSerializer renders the flowchart JSON shape: one passage per node
// with pid, name, text, links and a grid position, plus a startnode pointer.
// The graph structure passes through nearly 1:1; pids are assigned in node
// declaration order so re-exports are byte identical.
type twisonSerializer struct{}

func (s *twisonSerializer) ContentType() string   { return "application/json" }
func (s *twisonSerializer) FileExtension() string { return ".json" }
func (s *twisonSerializer) FormatLabel() string   { return "Twison story JSON" }

func (s *twisonSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true}
}

type twisonStory struct {
	Name      string          `json:"name"`
	IFID      string          `json:"ifid"`
	StartNode string          `json:"startnode,omitempty"`
	Passages  []twisonPassage `json:"passages"`
}

type twisonPassage struct {
	PID      string         `json:"pid"`
	Name     string         `json:"name"`
	Tags     []string       `json:"tags,omitempty"`
	Text     string         `json:"text"`
	Links    []twisonLink   `json:"links,omitempty"`
	Position twisonPosition `json:"position"`
}

type twisonLink struct {
	Name string `json:"name"`
	Link string `json:"link"`
	PID  string `json:"pid"`
}

type twisonPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (s *twisonSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	story := twisonStory{
		Name: p.Name,
		IFID: GenerateGUID("project:" + p.Name),
	}

	flows := flowsInScope(p, opt)

	// First pass assigns pids and names so links can point forward.
	type nodeKey struct{ flowID, nodeID string }
	pids := make(map[nodeKey]string)
	names := make(map[nodeKey]string)
	next := 1
	for _, f := range flows {
		for _, n := range f.Nodes {
			k := nodeKey{f.ID, n.ID}
			pids[k] = strconv.Itoa(next)
			names[k] = flowTitle(f) + "/" + n.ID
			next++
		}
	}

	for _, f := range flows {
		for i, n := range f.Nodes {
			k := nodeKey{f.ID, n.ID}
			passage := twisonPassage{
				PID:  pids[k],
				Name: names[k],
				Tags: []string{string(n.Kind())},
				Text: twisonText(n),
				Position: twisonPosition{
					X: 100 + (i%8)*200,
					Y: 100 + (i/8)*150,
				},
			}
			for _, c := range f.Connections {
				if c.SourceNodeID != n.ID {
					continue
				}
				tk := nodeKey{f.ID, c.TargetNodeID}
				pid, ok := pids[tk]
				if !ok {
					// Dangling connection target, dropped like the
					// linearizer drops it.
					continue
				}
				passage.Links = append(passage.Links, twisonLink{
					Name: c.SourcePin,
					Link: names[tk],
					PID:  pid,
				})
			}
			story.Passages = append(story.Passages, passage)
			if n.Kind() == domain.NodeEntry && story.StartNode == "" {
				story.StartNode = pids[k]
			}
		}
	}

	b, err := marshalJSON(story, opt.PrettyPrint)
	if err != nil {
		return nil, err
	}
	return &Result{Files: []File{{
		Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
		Content: b,
	}}}, nil
}

// twisonText renders a passage body. Dialogue passes its text through;
// structural nodes carry their payload highlights so the passage is never
// empty.
func twisonText(n domain.Node) string {
	switch n.Kind() {
	case domain.NodeDialogue:
		return StripHTML(n.DialoguePayload().Text)
	case domain.NodeHub:
		return n.HubLabel()
	case domain.NodeScene:
		sp := n.ScenePayload()
		return sceneMarker(&sp)
	default:
		return string(n.Kind())
	}
}

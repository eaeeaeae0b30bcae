/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"

	"goflowwriter/internal/domain"
)

// graphSVGSerializer draws one SVG diagram per flow: typed node boxes laid out
// in layers by graph depth from the entry node, with straight connection
// lines. Layout is deterministic, driven only by node and connection order.
type graphSVGSerializer struct{}

func (s *graphSVGSerializer) ContentType() string   { return "image/svg+xml" }
func (s *graphSVGSerializer) FileExtension() string { return ".svg" }
func (s *graphSVGSerializer) FormatLabel() string   { return "Flow diagram SVG" }

func (s *graphSVGSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true}
}

const (
	svgNodeW   = 160.0
	svgNodeH   = 48.0
	svgLayerDX = 220.0
	svgRowDY   = 90.0
	svgPad     = 40.0
)

var svgNodeFill = map[domain.NodeType]string{
	domain.NodeEntry:       "#d0e8d0",
	domain.NodeExit:        "#e8d0d0",
	domain.NodeDialogue:    "#ffffff",
	domain.NodeCondition:   "#fdf3d0",
	domain.NodeInstruction: "#d0defd",
	domain.NodeHub:         "#e6d0fd",
	domain.NodeJump:        "#e6d0fd",
	domain.NodeScene:       "#d0f0f0",
	domain.NodeSubflow:     "#f0e0d0",
}

func (s *graphSVGSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	res := &Result{}
	for _, f := range flowsInScope(p, opt) {
		content, err := renderFlowSVG(f)
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, File{
			Name:    flowTitle(f) + s.FileExtension(),
			Content: content,
		})
	}
	return res, nil
}

func renderFlowSVG(f *domain.Flow) ([]byte, error) {
	depths := flowDepths(f)

	// Position nodes: one column per depth, rows in node declaration order.
	type pos struct{ x, y float64 }
	positions := make(map[string]pos, len(f.Nodes))
	rows := make(map[int]int)
	maxDepth, maxRow := 0, 0
	for _, n := range f.Nodes {
		d := depths[n.ID]
		r := rows[d]
		rows[d] = r + 1
		positions[n.ID] = pos{
			x: svgPad + float64(d)*svgLayerDX,
			y: svgPad + float64(r)*svgRowDY,
		}
		if d > maxDepth {
			maxDepth = d
		}
		if r > maxRow {
			maxRow = r
		}
	}
	width := svgPad*2 + float64(maxDepth)*svgLayerDX + svgNodeW
	height := svgPad*2 + float64(maxRow)*svgRowDY + svgNodeH

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%g\" height=\"%g\" viewBox=\"0 0 %g %g\">\n", width, height, width, height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", width, height)

	for _, c := range f.Connections {
		from, ok := positions[c.SourceNodeID]
		if !ok {
			continue
		}
		to, ok := positions[c.TargetNodeID]
		if !ok {
			continue
		}
		wf("  <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\" stroke=\"#888888\" stroke-width=\"1\"/>\n",
			from.x+svgNodeW, from.y+svgNodeH/2, to.x, to.y+svgNodeH/2)
	}

	for _, n := range f.Nodes {
		p := positions[n.ID]
		fill, ok := svgNodeFill[n.Kind()]
		if !ok {
			fill = "#eeeeee"
		}
		wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" rx=\"6\" ry=\"6\" fill=\"%s\" stroke=\"#000000\" stroke-width=\"1\"/>\n",
			p.x, p.y, svgNodeW, svgNodeH, fill)
		wf("  <text x=\"%g\" y=\"%g\" font-family=\"sans-serif\" font-size=\"10\">%s</text>\n",
			p.x+8, p.y+18, svgEscape(string(n.Kind())))
		wf("  <text x=\"%g\" y=\"%g\" font-family=\"sans-serif\" font-size=\"11\">%s</text>\n",
			p.x+8, p.y+34, svgEscape(svgNodeLabel(n)))
	}

	wf("</svg>\n")
	if werr != nil {
		return nil, werr
	}
	return buf.Bytes(), nil
}

// flowDepths computes each node's layer as its shortest hop distance from the
// entry node. Unreachable nodes stay in layer 0.
func flowDepths(f *domain.Flow) map[string]int {
	depths := make(map[string]int, len(f.Nodes))
	entry := f.EntryNode()
	if entry == nil {
		return depths
	}
	out := make(map[string][]string)
	for _, c := range f.Connections {
		out[c.SourceNodeID] = append(out[c.SourceNodeID], c.TargetNodeID)
	}
	queue := []string{entry.ID}
	depths[entry.ID] = 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range out[id] {
			if _, seen := depths[next]; seen {
				continue
			}
			depths[next] = depths[id] + 1
			queue = append(queue, next)
		}
	}
	return depths
}

func svgNodeLabel(n domain.Node) string {
	switch n.Kind() {
	case domain.NodeDialogue:
		text := StripHTML(n.DialoguePayload().Text)
		if r := []rune(text); len(r) > 24 {
			text = string(r[:24]) + "..."
		}
		return text
	case domain.NodeHub:
		return n.HubLabel()
	case domain.NodeSubflow:
		return n.SubflowPayload().FlowShortcut
	default:
		return n.ID
	}
}

func svgEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FlowPreviewSVG renders the diagram for a single flow, for the preview
// cache. Validation is skipped; a preview of a half-edited flow is still
// useful.
func FlowPreviewSVG(p *domain.Project, flowID string) ([]byte, error) {
	opt := DefaultOptions("svg")
	opt.FlowIDs = []string{flowID}
	res, err := Run(p, opt)
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 {
		return nil, fmt.Errorf("no flow with id %q", flowID)
	}
	return res.Files[0].Content, nil
}

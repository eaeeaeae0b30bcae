/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strings"
	"testing"
)

func TestGraphSVGPerFlow(t *testing.T) {
	p := helloProject()
	second := helloFlow()
	second.ID = "flow-duel"
	second.Shortcut = "duel"
	second.Name = "Duel"
	p.Flows = append(p.Flows, second)

	res, err := Run(p, DefaultOptions("svg"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %d, want one diagram per flow", len(res.Files))
	}
	if res.Files[0].Name != "intro.svg" || res.Files[1].Name != "duel.svg" {
		t.Fatalf("file names = %q, %q", res.Files[0].Name, res.Files[1].Name)
	}

	svg := string(res.Files[0].Content)
	if !strings.HasPrefix(svg, "<?xml") || !strings.Contains(svg, "<svg xmlns=") {
		t.Fatalf("not an SVG document:\n%s", svg[:60])
	}
	if strings.Count(svg, "<rect") != 4 {
		t.Fatalf("rect count = %d, want background plus 3 nodes", strings.Count(svg, "<rect"))
	}
	if strings.Count(svg, "<line") != 2 {
		t.Fatalf("line count = %d, want 2 connections", strings.Count(svg, "<line"))
	}
	if !strings.Contains(svg, ">Hello world!</text>") {
		t.Fatalf("dialogue label missing:\n%s", svg)
	}
}

func TestGraphSVGEscapesLabels(t *testing.T) {
	p := helloProject()
	p.Flows[0].Nodes[1].Data["text"] = `R & B "duet"`
	res, err := Run(p, DefaultOptions("svg"))
	if err != nil {
		t.Fatal(err)
	}
	svg := string(res.Primary())
	if !strings.Contains(svg, "R &amp; B &quot;duet&quot;") {
		t.Fatalf("label not escaped:\n%s", svg)
	}
}

func TestGraphSVGTruncatesLongLabels(t *testing.T) {
	p := helloProject()
	p.Flows[0].Nodes[1].Data["text"] = strings.Repeat("a", 40)
	res, err := Run(p, DefaultOptions("svg"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res.Primary()), strings.Repeat("a", 24)+"...") {
		t.Fatal("long dialogue label must be truncated")
	}
}

func TestFlowPreviewSVGRendersOneFlow(t *testing.T) {
	p := helloProject()
	second := helloFlow()
	second.ID = "flow-duel"
	second.Shortcut = "duel"
	second.Name = "Duel"
	p.Flows = append(p.Flows, second)

	blob, err := FlowPreviewSVG(p, "flow-duel")
	if err != nil {
		t.Fatal(err)
	}
	out := string(blob)
	if !strings.HasPrefix(out, "<?xml") || !strings.Contains(out, "<svg ") {
		t.Fatalf("expected svg document, got:\n%s", out)
	}
	if !strings.Contains(out, "Hello") {
		t.Fatalf("expected dialogue label in diagram:\n%s", out)
	}

	if _, err := FlowPreviewSVG(p, "flow-missing"); err == nil {
		t.Fatal("expected error for unknown flow id")
	}
}

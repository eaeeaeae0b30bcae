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
	"testing"

	"goflowwriter/internal/domain"
)

func TestGraphJSONPassThrough(t *testing.T) {
	p := helloProject()
	p.Scenes = []domain.Scene{{ID: "sc1", Name: "Throne Room", SlugLine: "INT. THRONE ROOM - DAY"}}

	res, err := Run(p, DefaultOptions("graphjson"))
	if err != nil {
		t.Fatal(err)
	}
	var doc graphDoc
	if err := json.Unmarshal(res.Primary(), &doc); err != nil {
		t.Fatal(err)
	}

	if doc.Project.GUID != GenerateGUID("project:Westwood") {
		t.Fatalf("project guid = %q", doc.Project.GUID)
	}
	if len(doc.Sheets) != 1 || len(doc.Sheets[0].Blocks) != 3 {
		t.Fatalf("sheets = %+v", doc.Sheets)
	}
	health := doc.Sheets[0].Blocks[0]
	if health.Variable != "mc.jaime.health" {
		t.Fatalf("variable binding = %+v", health)
	}
	divider := doc.Sheets[0].Blocks[2]
	if divider.Variable != "" {
		t.Fatalf("divider must not bind a variable: %+v", divider)
	}

	if len(doc.Flows) != 1 {
		t.Fatalf("flows = %d", len(doc.Flows))
	}
	f := doc.Flows[0]
	if len(f.Nodes) != 3 || len(f.Edges) != 2 {
		t.Fatalf("graph shape = %d nodes / %d edges", len(f.Nodes), len(f.Edges))
	}
	if f.Nodes[1].Properties["text"] != "Hello world!" {
		t.Fatalf("node properties dropped: %+v", f.Nodes[1])
	}
	if f.Edges[0].Source != "e" || f.Edges[0].Target != "d1" || f.Edges[0].SourcePin != "output" {
		t.Fatalf("edge = %+v", f.Edges[0])
	}

	if len(doc.Scenes) != 1 || doc.Scenes[0].SlugLine != "INT. THRONE ROOM - DAY" {
		t.Fatalf("scenes = %+v", doc.Scenes)
	}
}

func TestGraphJSONSectionToggles(t *testing.T) {
	opt := DefaultOptions("graphjson")
	opt.IncludeSheets = false
	res, err := Run(helloProject(), opt)
	if err != nil {
		t.Fatal(err)
	}
	var doc graphDoc
	if err := json.Unmarshal(res.Primary(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Sheets != nil {
		t.Fatalf("sheets excluded, got %+v", doc.Sheets)
	}
	if len(doc.Flows) != 1 {
		t.Fatalf("flows must stay included")
	}
}

func TestGraphJSONPrettyPrint(t *testing.T) {
	opt := DefaultOptions("graphjson")
	opt.PrettyPrint = true
	res, err := Run(helloProject(), opt)
	if err != nil {
		t.Fatal(err)
	}
	if res.Primary()[1] != '\n' {
		t.Fatalf("expected indented output, got %q", res.Primary()[:20])
	}
}

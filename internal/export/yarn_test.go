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
	"testing"

	"goflowwriter/internal/domain"
)

func yarnOut(t *testing.T, p *domain.Project, opt Options) (string, *Result) {
	t.Helper()
	opt.Format = "yarn"
	res, err := Run(p, opt)
	if err != nil {
		t.Fatal(err)
	}
	return string(res.Primary()), res
}

func TestYarnHelloWorld(t *testing.T) {
	out, res := yarnOut(t, helloProject(), DefaultOptions("yarn"))

	if len(res.Files) != 1 || res.Files[0].Name != "westwood.yarn" {
		t.Fatalf("files = %v, want single westwood.yarn", res.Files)
	}
	if !strings.Contains(out, "title: intro\ntags:\n---\n") {
		t.Fatalf("missing node header:\n%s", out)
	}
	if !strings.Contains(out, "Jaime: Hello world! #line:") {
		t.Fatalf("missing tagged dialogue line:\n%s", out)
	}
	if !strings.Contains(out, "<<stop>>\n===\n") {
		t.Fatalf("missing stop before node close:\n%s", out)
	}
}

func TestYarnDeclarations(t *testing.T) {
	out, _ := yarnOut(t, helloProject(), DefaultOptions("yarn"))

	if !strings.Contains(out, "title: declarations\n") {
		t.Fatalf("missing declarations node:\n%s", out)
	}
	if !strings.Contains(out, "<<declare $mc_jaime_health = 100>>") {
		t.Fatalf("missing number declaration:\n%s", out)
	}
	// Boolean variables always declare false regardless of the stored value.
	if !strings.Contains(out, "<<declare $mc_jaime_alive = false>>") {
		t.Fatalf("missing boolean declaration:\n%s", out)
	}
	if strings.Contains(out, "stats") {
		t.Fatalf("divider block leaked into declarations:\n%s", out)
	}
	if strings.Index(out, "title: declarations") > strings.Index(out, "title: intro") {
		t.Fatalf("declarations must precede the flow nodes:\n%s", out)
	}
}

func TestYarnNoVariablesNoDeclare(t *testing.T) {
	p := helloProject()
	for i := range p.Sheets[0].Blocks {
		p.Sheets[0].Blocks[i].IsConstant = true
	}
	out, _ := yarnOut(t, p, DefaultOptions("yarn"))
	if strings.Contains(out, "<<declare") {
		t.Fatalf("constant-only sheet still produced declarations:\n%s", out)
	}
}

func TestYarnEscaping(t *testing.T) {
	p := helloProject()
	p.Flows[0].Nodes[1].Data["text"] = "Look [here] #1 {x}"
	out, _ := yarnOut(t, p, DefaultOptions("yarn"))
	if !strings.Contains(out, `Look \[here\] \#1 \{x\}`) {
		t.Fatalf("reserved characters not escaped:\n%s", out)
	}
}

func TestYarnChoices(t *testing.T) {
	p := helloProject()
	p.Flows[0].Nodes[1].Data = map[string]any{
		"text":             "Ready?",
		"speaker_sheet_id": "sheet-jaime",
		"responses": []any{
			map[string]any{
				"id":        "r1",
				"text":      "Fight",
				"condition": aliveCondition(),
				"assignments": []any{
					map[string]any{"sheet": "mc.jaime", "variable": "Health", "operator": "add", "value": 10},
				},
			},
			map[string]any{"id": "r2", "text": "Flee"},
		},
	}
	p.Flows[0].Connections = []domain.Connection{
		econn("e", "output", "d1"),
		econn("d1", "response_r1", "x"),
	}

	out, _ := yarnOut(t, p, DefaultOptions("yarn"))
	if !strings.Contains(out, "-> Fight <<if $mc_jaime_alive>> #line:") {
		t.Fatalf("missing guarded choice:\n%s", out)
	}
	if !strings.Contains(out, "    <<set $mc_jaime_health to $mc_jaime_health + 10>>") {
		t.Fatalf("missing indented choice assignment:\n%s", out)
	}
	if !strings.Contains(out, "    <<stop>>") {
		t.Fatalf("choice body not indented under its option:\n%s", out)
	}
	if !strings.Contains(out, "-> Flee #line:") {
		t.Fatalf("missing unguarded choice:\n%s", out)
	}
}

func conditionFlow(cases ...map[string]any) domain.Flow {
	f := domain.Flow{
		ID:       "flow-duel",
		Shortcut: "duel",
		Name:     "Duel",
		Nodes: []domain.Node{
			enode("e", "entry", nil),
			enode("c1", "condition", map[string]any{
				"condition": aliveCondition(),
				"cases":     []any{},
			}),
			enode("dt", "dialogue", map[string]any{"text": "Win"}),
			enode("df", "dialogue", map[string]any{"text": "Lose"}),
		},
		Connections: []domain.Connection{econn("e", "output", "c1")},
	}
	cs := make([]any, 0, len(cases))
	targets := []string{"dt", "df"}
	for i, c := range cases {
		cs = append(cs, c)
		f.Connections = append(f.Connections, econn("c1", c["id"].(string), targets[i]))
	}
	f.Nodes[1].Data["cases"] = cs
	return f
}

func TestYarnConditionElse(t *testing.T) {
	p := helloProject()
	p.Flows = []domain.Flow{conditionFlow(
		map[string]any{"id": "ct", "value": "true"},
		map[string]any{"id": "cf", "value": "false"},
	)}

	out, _ := yarnOut(t, p, DefaultOptions("yarn"))
	if !strings.Contains(out, "<<if $mc_jaime_alive>>\nWin #line:") {
		t.Fatalf("missing if branch:\n%s", out)
	}
	if !strings.Contains(out, "<<else>>\nLose #line:") {
		t.Fatalf("final catch-all must render as else:\n%s", out)
	}
	if !strings.Contains(out, "<<endif>>") {
		t.Fatalf("missing endif:\n%s", out)
	}
}

func TestYarnConditionCatchAllNotLast(t *testing.T) {
	p := helloProject()
	p.Flows = []domain.Flow{conditionFlow(
		map[string]any{"id": "cf", "value": "false"},
		map[string]any{"id": "ct", "value": "true"},
	)}

	out, _ := yarnOut(t, p, DefaultOptions("yarn"))
	if !strings.Contains(out, "<<if !($mc_jaime_alive)>>") {
		t.Fatalf("first catch-all must render a negated if:\n%s", out)
	}
	// The grammar only allows one else, so the trailing true case stays an
	// elseif.
	if !strings.Contains(out, "<<elseif $mc_jaime_alive>>") {
		t.Fatalf("trailing true case must stay elseif:\n%s", out)
	}
	if strings.Contains(out, "<<else>>") {
		t.Fatalf("unexpected else:\n%s", out)
	}
}

func TestYarnMultiFile(t *testing.T) {
	p := helloProject()
	p.Flows = nil
	for i := 1; i <= 6; i++ {
		f := helloFlow()
		f.ID = fmt.Sprintf("flow-%d", i)
		f.Shortcut = fmt.Sprintf("part%d", i)
		f.Name = fmt.Sprintf("Part %d", i)
		p.Flows = append(p.Flows, f)
	}

	_, res := yarnOut(t, p, DefaultOptions("yarn"))
	if len(res.Files) != 7 {
		t.Fatalf("file count = %d, want declarations plus six flows", len(res.Files))
	}
	if res.Files[0].Name != "declarations.yarn" {
		t.Fatalf("first file = %q, want declarations.yarn", res.Files[0].Name)
	}
	for _, f := range res.Files[1:] {
		if strings.Contains(string(f.Content), "<<declare") {
			t.Fatalf("%s: declarations must appear exactly once, in their own file", f.Name)
		}
	}
	if res.Files[1].Name != "part_1.yarn" {
		t.Fatalf("flow file = %q, want part_1.yarn", res.Files[1].Name)
	}
}

func TestYarnSidecarMetadata(t *testing.T) {
	_, res := yarnOut(t, helloProject(), DefaultOptions("yarn"))
	if res.Sidecar == nil || res.Sidecar.Name != "metadata.json" {
		t.Fatalf("missing metadata sidecar: %+v", res.Sidecar)
	}

	var md struct {
		Characters map[string]string `json:"characters"`
		Variables  map[string]string `json:"variables"`
		Flows      map[string]string `json:"flows"`
		Lines      map[string]string `json:"lines"`
	}
	if err := json.Unmarshal(res.Sidecar.Content, &md); err != nil {
		t.Fatal(err)
	}
	if md.Characters["sheet-jaime"] != "Jaime" {
		t.Fatalf("characters = %v", md.Characters)
	}
	if md.Variables["mc.jaime.health"] != "$mc_jaime_health" {
		t.Fatalf("variables = %v", md.Variables)
	}
	if md.Flows["Intro"] != "intro" {
		t.Fatalf("flows = %v", md.Flows)
	}
	found := false
	for _, text := range md.Lines {
		if text == "Hello world!" {
			found = true
		}
	}
	if !found {
		t.Fatalf("line table missing dialogue text: %v", md.Lines)
	}
}

func TestYarnSidecarWithoutLocalization(t *testing.T) {
	opt := DefaultOptions("yarn")
	opt.IncludeLocalization = false
	_, res := yarnOut(t, helloProject(), opt)
	if res.Sidecar == nil {
		t.Fatal("sidecar must exist even without localization")
	}
	if strings.Contains(string(res.Sidecar.Content), `"lines"`) {
		t.Fatalf("line table must be omitted: %s", res.Sidecar.Content)
	}
}

func TestYarnHubSectionsQualifiedPerFlow(t *testing.T) {
	p := helloProject()
	p.Flows = []domain.Flow{
		hubbedFlow("flow-day", "day", "Day"),
		hubbedFlow("flow-night", "night", "Night"),
	}
	out, _ := yarnOut(t, p, DefaultOptions("yarn"))

	for _, want := range []string{
		"title: day_market\n",
		"title: night_market\n",
		"<<jump day_market>>",
		"<<jump night_market>>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}
	// Two flows share the hub label; an unqualified node would collide.
	if strings.Contains(out, "title: market\n") {
		t.Fatalf("unqualified hub node present:\n%s", out)
	}
}

func TestYarnJumpToFlowStaysUnqualified(t *testing.T) {
	p := helloProject()
	f := hubbedFlow("flow-duel", "duel", "Duel")
	f.Nodes = append(f.Nodes, enode("j", "jump", map[string]any{"target_flow_shortcut": "intro"}))
	// reroute the dialogue into the jump instead of the exit
	f.Connections[2] = econn("d", "output", "j")
	p.Flows = append(p.Flows, f)
	out, _ := yarnOut(t, p, DefaultOptions("yarn"))

	if !strings.Contains(out, "<<jump intro>>") {
		t.Fatalf("cross-flow jump must target the flow title as is:\n%s", out)
	}
	if strings.Contains(out, "<<jump duel_intro>>") {
		t.Fatalf("cross-flow jump must not get the hub prefix:\n%s", out)
	}
}

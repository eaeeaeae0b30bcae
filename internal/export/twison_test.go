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
)

func TestTwisonStoryShape(t *testing.T) {
	res, err := Run(helloProject(), DefaultOptions("twison"))
	if err != nil {
		t.Fatal(err)
	}

	var story twisonStory
	if err := json.Unmarshal(res.Primary(), &story); err != nil {
		t.Fatal(err)
	}
	if story.Name != "Westwood" {
		t.Fatalf("name = %q", story.Name)
	}
	if story.IFID != GenerateGUID("project:Westwood") {
		t.Fatalf("ifid = %q, want deterministic project guid", story.IFID)
	}
	if len(story.Passages) != 3 {
		t.Fatalf("passage count = %d, want 3", len(story.Passages))
	}
	// Pids follow node declaration order; the entry node is the start.
	if story.StartNode != "1" {
		t.Fatalf("startnode = %q, want 1", story.StartNode)
	}

	entry := story.Passages[0]
	if entry.Name != "intro/e" || len(entry.Links) != 1 {
		t.Fatalf("entry passage = %+v", entry)
	}
	if entry.Links[0].Link != "intro/d1" || entry.Links[0].PID != "2" {
		t.Fatalf("entry link = %+v", entry.Links[0])
	}

	dialogue := story.Passages[1]
	if dialogue.Text != "Hello world!" {
		t.Fatalf("dialogue text = %q", dialogue.Text)
	}
	if len(dialogue.Tags) != 1 || dialogue.Tags[0] != "dialogue" {
		t.Fatalf("dialogue tags = %v", dialogue.Tags)
	}
}

func TestTwisonDropsDanglingLinks(t *testing.T) {
	p := helloProject()
	p.Flows[0].Connections = append(p.Flows[0].Connections, econn("d1", "output", "ghost"))

	res, err := Run(p, DefaultOptions("twison"))
	if err != nil {
		t.Fatal(err)
	}
	var story twisonStory
	if err := json.Unmarshal(res.Primary(), &story); err != nil {
		t.Fatal(err)
	}
	for _, pass := range story.Passages {
		for _, l := range pass.Links {
			if l.Link == "intro/ghost" {
				t.Fatalf("dangling link survived: %+v", l)
			}
		}
	}
}

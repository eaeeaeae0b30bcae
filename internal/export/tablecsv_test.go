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

func TestTableCSVFlowTable(t *testing.T) {
	res, err := Run(helloProject(), DefaultOptions("tablecsv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 2 {
		t.Fatalf("files = %d, want flow table plus variables table", len(res.Files))
	}
	if res.Files[0].Name != "intro.csv" || res.Files[1].Name != "variables.csv" {
		t.Fatalf("file names = %q, %q", res.Files[0].Name, res.Files[1].Name)
	}

	table := string(res.Files[0].Content)
	lines := strings.Split(strings.TrimSuffix(table, "\r\n"), "\r\n")
	if lines[0] != "row,id,type,text,next,properties" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("row count = %d, want header plus 3 nodes", len(lines))
	}
	if !strings.HasPrefix(lines[1], "row_001,e,entry,,d1,") {
		t.Fatalf("entry row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "row_002,d1,dialogue,Hello world!,x,") {
		t.Fatalf("dialogue row = %q", lines[2])
	}
	// The raw property map is embedded as JSON, so the cell must be quoted.
	if !strings.Contains(lines[2], `"{`) {
		t.Fatalf("properties cell not quoted: %q", lines[2])
	}
}

func TestTableCSVVariablesTable(t *testing.T) {
	res, err := Run(helloProject(), DefaultOptions("tablecsv"))
	if err != nil {
		t.Fatal(err)
	}
	table := string(res.Files[1].Content)
	if !strings.Contains(table, "row_001,mc.jaime.health,number,100\r\n") {
		t.Fatalf("missing health row:\n%s", table)
	}
	if !strings.Contains(table, "row_002,mc.jaime.alive,boolean,false\r\n") {
		t.Fatalf("missing alive row:\n%s", table)
	}
	if strings.Contains(table, "divider") {
		t.Fatalf("divider exported as variable:\n%s", table)
	}
}

func TestTableCSVQuoting(t *testing.T) {
	p := helloProject()
	p.Flows[0].Nodes[1].Data = map[string]any{"text": `He said "run, now"`}
	res, err := Run(p, DefaultOptions("tablecsv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res.Files[0].Content), `"He said ""run, now"""`) {
		t.Fatalf("field with comma and quotes not escaped:\n%s", res.Files[0].Content)
	}
}

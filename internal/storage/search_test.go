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
	"context"
	"strings"
	"testing"
	"time"
)

func searchFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := RebuildIndex(ctx, root, sampleProject()); err != nil {
		t.Fatalf("RebuildIndex error: %v", err)
	}
	return root
}

func TestSearchFullText(t *testing.T) {
	root := searchFixture(t)
	ctx := context.Background()
	res, err := Search(ctx, root, SearchQuery{Text: "stranger"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}
	if res[0].Type != "dialogue" {
		t.Fatalf("expected dialogue result, got %s", res[0].Type)
	}
	if res[0].FlowID != "flow-intro" {
		t.Fatalf("expected flow-intro, got %q", res[0].FlowID)
	}
	if !strings.Contains(res[0].Snippet, "[stranger]") {
		t.Fatalf("expected highlighted snippet, got %q", res[0].Snippet)
	}
}

func TestSearchFlowAndTypeFilters(t *testing.T) {
	root := searchFixture(t)
	ctx := context.Background()

	res, err := Search(ctx, root, SearchQuery{Flow: "flow-duel"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 1 || res[0].Type != "condition" {
		t.Fatalf("expected 1 condition in flow-duel, got %+v", res)
	}

	res, err = Search(ctx, root, SearchQuery{Types: []string{"variable"}})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 variables, got %d", len(res))
	}
}

func TestSearchSpeakerFilter(t *testing.T) {
	root := searchFixture(t)
	ctx := context.Background()
	res, err := Search(ctx, root, SearchQuery{Speaker: "sheet-jaime", Types: []string{"dialogue"}})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 dialogue by sheet-jaime, got %d", len(res))
	}
}

func TestVariableWhereUsed(t *testing.T) {
	root := searchFixture(t)
	ctx := context.Background()

	res, err := VariableWhereUsed(ctx, root, "mc.jaime", "Health", 0, 0)
	if err != nil {
		t.Fatalf("VariableWhereUsed error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("expected 1 use of Health, got %d", len(res))
	}
	if res[0].Type != "instruction" {
		t.Fatalf("expected instruction use, got %s", res[0].Type)
	}

	res, err = VariableWhereUsed(ctx, root, "mc.jaime", "Alive", 0, 0)
	if err != nil {
		t.Fatalf("VariableWhereUsed error: %v", err)
	}
	if len(res) != 1 || res[0].Type != "condition" {
		t.Fatalf("expected condition use of Alive, got %+v", res)
	}

	// Unknown variable has no document and yields no results
	res, err = VariableWhereUsed(ctx, root, "mc.jaime", "Mana", 0, 0)
	if err != nil {
		t.Fatalf("VariableWhereUsed error: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("expected no uses for unknown variable, got %d", len(res))
	}
}

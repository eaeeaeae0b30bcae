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
	"testing"

	"goflowwriter/internal/domain"
)

func TestUsedVariableSetCollectsAllReferenceSites(t *testing.T) {
	p := sampleProject()
	// Add a response-level condition and assignment to cover those sites too
	p.Flows[0].Nodes[0].Data["responses"] = []any{
		map[string]any{
			"id": "r1", "text": "Fight",
			"condition": map[string]any{
				"logic": "and",
				"rules": []any{
					map[string]any{"sheet": "mc.jaime", "variable": "Alive", "operator": "is_true"},
				},
			},
			"assignments": []any{
				map[string]any{"sheet": "mc.jaime", "variable": "Health", "operator": "subtract", "value": 5},
			},
		},
	}
	used := UsedVariableSet(p)
	if _, ok := used["mc.jaime.health"]; !ok {
		t.Fatalf("expected health in used set: %v", used)
	}
	if _, ok := used["mc.jaime.alive"]; !ok {
		t.Fatalf("expected alive in used set: %v", used)
	}
}

func TestComputeUnusedVariables(t *testing.T) {
	p := sampleProject()
	// Add a variable that nothing references
	p.Sheets[0].Blocks = append(p.Sheets[0].Blocks, domain.Block{
		ID: "b4", Type: domain.BlockText, Config: domain.BlockConfig{Label: "Nickname"},
	})
	unused := ComputeUnusedVariables(p)
	if len(unused) != 1 || unused[0] != "mc.jaime.nickname" {
		t.Fatalf("expected only nickname unused, got %v", unused)
	}
}

func TestComputeUnusedVariablesSkipsConstantsAndDividers(t *testing.T) {
	p := domain.Project{
		Name: "T",
		Sheets: []domain.Sheet{{
			ID: "s1", Shortcut: "loc.inn", Name: "Inn",
			Blocks: []domain.Block{
				{ID: "b1", Type: domain.BlockText, Config: domain.BlockConfig{Label: "Motto"}, IsConstant: true},
				{ID: "b2", Type: domain.BlockDivider, Config: domain.BlockConfig{Label: "Layout"}},
			},
		}},
	}
	if unused := ComputeUnusedVariables(p); len(unused) != 0 {
		t.Fatalf("constants and dividers are not variables, got %v", unused)
	}
}

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
	"sort"

	"goflowwriter/internal/domain"
)

// variableUseKey is the canonical "sheet.variable" form used to match
// condition and assignment references against declared sheet blocks.
func variableUseKey(sheet, variable string) string {
	return sheet + "." + domain.Slugify(variable)
}

// UsedVariableSet returns the set of "sheet.variable" keys referenced by any
// condition or assignment in the project's flows.
func UsedVariableSet(p domain.Project) map[string]struct{} {
	used := make(map[string]struct{})
	addTree := func(tree *domain.ConditionTree) {
		if tree == nil {
			return
		}
		for _, r := range tree.Rules {
			if r.Variable == "" {
				continue
			}
			used[variableUseKey(r.Sheet, r.Variable)] = struct{}{}
		}
	}
	addAssignments := func(as []domain.Assignment) {
		for _, a := range as {
			if a.Variable == "" {
				continue
			}
			used[variableUseKey(a.Sheet, a.Variable)] = struct{}{}
		}
	}
	for _, f := range p.Flows {
		for _, n := range f.Nodes {
			switch n.Kind() {
			case domain.NodeDialogue:
				dp := n.DialoguePayload()
				for _, r := range dp.Responses {
					addTree(r.Condition)
					addAssignments(r.Assignments)
				}
			case domain.NodeCondition:
				cp := n.ConditionPayload()
				addTree(cp.Condition)
			case domain.NodeInstruction:
				ip := n.InstructionPayload()
				addAssignments(ip.Assignments)
			}
		}
	}
	return used
}

// ComputeUnusedVariables returns the identifiers of declared sheet variables
// that no condition or assignment in the project references, sorted.
func ComputeUnusedVariables(p domain.Project) []string {
	used := UsedVariableSet(p)
	var out []string
	for _, s := range p.Sheets {
		for _, b := range s.Blocks {
			if !b.IsVariable() {
				continue
			}
			id := b.Identifier(s)
			if _, ok := used[id]; ok {
				continue
			}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

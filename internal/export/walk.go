/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import "goflowwriter/internal/flow"

// The linearizer emits a flat stream with start/branch/end markers; the text
// serializers want the nesting back to drive indentation and if/else
// synthesis. stmt regroups the stream into a tree: choices and conditions
// become container statements holding their inlined branch bodies.

type stmt struct {
	Ins      flow.Instruction
	Choices  []choiceStmt // populated for OpChoicesStart containers
	Branches []branchStmt // populated for OpConditionStart containers
}

type choiceStmt struct {
	Ins  flow.Instruction // the OpChoice marker
	Body []stmt
}

type branchStmt struct {
	Ins  flow.Instruction // the OpConditionBranch marker
	Body []stmt
}

// groupStmts turns a flat instruction stream back into nested statements.
func groupStmts(ins []flow.Instruction) []stmt {
	out, _ := parseStmts(ins, 0, nil)
	return out
}

func parseStmts(ins []flow.Instruction, i int, stop map[flow.Op]bool) ([]stmt, int) {
	var out []stmt
	for i < len(ins) {
		cur := ins[i]
		if stop != nil && stop[cur.Op] {
			return out, i
		}
		switch cur.Op {
		case flow.OpChoicesStart:
			container := stmt{Ins: cur}
			i++
			for i < len(ins) && ins[i].Op == flow.OpChoice {
				choice := choiceStmt{Ins: ins[i]}
				var next int
				choice.Body, next = parseStmts(ins, i+1, map[flow.Op]bool{
					flow.OpChoice:     true,
					flow.OpChoicesEnd: true,
				})
				i = next
				container.Choices = append(container.Choices, choice)
			}
			if i < len(ins) && ins[i].Op == flow.OpChoicesEnd {
				i++
			}
			out = append(out, container)
		case flow.OpConditionStart:
			container := stmt{Ins: cur}
			i++
			for i < len(ins) && ins[i].Op == flow.OpConditionBranch {
				branch := branchStmt{Ins: ins[i]}
				var next int
				branch.Body, next = parseStmts(ins, i+1, map[flow.Op]bool{
					flow.OpConditionBranch: true,
					flow.OpConditionEnd:    true,
				})
				i = next
				container.Branches = append(container.Branches, branch)
			}
			if i < len(ins) && ins[i].Op == flow.OpConditionEnd {
				i++
			}
			out = append(out, container)
		default:
			out = append(out, stmt{Ins: cur})
			i++
		}
	}
	return out, i
}

// elseCase reports whether a branch's declared case value marks the catch-all
// arm. Only the final branch of a condition may render as a native else.
func elseCase(value string) bool {
	switch value {
	case "false", "else", "default", "":
		return true
	}
	return false
}

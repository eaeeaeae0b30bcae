/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package flow lowers a node-and-connection flow graph into a flat, ordered
// instruction stream plus named hub sections. The stream is the intermediate
// representation consumed by every export serializer.
package flow

import "goflowwriter/internal/domain"

// Op tags one instruction in the linearized stream.
type Op int

const (
	OpDialogue Op = iota
	OpChoicesStart
	OpChoice
	OpChoicesEnd
	OpConditionStart
	OpConditionBranch
	OpConditionEnd
	OpInstruction
	OpDivert
	OpJump
	OpScene
	OpSubflow
	OpExit
)

var opNames = map[Op]string{
	OpDialogue:        "dialogue",
	OpChoicesStart:    "choices_start",
	OpChoice:          "choice",
	OpChoicesEnd:      "choices_end",
	OpConditionStart:  "condition_start",
	OpConditionBranch: "condition_branch",
	OpConditionEnd:    "condition_end",
	OpInstruction:     "instruction",
	OpDivert:          "divert",
	OpJump:            "jump",
	OpScene:           "scene",
	OpSubflow:         "subflow",
	OpExit:            "exit",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// Instruction is one element of the linearized stream. Node points at the
// originating graph node (nil for pure structural markers such as
// choices_start), and the payload pointers are populated per Op so that
// serializers never decode raw node data themselves.
type Instruction struct {
	Op   Op
	Node *domain.Node

	Dialogue    *domain.DialoguePayload // OpDialogue
	Response    *domain.Response        // OpChoice
	Condition   *domain.ConditionPayload
	Case        *domain.Case         // OpConditionBranch
	Assignments []domain.Assignment  // OpInstruction
	Scene       *domain.ScenePayload // OpScene
	Subflow     *domain.SubflowPayload
	Label       string // OpDivert / OpJump target label
}

// HubSection is the flattened body reachable from one hub node, keyed by the
// hub's label.
type HubSection struct {
	Label        string
	Instructions []Instruction
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "github.com/mitchellh/mapstructure"

// Typed node payloads. Node.Data is an untyped key/value map in the manifest;
// the traversal decodes it exactly once into one of these structs so that the
// serializers never re-interpret raw maps. Decoding is lenient: missing or
// mistyped keys leave zero values, they never produce an error, because the
// export pipeline must degrade rather than fail on corrupt data.

// Response is one selectable choice on a dialogue node.
type Response struct {
	ID          string         `mapstructure:"id"`
	Text        string         `mapstructure:"text"`
	Condition   *ConditionTree `mapstructure:"condition"`
	Assignments []Assignment   `mapstructure:"assignments"`
}

// DialoguePayload carries a spoken line and its optional choices.
type DialoguePayload struct {
	Text           string     `mapstructure:"text"`
	SpeakerSheetID string     `mapstructure:"speaker_sheet_id"`
	Responses      []Response `mapstructure:"responses"`
}

// Case is one declared branch of a condition node. Value is the literal the
// node's condition result is matched against ("true", "false", or a free
// value for multi-way selects).
type Case struct {
	ID    string `mapstructure:"id"`
	Value string `mapstructure:"value"`
}

// ConditionPayload carries the rule tree and the declared branch cases.
type ConditionPayload struct {
	Condition *ConditionTree `mapstructure:"condition"`
	Cases     []Case         `mapstructure:"cases"`
}

// InstructionPayload carries the variable assignments of an instruction node.
type InstructionPayload struct {
	Assignments []Assignment `mapstructure:"assignments"`
}

// HubPayload names a rejoin point. Label may be empty; the linearizer then
// falls back to a generated label.
type HubPayload struct {
	Label string `mapstructure:"label"`
}

// JumpPayload points at a jump target, resolved by priority:
// TargetFlowShortcut, then HubID, then the node's own outgoing connection.
type JumpPayload struct {
	TargetFlowShortcut string `mapstructure:"target_flow_shortcut"`
	HubID              string `mapstructure:"hub_id"`
}

// ScenePayload carries the scene command fields.
type ScenePayload struct {
	Location string `mapstructure:"location"`
	SlugLine string `mapstructure:"slug_line"`
}

// SubflowPayload names the called flow.
type SubflowPayload struct {
	FlowShortcut string `mapstructure:"flow_shortcut"`
	FlowID       string `mapstructure:"flow_id"`
}

func decodePayload(data map[string]any, out any) {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return
	}
	// Decode errors are intentionally swallowed; partial decodes keep
	// whatever fields matched.
	_ = dec.Decode(data)
}

// DialoguePayload decodes the node data as a dialogue payload.
func (n Node) DialoguePayload() DialoguePayload {
	var p DialoguePayload
	decodePayload(n.Data, &p)
	return p
}

// ConditionPayload decodes the node data as a condition payload.
func (n Node) ConditionPayload() ConditionPayload {
	var p ConditionPayload
	decodePayload(n.Data, &p)
	return p
}

// InstructionPayload decodes the node data as an instruction payload.
func (n Node) InstructionPayload() InstructionPayload {
	var p InstructionPayload
	decodePayload(n.Data, &p)
	return p
}

// HubPayload decodes the node data as a hub payload.
func (n Node) HubPayload() HubPayload {
	var p HubPayload
	decodePayload(n.Data, &p)
	return p
}

// JumpPayload decodes the node data as a jump payload.
func (n Node) JumpPayload() JumpPayload {
	var p JumpPayload
	decodePayload(n.Data, &p)
	return p
}

// ScenePayload decodes the node data as a scene payload.
func (n Node) ScenePayload() ScenePayload {
	var p ScenePayload
	decodePayload(n.Data, &p)
	return p
}

// SubflowPayload decodes the node data as a subflow payload.
func (n Node) SubflowPayload() SubflowPayload {
	var p SubflowPayload
	decodePayload(n.Data, &p)
	return p
}

// HubLabel returns the hub's user-supplied label or a generated fallback
// derived from the node id.
func (n Node) HubLabel() string {
	if l := n.HubPayload().Label; l != "" {
		return l
	}
	return "hub_" + Slugify(n.ID)
}

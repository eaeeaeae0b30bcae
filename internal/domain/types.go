/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model structures for the Go Flow Writer project.
// A project bundles typed data sheets (characters, world entities), flow graphs
// (dialogue, branching, hubs) and screenplay/scene material. It serializes to a
// human-readable JSON manifest and is treated as a read-only snapshot by the
// export pipeline.

// Project represents a narrative project and its metadata.
type Project struct {
	Name        string       `json:"name"`
	Metadata    Metadata     `json:"metadata,omitempty"`
	Sheets      []Sheet      `json:"sheets"`
	Flows       []Flow       `json:"flows"`
	Scenes      []Scene      `json:"scenes,omitempty"`
	Screenplays []Screenplay `json:"screenplays,omitempty"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Series   string `json:"series,omitempty"`
	Authors  string `json:"authors,omitempty"`
	Language string `json:"language,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Sheet is a named collection of typed data fields (blocks) representing a
// character or world entity. Shortcut is a dotted identifier such as "mc.jaime".
type Sheet struct {
	ID       string  `json:"id"`
	Shortcut string  `json:"shortcut"`
	Name     string  `json:"name"`
	Blocks   []Block `json:"blocks"`
}

// BlockType enumerates the supported field kinds on a sheet.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockRichText    BlockType = "rich_text"
	BlockNumber      BlockType = "number"
	BlockSelect      BlockType = "select"
	BlockMultiSelect BlockType = "multi_select"
	BlockBoolean     BlockType = "boolean"
	BlockDate        BlockType = "date"
	BlockDivider     BlockType = "divider"
	BlockReference   BlockType = "reference"
	BlockTable       BlockType = "table"
)

// BlockConfig holds the label and type-specific options of a block.
type BlockConfig struct {
	Label   string   `json:"label"`
	Options []string `json:"options,omitempty"`
}

// Block is a typed data field on a sheet. Non-constant blocks that are neither
// dividers nor references are exported as engine-facing variables.
type Block struct {
	ID         string      `json:"id"`
	Type       BlockType   `json:"type"`
	Config     BlockConfig `json:"config"`
	Value      any         `json:"value,omitempty"`
	IsConstant bool        `json:"is_constant,omitempty"`
}

// VariableName derives the engine-facing name from the block label.
func (b Block) VariableName() string { return Slugify(b.Config.Label) }

// IsVariable reports whether this block is exported as a variable.
func (b Block) IsVariable() bool {
	if b.IsConstant {
		return false
	}
	switch b.Type {
	case BlockDivider, BlockReference:
		return false
	}
	return true
}

// Identifier returns the fully qualified variable identifier for a block on
// the given sheet, e.g. "mc.jaime.health".
func (b Block) Identifier(s Sheet) string {
	return s.Shortcut + "." + b.VariableName()
}

// Flow is a named graph of nodes and connections representing one
// dialogue/cutscene unit.
type Flow struct {
	ID          string       `json:"id"`
	Shortcut    string       `json:"shortcut"`
	Name        string       `json:"name"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// NodeType enumerates the node kinds understood by the traversal. Any other
// type string maps to NodeUnknown, which the linearizer skips silently.
type NodeType string

const (
	NodeEntry       NodeType = "entry"
	NodeExit        NodeType = "exit"
	NodeDialogue    NodeType = "dialogue"
	NodeCondition   NodeType = "condition"
	NodeInstruction NodeType = "instruction"
	NodeHub         NodeType = "hub"
	NodeJump        NodeType = "jump"
	NodeScene       NodeType = "scene"
	NodeSubflow     NodeType = "subflow"
	NodeUnknown     NodeType = "unknown"
)

// ParseNodeType maps a raw type string to a NodeType, defaulting to
// NodeUnknown for anything unrecognized.
func ParseNodeType(s string) NodeType {
	switch NodeType(s) {
	case NodeEntry, NodeExit, NodeDialogue, NodeCondition, NodeInstruction,
		NodeHub, NodeJump, NodeScene, NodeSubflow:
		return NodeType(s)
	}
	return NodeUnknown
}

// Node is one element of a flow graph. Data carries the type-specific payload
// as stored in the manifest; use the typed accessors in payload.go to decode it.
type Node struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Kind returns the parsed node type.
func (n Node) Kind() NodeType { return ParseNodeType(n.Type) }

// Connection is a directed edge between two nodes. SourcePin selects the
// output slot: "output" for plain nodes, "response_<id>" for dialogue choices,
// or a condition case id/value for branch outputs.
type Connection struct {
	SourceNodeID string `json:"source_node_id"`
	SourcePin    string `json:"source_pin"`
	TargetNodeID string `json:"target_node_id"`
	TargetPin    string `json:"target_pin"`
}

// Scene describes a location/cutscene entry referenced by scene nodes.
type Scene struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	SlugLine    string `json:"slug_line,omitempty"`
	Description string `json:"description,omitempty"`
}

// Screenplay holds a screenplay document in plain text form.
type Screenplay struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ConditionTree is a structured boolean rule tree attached to condition nodes
// and response guards. Logic is "all" (AND) or "any" (OR).
type ConditionTree struct {
	Logic string          `json:"logic" mapstructure:"logic"`
	Rules []ConditionRule `json:"rules" mapstructure:"rules"`
}

// ConditionRule compares one sheet variable against a value.
// Operators: eq, neq, gt, gte, lt, lte, is_true, is_false, is_nil, contains.
type ConditionRule struct {
	Sheet    string `json:"sheet" mapstructure:"sheet"`
	Variable string `json:"variable" mapstructure:"variable"`
	Operator string `json:"operator" mapstructure:"operator"`
	Value    any    `json:"value,omitempty" mapstructure:"value"`
}

// Assignment mutates one sheet variable. Operators: set, set_true, set_false,
// toggle, add, subtract, clear, set_if_unset. When ValueType is "variable_ref"
// the value names another sheet variable ("sheet.variable") instead of a literal.
type Assignment struct {
	Sheet     string `json:"sheet" mapstructure:"sheet"`
	Variable  string `json:"variable" mapstructure:"variable"`
	Operator  string `json:"operator" mapstructure:"operator"`
	Value     any    `json:"value,omitempty" mapstructure:"value"`
	ValueType string `json:"value_type,omitempty" mapstructure:"value_type"`
}

// FindFlow returns the flow with the given shortcut, or nil.
func (p *Project) FindFlow(shortcut string) *Flow {
	for i := range p.Flows {
		if p.Flows[i].Shortcut == shortcut {
			return &p.Flows[i]
		}
	}
	return nil
}

// FindSheet returns the sheet with the given id, or nil.
func (p *Project) FindSheet(id string) *Sheet {
	for i := range p.Sheets {
		if p.Sheets[i].ID == id {
			return &p.Sheets[i]
		}
	}
	return nil
}

// FindNode returns the node with the given id within the flow, or nil.
func (f *Flow) FindNode(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// EntryNode returns the unique entry node of the flow, or nil when absent.
func (f *Flow) EntryNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Kind() == NodeEntry {
			return &f.Nodes[i]
		}
	}
	return nil
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package flow

import (
	"log/slog"

	"goflowwriter/internal/domain"
	applog "goflowwriter/internal/log"
)

// Linearize converts a flow graph into an ordered instruction stream plus one
// section per reachable hub. The walk is a depth-first structural descent with
// explicit path tracking:
//
//   - choice and condition branches are inlined into the parent stream between
//     their start/end markers;
//   - hubs are never inlined: the first encounter queues the hub and emits a
//     divert, the hub body is flattened afterwards into its own section;
//   - revisiting a node on the current path breaks the cycle (hubs divert,
//     anything else ends the branch silently);
//   - malformed input (no entry node, dangling connections, unknown node
//     types) degrades to partial or empty output, never an error. Exports run
//     unattended and partial output beats a hard failure mid-batch.
//
// The hub-seen set and queue are scoped to this single call; concurrent
// linearizations of different flows share no state.
func Linearize(f *domain.Flow) ([]Instruction, []HubSection) {
	if f == nil {
		return nil, nil
	}
	entry := f.EntryNode()
	if entry == nil {
		return nil, nil
	}

	l := &linearizer{
		nodes: make(map[string]*domain.Node, len(f.Nodes)),
		out:   make(map[string][]domain.Connection, len(f.Nodes)),
		seen:  make(map[string]bool),
		log:   applog.WithComponent("linearizer").With(slog.String("flow", f.Shortcut)),
	}
	for i := range f.Nodes {
		l.nodes[f.Nodes[i].ID] = &f.Nodes[i]
	}
	for _, c := range f.Connections {
		l.out[c.SourceNodeID] = append(l.out[c.SourceNodeID], c)
	}

	var main []Instruction
	l.walk(entry, &main, map[string]bool{})

	// Hub bodies are processed breadth-first across the queue; traversing one
	// body may append further hubs. Each hub enters the queue at most once, so
	// this terminates.
	var sections []HubSection
	for i := 0; i < len(l.queue); i++ {
		hub := l.queue[i]
		body := []Instruction{}
		path := map[string]bool{hub.ID: true}
		for _, c := range l.outgoing(hub.ID) {
			l.follow(c, &body, path)
		}
		sections = append(sections, HubSection{Label: hub.HubLabel(), Instructions: body})
	}
	return main, sections
}

type linearizer struct {
	nodes map[string]*domain.Node
	out   map[string][]domain.Connection
	seen  map[string]bool // hubs queued during this call
	queue []*domain.Node
	log   *slog.Logger
}

func (l *linearizer) outgoing(nodeID string) []domain.Connection {
	return l.out[nodeID]
}

// connByPin returns the first outgoing connection of the node whose source
// pin matches one of the given pins, in pin priority order.
func (l *linearizer) connByPin(nodeID string, pins ...string) (domain.Connection, bool) {
	conns := l.out[nodeID]
	for _, pin := range pins {
		for _, c := range conns {
			if c.SourcePin == pin {
				return c, true
			}
		}
	}
	return domain.Connection{}, false
}

// single returns the node's default continuation: the "output" pin when
// present, otherwise the first outgoing connection.
func (l *linearizer) single(nodeID string) (domain.Connection, bool) {
	if c, ok := l.connByPin(nodeID, "output"); ok {
		return c, true
	}
	conns := l.out[nodeID]
	if len(conns) > 0 {
		return conns[0], true
	}
	return domain.Connection{}, false
}

// follow resolves a connection target and continues the walk. A target that
// is not in the node index is a dead end.
func (l *linearizer) follow(c domain.Connection, out *[]Instruction, path map[string]bool) {
	target, ok := l.nodes[c.TargetNodeID]
	if !ok {
		l.log.Debug("dangling connection", slog.String("target", c.TargetNodeID))
		return
	}
	l.walk(target, out, path)
}

func (l *linearizer) continueFrom(n *domain.Node, out *[]Instruction, path map[string]bool) {
	if c, ok := l.single(n.ID); ok {
		l.follow(c, out, path)
	}
}

func (l *linearizer) walk(n *domain.Node, out *[]Instruction, path map[string]bool) {
	if path[n.ID] {
		// Cycle boundary. A hub revisit diverts to its label; anything else
		// ends the branch with no marker at all.
		if n.Kind() == domain.NodeHub {
			l.enqueueHub(n)
			*out = append(*out, Instruction{Op: OpDivert, Node: n, Label: n.HubLabel()})
		}
		return
	}
	path[n.ID] = true
	defer delete(path, n.ID)

	switch n.Kind() {
	case domain.NodeEntry:
		l.continueFrom(n, out, path)

	case domain.NodeDialogue:
		p := n.DialoguePayload()
		*out = append(*out, Instruction{Op: OpDialogue, Node: n, Dialogue: &p})
		if len(p.Responses) == 0 {
			l.continueFrom(n, out, path)
			return
		}
		*out = append(*out, Instruction{Op: OpChoicesStart, Node: n})
		for i := range p.Responses {
			r := p.Responses[i]
			*out = append(*out, Instruction{Op: OpChoice, Node: n, Response: &r})
			if c, ok := l.connByPin(n.ID, "response_"+r.ID); ok {
				l.follow(c, out, path)
			}
		}
		*out = append(*out, Instruction{Op: OpChoicesEnd, Node: n})

	case domain.NodeCondition:
		p := n.ConditionPayload()
		*out = append(*out, Instruction{Op: OpConditionStart, Node: n, Condition: &p})
		for i := range p.Cases {
			cs := p.Cases[i]
			*out = append(*out, Instruction{Op: OpConditionBranch, Node: n, Condition: &p, Case: &cs})
			if c, ok := l.connByPin(n.ID, cs.ID, cs.Value); ok {
				l.follow(c, out, path)
			}
		}
		*out = append(*out, Instruction{Op: OpConditionEnd, Node: n})

	case domain.NodeInstruction:
		p := n.InstructionPayload()
		*out = append(*out, Instruction{Op: OpInstruction, Node: n, Assignments: p.Assignments})
		l.continueFrom(n, out, path)

	case domain.NodeScene:
		p := n.ScenePayload()
		*out = append(*out, Instruction{Op: OpScene, Node: n, Scene: &p})
		l.continueFrom(n, out, path)

	case domain.NodeSubflow:
		p := n.SubflowPayload()
		*out = append(*out, Instruction{Op: OpSubflow, Node: n, Subflow: &p})
		l.continueFrom(n, out, path)

	case domain.NodeHub:
		l.enqueueHub(n)
		*out = append(*out, Instruction{Op: OpDivert, Node: n, Label: n.HubLabel()})
		// The hub body lives in its own section; the current stream ends here.

	case domain.NodeJump:
		*out = append(*out, Instruction{Op: OpJump, Node: n, Label: l.resolveJumpLabel(n)})

	case domain.NodeExit:
		*out = append(*out, Instruction{Op: OpExit, Node: n})

	default:
		// Unknown node types are skipped without extending the branch. This
		// can silently truncate a flow; logged at debug so operators have a
		// trace without breaking the lenient-degradation contract.
		l.log.Debug("unknown node type skipped",
			slog.String("node", n.ID), slog.String("type", n.Type))
	}
}

func (l *linearizer) enqueueHub(n *domain.Node) {
	if l.seen[n.ID] {
		return
	}
	l.seen[n.ID] = true
	l.queue = append(l.queue, n)
}

// resolveJumpLabel picks the jump target label by priority: an explicit flow
// shortcut, an explicit hub id, a hub reached through the node's own outgoing
// connection, or the literal "unknown".
func (l *linearizer) resolveJumpLabel(n *domain.Node) string {
	p := n.JumpPayload()
	if p.TargetFlowShortcut != "" {
		return domain.Slugify(p.TargetFlowShortcut)
	}
	// Jump resolution only names the label; it does not queue the hub. A jump
	// may legitimately point at a hub section another path materializes.
	if p.HubID != "" {
		if hub, ok := l.nodes[p.HubID]; ok && hub.Kind() == domain.NodeHub {
			return hub.HubLabel()
		}
	}
	if c, ok := l.single(n.ID); ok {
		if target, ok := l.nodes[c.TargetNodeID]; ok && target.Kind() == domain.NodeHub {
			return target.HubLabel()
		}
	}
	return "unknown"
}

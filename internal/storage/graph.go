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
	"fmt"

	"goflowwriter/internal/domain"
)

// EnsureFlow returns a pointer to a flow with the given id, creating it if it does not exist yet.
// New flows are appended with empty node and connection lists.
func EnsureFlow(ph *ProjectHandle, flowID string) (*domain.Flow, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	if flowID == "" {
		return nil, fmt.Errorf("flow id is required")
	}
	for i := range ph.Project.Flows {
		if ph.Project.Flows[i].ID == flowID {
			return &ph.Project.Flows[i], nil
		}
	}
	ph.Project.Flows = append(ph.Project.Flows, domain.Flow{
		ID:          flowID,
		Nodes:       []domain.Node{},
		Connections: []domain.Connection{},
	})
	return &ph.Project.Flows[len(ph.Project.Flows)-1], nil
}

// NextNodeID returns a unique node ID like "n1", "n2", ... not used in the given flow.
func NextNodeID(f *domain.Flow) string {
	if f == nil {
		return "n1"
	}
	maxN := 0
	exists := map[string]struct{}{}
	for _, n := range f.Nodes {
		exists[n.ID] = struct{}{}
		var v int
		if _, err := fmt.Sscanf(n.ID, "n%d", &v); err == nil {
			if v > maxN {
				maxN = v
			}
		}
	}
	for v := maxN + 1; v < maxN+10000; v++ {
		id := fmt.Sprintf("n%d", v)
		if _, ok := exists[id]; !ok {
			return id
		}
	}
	return fmt.Sprintf("n%d", maxN+1)
}

// AddNode appends a node to the given flow. If node.ID is empty, a unique one
// will be generated. Returns the created node.
func AddNode(ph *ProjectHandle, flowID string, node domain.Node) (domain.Node, error) {
	f, err := EnsureFlow(ph, flowID)
	if err != nil {
		return domain.Node{}, err
	}
	if node.ID == "" {
		node.ID = NextNodeID(f)
	} else {
		for _, n := range f.Nodes {
			if n.ID == node.ID {
				return domain.Node{}, fmt.Errorf("node id %s already exists in flow %s", node.ID, flowID)
			}
		}
	}
	if node.Type == "" {
		node.Type = string(domain.NodeDialogue)
	}
	f.Nodes = append(f.Nodes, node)
	return node, nil
}

// RemoveNode deletes a node and every connection that touches it.
func RemoveNode(ph *ProjectHandle, flowID, nodeID string) error {
	f, err := findFlow(ph, flowID)
	if err != nil {
		return err
	}
	idx := -1
	for i := range f.Nodes {
		if f.Nodes[i].ID == nodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("node %s not found in flow %s", nodeID, flowID)
	}
	f.Nodes = append(f.Nodes[:idx], f.Nodes[idx+1:]...)
	kept := f.Connections[:0]
	for _, c := range f.Connections {
		if c.SourceNodeID == nodeID || c.TargetNodeID == nodeID {
			continue
		}
		kept = append(kept, c)
	}
	f.Connections = kept
	return nil
}

// ConnectNodes adds a connection between two existing nodes of a flow.
// Duplicate connections (same endpoints and pins) are ignored.
func ConnectNodes(ph *ProjectHandle, flowID string, conn domain.Connection) error {
	f, err := findFlow(ph, flowID)
	if err != nil {
		return err
	}
	if f.FindNode(conn.SourceNodeID) == nil {
		return fmt.Errorf("source node %s not found in flow %s", conn.SourceNodeID, flowID)
	}
	if f.FindNode(conn.TargetNodeID) == nil {
		return fmt.Errorf("target node %s not found in flow %s", conn.TargetNodeID, flowID)
	}
	for _, c := range f.Connections {
		if c == conn {
			return nil
		}
	}
	f.Connections = append(f.Connections, conn)
	return nil
}

// UpdateNodeData merges the given key/value pairs into the node's data map.
// A nil value removes the key.
func UpdateNodeData(ph *ProjectHandle, flowID, nodeID string, data map[string]any) error {
	f, err := findFlow(ph, flowID)
	if err != nil {
		return err
	}
	n := f.FindNode(nodeID)
	if n == nil {
		return fmt.Errorf("node %s not found in flow %s", nodeID, flowID)
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	for k, v := range data {
		if v == nil {
			delete(n.Data, k)
			continue
		}
		n.Data[k] = v
	}
	return nil
}

// findFlow returns a pointer to the flow with the given id, or an error.
func findFlow(ph *ProjectHandle, flowID string) (*domain.Flow, error) {
	if ph == nil {
		return nil, fmt.Errorf("project handle is nil")
	}
	for i := range ph.Project.Flows {
		if ph.Project.Flows[i].ID == flowID {
			return &ph.Project.Flows[i], nil
		}
	}
	return nil, fmt.Errorf("flow %s not found", flowID)
}

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
	"os"
	"strings"
	"testing"

	"goflowwriter/internal/domain"
)

func TestManifestConformsToSchema(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	data, err := os.ReadFile(ph.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if err := ValidateManifest(data); err != nil {
		t.Fatalf("manifest should conform to schema: %v", err)
	}
}

func TestValidateManifestRejectsMissingName(t *testing.T) {
	err := ValidateManifest([]byte(`{"sheets":[],"flows":[]}`))
	if err == nil {
		t.Fatalf("expected schema violation for missing name")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected error to mention name, got %v", err)
	}
}

func TestValidateProjectAcceptsSample(t *testing.T) {
	p := sampleProject()
	if err := ValidateProject(&p); err != nil {
		t.Fatalf("ValidateProject error: %v", err)
	}
}

func TestValidateProjectRejectsDuplicateNodeID(t *testing.T) {
	p := sampleProject()
	f := &p.Flows[0]
	f.Nodes = append(f.Nodes, domain.Node{ID: "n1", Type: "dialogue"})
	err := ValidateProject(&p)
	if err == nil {
		t.Fatalf("expected duplicate node id error")
	}
	if !strings.Contains(err.Error(), "duplicate node id") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateProjectRejectsDanglingConnection(t *testing.T) {
	p := sampleProject()
	f := &p.Flows[0]
	f.Connections = append(f.Connections, domain.Connection{SourceNodeID: "n1", TargetNodeID: "ghost"})
	err := ValidateProject(&p)
	if err == nil {
		t.Fatalf("expected dangling connection error")
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("unexpected error: %v", err)
	}
}

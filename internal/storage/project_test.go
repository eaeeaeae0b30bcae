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
	"path/filepath"
	"strings"
	"testing"

	"goflowwriter/internal/domain"
)

// sampleProject returns a small but representative project used across
// storage tests: one character sheet with variables, two flows with dialogue,
// a condition and an instruction, one scene and one screenplay.
func sampleProject() domain.Project {
	return domain.Project{
		Name:     "Westwood",
		Metadata: domain.Metadata{Series: "Westwood Saga", Authors: "A. Author", Language: "en"},
		Sheets: []domain.Sheet{
			{
				ID: "sheet-jaime", Shortcut: "mc.jaime", Name: "Jaime",
				Blocks: []domain.Block{
					{ID: "b1", Type: domain.BlockNumber, Config: domain.BlockConfig{Label: "Health"}, Value: 100},
					{ID: "b2", Type: domain.BlockBoolean, Config: domain.BlockConfig{Label: "Alive"}, Value: true},
					{ID: "b3", Type: domain.BlockDivider, Config: domain.BlockConfig{Label: "Stats"}},
				},
			},
		},
		Flows: []domain.Flow{
			{
				ID: "flow-intro", Shortcut: "intro", Name: "Intro",
				Nodes: []domain.Node{
					{ID: "n1", Type: "dialogue", Data: map[string]any{
						"text": "Hello there, stranger.", "speaker_sheet_id": "sheet-jaime",
						"responses": []any{
							map[string]any{"id": "r1", "text": "Who are you?"},
						},
					}},
					{ID: "n2", Type: "instruction", Data: map[string]any{
						"assignments": []any{
							map[string]any{"sheet": "mc.jaime", "variable": "Health", "operator": "subtract", "value": 10},
						},
					}},
				},
				Connections: []domain.Connection{
					{SourceNodeID: "n1", SourcePin: "response_r1", TargetNodeID: "n2", TargetPin: "in"},
				},
			},
			{
				ID: "flow-duel", Shortcut: "duel", Name: "Duel",
				Nodes: []domain.Node{
					{ID: "n1", Type: "condition", Data: map[string]any{
						"condition": map[string]any{
							"logic": "and",
							"rules": []any{
								map[string]any{"sheet": "mc.jaime", "variable": "Alive", "operator": "is_true"},
							},
						},
						"cases": []any{
							map[string]any{"id": "c1", "value": "true"},
							map[string]any{"id": "c2", "value": "false"},
						},
					}},
				},
				Connections: []domain.Connection{},
			},
		},
		Scenes:      []domain.Scene{{ID: "sc1", Name: "Courtyard", Location: "Castle Courtyard"}},
		Screenplays: []domain.Screenplay{{ID: "sp1", Title: "Act One", Body: "INT. CASTLE - DAY\n\nJaime paces."}},
	}
}

func TestInitSaveOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if _, err := os.Stat(ph.ManifestPath); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
	for _, d := range standardSubDirs {
		if st, err := os.Stat(filepath.Join(root, d)); err != nil || !st.IsDir() {
			t.Fatalf("expected subdir %s: %v", d, err)
		}
	}

	ph.Project.Flows[0].Name = "Intro (revised)"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	ph2, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if ph2.Project.Name != "Westwood" {
		t.Fatalf("unexpected project name %q", ph2.Project.Name)
	}
	if got := ph2.Project.Flows[0].Name; got != "Intro (revised)" {
		t.Fatalf("flow name not persisted, got %q", got)
	}
	if len(ph2.Project.Flows[0].Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(ph2.Project.Flows[0].Nodes))
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "story") && strings.HasSuffix(e.Name(), ".bak") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a story*.bak backup, entries: %v", entries)
	}
}

func TestOpenFallsBackToBackupOnCorruptManifest(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	// Save once so a backup of the valid manifest exists
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	// Corrupt the current manifest
	if err := os.WriteFile(ph.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	ph2, err := Open(root)
	if err != nil {
		t.Fatalf("Open with backup fallback error: %v", err)
	}
	if ph2.Project.Name != "Westwood" {
		t.Fatalf("expected recovered project, got %q", ph2.Project.Name)
	}
}

func TestSaveAsScaffoldsNewRoot(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	newRoot := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(ph, newRoot); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(newRoot, ManifestFileName)); err != nil {
		t.Fatalf("manifest missing in new root: %v", err)
	}
	if ph.Root != newRoot {
		t.Fatalf("handle root not updated: %q", ph.Root)
	}
}

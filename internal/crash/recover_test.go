/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goflowwriter/internal/storage"
)

// Recover must write a report under the project's backups dir and request
// exit code 2; exitFn is swapped out so the test process survives.
func TestRecoverWritesReportAndExits(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	exitCode := -1
	oldExit := exitFn
	exitFn = func(code int) { exitCode = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	ph := &storage.ProjectHandle{Root: root, ManifestPath: filepath.Join(root, storage.ManifestFileName)}

	func() {
		defer Recover(ph)
		panic("flow cycle without hub")
	}()

	if exitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode)
	}

	bdir := filepath.Join(root, storage.BackupsDirName)
	entries, err := os.ReadDir(bdir)
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	var report string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "crash-") && strings.HasSuffix(e.Name(), ".log") {
			report = filepath.Join(bdir, e.Name())
		}
	}
	if report == "" {
		t.Fatalf("no crash report in %s", bdir)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "Panic: flow cycle without hub") {
		t.Fatalf("report missing panic value:\n%s", b)
	}
}

// Recover must be a no-op when no panic is in flight.
func TestRecoverWithoutPanic(t *testing.T) {
	oldExit := exitFn
	called := false
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()

	func() {
		defer Recover(nil)
	}()

	if called {
		t.Fatalf("exitFn called without a panic")
	}
}

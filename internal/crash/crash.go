/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report file plus a best-effort
// autosave of the open project, then exits. The report lands in the project's
// backups directory when a project is open, otherwise in the system temp dir.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "goflowwriter/internal/log"
	"goflowwriter/internal/storage"
	"goflowwriter/internal/telemetry"
	"goflowwriter/internal/version"
)

// exitFn is swapped out in tests so Recover can be exercised in-process.
var exitFn = os.Exit

// Recover is meant for deferred use at the top of main:
//
//	defer func() { crash.Recover(ph) }()
//
// On panic it logs the stack, writes a report file, autosaves the project
// manifest when ph is non-nil, and exits with code 2.
func Recover(ph *storage.ProjectHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, _ := writeReport(ph, r, stack)
	if ph != nil {
		if path, err := storage.AutosaveCrashSnapshot(ph); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ph != nil && ph.Root != "" {
		dir = filepath.Join(ph.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))

	body := reportBody(ph, panicVal, stack)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return path, err
	}
	// opt-in upload, anonymized by construction (no project content in the report)
	telemetry.UploadCrash(body)
	return path, nil
}

func reportBody(ph *storage.ProjectHandle, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Go Flow Writer Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if ph != nil {
		fmt.Fprintf(&buf, "ProjectRoot: %s\n", ph.Root)
		fmt.Fprintf(&buf, "Manifest: %s\n", ph.ManifestPath)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"goflowwriter/internal/backend"
	"goflowwriter/internal/config"
	"goflowwriter/internal/crash"
	"goflowwriter/internal/domain"
	"goflowwriter/internal/export"
	applog "goflowwriter/internal/log"
	"goflowwriter/internal/storage"
	"goflowwriter/internal/telemetry"
	"goflowwriter/internal/version"
)

// snapshotKeepLast bounds per-flow and per-screenplay history kept by the
// snapshot command.
const snapshotKeepLast = 20

func usage() {
	fmt.Println("Go Flow Writer — narrative design toolkit")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  goflowwriter version|-v|--version           Show version")
	fmt.Println("  goflowwriter init <dir> <name>               Create a new project at <dir> with name <name>")
	fmt.Println("  goflowwriter open <dir>                      Open project at <dir> and print summary")
	fmt.Println("  goflowwriter save <dir>                      Save project at <dir> (creates backup)")
	fmt.Println("  goflowwriter validate <dir>                  Validate the project manifest and references")
	fmt.Println("  goflowwriter export <dir> [format] [out]     Export the project (yarn, ink, twison, ...)")
	fmt.Println("  goflowwriter snapshot <dir>                  Snapshot every flow and screenplay")
	fmt.Println("  goflowwriter history <dir> <flow-id>         List stored snapshots of a flow")
	fmt.Println("  goflowwriter unused <dir>                    Report sheet variables no flow references")
	fmt.Println("  goflowwriter preview <dir> <flow-id> [out]   Render a flow diagram via the preview cache")
	fmt.Println("  goflowwriter index <dir>                     Rebuild the local search index")
	fmt.Println("  goflowwriter search <dir> <term>             Full-text search over the project")
	fmt.Println("  goflowwriter fetch <url> <id> <dir>          Fetch a project from the story library")
	fmt.Println("  goflowwriter serve                           Run the story library server")
	fmt.Println()
	fmt.Println("Export formats:", export.Formats())
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var ph *storage.ProjectHandle
	defer func() { crash.Recover(ph) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Go Flow Writer — narrative design toolkit")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 4 {
				fmt.Println("init requires <dir> and <name>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			name := args[3]
			abs, _ := filepath.Abs(dir)
			l.Info("init project", slog.String("root", abs), slog.String("name", name))
			p := domain.Project{Name: name, Flows: []domain.Flow{}}
			h, err := storage.InitProject(abs, p)
			if err != nil {
				l.Error("init failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			fmt.Println("Created project at", abs)
			return
		case "open":
			if len(args) < 3 {
				fmt.Println("open requires <dir>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			abs, _ := filepath.Abs(dir)
			l.Info("open project", slog.String("root", abs))
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			fmt.Printf("Opened project: %s\n", h.Project.Name)
			fmt.Printf("Sheets: %d  Flows: %d  Scenes: %d  Screenplays: %d\n",
				len(h.Project.Sheets), len(h.Project.Flows), len(h.Project.Scenes), len(h.Project.Screenplays))
			fmt.Println("Root:", h.Root)
			return
		case "save":
			if len(args) < 3 {
				fmt.Println("save requires <dir>")
				usage()
				os.Exit(2)
			}
			dir := args[2]
			abs, _ := filepath.Abs(dir)
			l.Info("save project", slog.String("root", abs))
			h, err := storage.Open(abs)
			if err != nil {
				l.Error("open before save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			if err := storage.Save(h); err != nil {
				l.Error("save failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Saved project and created a backup of previous manifest (if any).")
			return
		case "validate":
			if len(args) < 3 {
				fmt.Println("validate requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			if err := storage.ValidateProject(&h.Project); err != nil {
				fmt.Println("Invalid:", err)
				os.Exit(1)
			}
			fmt.Println("Project is valid.")
			return
		case "export":
			runExport(l, &ph, args[2:])
			return
		case "snapshot":
			if len(args) < 3 {
				fmt.Println("snapshot requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			l.Info("snapshot project", slog.String("root", abs))
			flows, plays, err := storage.SnapshotProject(context.Background(), h, time.Now(), snapshotKeepLast)
			if err != nil {
				l.Error("snapshot failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Printf("Snapshotted %d flow(s) and %d screenplay(s), keeping the last %d each.\n",
				flows, plays, snapshotKeepLast)
			return
		case "history":
			if len(args) < 4 {
				fmt.Println("history requires <dir> and <flow-id>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			snaps, err := storage.ListSnapshots(context.Background(), h, args[3], snapshotKeepLast)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, s := range snaps {
				fmt.Printf("%s  %d byte(s)\n", s.TS.Format(time.RFC3339), len(s.Data))
			}
			fmt.Printf("%d snapshot(s) for %s\n", len(snaps), args[3])
			return
		case "unused":
			if len(args) < 3 {
				fmt.Println("unused requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			unused := storage.ComputeUnusedVariables(h.Project)
			for _, v := range unused {
				fmt.Println(v)
			}
			fmt.Printf("%d unused variable(s)\n", len(unused))
			return
		case "preview":
			if len(args) < 4 {
				fmt.Println("preview requires <dir> and <flow-id>")
				usage()
				os.Exit(2)
			}
			out := ""
			if len(args) >= 5 {
				out = args[4]
			}
			runPreview(l, &ph, args[2], args[3], out)
			return
		case "index":
			if len(args) < 3 {
				fmt.Println("index requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			l.Info("rebuild index", slog.String("root", abs))
			if err := storage.RebuildIndex(context.Background(), abs, h.Project); err != nil {
				l.Error("index rebuild failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Index rebuilt at", storage.IndexPath(abs))
			return
		case "search":
			if len(args) < 4 {
				fmt.Println("search requires <dir> and <term>")
				usage()
				os.Exit(2)
			}
			abs, _ := filepath.Abs(args[2])
			h, err := storage.Open(abs)
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			ph = h
			ctx := context.Background()
			if err := storage.BuildIndexIfEmpty(ctx, abs, h.Project); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			results, err := storage.Search(ctx, abs, storage.SearchQuery{Text: args[3]})
			if err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, r := range results {
				snippet := r.Snippet
				if snippet == "" {
					snippet = r.Path
				}
				fmt.Printf("%-10s %-40s %s\n", r.Type, r.Path, snippet)
			}
			fmt.Printf("%d result(s)\n", len(results))
			return
		case "fetch":
			if len(args) < 5 {
				fmt.Println("fetch requires <url>, <id> and <dir>")
				usage()
				os.Exit(2)
			}
			runFetch(l, &ph, args[2], args[3], args[4])
			return
		case "serve":
			l.Info("starting story library server")
			if err := backend.Start(); err != nil {
				l.Error("server failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// runExport resolves options from the user config, serializes and writes the
// resulting files under <dir>/exports/<format>/ unless an output directory is
// given.
func runExport(l *slog.Logger, ph **storage.ProjectHandle, args []string) {
	if len(args) < 1 {
		fmt.Println("export requires <dir>")
		usage()
		os.Exit(2)
	}
	abs, _ := filepath.Abs(args[0])
	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	format := cfg.Export.Format
	if len(args) >= 2 {
		format = args[1]
	}
	h, err := storage.Open(abs)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	*ph = h

	opt := export.DefaultOptions(format)
	opt.PrettyPrint = cfg.Export.PrettyPrint
	opt.IncludeLocalization = cfg.Export.IncludeLocalization
	opt.ValidateBeforeExport = cfg.Export.ValidateBefore

	lo := applog.WithOperation(l, "export")
	lo.Info("export", slog.String("root", abs), slog.String("format", format))
	start := time.Now()
	res, err := export.Run(&h.Project, opt)
	if err != nil {
		lo.Error("export failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	outDir := filepath.Join(abs, "exports", format)
	if len(args) >= 3 {
		outDir, _ = filepath.Abs(args[2])
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	files := res.Files
	if res.Sidecar != nil {
		files = append(files, *res.Sidecar)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(outDir, f.Name), f.Content, 0o644); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", filepath.Join(outDir, f.Name))
	}
	telemetry.Event("export", map[string]any{
		"format":      format,
		"files":       len(files),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	fmt.Printf("Exported %d file(s) to %s\n", len(files), outDir)
}

// runPreview serves a flow diagram from the preview cache, rendering it only
// on a miss, then enforces the cache size cap.
func runPreview(l *slog.Logger, ph **storage.ProjectHandle, dir, flowID, out string) {
	abs, _ := filepath.Abs(dir)
	h, err := storage.Open(abs)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	*ph = h

	ctx := context.Background()
	lo := applog.WithOperation(l, "preview")
	blob, err := storage.GetOrCreatePreview(ctx, abs, flowID, storage.PreviewKindSVG,
		func(ctx context.Context) ([]byte, error) {
			lo.Info("render preview", slog.String("flow", flowID))
			return export.FlowPreviewSVG(&h.Project, flowID)
		})
	if err != nil {
		lo.Error("preview failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	if db, err := storage.InitOrOpenIndex(abs); err == nil {
		if err := storage.EvictPreviewsToFit(ctx, db, storage.MaxPreviewsBytesFromEnv()); err != nil {
			lo.Warn("preview eviction failed", slog.Any("err", err))
		}
		_ = db.Close()
	}

	if out == "" {
		out = filepath.Join(abs, "exports", "previews", flowID+".svg")
	} else {
		out, _ = filepath.Abs(out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, blob, 0o644); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	total, _ := storage.TotalPreviewBytes(ctx, abs)
	fmt.Printf("Wrote %s (cache holds %d byte(s))\n", out, total)
}

// runFetch pulls a project manifest from a story library server and
// initializes a local project directory from it. The bearer token comes from
// the OS keychain via the config layer.
func runFetch(l *slog.Logger, ph **storage.ProjectHandle, url, idArg, dir string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("fetch requires a numeric <id>")
		os.Exit(2)
	}
	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	abs, _ := filepath.Abs(dir)
	lo := applog.WithOperation(l, "fetch")
	lo.Info("fetch project", slog.Int64("id", id), slog.String("url", url))

	client := backend.NewClient(url, token)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond)
	defer cancel()
	proj, err := client.FetchProject(ctx, id)
	if err != nil {
		lo.Error("fetch failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	h, err := storage.InitProject(abs, *proj)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	*ph = h
	fmt.Printf("Fetched %q into %s\n", proj.Name, abs)
}

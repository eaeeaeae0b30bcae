/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goflowwriter/internal/domain"
	applog "goflowwriter/internal/log"
	"goflowwriter/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project ephemeral/index data under the project root.
	IndexDirName  = ".gfw"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .gfw/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers may close it when no longer needed.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .gfw dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gfw dir: %w", err)
	}

	path := IndexPath(projectRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enforce foreign keys just in case future schema uses them.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	// Ensure core index schema exists (documents, FTS, cross-refs, previews, snapshots)
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	// Run migrations to bring DB schema up to date
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	// Create tables if not exist
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id             INTEGER PRIMARY KEY CHECK(id=1),
			schema_version INTEGER NOT NULL,
			app            TEXT,
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	// Check if a version row exists
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema_version FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Insert new row with current schemaVersion for a fresh DB
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema_version, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema_version FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just log and continue
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add helpful indexes for cross-refs and optimize FTS
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_cross_refs_to ON cross_refs(to_id);`,
				`CREATE INDEX IF NOT EXISTS idx_cross_refs_from ON cross_refs(from_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema_version=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_documents(fts_documents) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Core documents table: sheet variables, dialogue lines, responses,
		// hub labels, scenes and screenplay text.
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id     INTEGER PRIMARY KEY,
			type       TEXT    NOT NULL,
			path       TEXT    NOT NULL,
			flow_id    TEXT,
			speaker_id TEXT,
			text       TEXT
		);`,
		// Helpful indices for lookup
		`CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_flow ON documents(flow_id);`,

		// Contentless FTS5 index fed from documents via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,

		// Cross references between documents (variable where-used)
		`CREATE TABLE IF NOT EXISTS cross_refs (
			from_id INTEGER NOT NULL,
			to_id   INTEGER NOT NULL,
			PRIMARY KEY(from_id, to_id),
			FOREIGN KEY(from_id) REFERENCES documents(doc_id) ON DELETE CASCADE,
			FOREIGN KEY(to_id)   REFERENCES documents(doc_id) ON DELETE CASCADE
		);`,

		// Previews cache (rendered flow diagrams and other export previews)
		`CREATE TABLE IF NOT EXISTS previews (
			id          INTEGER PRIMARY KEY,
			flow_id     TEXT NOT NULL,
			kind        TEXT NOT NULL,
			blob        BLOB NOT NULL,
			size        INTEGER NOT NULL DEFAULT 0,
			updated_at  TEXT NOT NULL,
			last_access TEXT
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_previews_flow_kind ON previews(flow_id, kind);`,
		`CREATE INDEX IF NOT EXISTS idx_previews_access ON previews(last_access);`,

		// Snapshots (crash/autosave history of flow graphs)
		`CREATE TABLE IF NOT EXISTS snapshots (
			id        INTEGER PRIMARY KEY,
			flow_id   TEXT NOT NULL,
			ts        TEXT NOT NULL,
			data_blob BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_flow_ts ON snapshots(flow_id, ts);`,

		// Screenplay snapshots (history of screenplay text for change tracking)
		`CREATE TABLE IF NOT EXISTS screenplay_snapshots (
			id            INTEGER PRIMARY KEY,
			screenplay_id TEXT NOT NULL,
			ts            TEXT NOT NULL,
			text          TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_screenplay_snapshots_ts ON screenplay_snapshots(screenplay_id, ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with documents.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE OF text ON documents BEGIN
			INSERT INTO fts_documents(fts_documents, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_documents(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) (bool, error) {
	path := IndexPath(projectRoot)
	// Try to open DB; if fails, attempt backup+delete+rebuild
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, projectRoot, proj); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	// quick_check for corruption
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	// Probe core table
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM documents LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	// Backup and remove existing DB file
	backupIndexFile(path)
	_ = os.Remove(path)
	// Rebuild
	if err := RebuildIndex(ctx, projectRoot, proj); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .gfw/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty ensures the DB exists and, if the documents table is
// empty, populates it from the given manifest.
func BuildIndexIfEmpty(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Check if documents has any rows
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents;").Scan(&cnt); err != nil {
		return fmt.Errorf("check documents count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildDocumentsFromProject(ctx, db, proj)
}

// UpdateIndex updates the embedded index with changes from the project manifest.
// Minimal safe implementation: replace the documents content from the provided manifest.
func UpdateIndex(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildDocumentsFromProject(ctx, db, proj)
}

// RebuildIndex drops and recreates core index tables and rebuilds content from the manifest.
// It preserves meta/version tables. This is a safe operation; the index is derived from story.json.
func RebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Drop core tables inside a transaction and recreate schema
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS cross_refs;",
		"DROP TABLE IF EXISTS previews;",
		"DROP TABLE IF EXISTS snapshots;",
		"DROP TABLE IF EXISTS screenplay_snapshots;",
		"DROP TRIGGER IF EXISTS documents_ai;",
		"DROP TRIGGER IF EXISTS documents_ad;",
		"DROP TRIGGER IF EXISTS documents_au;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TABLE IF EXISTS fts_documents;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	// Recreate schema and populate
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildDocumentsFromProject(ctx, db, proj)
}

// docRow is one pending document insert.
type docRow struct {
	typeStr   string
	path      string
	flowID    sql.NullString
	speakerID sql.NullString
	text      string
}

// rebuildDocumentsFromProject replaces the documents table content from the
// given project manifest and rebuilds the variable cross references.
func rebuildDocumentsFromProject(ctx context.Context, db *sql.DB, proj domain.Project) error {
	rows := make([]docRow, 0, 256)
	// refs collects (from path, to path) pairs resolved to ids after insert.
	var refs [][2]string

	// Project-level metadata
	if s := strings.TrimSpace(proj.Name); s != "" {
		rows = append(rows, docRow{typeStr: "project_name", path: "project:name", text: s})
	}
	if s := strings.TrimSpace(proj.Metadata.Series); s != "" {
		rows = append(rows, docRow{typeStr: "project_series", path: "project:series", text: s})
	}
	if s := strings.TrimSpace(proj.Metadata.Authors); s != "" {
		rows = append(rows, docRow{typeStr: "authors", path: "project:authors", text: s})
	}
	if s := strings.TrimSpace(proj.Metadata.Notes); s != "" {
		rows = append(rows, docRow{typeStr: "project_notes", path: "project:notes", text: s})
	}

	// Sheets and their exported variables
	for _, sh := range proj.Sheets {
		if s := strings.TrimSpace(sh.Name); s != "" {
			rows = append(rows, docRow{typeStr: "sheet", path: "sheet:" + sh.Shortcut, text: s})
		}
		for _, b := range sh.Blocks {
			if !b.IsVariable() {
				continue
			}
			id := b.Identifier(sh)
			rows = append(rows, docRow{typeStr: "variable", path: variableDocPath(sh.Shortcut, b.VariableName()), text: id})
		}
	}

	// Flows: dialogue lines, responses, hub labels, plus variable references
	// from conditions and instructions.
	for _, f := range proj.Flows {
		flowID := sql.NullString{String: f.ID, Valid: true}
		for _, n := range f.Nodes {
			nodePath := "flow:" + f.Shortcut + "/node:" + n.ID
			switch n.Kind() {
			case domain.NodeDialogue:
				d := n.DialoguePayload()
				if s := strings.TrimSpace(d.Text); s != "" {
					sp := sql.NullString{String: d.SpeakerSheetID, Valid: d.SpeakerSheetID != ""}
					rows = append(rows, docRow{typeStr: "dialogue", path: nodePath, flowID: flowID, speakerID: sp, text: s})
				}
				for _, r := range d.Responses {
					if s := strings.TrimSpace(r.Text); s != "" {
						rp := nodePath + "/response:" + r.ID
						rows = append(rows, docRow{typeStr: "response", path: rp, flowID: flowID, text: s})
						refs = append(refs, conditionRefs(rp, r.Condition)...)
						refs = append(refs, assignmentRefs(rp, r.Assignments)...)
					}
				}
			case domain.NodeCondition:
				c := n.ConditionPayload()
				if c.Condition != nil && len(c.Condition.Rules) > 0 {
					rows = append(rows, docRow{typeStr: "condition", path: nodePath, flowID: flowID, text: conditionSummary(c.Condition)})
					refs = append(refs, conditionRefs(nodePath, c.Condition)...)
				}
			case domain.NodeInstruction:
				in := n.InstructionPayload()
				if len(in.Assignments) > 0 {
					rows = append(rows, docRow{typeStr: "instruction", path: nodePath, flowID: flowID, text: assignmentSummary(in.Assignments)})
					refs = append(refs, assignmentRefs(nodePath, in.Assignments)...)
				}
			case domain.NodeHub:
				rows = append(rows, docRow{typeStr: "hub", path: nodePath, flowID: flowID, text: n.HubLabel()})
			}
		}
	}

	// Scenes and screenplays
	for _, sc := range proj.Scenes {
		text := strings.TrimSpace(strings.Join([]string{sc.Name, sc.Location, sc.Description}, " "))
		if text != "" {
			rows = append(rows, docRow{typeStr: "scene", path: "scene:" + sc.ID, text: text})
		}
	}
	for _, sp := range proj.Screenplays {
		if s := strings.TrimSpace(sp.Body); s != "" {
			rows = append(rows, docRow{typeStr: "screenplay", path: "screenplay:" + sp.ID, text: sp.Title + "\n" + s})
		}
	}

	// Write in a transaction: clear documents, insert rows, then cross refs.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cross_refs;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear cross_refs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear documents: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO documents(type, path, flow_id, speaker_id, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	ids := make(map[string]int64, len(rows))
	for _, r := range rows {
		res, err := ins.ExecContext(ctx, r.typeStr, r.path, r.flowID, r.speakerID, r.text)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert document: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			ids[r.path] = id
		}
	}
	for _, ref := range refs {
		from, ok := ids[ref[0]]
		if !ok {
			continue
		}
		to, ok := ids[ref[1]]
		if !ok {
			// Reference to a variable not declared on any sheet; skip.
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO cross_refs(from_id, to_id) VALUES(?,?);", from, to); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert cross ref: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func variableDocPath(sheet, variable string) string {
	return "variable:" + sheet + "." + domain.Slugify(variable)
}

func conditionRefs(fromPath string, tree *domain.ConditionTree) [][2]string {
	if tree == nil {
		return nil
	}
	var out [][2]string
	for _, r := range tree.Rules {
		if r.Variable == "" {
			continue
		}
		out = append(out, [2]string{fromPath, variableDocPath(r.Sheet, r.Variable)})
	}
	return out
}

func assignmentRefs(fromPath string, assignments []domain.Assignment) [][2]string {
	var out [][2]string
	for _, a := range assignments {
		if a.Variable == "" {
			continue
		}
		out = append(out, [2]string{fromPath, variableDocPath(a.Sheet, a.Variable)})
	}
	return out
}

func conditionSummary(tree *domain.ConditionTree) string {
	parts := make([]string, 0, len(tree.Rules))
	for _, r := range tree.Rules {
		parts = append(parts, r.Sheet+"."+r.Variable+" "+r.Operator)
	}
	return strings.Join(parts, ", ")
}

func assignmentSummary(assignments []domain.Assignment) string {
	parts := make([]string, 0, len(assignments))
	for _, a := range assignments {
		parts = append(parts, a.Sheet+"."+a.Variable+" "+a.Operator)
	}
	return strings.Join(parts, ", ")
}

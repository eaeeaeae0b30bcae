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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes the in-app search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Filters are optional. Speaker matches the dialogue speaker sheet id or name.
// Flow restricts matches to one flow id. Types can restrict to kinds like:
// dialogue, response, condition, instruction, hub, variable, scene, screenplay.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text    string
	Speaker string
	Flow    string
	Types   []string
	Limit   int
	Offset  int
}

// SearchResult represents a single match row.
// Snippet is an optional highlighted excerpt using [ ] markers when FTS text is used.
// FlowID is empty for documents outside any flow.
// DocID can be used with WhereUsed to find references.
type SearchResult struct {
	DocID   int64
	Type    string
	Path    string
	FlowID  string
	Snippet string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over documents with filters applied.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	// Build dynamic SQL
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.flow_id,''), snippet(fts_documents, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_documents JOIN documents d ON fts_documents.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_documents MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.type, d.path, COALESCE(d.flow_id,''), ''\n")
		sb.WriteString("FROM documents d\nWHERE 1=1\n")
	}
	// Types filter (IN list)
	if len(q.Types) > 0 {
		sb.WriteString(" AND d.type IN (" + placeholders(len(q.Types)) + ")\n")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	// Flow filter
	if s := strings.TrimSpace(q.Flow); s != "" {
		sb.WriteString(" AND d.flow_id = ?\n")
		args = append(args, s)
	}
	// Speaker filter: prefer exact speaker_id when populated, else fall back
	// to path/text contains.
	if s := strings.TrimSpace(q.Speaker); s != "" {
		ss := strings.ToLower(s)
		sb.WriteString(" AND ( (d.speaker_id IS NOT NULL AND lower(d.speaker_id)=?) OR lower(d.text) LIKE ? OR lower(d.path) LIKE ? )\n")
		args = append(args, ss, likeContains(ss+":"), likeContains("sheet:"+ss))
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY d.flow_id NULLS LAST, d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.FlowID, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WhereUsed returns documents that reference the given target document ID using cross_refs.
// Variable documents are the usual target: the result lists every condition,
// instruction and response that reads or writes the variable.
func WhereUsed(ctx context.Context, projectRoot string, targetDocID int64, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT d.doc_id, d.type, d.path, COALESCE(d.flow_id,''), ''
		FROM cross_refs x
		JOIN documents d ON d.doc_id = x.from_id
		WHERE x.to_id = ?
		ORDER BY d.flow_id NULLS LAST, d.doc_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, targetDocID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.FlowID, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WhereUsedByPath resolves a document by path then returns references to it.
func WhereUsedByPath(ctx context.Context, projectRoot string, path string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	var id int64
	err = db.QueryRowContext(ctx, "SELECT doc_id FROM documents WHERE path=?", path).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []SearchResult{}, nil
		}
		return nil, err
	}
	return WhereUsed(ctx, projectRoot, id, limit, offset)
}

// VariableWhereUsed is a convenience wrapper resolving a variable's document
// path from its sheet shortcut and variable name.
func VariableWhereUsed(ctx context.Context, projectRoot, sheet, variable string, limit, offset int) ([]SearchResult, error) {
	return WhereUsedByPath(ctx, projectRoot, variableDocPath(sheet, variable), limit, offset)
}

func likeContains(s string) string { return "%" + s + "%" }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"goflowwriter/internal/storage"
)

// SearchPG executes a search over the Postgres documents table using tsvector
// and filters, mapped to storage.SearchResult so the local SQLite index and
// the library stay query-compatible.
func SearchPG(ctx context.Context, db *sql.DB, projectID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		b.WriteString("SELECT d.id AS doc_id, d.doc_type AS type, COALESCE(d.external_ref,'') AS path, COALESCE(d.flow_id,'') AS flow_id, ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(d.raw_text,''), plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=10'), '') AS snippet ")
		b.WriteString("FROM documents d WHERE d.project_id = $2 AND d.search_vector @@ plainto_tsquery('simple', $1) ")
		args = append(args, q.Text, projectID)
	} else {
		b.WriteString("SELECT d.id AS doc_id, d.doc_type AS type, COALESCE(d.external_ref,'') AS path, COALESCE(d.flow_id,'') AS flow_id, '' AS snippet ")
		b.WriteString("FROM documents d WHERE d.project_id = $1 ")
		args = append(args, projectID)
	}

	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Types filter
	if len(q.Types) > 0 {
		b.WriteString(" AND d.doc_type = ANY (" + place(q.Types) + ") ")
	}
	// Flow filter
	if s := strings.TrimSpace(q.Flow); s != "" {
		b.WriteString(" AND d.flow_id = " + place(s) + " ")
	}
	// Speaker filter: exact speaker id when populated, else "Name:" text
	// prefixes or sheet paths, mirroring the SQLite index.
	if s := strings.TrimSpace(q.Speaker); s != "" {
		ss := strings.ToLower(s)
		b.WriteString(" AND ( lower(COALESCE(d.speaker_id,'')) = " + place(ss) +
			" OR lower(COALESCE(d.raw_text,'')) LIKE " + place("%"+ss+":%") +
			" OR lower(COALESCE(d.external_ref,'')) LIKE " + place("%sheet:"+ss+"%") + " ) ")
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY d.flow_id NULLS LAST, d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Type, &r.Path, &r.FlowID, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

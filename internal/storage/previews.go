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
	"os"
	"strconv"
	"strings"
	"time"
)

// Preview kinds stored in the previews cache. A preview is a rendered artifact
// for a flow, computed on demand and cached in the index database.
const (
	PreviewKindSVG    = "svg"    // rendered graph diagram
	PreviewKindScript = "script" // linearized script text
)

// GetPreview returns the cached blob for a flow and kind and updates last_access.
// Returns nil without error when no preview is cached.
func GetPreview(ctx context.Context, projectRoot string, flowID string, kind string) ([]byte, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	var blob []byte
	err = db.QueryRowContext(ctx, `SELECT blob FROM previews WHERE flow_id=? AND kind=?`, flowID, kind).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, _ = db.ExecContext(ctx, `UPDATE previews SET last_access=? WHERE flow_id=? AND kind=?`, now, flowID, kind)
	return blob, nil
}

// PutPreview upserts a preview blob and enforces the cache size cap via LRU eviction.
func PutPreview(ctx context.Context, projectRoot string, flowID string, kind string, blob []byte) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if kind != PreviewKindSVG && kind != PreviewKindScript {
		return fmt.Errorf("invalid kind: %s", kind)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, `INSERT INTO previews(flow_id,kind,blob,size,updated_at,last_access)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(flow_id,kind) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		flowID, kind, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	capBytes := MaxPreviewsBytesFromEnv()
	if capBytes > 0 {
		if err := EvictPreviewsToFit(ctx, db, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it using the provided generator.
func GetOrCreatePreview(ctx context.Context, projectRoot string, flowID string, kind string, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := GetPreview(ctx, projectRoot, flowID, kind); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := PutPreview(ctx, projectRoot, flowID, kind, data); err != nil {
		return nil, err
	}
	return data, nil
}

// InvalidatePreviews drops all cached previews for a flow, e.g. after the flow changed.
func InvalidatePreviews(ctx context.Context, projectRoot string, flowID string) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, `DELETE FROM previews WHERE flow_id=?`, flowID)
	return err
}

// EvictPreviewsToFit deletes least-recently-used rows until total size <= capBytes.
func EvictPreviewsToFit(ctx context.Context, db *sql.DB, capBytes int64) error {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return fmt.Errorf("sum previews size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT id, size FROM previews ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]int64, 0, 32)
	cur := total
	for rows.Next() {
		var id int64
		var sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Close the cursor before attempting to write
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	args := make([]any, len(toDelete))
	for i, v := range toDelete {
		args[i] = v
	}
	del := `DELETE FROM previews WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(toDelete)), ",") + `)`
	if _, err := db.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalPreviewBytes returns total bytes tracked by previews.size
func TotalPreviewBytes(ctx context.Context, projectRoot string) (int64, error) {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM previews`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads GFW_PREVIEWS_MAX_BYTES, defaulting to 256MB if unset.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv("GFW_PREVIEWS_MAX_BYTES")
	if v == "" {
		return 256 * 1024 * 1024
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 256 * 1024 * 1024
	}
	return n
}

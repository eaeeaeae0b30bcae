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
	"encoding/json"
	"errors"
	"time"

	"goflowwriter/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(flow_id, ts, data_blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, data_blob FROM snapshots WHERE flow_id = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, data_blob FROM snapshots WHERE flow_id = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE flow_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE flow_id = ? ORDER BY ts DESC LIMIT ?
)`

// SaveSnapshot persists a flow graph snapshot blob with a timestamp.
// It opens the project's index database if needed and inserts the record.
func SaveSnapshot(ctx context.Context, ph *ProjectHandle, flowID string, data []byte, ts time.Time) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if flowID == "" {
		return errors.New("flow id is required")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertSnapshotSQL, flowID, ts.UTC().Format(time.RFC3339Nano), data)
	return err
}

// SaveFlowSnapshot marshals the flow to JSON and stores it as a snapshot.
// This is the autosave path used by crash recovery.
func SaveFlowSnapshot(ctx context.Context, ph *ProjectHandle, f *domain.Flow, ts time.Time) error {
	if f == nil {
		return errors.New("nil flow")
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return SaveSnapshot(ctx, ph, f.ID, data, ts)
}

// GetLatestSnapshot returns the latest snapshot blob for a flow or nil if none.
func GetLatestSnapshot(ctx context.Context, ph *ProjectHandle, flowID string) ([]byte, time.Time, error) {
	if ph == nil {
		return nil, time.Time{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr string
	var blob []byte
	err = db.QueryRowContext(ctx, selectLatestSnapshotSQL, flowID).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return blob, time.Time{}, nil // return blob even if ts parse fails
	}
	return blob, ts, nil
}

// ListSnapshots returns up to limit most recent snapshots for a flow.
func ListSnapshots(ctx context.Context, ph *ProjectHandle, flowID string, limit int) ([]struct {
	TS   time.Time
	Data []byte
}, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listSnapshotsSQL, flowID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []struct {
		TS   time.Time
		Data []byte
	}
	for rows.Next() {
		var tsStr string
		var blob []byte
		if err := rows.Scan(&tsStr, &blob); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, struct {
			TS   time.Time
			Data []byte
		}{TS: ts, Data: blob})
	}
	return out, rows.Err()
}

// PruneOldSnapshots keeps at most keepLast snapshots per flow and deletes older ones.
func PruneOldSnapshots(ctx context.Context, ph *ProjectHandle, flowID string, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldSnapshotsSQL, flowID, flowID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SnapshotProject stores a snapshot of every flow and screenplay in the
// project under a single timestamp, then trims each history to keepLast
// entries. Returns how many flows and screenplays were captured.
func SnapshotProject(ctx context.Context, ph *ProjectHandle, ts time.Time, keepLast int) (int, int, error) {
	if ph == nil {
		return 0, 0, errors.New("nil ProjectHandle")
	}
	for i := range ph.Project.Flows {
		f := &ph.Project.Flows[i]
		if err := SaveFlowSnapshot(ctx, ph, f, ts); err != nil {
			return 0, 0, err
		}
		if keepLast > 0 {
			if _, err := PruneOldSnapshots(ctx, ph, f.ID, keepLast); err != nil {
				return 0, 0, err
			}
		}
	}
	for _, sp := range ph.Project.Screenplays {
		if err := SaveScreenplaySnapshot(ctx, ph, sp.ID, sp.Body, ts); err != nil {
			return 0, 0, err
		}
		if keepLast > 0 {
			if _, err := PruneOldScreenplaySnapshots(ctx, ph, sp.ID, keepLast); err != nil {
				return 0, 0, err
			}
		}
	}
	return len(ph.Project.Flows), len(ph.Project.Screenplays), nil
}

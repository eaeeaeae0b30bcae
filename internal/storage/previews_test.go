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
	"bytes"
	"context"
	"testing"
)

func TestPreviewPutGetRoundTrip(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	got, err := GetPreview(ctx, root, "flow-intro", PreviewKindSVG)
	if err != nil {
		t.Fatalf("GetPreview error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected cache miss, got %d bytes", len(got))
	}

	blob := []byte("<svg/>")
	if err := PutPreview(ctx, root, "flow-intro", PreviewKindSVG, blob); err != nil {
		t.Fatalf("PutPreview error: %v", err)
	}
	got, err = GetPreview(ctx, root, "flow-intro", PreviewKindSVG)
	if err != nil {
		t.Fatalf("GetPreview error: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	// Upsert replaces the blob for the same flow and kind
	blob2 := []byte("<svg>v2</svg>")
	if err := PutPreview(ctx, root, "flow-intro", PreviewKindSVG, blob2); err != nil {
		t.Fatalf("PutPreview upsert error: %v", err)
	}
	got, err = GetPreview(ctx, root, "flow-intro", PreviewKindSVG)
	if err != nil {
		t.Fatalf("GetPreview error: %v", err)
	}
	if !bytes.Equal(got, blob2) {
		t.Fatalf("expected upserted blob, got %q", got)
	}

	total, err := TotalPreviewBytes(ctx, root)
	if err != nil {
		t.Fatalf("TotalPreviewBytes error: %v", err)
	}
	if total != int64(len(blob2)) {
		t.Fatalf("expected total %d, got %d", len(blob2), total)
	}
}

func TestPutPreviewRejectsUnknownKind(t *testing.T) {
	root := t.TempDir()
	if err := PutPreview(context.Background(), root, "flow-intro", "thumbnail", []byte("x")); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestGetOrCreatePreviewGeneratesOnce(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) ([]byte, error) {
		calls++
		return []byte("generated"), nil
	}
	b, err := GetOrCreatePreview(ctx, root, "flow-duel", PreviewKindScript, gen)
	if err != nil {
		t.Fatalf("GetOrCreatePreview error: %v", err)
	}
	if string(b) != "generated" {
		t.Fatalf("unexpected blob %q", b)
	}
	b, err = GetOrCreatePreview(ctx, root, "flow-duel", PreviewKindScript, gen)
	if err != nil {
		t.Fatalf("GetOrCreatePreview error: %v", err)
	}
	if string(b) != "generated" || calls != 1 {
		t.Fatalf("expected cached result with 1 generator call, got %d calls", calls)
	}
}

func TestInvalidatePreviews(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	if err := PutPreview(ctx, root, "flow-intro", PreviewKindSVG, []byte("a")); err != nil {
		t.Fatalf("PutPreview error: %v", err)
	}
	if err := PutPreview(ctx, root, "flow-intro", PreviewKindScript, []byte("b")); err != nil {
		t.Fatalf("PutPreview error: %v", err)
	}
	if err := PutPreview(ctx, root, "flow-duel", PreviewKindSVG, []byte("c")); err != nil {
		t.Fatalf("PutPreview error: %v", err)
	}
	if err := InvalidatePreviews(ctx, root, "flow-intro"); err != nil {
		t.Fatalf("InvalidatePreviews error: %v", err)
	}
	if b, _ := GetPreview(ctx, root, "flow-intro", PreviewKindSVG); b != nil {
		t.Fatalf("expected flow-intro previews gone")
	}
	if b, _ := GetPreview(ctx, root, "flow-duel", PreviewKindSVG); b == nil {
		t.Fatalf("expected flow-duel preview kept")
	}
}

func TestEvictPreviewsToFit(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex error: %v", err)
	}
	defer db.Close()

	// Seed three previews of 10 bytes each with increasing last_access
	for i, id := range []string{"f1", "f2", "f3"} {
		_, err := db.ExecContext(ctx,
			`INSERT INTO previews(flow_id,kind,blob,size,updated_at,last_access) VALUES(?,?,?,?,?,?)`,
			id, PreviewKindSVG, bytes.Repeat([]byte("x"), 10), 10,
			"2026-03-01T00:00:00Z", "2026-03-01T00:00:0"+string(rune('0'+i))+"Z")
		if err != nil {
			t.Fatalf("seed preview: %v", err)
		}
	}
	if err := EvictPreviewsToFit(ctx, db, 20); err != nil {
		t.Fatalf("EvictPreviewsToFit error: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM previews").Scan(&n); err != nil {
		t.Fatalf("count previews: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 previews after eviction, got %d", n)
	}
	// Oldest access (f1) must be the evicted one
	var remain int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM previews WHERE flow_id='f1'").Scan(&remain); err != nil {
		t.Fatalf("check f1: %v", err)
	}
	if remain != 0 {
		t.Fatalf("expected f1 evicted")
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"testing"

	"goflowwriter/internal/domain"
)

func TestScreenplayPDFOutput(t *testing.T) {
	p := helloProject()
	p.Metadata.Authors = "A. Drost"
	p.Scenes = []domain.Scene{{ID: "sc1", Name: "Throne Room", SlugLine: "INT. THRONE ROOM - DAY", Description: "Dust in the light."}}
	p.Screenplays = []domain.Screenplay{{
		ID:    "sp1",
		Title: "Cold Open",
		Body:  "INT. GATEHOUSE - NIGHT\nRain hammers the portcullis.\nGUARD: Who goes there?\n; check pacing here",
	}}

	res, err := Run(p, DefaultOptions("pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Files) != 1 || res.Files[0].Name != "westwood.pdf" {
		t.Fatalf("files = %v", res.Files)
	}
	if !bytes.HasPrefix(res.Files[0].Content, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", res.Files[0].Content[:8])
	}

	// The document uses several font families; without sorted resource
	// catalogs their object order varies run to run, so compare a batch of
	// re-exports rather than a single pair.
	for i := 0; i < 8; i++ {
		again, err := Run(p, DefaultOptions("pdf"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(res.Files[0].Content, again.Files[0].Content) {
			t.Fatalf("re-export %d of unchanged project not byte identical", i)
		}
	}
}

func TestScreenplayPDFEmptyProject(t *testing.T) {
	res, err := Run(&domain.Project{Name: "Blank"}, DefaultOptions("pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(res.Primary(), []byte("%PDF-")) {
		t.Fatal("empty project must still render a valid document")
	}
}

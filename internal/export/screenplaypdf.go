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
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"goflowwriter/internal/domain"
	"goflowwriter/internal/flow"
	"goflowwriter/internal/script"
)

// screenplayPDFSerializer renders a printable script: scene headings, speaker
// cues and dialogue from the linearized flows, followed by any screenplay
// documents. Built-in Helvetica/Courier keep text vector without embedding.
type screenplayPDFSerializer struct{}

func (s *screenplayPDFSerializer) ContentType() string   { return "application/pdf" }
func (s *screenplayPDFSerializer) FileExtension() string { return ".pdf" }
func (s *screenplayPDFSerializer) FormatLabel() string   { return "Screenplay PDF" }

func (s *screenplayPDFSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{
		SectionFlows:       true,
		SectionScenes:      true,
		SectionScreenplays: true,
	}
}

// Page metrics in points, US Letter with screenplay-style margins.
const (
	pdfMarginLeft  = 108.0
	pdfMarginTop   = 72.0
	pdfLineWidth   = 396.0
	pdfSpeakerLeft = 252.0
	pdfDialogLeft  = 180.0
	pdfDialogWidth = 252.0
)

func (s *screenplayPDFSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	// Re-exports of an unchanged project must be byte identical: pin the
	// creation date and sort the resource catalogs, since gofpdf otherwise
	// stamps the wall clock and writes font objects in map order.
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetCatalogSort(true)
	pdf.SetTitle(p.Name, true)
	pdf.SetAuthor(p.Metadata.Authors, true)
	pdf.SetMargins(pdfMarginLeft, pdfMarginTop, 72)
	pdf.SetAutoPageBreak(true, pdfMarginTop)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(pdfLineWidth, 24, p.Name, "", 1, "C", false, 0, "")
	if p.Metadata.Authors != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(pdfLineWidth, 18, "by "+p.Metadata.Authors, "", 1, "C", false, 0, "")
	}
	pdf.Ln(24)

	speakers := SpeakerNames(sheetsInScope(p, opt))
	pdf.SetFont("Courier", "", 12)

	for _, f := range flowsInScope(p, opt) {
		s.writeFlow(pdf, f, speakers)
	}
	for _, sc := range scenesInScope(p, opt) {
		slug := sc.SlugLine
		if slug == "" {
			slug = sc.Location
		}
		writeSlugLine(pdf, slug)
		if sc.Description != "" {
			writeAction(pdf, sc.Description)
		}
	}
	if opt.IncludeScreenplays {
		for _, sp := range p.Screenplays {
			writeSlugLine(pdf, sp.Title)
			writeScreenplayBody(pdf, sp.Body)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &Result{Files: []File{{
		Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
		Content: buf.Bytes(),
	}}}, nil
}

func (s *screenplayPDFSerializer) writeFlow(pdf *gofpdf.Fpdf, f *domain.Flow, speakers map[string]string) {
	writeSlugLine(pdf, f.Name)
	ins, hubs := flow.Linearize(f)
	s.writeInstructions(pdf, ins, speakers)
	for _, h := range hubs {
		writeAction(pdf, "["+h.Label+"]")
		s.writeInstructions(pdf, h.Instructions, speakers)
	}
	pdf.Ln(12)
}

func (s *screenplayPDFSerializer) writeInstructions(pdf *gofpdf.Fpdf, ins []flow.Instruction, speakers map[string]string) {
	for _, in := range ins {
		switch in.Op {
		case flow.OpDialogue:
			if in.Dialogue == nil || in.Dialogue.Text == "" {
				continue
			}
			name := speakers[in.Dialogue.SpeakerSheetID]
			if name != "" {
				pdf.SetX(pdfSpeakerLeft)
				pdf.CellFormat(pdfDialogWidth, 14, strings.ToUpper(name), "", 1, "L", false, 0, "")
			}
			pdf.SetX(pdfDialogLeft)
			pdf.MultiCell(pdfDialogWidth, 14, StripHTML(in.Dialogue.Text), "", "L", false)
			pdf.Ln(6)
		case flow.OpChoice:
			if in.Response != nil {
				writeAction(pdf, "> "+StripHTML(in.Response.Text))
			}
		case flow.OpScene:
			writeSlugLine(pdf, sceneMarker(in.Scene))
		case flow.OpDivert, flow.OpJump:
			writeAction(pdf, "CONTINUED: "+in.Label)
		}
	}
}

func writeSlugLine(pdf *gofpdf.Fpdf, text string) {
	if text == "" {
		return
	}
	pdf.SetFont("Courier", "B", 12)
	pdf.MultiCell(pdfLineWidth, 14, strings.ToUpper(text), "", "L", false)
	pdf.SetFont("Courier", "", 12)
	pdf.Ln(6)
}

// writeScreenplayBody lays out a parsed screenplay document: slug lines for
// scene headings, centered speaker cues with indented dialogue, and plain
// action blocks. Notes are author-only and never reach the page.
func writeScreenplayBody(pdf *gofpdf.Fpdf, body string) {
	sc, _ := script.Parse(body)
	for _, scene := range sc.Scenes {
		if scene.Heading != "" && scene.Heading != "Untitled" {
			writeSlugLine(pdf, scene.Heading)
		}
		for _, ln := range scene.Lines {
			switch ln.Type {
			case script.LineDialogue:
				if ln.Character != "" {
					pdf.SetX(pdfSpeakerLeft)
					pdf.CellFormat(pdfDialogWidth, 14, strings.ToUpper(ln.Character), "", 1, "L", false, 0, "")
				}
				pdf.SetX(pdfDialogLeft)
				pdf.MultiCell(pdfDialogWidth, 14, ln.Text, "", "L", false)
				pdf.Ln(6)
			case script.LineAction:
				writeAction(pdf, ln.Text)
			}
		}
	}
}

func writeAction(pdf *gofpdf.Fpdf, text string) {
	pdf.MultiCell(pdfLineWidth, 14, text, "", "L", false)
	pdf.Ln(6)
}

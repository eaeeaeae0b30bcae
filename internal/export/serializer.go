/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a project snapshot into the supported target dialogue
// formats. Each serializer consumes the linearized instruction streams from
// internal/flow together with the compiled expressions from internal/expr and
// produces complete output files in memory.
package export

import (
	"errors"
	"fmt"
	"sort"

	"goflowwriter/internal/domain"
	"goflowwriter/internal/storage"
)

// Section names a part of the project a serializer can render.
type Section string

const (
	SectionFlows       Section = "flows"
	SectionSheets      Section = "sheets"
	SectionScenes      Section = "scenes"
	SectionScreenplays Section = "screenplays"
)

// Options configures one export call. The Include flags default to true via
// DefaultOptions; the ID slices are allow-lists where nil means "all".
type Options struct {
	Format               string
	IncludeSheets        bool
	IncludeFlows         bool
	IncludeScenes        bool
	IncludeScreenplays   bool
	IncludeLocalization  bool
	SheetIDs             []string
	FlowIDs              []string
	SceneIDs             []string
	PrettyPrint          bool
	ValidateBeforeExport bool
}

// DefaultOptions returns Options for the given format with all sections
// included.
func DefaultOptions(format string) Options {
	return Options{
		Format:              format,
		IncludeSheets:       true,
		IncludeFlows:        true,
		IncludeScenes:       true,
		IncludeScreenplays:  true,
		IncludeLocalization: true,
	}
}

// File is one named output artifact.
type File struct {
	Name    string
	Content []byte
}

// Result bundles the produced files. Single-file formats return exactly one
// File; Sidecar carries the optional metadata.json companion.
type Result struct {
	Files   []File
	Sidecar *File
}

// Primary returns the first file's content, for single-file formats.
func (r *Result) Primary() []byte {
	if r == nil || len(r.Files) == 0 {
		return nil
	}
	return r.Files[0].Content
}

// Serializer is the common contract every target format implements.
type Serializer interface {
	ContentType() string
	FileExtension() string
	FormatLabel() string
	SupportedSections() map[Section]bool
	Serialize(p *domain.Project, opt Options) (*Result, error)
}

// Typed error surface. Unknown formats and unknown options are configuration
// errors surfaced before any traversal; corrupt graph data is not an error at
// all (the serializers degrade instead).
var (
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrNotImplemented = errors.New("serialize to file is not implemented")
)

// multiFileThreshold is the flow count above which the text-script formats
// split their output into one file per flow plus a shared declarations file.
const multiFileThreshold = 5

func registry() map[string]Serializer {
	return map[string]Serializer{
		"yarn":       &yarnSerializer{},
		"ink":        &inkSerializer{},
		"twison":     &twisonSerializer{},
		"dialoguedb": &dialogueDBSerializer{},
		"graphjson":  &graphJSONSerializer{},
		"tablecsv":   &tableCSVSerializer{},
		"pdf":        &screenplayPDFSerializer{},
		"svg":        &graphSVGSerializer{},
	}
}

// Formats lists the registered format names, sorted.
func Formats() []string {
	reg := registry()
	out := make([]string, 0, len(reg))
	for k := range reg {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ForFormat resolves a serializer by format name.
func ForFormat(name string) (Serializer, error) {
	if s, ok := registry()[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Run resolves the serializer for opt.Format, applies the optional
// validate-before-export gate and serializes the project. This is the single
// entry point exercised by the CLI.
func Run(p *domain.Project, opt Options) (*Result, error) {
	s, err := ForFormat(opt.Format)
	if err != nil {
		return nil, err
	}
	if opt.ValidateBeforeExport {
		if err := storage.ValidateProject(p); err != nil {
			return nil, fmt.Errorf("validate before export: %w", err)
		}
	}
	return s.Serialize(p, opt)
}

// SerializeToFile is intentionally unsupported: output is always assembled in
// memory first and written by the caller. Callers must not retry.
func SerializeToFile(Serializer, *domain.Project, Options, string) error {
	return ErrNotImplemented
}

// inScope reports whether id passes an allow-list (nil allows everything).
func inScope(id string, allow []string) bool {
	if allow == nil {
		return true
	}
	for _, a := range allow {
		if a == id {
			return true
		}
	}
	return false
}

func flowsInScope(p *domain.Project, opt Options) []*domain.Flow {
	if !opt.IncludeFlows {
		return nil
	}
	var out []*domain.Flow
	for i := range p.Flows {
		if inScope(p.Flows[i].ID, opt.FlowIDs) {
			out = append(out, &p.Flows[i])
		}
	}
	return out
}

func sheetsInScope(p *domain.Project, opt Options) []domain.Sheet {
	if !opt.IncludeSheets {
		return nil
	}
	var out []domain.Sheet
	for _, s := range p.Sheets {
		if inScope(s.ID, opt.SheetIDs) {
			out = append(out, s)
		}
	}
	return out
}

func scenesInScope(p *domain.Project, opt Options) []domain.Scene {
	if !opt.IncludeScenes {
		return nil
	}
	var out []domain.Scene
	for _, s := range p.Scenes {
		if inScope(s.ID, opt.SceneIDs) {
			out = append(out, s)
		}
	}
	return out
}

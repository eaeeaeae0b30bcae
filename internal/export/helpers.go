/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"crypto/sha1"
	"fmt"
	"strconv"
	"strings"

	"goflowwriter/internal/domain"
	"goflowwriter/internal/expr"
)

// GenerateGUID derives a stable, UUID-shaped identifier from a string key.
// The same key always yields the same GUID, so re-exporting an unchanged
// project produces byte-identical output.
func GenerateGUID(key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// lineTag derives the short per-line localization id used by the text-script
// dialects.
func lineTag(key string) string {
	sum := sha1.Sum([]byte(key))
	return fmt.Sprintf("%x", sum[0:4])
}

// SanitizeIdentifier slugs a name and keeps it syntactically legal in dialects
// whose identifiers must not start with a digit.
func SanitizeIdentifier(s string) string {
	s = domain.Slugify(s)
	if s == "" {
		return "unnamed"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "n_" + s
	}
	return s
}

// StripHTML removes markup tags from rich text and unescapes the common
// entities. Block-level breaks become newlines.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	var tag strings.Builder
	for _, r := range s {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
				switch strings.ToLower(strings.TrimSuffix(strings.TrimSpace(tag.String()), "/")) {
				case "br", "p", "div":
					b.WriteByte('\n')
				}
				tag.Reset()
			} else {
				tag.WriteRune(r)
			}
		case r == '<':
			inTag = true
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	out = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
	).Replace(out)
	return strings.TrimSuffix(out, "\n")
}

// CSVEscape quotes a field per RFC 4180 when it contains a comma, quote or
// line break.
func CSVEscape(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return "\"" + strings.ReplaceAll(field, "\"", "\"\"") + "\""
}

// Variable is one exported sheet variable with its resolved declaration
// default.
type Variable struct {
	Sheet      domain.Sheet
	Block      domain.Block
	Identifier string // dotted form, e.g. "mc.jaime.health"
	Default    any
}

// CollectVariables gathers all non-constant variables from the sheets into a
// flat namespace, in sheet and block declaration order.
func CollectVariables(sheets []domain.Sheet) []Variable {
	var out []Variable
	for _, s := range sheets {
		for _, b := range s.Blocks {
			if !b.IsVariable() {
				continue
			}
			out = append(out, Variable{
				Sheet:      s,
				Block:      b,
				Identifier: b.Identifier(s),
				Default:    declarationDefault(b),
			})
		}
	}
	return out
}

// declarationDefault derives the declared default value from a block's stored
// value. Numbers fall back to 0 and text to the empty string. Boolean blocks
// always declare false; their stored value is not carried into declarations.
func declarationDefault(b domain.Block) any {
	switch b.Type {
	case domain.BlockNumber:
		switch v := b.Value.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
		return float64(0)
	case domain.BlockBoolean:
		return false
	default:
		if s, ok := b.Value.(string); ok {
			return s
		}
		return ""
	}
}

// DefaultLookup builds the expr.DefaultLookup for the collected variables,
// keyed by sheet shortcut plus slugged variable name.
func DefaultLookup(vars []Variable) expr.DefaultLookup {
	byKey := make(map[string]any, len(vars))
	for _, v := range vars {
		byKey[v.Sheet.Shortcut+"."+v.Block.VariableName()] = v.Default
	}
	return func(sheet, variable string) (any, bool) {
		v, ok := byKey[sheet+"."+domain.Slugify(variable)]
		return v, ok
	}
}

// SpeakerNames maps sheet ids to display names for resolving dialogue
// speaker_sheet_id references. The shortcut is the fallback display name.
func SpeakerNames(sheets []domain.Sheet) map[string]string {
	out := make(map[string]string, len(sheets))
	for _, s := range sheets {
		name := s.Name
		if name == "" {
			name = s.Shortcut
		}
		out[s.ID] = name
	}
	return out
}

// variableType reports the engine-facing type name for a block.
func variableType(b domain.Block) string {
	switch b.Type {
	case domain.BlockNumber:
		return "number"
	case domain.BlockBoolean:
		return "boolean"
	default:
		return "string"
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package expr

import (
	"sort"
	"strings"

	"goflowwriter/internal/domain"
)

// YarnDialect renders expressions for the labeled-dialogue-script target.
// Variables are $-prefixed flattened identifiers; the grammar has no null
// literal, so nullness tests compare against the empty string. The dialect is
// stateful: it records runtime helper functions the emitted script depends on
// (string containment has no native operator), which feed the metadata
// sidecar. Create one instance per export.
type YarnDialect struct {
	functions map[string]bool
}

// NewYarnDialect returns a fresh dialect with an empty function record.
func NewYarnDialect() *YarnDialect {
	return &YarnDialect{functions: make(map[string]bool)}
}

// RequiredFunctions lists the runtime helpers used so far, sorted.
func (y *YarnDialect) RequiredFunctions() []string {
	out := make([]string, 0, len(y.functions))
	for f := range y.functions {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (y *YarnDialect) True() string { return "true" }

func (y *YarnDialect) VariableRef(sheet, variable string) string {
	return "$" + flatIdent(sheet, variable)
}

func (y *YarnDialect) Literal(v any) string { return renderLiteral(v, "true", "false") }

func (y *YarnDialect) CompareToken(op string) (string, bool) {
	return infixCompareToken(op)
}

func (y *YarnDialect) IsTrue(ref string) string  { return ref }
func (y *YarnDialect) IsFalse(ref string) string { return "!" + ref }

// IsNil compares against the empty string; the grammar rejects a bare null.
func (y *YarnDialect) IsNil(ref string) string { return ref + ` == ""` }

func (y *YarnDialect) Contains(ref, lit string) string {
	y.functions["str_contains"] = true
	return "str_contains(" + ref + ", " + lit + ")"
}

func (y *YarnDialect) Not(e string) string { return "!(" + e + ")" }

func (y *YarnDialect) Join(logic string, terms []string) string {
	return joinInfix(logic, terms, "&&", "||")
}

func (y *YarnDialect) Assign(ref, valueExpr string) string {
	return "<<set " + ref + " to " + valueExpr + ">>"
}

func (y *YarnDialect) AssignIfUnset(ref, unsetExpr, valueExpr string) string {
	return "<<if " + ref + " == " + unsetExpr + ">>\n" +
		"<<set " + ref + " to " + valueExpr + ">>\n" +
		"<<endif>>"
}

// flatIdent flattens sheet.variable into one underscore identifier.
func flatIdent(sheet, variable string) string {
	if sheet == "" {
		return domain.Slugify(variable)
	}
	return domain.Slugify(sheet + "." + variable)
}

func infixCompareToken(op string) (string, bool) {
	switch op {
	case "eq":
		return "==", true
	case "neq":
		return "!=", true
	case "gt":
		return ">", true
	case "gte":
		return ">=", true
	case "lt":
		return "<", true
	case "lte":
		return "<=", true
	}
	return "", false
}

func joinInfix(logic string, terms []string, and, or string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	sep := " " + and + " "
	if strings.EqualFold(logic, "any") {
		sep = " " + or + " "
	}
	return "(" + strings.Join(terms, sep) + ")"
}

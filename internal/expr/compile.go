/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package expr compiles structured condition trees and variable assignments
// into each export dialect's native expression/statement syntax. The compiler
// never fails: empty, unknown or corrupt input degrades to the dialect's
// literal true (conditions) or an empty statement (assignments), because an
// export must always produce syntactically valid output.
package expr

import (
	"strconv"
	"strings"

	"goflowwriter/internal/domain"
)

// Dialect renders the target-specific pieces of an expression. Implementations
// may carry per-export state (the yarn dialect records which runtime helper
// functions the emitted script depends on).
type Dialect interface {
	// True returns the dialect's literal always-true expression.
	True() string
	// VariableRef renders a reference to a sheet variable.
	VariableRef(sheet, variable string) string
	// Literal renders a value literal with dialect escaping.
	Literal(v any) string
	// CompareToken maps eq/neq/gt/gte/lt/lte to the dialect token.
	CompareToken(op string) (string, bool)
	// IsTrue, IsFalse, IsNil render the unary truthiness/nullness tests.
	IsTrue(ref string) string
	IsFalse(ref string) string
	IsNil(ref string) string
	// Contains renders the string-containment test.
	Contains(ref, lit string) string
	// Not negates a compiled expression.
	Not(e string) string
	// Join combines rule expressions with the dialect's AND/OR.
	Join(logic string, terms []string) string
	// Assign renders one assignment statement ref = valueExpr.
	Assign(ref, valueExpr string) string
	// AssignIfUnset renders the set_if_unset synthesis: assign only when ref
	// still holds unsetExpr.
	AssignIfUnset(ref, unsetExpr, valueExpr string) string
}

// DefaultLookup resolves a variable's declared default value, used by the
// clear and set_if_unset operators. May be nil.
type DefaultLookup func(sheet, variable string) (any, bool)

// CompileCondition renders a condition tree in the given dialect. A nil or
// empty tree compiles to the dialect's literal true.
func CompileCondition(tree *domain.ConditionTree, d Dialect) string {
	if tree == nil || len(tree.Rules) == 0 {
		return d.True()
	}
	terms := make([]string, 0, len(tree.Rules))
	for _, r := range tree.Rules {
		terms = append(terms, compileRule(r, d))
	}
	return d.Join(tree.Logic, terms)
}

func compileRule(r domain.ConditionRule, d Dialect) string {
	ref := d.VariableRef(r.Sheet, r.Variable)
	switch normalizeOp(r.Operator) {
	case "eq", "neq", "gt", "gte", "lt", "lte":
		tok, ok := d.CompareToken(normalizeOp(r.Operator))
		if !ok {
			return d.True()
		}
		return ref + " " + tok + " " + d.Literal(r.Value)
	case "is_true":
		return d.IsTrue(ref)
	case "is_false":
		return d.IsFalse(ref)
	case "is_nil":
		return d.IsNil(ref)
	case "contains":
		return d.Contains(ref, d.Literal(r.Value))
	default:
		// Unknown operator: degrade to true rather than emit an invalid token.
		return d.True()
	}
}

func normalizeOp(op string) string {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "eq", "==", "equals", "equal":
		return "eq"
	case "neq", "!=", "not_equal", "not_equals":
		return "neq"
	case "gt", ">":
		return "gt"
	case "gte", ">=":
		return "gte"
	case "lt", "<":
		return "lt"
	case "lte", "<=":
		return "lte"
	default:
		return strings.ToLower(strings.TrimSpace(op))
	}
}

// CompileCaseGuard renders the guard for one declared case of a condition
// node. "true" compiles the tree itself, "false"/"else"/"default" its
// negation, and any other value an equality test of the tree's subject
// variable against that value.
func CompileCaseGuard(tree *domain.ConditionTree, caseValue string, d Dialect) string {
	v := strings.ToLower(strings.TrimSpace(caseValue))
	switch v {
	case "", "true":
		return CompileCondition(tree, d)
	case "false", "else", "default":
		if tree == nil || len(tree.Rules) == 0 {
			return d.True()
		}
		return d.Not(CompileCondition(tree, d))
	}
	if tree == nil || len(tree.Rules) == 0 {
		return d.True()
	}
	r := tree.Rules[0]
	tok, ok := d.CompareToken("eq")
	if !ok {
		return d.True()
	}
	return d.VariableRef(r.Sheet, r.Variable) + " " + tok + " " + d.Literal(caseValue)
}

// CompileAssignment renders one assignment in the given dialect. Unknown
// operators and empty targets produce an empty string, which serializers skip.
// Dialects without a native equivalent for toggle/clear/set_if_unset get an
// expression synthesized from their own primitives.
func CompileAssignment(a domain.Assignment, d Dialect, defaults DefaultLookup) string {
	if a.Variable == "" {
		return ""
	}
	ref := d.VariableRef(a.Sheet, a.Variable)
	value := func() string {
		if a.ValueType == "variable_ref" {
			return variableRefValue(a.Value, d)
		}
		return d.Literal(a.Value)
	}
	switch normalizeOp(a.Operator) {
	case "set":
		return d.Assign(ref, value())
	case "set_true":
		return d.Assign(ref, d.Literal(true))
	case "set_false":
		return d.Assign(ref, d.Literal(false))
	case "toggle":
		return d.Assign(ref, d.Not(ref))
	case "add":
		return d.Assign(ref, ref+" + "+value())
	case "subtract":
		return d.Assign(ref, ref+" - "+value())
	case "clear":
		return d.Assign(ref, d.Literal(defaultFor(a, defaults)))
	case "set_if_unset":
		return d.AssignIfUnset(ref, d.Literal(defaultFor(a, defaults)), value())
	default:
		return ""
	}
}

func defaultFor(a domain.Assignment, defaults DefaultLookup) any {
	if defaults != nil {
		if v, ok := defaults(a.Sheet, a.Variable); ok {
			return v
		}
	}
	return ""
}

// variableRefValue renders an assignment value that references another
// variable. The value is either a "sheet.variable" string or a
// {sheet, variable} map.
func variableRefValue(v any, d Dialect) string {
	switch t := v.(type) {
	case string:
		if i := strings.LastIndex(t, "."); i > 0 {
			return d.VariableRef(t[:i], t[i+1:])
		}
		return d.VariableRef("", t)
	case map[string]any:
		sheet, _ := t["sheet"].(string)
		variable, _ := t["variable"].(string)
		return d.VariableRef(sheet, variable)
	default:
		return d.Literal(v)
	}
}

// formatNumber renders a float without a trailing ".0" for integral values.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeQuoted escapes quotes, backslashes and embedded newlines so that a
// string literal cannot break the surrounding statement.
func escapeQuoted(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "",
		"\t", "\\t",
	)
	return r.Replace(s)
}

// renderLiteral is the shared literal renderer used by all dialects that quote
// strings with double quotes and keep bare numeric/boolean tokens.
func renderLiteral(v any, boolTrue, boolFalse string) string {
	switch t := v.(type) {
	case nil:
		return "\"\""
	case bool:
		if t {
			return boolTrue
		}
		return boolFalse
	case float64:
		return formatNumber(t)
	case float32:
		return formatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return "\"" + escapeQuoted(t) + "\""
	default:
		return "\"\""
	}
}

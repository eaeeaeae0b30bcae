/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package expr

// InkDialect renders expressions for the branching-narrative-script target.
// Variables are bare flattened identifiers, statements start with "~", and
// string containment uses the native "?" operator, so no runtime helpers are
// ever required.
type InkDialect struct{}

func (InkDialect) True() string { return "true" }

func (InkDialect) VariableRef(sheet, variable string) string {
	return flatIdent(sheet, variable)
}

func (InkDialect) Literal(v any) string { return renderLiteral(v, "true", "false") }

func (InkDialect) CompareToken(op string) (string, bool) { return infixCompareToken(op) }

func (InkDialect) IsTrue(ref string) string  { return ref }
func (InkDialect) IsFalse(ref string) string { return "not " + ref }
func (InkDialect) IsNil(ref string) string   { return ref + ` == ""` }

func (InkDialect) Contains(ref, lit string) string { return ref + " ? " + lit }

func (InkDialect) Not(e string) string { return "not (" + e + ")" }

func (InkDialect) Join(logic string, terms []string) string {
	return joinInfix(logic, terms, "&&", "||")
}

func (InkDialect) Assign(ref, valueExpr string) string {
	return "~ " + ref + " = " + valueExpr
}

func (InkDialect) AssignIfUnset(ref, unsetExpr, valueExpr string) string {
	return "{ " + ref + " == " + unsetExpr + ":\n" +
		"~ " + ref + " = " + valueExpr + "\n" +
		"}"
}

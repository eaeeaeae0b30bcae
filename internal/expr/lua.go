/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package expr

// LuaDialect renders the condition/script strings embedded in the
// dialogue-database JSON target, whose runtime evaluates Lua. Variables live
// in the engine's Variable table.
type LuaDialect struct{}

func (LuaDialect) True() string { return "true" }

func (LuaDialect) VariableRef(sheet, variable string) string {
	return `Variable["` + flatIdent(sheet, variable) + `"]`
}

func (LuaDialect) Literal(v any) string { return renderLiteral(v, "true", "false") }

func (LuaDialect) CompareToken(op string) (string, bool) {
	if op == "neq" {
		return "~=", true
	}
	return infixCompareToken(op)
}

func (LuaDialect) IsTrue(ref string) string  { return ref + " == true" }
func (LuaDialect) IsFalse(ref string) string { return ref + " == false" }
func (LuaDialect) IsNil(ref string) string   { return ref + " == nil" }

func (LuaDialect) Contains(ref, lit string) string {
	return "string.find(" + ref + ", " + lit + ") ~= nil"
}

func (LuaDialect) Not(e string) string { return "not (" + e + ")" }

func (LuaDialect) Join(logic string, terms []string) string {
	return joinInfix(logic, terms, "and", "or")
}

func (LuaDialect) Assign(ref, valueExpr string) string {
	return ref + " = " + valueExpr
}

func (LuaDialect) AssignIfUnset(ref, unsetExpr, valueExpr string) string {
	return "if " + ref + " == " + unsetExpr + " then " + ref + " = " + valueExpr + " end"
}

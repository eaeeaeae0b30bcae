/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strconv"
	"strings"

	"goflowwriter/internal/domain"
	"goflowwriter/internal/expr"
	"goflowwriter/internal/flow"
)

// inkSerializer renders the branching-narrative-script dialect: knots, VAR
// declarations, star-weave choices, branch blocks with literal case labels
// (the grammar has no generic else label) and tunnels. Flows that are called
// as subflows run in tunnel mode: their exits render the tunnel return ->->
// instead of -> END, so control resumes in the caller.
type inkSerializer struct{}

func (s *inkSerializer) ContentType() string   { return "text/ink" }
func (s *inkSerializer) FileExtension() string { return ".ink" }
func (s *inkSerializer) FormatLabel() string   { return "Ink script" }

func (s *inkSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true, SectionSheets: true}
}

var inkEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"[", "\\[",
	"]", "\\]",
	"{", "\\{",
	"}", "\\}",
)

type inkExport struct {
	project  *domain.Project
	cur      *domain.Flow // flow currently being rendered
	opt      Options
	dialect  expr.InkDialect
	vars     []Variable
	defaults expr.DefaultLookup
	speakers map[string]string
	md       *scriptMetadata

	// tunnelTargets holds the knot names of every flow that is invoked by a
	// subflow node somewhere in scope. Their exits must return, not end.
	tunnelTargets map[string]bool
}

func (s *inkSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	sheets := sheetsInScope(p, opt)
	vars := CollectVariables(sheets)
	e := &inkExport{
		project:  p,
		opt:      opt,
		vars:     vars,
		defaults: DefaultLookup(vars),
		speakers: SpeakerNames(sheets),
		md: buildScriptMetadata(sheets, vars, func(v Variable) string {
			return domain.Slugify(v.Identifier)
		}),
		tunnelTargets: make(map[string]bool),
	}

	flows := flowsInScope(p, opt)
	for _, f := range flows {
		for _, n := range f.Nodes {
			if n.Kind() == domain.NodeSubflow {
				sp := n.SubflowPayload()
				e.tunnelTargets[subflowTarget(p, &sp)] = true
			}
		}
	}

	bodies := make([]string, 0, len(flows))
	for _, f := range flows {
		e.md.addFlow(f.Name, flowTitle(f))
		bodies = append(bodies, e.renderFlow(f))
	}

	res := &Result{}
	if len(flows) > multiFileThreshold {
		if len(vars) > 0 {
			res.Files = append(res.Files, File{
				Name:    "declarations" + s.FileExtension(),
				Content: []byte(e.declarations()),
			})
		}
		for i, f := range flows {
			res.Files = append(res.Files, File{
				Name:    flowTitle(f) + s.FileExtension(),
				Content: []byte(bodies[i]),
			})
		}
	} else {
		var b strings.Builder
		if len(vars) > 0 {
			b.WriteString(e.declarations())
			b.WriteString("\n")
		}
		if len(flows) > 0 {
			// Story entry point: run the first flow in scope.
			b.WriteString("-> " + flowTitle(flows[0]) + "\n\n")
		}
		for _, body := range bodies {
			b.WriteString(body)
		}
		res.Files = []File{{
			Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
			Content: []byte(b.String()),
		}}
	}

	if !opt.IncludeLocalization {
		e.md.Lines = nil
	}
	res.Sidecar = e.md.file(opt.PrettyPrint)
	return res, nil
}

func (e *inkExport) declarations() string {
	var b strings.Builder
	for _, v := range e.vars {
		b.WriteString("VAR " + domain.Slugify(v.Identifier) + " = " + e.dialect.Literal(v.Default) + "\n")
	}
	return b.String()
}

func (e *inkExport) renderFlow(f *domain.Flow) string {
	ins, hubs := flow.Linearize(f)
	e.cur = f
	tunnel := e.tunnelTargets[flowTitle(f)]
	var b strings.Builder
	e.writeKnot(&b, flowTitle(f), f.ID, ins, tunnel)
	for _, h := range hubs {
		e.writeKnot(&b, hubSectionTitle(f, h.Label), f.ID+"/"+h.Label, h.Instructions, tunnel)
	}
	return b.String()
}

func (e *inkExport) writeKnot(b *strings.Builder, name, key string, ins []flow.Instruction, tunnel bool) {
	b.WriteString("=== " + name + " ===\n")
	stmts := groupStmts(ins)
	e.writeStmts(b, stmts, key, 0, tunnel)
	if !knotTerminated(stmts) {
		b.WriteString(terminator(tunnel) + "\n")
	}
	b.WriteString("\n")
}

// knotTerminated reports whether a knot's last top-level statement already
// diverts control. An unterminated knot would fall off the story's end.
func knotTerminated(stmts []stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch stmts[len(stmts)-1].Ins.Op {
	case flow.OpExit, flow.OpDivert, flow.OpJump:
		return true
	}
	return false
}

func terminator(tunnel bool) string {
	if tunnel {
		return "->->"
	}
	return "-> END"
}

func (e *inkExport) writeStmts(b *strings.Builder, stmts []stmt, key string, depth int, tunnel bool) {
	indent := strings.Repeat("    ", depth)
	for _, st := range stmts {
		switch st.Ins.Op {
		case flow.OpDialogue:
			e.writeDialogue(b, st.Ins, key, indent)
		case flow.OpChoicesStart:
			e.writeChoices(b, st, key, depth, tunnel)
		case flow.OpConditionStart:
			e.writeCondition(b, st, key, depth, tunnel)
		case flow.OpInstruction:
			for _, a := range st.Ins.Assignments {
				if line := expr.CompileAssignment(a, e.dialect, e.defaults); line != "" {
					writeIndented(b, line, indent)
				}
			}
		case flow.OpDivert, flow.OpJump:
			b.WriteString(indent + "-> " + divertTarget(e.cur, st.Ins) + "\n")
		case flow.OpScene:
			b.WriteString(indent + "# scene: " + sceneMarker(st.Ins.Scene) + "\n")
		case flow.OpSubflow:
			b.WriteString(indent + "-> " + subflowTarget(e.project, st.Ins.Subflow) + " ->\n")
		case flow.OpExit:
			b.WriteString(indent + terminator(tunnel) + "\n")
		}
	}
}

func (e *inkExport) writeDialogue(b *strings.Builder, ins flow.Instruction, key, indent string) {
	d := ins.Dialogue
	if d == nil || d.Text == "" {
		return
	}
	prefix := ""
	if name, ok := e.speakers[d.SpeakerSheetID]; ok && name != "" {
		prefix = name + ": "
	}
	for i, line := range strings.Split(StripHTML(d.Text), "\n") {
		if line == "" {
			continue
		}
		b.WriteString(indent + prefix + inkEscaper.Replace(line) + "\n")
		e.md.addLine(lineTag(key+":"+ins.Node.ID+":"+strconv.Itoa(i)), line)
		prefix = ""
	}
}

func (e *inkExport) writeChoices(b *strings.Builder, st stmt, key string, depth int, tunnel bool) {
	indent := strings.Repeat("    ", depth)
	stars := strings.Repeat("*", depth+1)
	for _, c := range st.Choices {
		r := c.Ins.Response
		if r == nil {
			continue
		}
		line := indent + stars + " "
		if r.Condition != nil && len(r.Condition.Rules) > 0 {
			line += "{ " + expr.CompileCondition(r.Condition, e.dialect) + " } "
		}
		line += "[" + inkEscaper.Replace(StripHTML(r.Text)) + "]"
		b.WriteString(line + "\n")
		e.md.addLine(lineTag(key+":response:"+r.ID), r.Text)
		inner := strings.Repeat("    ", depth+1)
		for _, a := range r.Assignments {
			if s := expr.CompileAssignment(a, e.dialect, e.defaults); s != "" {
				writeIndented(b, s, inner)
			}
		}
		e.writeStmts(b, c.Body, key, depth+1, tunnel)
	}
}

// writeCondition renders a condition node as a branch block. The subject is
// the compiled rule tree for boolean cases, or the tree's subject variable for
// multi-way value cases; branch labels are always literal values, never a
// bare else.
func (e *inkExport) writeCondition(b *strings.Builder, st stmt, key string, depth int, tunnel bool) {
	indent := strings.Repeat("    ", depth)
	cond := st.Ins.Condition
	var tree *domain.ConditionTree
	if cond != nil {
		tree = cond.Condition
	}
	b.WriteString(indent + "{ " + e.branchSubject(tree, st.Branches) + ":\n")
	for _, br := range st.Branches {
		value := ""
		if br.Ins.Case != nil {
			value = br.Ins.Case.Value
		}
		b.WriteString(indent + "- " + inkCaseLabel(value) + ":\n")
		e.writeStmts(b, br.Body, key, depth+1, tunnel)
	}
	b.WriteString(indent + "}\n")
}

func (e *inkExport) branchSubject(tree *domain.ConditionTree, branches []branchStmt) string {
	multiway := false
	for _, br := range branches {
		if br.Ins.Case != nil && !elseCase(br.Ins.Case.Value) && br.Ins.Case.Value != "true" {
			multiway = true
		}
	}
	if multiway && tree != nil && len(tree.Rules) > 0 {
		r := tree.Rules[0]
		return e.dialect.VariableRef(r.Sheet, r.Variable)
	}
	return expr.CompileCondition(tree, e.dialect)
}

// inkCaseLabel renders a declared case value as a branch label. Catch-all
// spellings collapse to the literal false.
func inkCaseLabel(value string) string {
	switch value {
	case "true":
		return "true"
	case "false", "else", "default", "":
		return "false"
	}
	return `"` + value + `"`
}

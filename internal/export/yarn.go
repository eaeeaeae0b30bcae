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

// yarnSerializer renders the labeled-dialogue-script dialect: title/tags/---
// node headers closed by ===, <<declare>>/<<set>>/<<if>>/<<jump>> commands and
// backslash escaping for the characters the grammar reserves in body text.
// Node titles must not start with a digit and the grammar has no null literal.
type yarnSerializer struct{}

func (s *yarnSerializer) ContentType() string   { return "text/yarn" }
func (s *yarnSerializer) FileExtension() string { return ".yarn" }
func (s *yarnSerializer) FormatLabel() string   { return "Yarn script" }

func (s *yarnSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true, SectionSheets: true}
}

// yarnEscaper backslash-escapes every character the body grammar reserves,
// exactly once each.
var yarnEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"#", "\\#",
	"[", "\\[",
	"]", "\\]",
	"{", "\\{",
	"}", "\\}",
)

type yarnExport struct {
	project  *domain.Project
	cur      *domain.Flow // flow currently being rendered
	opt      Options
	dialect  *expr.YarnDialect
	vars     []Variable
	defaults expr.DefaultLookup
	speakers map[string]string
	md       *scriptMetadata
}

func (s *yarnSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	sheets := sheetsInScope(p, opt)
	vars := CollectVariables(sheets)
	e := &yarnExport{
		project:  p,
		opt:      opt,
		dialect:  expr.NewYarnDialect(),
		vars:     vars,
		defaults: DefaultLookup(vars),
		speakers: SpeakerNames(sheets),
		md: buildScriptMetadata(sheets, vars, func(v Variable) string {
			return "$" + domain.Slugify(v.Identifier)
		}),
	}

	flows := flowsInScope(p, opt)
	bodies := make([]string, 0, len(flows))
	for _, f := range flows {
		e.md.addFlow(f.Name, flowTitle(f))
		bodies = append(bodies, e.renderFlow(f))
	}

	res := &Result{}
	if len(flows) > multiFileThreshold {
		// One file per flow; declarations go into their own shared file so
		// they appear exactly once across the whole export.
		if len(vars) > 0 {
			res.Files = append(res.Files, File{
				Name:    "declarations" + s.FileExtension(),
				Content: []byte(e.declarationsNode()),
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
			b.WriteString(e.declarationsNode())
		}
		for _, body := range bodies {
			b.WriteString(body)
		}
		res.Files = []File{{
			Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
			Content: []byte(b.String()),
		}}
	}

	e.md.Functions = e.dialect.RequiredFunctions()
	if !opt.IncludeLocalization {
		e.md.Lines = nil
	}
	res.Sidecar = e.md.file(opt.PrettyPrint)
	return res, nil
}

// declarationsNode renders the single <<declare>> block node.
func (e *yarnExport) declarationsNode() string {
	var b strings.Builder
	b.WriteString("title: declarations\ntags:\n---\n")
	for _, v := range e.vars {
		b.WriteString("<<declare $" + domain.Slugify(v.Identifier) + " = " + e.dialect.Literal(v.Default) + ">>\n")
	}
	b.WriteString("===\n\n")
	return b.String()
}

func (e *yarnExport) renderFlow(f *domain.Flow) string {
	ins, hubs := flow.Linearize(f)
	e.cur = f
	var b strings.Builder
	e.writeNode(&b, flowTitle(f), f.ID, ins)
	for _, h := range hubs {
		e.writeNode(&b, hubSectionTitle(f, h.Label), f.ID+"/"+h.Label, h.Instructions)
	}
	return b.String()
}

func (e *yarnExport) writeNode(b *strings.Builder, title, key string, ins []flow.Instruction) {
	b.WriteString("title: " + title + "\n")
	b.WriteString("tags:\n---\n")
	e.writeStmts(b, groupStmts(ins), key, 0)
	b.WriteString("===\n\n")
}

func (e *yarnExport) writeStmts(b *strings.Builder, stmts []stmt, key string, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, st := range stmts {
		switch st.Ins.Op {
		case flow.OpDialogue:
			e.writeDialogue(b, st.Ins, key, indent)
		case flow.OpChoicesStart:
			e.writeChoices(b, st, key, depth)
		case flow.OpConditionStart:
			e.writeCondition(b, st, key, depth)
		case flow.OpInstruction:
			for _, a := range st.Ins.Assignments {
				if line := expr.CompileAssignment(a, e.dialect, e.defaults); line != "" {
					writeIndented(b, line, indent)
				}
			}
		case flow.OpDivert, flow.OpJump:
			b.WriteString(indent + "<<jump " + divertTarget(e.cur, st.Ins) + ">>\n")
		case flow.OpScene:
			b.WriteString(indent + "<<scene " + sceneMarker(st.Ins.Scene) + ">>\n")
		case flow.OpSubflow:
			b.WriteString(indent + "<<jump " + subflowTarget(e.project, st.Ins.Subflow) + ">>\n")
		case flow.OpExit:
			b.WriteString(indent + "<<stop>>\n")
		}
	}
}

func (e *yarnExport) writeDialogue(b *strings.Builder, ins flow.Instruction, key, indent string) {
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
		tag := lineTag(key + ":" + ins.Node.ID + ":" + strconv.Itoa(i))
		b.WriteString(indent + prefix + yarnEscaper.Replace(line) + " #line:" + tag + "\n")
		e.md.addLine(tag, line)
		prefix = ""
	}
}

func (e *yarnExport) writeChoices(b *strings.Builder, st stmt, key string, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, c := range st.Choices {
		r := c.Ins.Response
		if r == nil {
			continue
		}
		line := indent + "-> " + yarnEscaper.Replace(StripHTML(r.Text))
		if r.Condition != nil && len(r.Condition.Rules) > 0 {
			line += " <<if " + expr.CompileCondition(r.Condition, e.dialect) + ">>"
		}
		tag := lineTag(key + ":response:" + r.ID)
		b.WriteString(line + " #line:" + tag + "\n")
		e.md.addLine(tag, r.Text)
		inner := strings.Repeat("    ", depth+1)
		for _, a := range r.Assignments {
			if s := expr.CompileAssignment(a, e.dialect, e.defaults); s != "" {
				writeIndented(b, s, inner)
			}
		}
		e.writeStmts(b, c.Body, key, depth+1)
	}
}

// writeCondition renders a condition node as an if/elseif chain. Only the
// final branch may become a bare <<else>>; any catch-all case earlier in the
// list still renders as an <<elseif>> with a negated guard, because the
// grammar rejects multiple else blocks.
func (e *yarnExport) writeCondition(b *strings.Builder, st stmt, key string, depth int) {
	indent := strings.Repeat("    ", depth)
	var tree *domain.ConditionTree
	if st.Ins.Condition != nil {
		tree = st.Ins.Condition.Condition
	}
	for i, br := range st.Branches {
		value := ""
		if br.Ins.Case != nil {
			value = br.Ins.Case.Value
		}
		switch {
		case i == 0:
			b.WriteString(indent + "<<if " + expr.CompileCaseGuard(tree, value, e.dialect) + ">>\n")
		case i == len(st.Branches)-1 && elseCase(value):
			b.WriteString(indent + "<<else>>\n")
		default:
			b.WriteString(indent + "<<elseif " + expr.CompileCaseGuard(tree, value, e.dialect) + ">>\n")
		}
		e.writeStmts(b, br.Body, key, depth)
	}
	if len(st.Branches) > 0 {
		b.WriteString(indent + "<<endif>>\n")
	}
}

// writeIndented writes a possibly multi-line compiled statement with the
// given indent on every line.
func writeIndented(b *strings.Builder, s, indent string) {
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(indent + line + "\n")
	}
}

// flowTitle derives the dialect-legal identifier for a flow.
func flowTitle(f *domain.Flow) string {
	switch {
	case f.Name != "":
		return SanitizeIdentifier(f.Name)
	case f.Shortcut != "":
		return SanitizeIdentifier(f.Shortcut)
	}
	return SanitizeIdentifier(f.ID)
}

// hubSectionTitle names a hub's emitted section. The flow title prefix keeps
// section names unique when two flows share a hub label, and distinct from
// any flow title a hub might be named after; both grammars reject duplicate
// node and knot names within one file.
func hubSectionTitle(f *domain.Flow, label string) string {
	return flowTitle(f) + "_" + SanitizeIdentifier(label)
}

// divertTarget resolves the emitted name for a divert or jump. A divert
// always lands in a hub section of the current flow; a jump does too unless
// its payload names another flow.
func divertTarget(f *domain.Flow, ins flow.Instruction) string {
	if ins.Op == flow.OpJump && ins.Node != nil && ins.Node.JumpPayload().TargetFlowShortcut != "" {
		return SanitizeIdentifier(ins.Label)
	}
	return hubSectionTitle(f, ins.Label)
}

// sceneMarker resolves the scene command argument: location, then slug line,
// then an explicit "none".
func sceneMarker(sp *domain.ScenePayload) string {
	if sp != nil {
		if sp.Location != "" {
			return sp.Location
		}
		if sp.SlugLine != "" {
			return sp.SlugLine
		}
	}
	return "none"
}

// subflowTarget resolves a subflow call to the called flow's identifier.
func subflowTarget(p *domain.Project, sp *domain.SubflowPayload) string {
	if sp == nil {
		return "unknown"
	}
	if sp.FlowShortcut != "" {
		if f := p.FindFlow(sp.FlowShortcut); f != nil {
			return flowTitle(f)
		}
		return SanitizeIdentifier(sp.FlowShortcut)
	}
	if sp.FlowID != "" {
		for i := range p.Flows {
			if p.Flows[i].ID == sp.FlowID {
				return flowTitle(&p.Flows[i])
			}
		}
	}
	return "unknown"
}

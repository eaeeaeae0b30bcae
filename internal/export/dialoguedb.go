/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"strings"

	"goflowwriter/internal/domain"
	"goflowwriter/internal/expr"
)

// dialogueDBSerializer renders the engine dialogue-database JSON shape:
// actors, variables and per-flow conversations whose entries carry Lua
// condition and script strings. Entity identity uses deterministic GUIDs so
// re-importing an unchanged export never churns the engine database.
type dialogueDBSerializer struct{}

func (s *dialogueDBSerializer) ContentType() string   { return "application/json" }
func (s *dialogueDBSerializer) FileExtension() string { return ".json" }
func (s *dialogueDBSerializer) FormatLabel() string   { return "Dialogue database JSON" }

func (s *dialogueDBSerializer) SupportedSections() map[Section]bool {
	return map[Section]bool{SectionFlows: true, SectionSheets: true}
}

type dbDatabase struct {
	Name          string           `json:"name"`
	GUID          string           `json:"guid"`
	Actors        []dbActor        `json:"actors"`
	Variables     []dbVariable     `json:"variables"`
	Conversations []dbConversation `json:"conversations"`
}

type dbActor struct {
	ID   int    `json:"id"`
	GUID string `json:"guid"`
	Name string `json:"name"`
}

type dbVariable struct {
	ID           int    `json:"id"`
	GUID         string `json:"guid"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	InitialValue any    `json:"initialValue"`
}

type dbConversation struct {
	ID      int       `json:"id"`
	GUID    string    `json:"guid"`
	Title   string    `json:"title"`
	Entries []dbEntry `json:"dialogueEntries"`
}

type dbEntry struct {
	ID               int      `json:"id"`
	ConversationID   int      `json:"conversationID"`
	GUID             string   `json:"guid"`
	Title            string   `json:"title"`
	ActorName        string   `json:"actor,omitempty"`
	DialogueText     string   `json:"dialogueText,omitempty"`
	IsGroup          bool     `json:"isGroup,omitempty"`
	ConditionsString string   `json:"conditionsString,omitempty"`
	UserScript       string   `json:"userScript,omitempty"`
	OutgoingLinks    []dbLink `json:"outgoingLinks,omitempty"`
}

type dbLink struct {
	OriginConversationID      int `json:"originConversationID"`
	OriginDialogueID          int `json:"originDialogueID"`
	DestinationConversationID int `json:"destinationConversationID"`
	DestinationDialogueID     int `json:"destinationDialogueID"`
}

func (s *dialogueDBSerializer) Serialize(p *domain.Project, opt Options) (*Result, error) {
	lua := expr.LuaDialect{}
	sheets := sheetsInScope(p, opt)
	speakers := SpeakerNames(sheets)

	db := dbDatabase{
		Name: p.Name,
		GUID: GenerateGUID("project:" + p.Name),
	}
	for i, sh := range sheets {
		db.Actors = append(db.Actors, dbActor{
			ID:   i + 1,
			GUID: GenerateGUID("actor:" + sh.ID),
			Name: speakers[sh.ID],
		})
	}
	for i, v := range CollectVariables(sheets) {
		db.Variables = append(db.Variables, dbVariable{
			ID:           i + 1,
			GUID:         GenerateGUID("variable:" + v.Identifier),
			Name:         v.Identifier,
			Type:         variableType(v.Block),
			InitialValue: v.Default,
		})
	}

	for ci, f := range flowsInScope(p, opt) {
		conv := dbConversation{
			ID:    ci + 1,
			GUID:  GenerateGUID("conversation:" + f.ID),
			Title: f.Name,
		}
		ids := make(map[string]int, len(f.Nodes))
		for i, n := range f.Nodes {
			ids[n.ID] = i
		}
		entries := make([]dbEntry, 0, len(f.Nodes))
		for i, n := range f.Nodes {
			entries = append(entries, s.entryFor(f, n, conv.ID, i, lua, speakers))
		}

		// Responses become their own entries so their guards and scripts
		// survive as condition/script strings on a linkable node.
		responseIDs := make(map[string]int)
		for _, n := range f.Nodes {
			if n.Kind() != domain.NodeDialogue {
				continue
			}
			for _, r := range n.DialoguePayload().Responses {
				id := len(entries)
				responseIDs[n.ID+"/"+r.ID] = id
				entries = append(entries, dbEntry{
					ID:               id,
					ConversationID:   conv.ID,
					GUID:             GenerateGUID("response:" + f.ID + "/" + n.ID + "/" + r.ID),
					Title:            "response " + r.ID,
					DialogueText:     StripHTML(r.Text),
					ConditionsString: responseCondition(r, lua),
					UserScript:       luaScript(r.Assignments, lua),
				})
			}
		}

		for _, c := range f.Connections {
			src, ok := ids[c.SourceNodeID]
			if !ok {
				continue
			}
			dst, ok := ids[c.TargetNodeID]
			if !ok {
				continue
			}
			link := dbLink{
				OriginConversationID:      conv.ID,
				OriginDialogueID:          src,
				DestinationConversationID: conv.ID,
				DestinationDialogueID:     dst,
			}
			if rid, ok := responsePin(c.SourcePin); ok {
				// Route dialogue -> response -> target through the response
				// entry.
				if rsp, ok := responseIDs[c.SourceNodeID+"/"+rid]; ok {
					entries[src].OutgoingLinks = append(entries[src].OutgoingLinks, dbLink{
						OriginConversationID:      conv.ID,
						OriginDialogueID:          src,
						DestinationConversationID: conv.ID,
						DestinationDialogueID:     rsp,
					})
					link.OriginDialogueID = rsp
					entries[rsp].OutgoingLinks = append(entries[rsp].OutgoingLinks, link)
					continue
				}
			}
			entries[src].OutgoingLinks = append(entries[src].OutgoingLinks, link)
		}

		conv.Entries = entries
		db.Conversations = append(db.Conversations, conv)
	}

	b, err := marshalJSON(db, opt.PrettyPrint)
	if err != nil {
		return nil, err
	}
	return &Result{Files: []File{{
		Name:    SanitizeIdentifier(p.Name) + s.FileExtension(),
		Content: b,
	}}}, nil
}

func (s *dialogueDBSerializer) entryFor(f *domain.Flow, n domain.Node, convID, id int, lua expr.LuaDialect, speakers map[string]string) dbEntry {
	e := dbEntry{
		ID:             id,
		ConversationID: convID,
		GUID:           GenerateGUID("entry:" + f.ID + "/" + n.ID),
		Title:          string(n.Kind()) + " " + n.ID,
	}
	switch n.Kind() {
	case domain.NodeDialogue:
		d := n.DialoguePayload()
		e.DialogueText = StripHTML(d.Text)
		e.ActorName = speakers[d.SpeakerSheetID]
	case domain.NodeCondition:
		c := n.ConditionPayload()
		e.IsGroup = true
		e.ConditionsString = expr.CompileCondition(c.Condition, lua)
	case domain.NodeInstruction:
		e.IsGroup = true
		e.UserScript = luaScript(n.InstructionPayload().Assignments, lua)
	case domain.NodeHub:
		e.IsGroup = true
		e.Title = "hub " + n.HubLabel()
	default:
		e.IsGroup = true
	}
	return e
}

func responseCondition(r domain.Response, lua expr.LuaDialect) string {
	if r.Condition == nil || len(r.Condition.Rules) == 0 {
		return ""
	}
	return expr.CompileCondition(r.Condition, lua)
}

func luaScript(assignments []domain.Assignment, lua expr.LuaDialect) string {
	var parts []string
	for _, a := range assignments {
		if s := expr.CompileAssignment(a, lua, nil); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// responsePin extracts the response id from a "response_<id>" source pin.
func responsePin(pin string) (string, bool) {
	if rest, ok := strings.CutPrefix(pin, "response_"); ok && rest != "" {
		return rest, true
	}
	return "", false
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

// Script represents parsed screenplay text with scenes and lines.
// This is intentionally minimal: scene headings, dialogue cues, action
// and notes, following Fountain-like conventions.

type Script struct {
	Scenes []Scene
}

type Scene struct {
	Heading string
	Lines   []Line
}

// LineType indicates the kind of a screenplay line.
// Dialogue: CHARACTER: text
// Action:   any other prose line
// Note:     lines starting with ";" are author notes

type LineType int

const (
	LineUnknown LineType = iota
	LineDialogue
	LineAction
	LineNote
)

// Line captures a single logical line (possibly with continuations) in a scene.
// For Dialogue, Character holds the speaking character name (upper-cased) and
// Text the spoken content. Tags are @tag annotations found in the text.

type Line struct {
	Type      LineType
	Character string
	Text      string
	Tags      []string
	LineNo    int // 1-based starting line number in the source
}

// Error represents a parse error with position context.

type Error struct {
	Line    int
	Column  int
	Message string
}

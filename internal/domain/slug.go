/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "strings"

// translit maps common non-ASCII letters to deterministic ASCII sequences.
// The mapping must stay stable across releases: slugs feed exported
// identifiers and re-exports have to be byte-identical.
var translit = map[rune]string{
	'ä': "ae", 'ö': "oe", 'ü': "ue", 'ß': "ss",
	'Ä': "ae", 'Ö': "oe", 'Ü': "ue",
	'á': "a", 'à': "a", 'â': "a", 'ã': "a", 'å': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i",
	'ó': "o", 'ò': "o", 'ô': "o", 'õ': "o",
	'ú': "u", 'ù': "u", 'û': "u",
	'ç': "c", 'ñ': "n", 'ý': "y",
}

// Slugify converts an arbitrary label into a lower-case ASCII identifier.
// Dots, hyphens and whitespace become underscores; accented letters are
// transliterated; everything else that is not [a-z0-9_] is dropped. Runs of
// underscores collapse to one and leading/trailing underscores are trimmed.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == '.' || r == '-' || r == ' ' || r == '\t' || r == '_' || r == '/':
			b.WriteByte('_')
		default:
			if t, ok := translit[r]; ok {
				b.WriteString(t)
			}
			// anything else is dropped
		}
	}
	out := b.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

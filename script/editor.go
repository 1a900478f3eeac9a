/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package script

import (
	"sort"
	"strings"
)

type edit struct {
	start, end uint32
	text       string
	seq        int
}

// Editor rewrites a source by byte ranges of the original text. Edits never
// shift each other: every range refers to the untouched source, and an edit
// nested inside a larger replaced range is dropped.
type Editor struct {
	src     string
	edits   []edit
	prefix  strings.Builder
	suffix  strings.Builder
	counter int
}

// NewEditor returns an editor over src.
func NewEditor(src string) *Editor {
	return &Editor{src: src}
}

// Replace replaces [start, end) with text.
func (e *Editor) Replace(start, end uint32, text string) {
	e.counter++
	e.edits = append(e.edits, edit{start: start, end: end, text: text, seq: e.counter})
}

// ReplaceRange replaces r with text.
func (e *Editor) ReplaceRange(r Range, text string) {
	e.Replace(r.Start, r.End, text)
}

// Remove deletes [start, end).
func (e *Editor) Remove(start, end uint32) {
	e.Replace(start, end, "")
}

// Insert inserts text at pos. Insertions at the same position keep their
// call order.
func (e *Editor) Insert(pos uint32, text string) {
	e.Replace(pos, pos, text)
}

// Prepend adds text before the source.
func (e *Editor) Prepend(text string) {
	e.prefix.WriteString(text)
}

// Append adds text after the source.
func (e *Editor) Append(text string) {
	e.suffix.WriteString(text)
}

// Slice returns the original text of r.
func (e *Editor) Slice(r Range) string {
	return e.src[r.Start:r.End]
}

// String applies every edit.
func (e *Editor) String() string {
	edits := make([]edit, len(e.edits))
	copy(edits, e.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		// Insertions go before replacements starting at the same offset.
		if (a.start == a.end) != (b.start == b.end) {
			return a.start == a.end
		}
		if a.end != b.end {
			return a.end > b.end
		}
		return a.seq < b.seq
	})

	var b strings.Builder
	b.Grow(len(e.src) + e.prefix.Len() + e.suffix.Len())
	b.WriteString(e.prefix.String())

	cursor := uint32(0)
	for _, ed := range edits {
		if ed.start < cursor || ed.end > uint32(len(e.src)) {
			continue
		}
		b.WriteString(e.src[cursor:ed.start])
		b.WriteString(ed.text)
		cursor = ed.end
	}
	b.WriteString(e.src[cursor:])
	b.WriteString(e.suffix.String())
	return b.String()
}

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

package css

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/farm-fe/farm-sub001/script"
)

// ModulesQuery marks the stylesheet half of a CSS module. The module
// itself is a script proxy that imports the stylesheet through this query
// and exports the class map.
const ModulesQuery = "farm_css_modules"

// ClassMap maps the classes a CSS module declares to their generated names.
type ClassMap struct {
	Names map[string]string
	// Order lists the classes in first-appearance order.
	Order []string
}

// ClassName expands an indent name template: [name] becomes the class and
// [hash] the module hash.
func ClassName(template, class, hash string) string {
	return strings.NewReplacer("[name]", class, "[hash]", hash).Replace(template)
}

// RenameClasses rewrites every class selector of src to the name template
// gives it. Selectors wrapped in :global(...) keep their names and lose
// the wrapper; :local(...) wrappers are dropped after renaming.
func RenameClasses(src, template, hash string) (string, *ClassMap) {
	classes := &ClassMap{Names: make(map[string]string)}
	ed := script.NewEditor(src)
	for _, r := range preludes(src) {
		renamePrelude(src, r, ed, func(class string) string {
			name, ok := classes.Names[class]
			if !ok {
				name = ClassName(template, class, hash)
				classes.Names[class] = name
				classes.Order = append(classes.Order, class)
			}
			return name
		})
	}
	return ed.String(), classes
}

// preludes returns the ranges of src that introduce a block: selectors and
// at-rule preludes.
func preludes(src string) []script.Range {
	var out []script.Range
	start := 0
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '/' && strings.HasPrefix(src[i:], "/*"):
			i = skipComment(src, i)
			continue
		case c == '"' || c == '\'':
			i = skipString(src, i)
			continue
		case c == '{':
			out = append(out, script.Range{Start: uint32(start), End: uint32(i)})
			start = i + 1
		case c == '}' || c == ';':
			start = i + 1
		}
		i++
	}
	return out
}

func renamePrelude(src string, r script.Range, ed *script.Editor, rename func(string) string) {
	text := src[r.Start:r.End]
	if strings.HasPrefix(strings.TrimSpace(text), "@") {
		return
	}
	base := int(r.Start)
	global := 0
	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			i = skipComment(text, i)
		case c == '"' || c == '\'':
			i = skipString(text, i)
		case c == ':' && strings.HasPrefix(text[i:], ":global("):
			end := closingParen(text, i+len(":global("))
			ed.Remove(uint32(base+i), uint32(base+i+len(":global(")))
			if end < len(text) {
				ed.Remove(uint32(base+end), uint32(base+end+1))
			}
			global = end
			i += len(":global(")
		case c == ':' && strings.HasPrefix(text[i:], ":local("):
			end := closingParen(text, i+len(":local("))
			ed.Remove(uint32(base+i), uint32(base+i+len(":local(")))
			if end < len(text) {
				ed.Remove(uint32(base+end), uint32(base+end+1))
			}
			i += len(":local(")
		case c == '.' && isIdentStart(text[i+1:]):
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			if i >= global {
				ed.Replace(uint32(base+i+1), uint32(base+j), rename(text[i+1:j]))
			}
			i = j
		default:
			i++
		}
	}
}

// closingParen returns the offset of the parenthesis closing the group
// that starts at i, or len(s).
func closingParen(s string, i int) int {
	depth := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'':
			i = skipString(s, i) - 1
		}
	}
	return len(s)
}

var jsIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Proxy returns the script standing in for a CSS module: it imports the
// renamed stylesheet through source and exports the class map as default.
func Proxy(source string, classes *ClassMap) string {
	props := make([]string, 0, len(classes.Order))
	for _, class := range classes.Order {
		key := class
		if !jsIdent.MatchString(key) {
			key = script.Quote(key)
		}
		props = append(props, fmt.Sprintf("%s: %s", key, script.Quote(classes.Names[class])))
	}
	body := "{}"
	if len(props) > 0 {
		body = "{ " + strings.Join(props, ", ") + " }"
	}
	return fmt.Sprintf("import %s;\nexport default %s;\n", script.Quote(source), body)
}

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

// Package css analyzes stylesheets: it finds their @import and url()
// dependencies, renames the classes of CSS modules and joins the
// stylesheets of a resource pot.
package css

import (
	"strings"

	"github.com/farm-fe/farm-sub001/script"
)

// DepKind discriminates stylesheet dependencies.
type DepKind int

const (
	DepImport DepKind = iota
	DepURL
)

// Dep is one dependency of a stylesheet.
type Dep struct {
	Source string
	Kind   DepKind
	// Range covers the whole @import rule including its semicolon, or the
	// url(...) token.
	Range script.Range
	// Media holds the media query list following an @import target.
	Media string
}

// Deps returns the @import and url() dependencies of src in source order.
// url() tokens inside an @import are reported as the import.
func Deps(src string) []Dep {
	var deps []Dep
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '/' && strings.HasPrefix(src[i:], "/*"):
			i = skipComment(src, i)
		case c == '"' || c == '\'':
			i = skipString(src, i)
		case c == '@' && hasPrefixFold(src[i:], "@import"):
			dep, end, ok := parseImport(src, i)
			if ok {
				deps = append(deps, dep)
			}
			i = end
		case (c == 'u' || c == 'U') && hasPrefixFold(src[i:], "url(") && (i == 0 || !isIdentByte(src[i-1])):
			source, end := parseURL(src, i)
			deps = append(deps, Dep{Source: source, Kind: DepURL, Range: script.Range{Start: uint32(i), End: uint32(end)}})
			i = end
		default:
			i++
		}
	}
	return deps
}

// IsLocalURL reports whether a url() target refers to a file of the
// project rather than inline data, a fragment or a remote resource.
func IsLocalURL(source string) bool {
	switch {
	case source == "",
		strings.HasPrefix(source, "#"),
		strings.HasPrefix(source, "data:"),
		strings.HasPrefix(source, "//"),
		strings.Contains(source, "://"):
		return false
	}
	return true
}

func parseImport(src string, start int) (Dep, int, bool) {
	i := skipSpace(src, start+len("@import"))
	var source string
	switch {
	case i < len(src) && (src[i] == '"' || src[i] == '\''):
		end := skipString(src, i)
		source = unquote(src[i:end])
		i = end
	case hasPrefixFold(src[i:], "url("):
		source, i = parseURL(src, i)
	default:
		return Dep{}, i, false
	}
	mediaStart := i
	for i < len(src) && src[i] != ';' {
		if src[i] == '"' || src[i] == '\'' {
			i = skipString(src, i)
			continue
		}
		i++
	}
	media := strings.TrimSpace(src[mediaStart:i])
	if i < len(src) {
		i++
	}
	return Dep{
		Source: source,
		Kind:   DepImport,
		Range:  script.Range{Start: uint32(start), End: uint32(i)},
		Media:  media,
	}, i, true
}

// parseURL reads url(...) at start and returns its target and the offset
// after the closing parenthesis.
func parseURL(src string, start int) (string, int) {
	i := skipSpace(src, start+len("url("))
	if i < len(src) && (src[i] == '"' || src[i] == '\'') {
		end := skipString(src, i)
		source := unquote(src[i:end])
		i = skipSpace(src, end)
		if i < len(src) && src[i] == ')' {
			i++
		}
		return source, i
	}
	end := strings.IndexByte(src[i:], ')')
	if end < 0 {
		return strings.TrimSpace(src[i:]), len(src)
	}
	return strings.TrimSpace(src[i : i+end]), i + end + 1
}

func skipComment(src string, i int) int {
	end := strings.Index(src[i+2:], "*/")
	if end < 0 {
		return len(src)
	}
	return i + 2 + end + 2
}

// skipString returns the offset after the string starting at i.
func skipString(src string, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote, '\n':
			return j + 1
		}
	}
	return len(src)
}

func skipSpace(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\n' || src[i] == '\r' || src[i] == '\f') {
		i++
	}
	return i
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, "\\", "")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdentStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if c == '-' {
		return len(s) > 1 && (s[1] == '-' || (isIdentByte(s[1]) && !(s[1] >= '0' && s[1] <= '9')))
	}
	return isIdentByte(c) && !(c >= '0' && c <= '9')
}

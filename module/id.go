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

// Package module defines modules, the module graph, module groups and the
// watch graph that tie a compilation together.
package module

import (
	"encoding/hex"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Mode selects how module ids are printed into generated code.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ID identifies a module by its path relative to the project root plus an
// optional query string. Two ids are equal iff both parts are equal, so
// "index.vue" and "index.vue?vue&type=script" are distinct modules.
type ID struct {
	relativePath string
	query        string
}

// NewID builds an id from a resolved path, relativized against root. Paths
// that are not absolute (virtual modules) are kept as they are.
func NewID(resolvedPath, query, root string) ID {
	rel := resolvedPath
	if root != "" && filepath.IsAbs(resolvedPath) {
		if r, err := filepath.Rel(root, resolvedPath); err == nil {
			rel = r
		}
	}
	return ID{relativePath: normalizeSlashes(rel), query: normalizeQuery(query)}
}

// ParseID parses the textual form produced by String, splitting on the
// first "?".
func ParseID(text string) ID {
	if i := strings.IndexByte(text, '?'); i >= 0 {
		return ID{relativePath: normalizeSlashes(text[:i]), query: text[i:]}
	}
	return ID{relativePath: normalizeSlashes(text)}
}

// String returns relative_path + query_string.
func (id ID) String() string {
	return id.relativePath + id.query
}

// RelativePath returns the path part of the id.
func (id ID) RelativePath() string {
	return id.relativePath
}

// Query returns the query part including its leading "?", or "".
func (id ID) Query() string {
	return id.query
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.relativePath == "" && id.query == ""
}

// ResolvedPath joins the relative path back onto root. Virtual paths that
// were never absolute come back unchanged.
func (id ID) ResolvedPath(root string) string {
	p := filepath.FromSlash(id.relativePath)
	if filepath.IsAbs(p) || root == "" || isVirtual(id.relativePath) {
		return p
	}
	return filepath.Join(root, p)
}

// Hash returns the stable short hash used as the production id: blake2b
// truncated to 4 bytes, hex-encoded.
func (id ID) Hash() string {
	sum := blake2b.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:4])
}

// Printable returns the id written into generated code for mode.
func (id ID) Printable(mode Mode) string {
	if mode == ModeProduction {
		return id.Hash()
	}
	return id.String()
}

// Ext returns the extension of the relative path including the dot.
func (id ID) Ext() string {
	return path.Ext(id.relativePath)
}

// Compare orders ids by their textual form.
func (id ID) Compare(other ID) int {
	return strings.Compare(id.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler so ids serialize as text
// and can key JSON objects.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	*id = ParseID(string(data))
	return nil
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

func normalizeQuery(q string) string {
	if q == "" || strings.HasPrefix(q, "?") {
		return q
	}
	return "?" + q
}

func isVirtual(p string) bool {
	return strings.HasPrefix(p, "virtual:") || strings.HasPrefix(p, "\x00")
}

// SafeName turns an id into a valid JavaScript identifier fragment: any
// character outside [A-Za-z0-9_$] becomes "_", and a leading digit gets a
// "_" prefix.
func SafeName(id ID) string {
	return SafeIdent(id.String())
}

// SafeIdent applies the SafeName rules to an arbitrary string.
func SafeIdent(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '$':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "_" + out
	}
	return out
}

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

// Package script is the JavaScript boundary of the compiler. It parses
// sources with tree-sitter, analyzes top-level statements (imports, exports,
// declarations), resolves every identifier to a scope mark and offers a
// byte-range editor used to rewrite sources without re-printing them.
package script

import (
	"strconv"
	"sync/atomic"
)

// Mark is a handle to a lexical scope. Identifiers carry the mark of the
// scope their binding lives in, the module's top-level mark, or the
// module's unresolved mark when no binding exists.
type Mark uint32

// Globals allocates marks. A fresh Globals is installed per module (and per
// concatenated pot) so marks never have to be serialized as anything but
// plain integers.
type Globals struct {
	next atomic.Uint32
}

// NewGlobals returns an allocator whose first mark is 1. Mark 0 means "no
// binding information".
func NewGlobals() *Globals {
	return &Globals{}
}

// NewMark allocates a mark.
func (g *Globals) NewMark() Mark {
	return Mark(g.next.Add(1))
}

// Ident is an identifier qualified by the mark of the scope it binds in.
type Ident struct {
	Sym  string `json:"sym"`
	Ctxt Mark   `json:"ctxt"`
}

func (i Ident) String() string {
	return i.Sym + "#" + strconv.FormatUint(uint64(i.Ctxt), 10)
}

// Range is a half-open byte range into the module source.
type Range struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Len returns the length of the range.
func (r Range) Len() uint32 {
	return r.End - r.Start
}

// Contains reports whether other lies within r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// ImportSpecifierKind discriminates import specifiers.
type ImportSpecifierKind int

const (
	ImportNamed ImportSpecifierKind = iota
	ImportDefault
	ImportNamespace
)

// ImportSpecifier is one binding introduced by an import declaration.
type ImportSpecifier struct {
	Kind  ImportSpecifierKind `json:"kind"`
	Local Ident               `json:"local"`
	// Imported is the exported name of the dependency for named imports.
	// Empty means the same as Local.Sym.
	Imported string `json:"imported,omitempty"`
}

// ImportedName returns the name this specifier reads from the dependency.
func (s ImportSpecifier) ImportedName() string {
	switch s.Kind {
	case ImportDefault:
		return "default"
	case ImportNamespace:
		return "*"
	}
	if s.Imported != "" {
		return s.Imported
	}
	return s.Local.Sym
}

// ImportInfo describes an import declaration.
type ImportInfo struct {
	Source     string            `json:"source"`
	Specifiers []ImportSpecifier `json:"specifiers,omitempty"`
}

// ExportSpecifierKind discriminates export specifiers.
type ExportSpecifierKind int

const (
	ExportNamed ExportSpecifierKind = iota
	ExportDefault
	ExportAll
	ExportNamespace
)

// ExportSpecifier is one name published by an export declaration.
type ExportSpecifier struct {
	Kind ExportSpecifierKind `json:"kind"`
	// Local is the local binding (or, for re-exports, the name read from
	// the source module with a zero mark).
	Local Ident `json:"local"`
	// Exported is the public name. Empty means the same as Local.Sym.
	Exported string `json:"exported,omitempty"`
}

// ExportedName returns the public name of the specifier.
func (s ExportSpecifier) ExportedName() string {
	switch s.Kind {
	case ExportDefault:
		return "default"
	case ExportAll:
		return "*"
	}
	if s.Exported != "" {
		return s.Exported
	}
	return s.Local.Sym
}

// ExportInfo describes an export declaration.
type ExportInfo struct {
	// Source is set for re-exports (`export ... from "x"`).
	Source     string            `json:"source,omitempty"`
	Specifiers []ExportSpecifier `json:"specifiers,omitempty"`
}

// StatementKind classifies a top-level statement.
type StatementKind int

const (
	StmtOther StatementKind = iota
	StmtImport
	// StmtExportDecl is `export <declaration>`.
	StmtExportDecl
	// StmtExportDefaultDecl is `export default function/class ...`.
	StmtExportDefaultDecl
	// StmtExportDefaultExpr is `export default <expression>`.
	StmtExportDefaultExpr
	// StmtExportNamed is `export { ... }` without a source.
	StmtExportNamed
	// StmtReExport is any export with a source.
	StmtReExport
)

// Statement is the analysis of one top-level statement.
type Statement struct {
	Index  int           `json:"index"`
	Kind   StatementKind `json:"kind"`
	Range  Range         `json:"range"`
	Import *ImportInfo   `json:"import,omitempty"`
	Export *ExportInfo   `json:"export,omitempty"`
	// Defined lists the top-level bindings this statement declares.
	Defined []Ident `json:"defined,omitempty"`
	// Body is the range of the declaration or expression that survives once
	// the export keywords are stripped.
	Body Range `json:"body"`
	// NameInsert is where a synthesized name must be inserted for an
	// anonymous `export default function/class`; zero when not needed.
	NameInsert uint32 `json:"nameInsert,omitempty"`
	// HasSemicolon reports whether the statement text ends with ";".
	HasSemicolon bool `json:"hasSemicolon,omitempty"`
}

// IsImport reports whether the statement is an import declaration.
func (s *Statement) IsImport() bool {
	return s.Kind == StmtImport
}

// IsExport reports whether the statement is any export form.
func (s *Statement) IsExport() bool {
	return s.Export != nil
}

// IdentRole says how an identifier occurrence may be rewritten.
type IdentRole int

const (
	// RoleRef is a plain reference; replacing its text is safe.
	RoleRef IdentRole = iota
	// RoleDecl is a binding position (declaration name, parameter).
	RoleDecl
	// RoleShorthand is `{a}` in an object literal; a rename must become
	// `{a: renamed}`.
	RoleShorthand
	// RoleShorthandPattern is `{a}` in a binding pattern; a rename must
	// become `{a: renamed}` as well.
	RoleShorthandPattern
	// RoleCallee is a reference in callee position of a call.
	RoleCallee
)

// IdentRef is one identifier occurrence.
type IdentRef struct {
	Range Range     `json:"range"`
	Ident Ident     `json:"ident"`
	Role  IdentRole `json:"role"`
	// Stmt is the index of the top-level statement holding the occurrence.
	Stmt int `json:"stmt"`
}

// DepKind discriminates script dependencies.
type DepKind int

const (
	DepImport DepKind = iota
	DepExportFrom
	DepDynamicImport
	DepRequire
)

// Dep is one dependency reference in source order.
type Dep struct {
	Source string  `json:"source"`
	Kind   DepKind `json:"kind"`
	// Range covers the whole import/export statement or call expression.
	Range Range `json:"range"`
	// Arg covers the string literal holding the source.
	Arg Range `json:"arg"`
}

// ModuleSystem is the module format a script uses.
type ModuleSystem int

const (
	SystemEsModule ModuleSystem = iota
	SystemCommonJs
	SystemHybrid
)

func (s ModuleSystem) String() string {
	switch s {
	case SystemCommonJs:
		return "commonjs"
	case SystemHybrid:
		return "hybrid"
	}
	return "esm"
}

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

package concat

import (
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/script"
)

type bindingKind int

const (
	bindNone bindingKind = iota
	// bindLocal is a top-level binding of a unit.
	bindLocal
	// bindNamespace is the namespace object of a unit.
	bindNamespace
	// bindMember is a property read from the namespace of a CommonJS unit.
	bindMember
	// bindExternal is a name read from a module outside the pot; name "*"
	// is the whole namespace.
	bindExternal
)

// binding is what an imported or exported name refers to once every hop
// through re-exports inside the pot is followed.
type binding struct {
	kind bindingKind
	unit int
	sym  string
	ext  module.ID
	name string
}

// exportDef is one name a unit exports, as written in its source.
type exportDef struct {
	// local is set for exports of the unit's own bindings, which may be
	// import bindings.
	local string
	// source and name are set for re-exports; name "*" re-exports the
	// namespace.
	source string
	name   string
}

// importDef is one import binding of a unit.
type importDef struct {
	source string
	// name is the imported name; "*" for namespace imports.
	name string
}

type unit struct {
	idx     int
	m       *module.Module
	ast     *script.AST
	cjs     bool
	targets map[string]module.ID

	exports     map[string]exportDef
	exportOrder []string
	stars       []string
	imports     map[string]importDef
	// defined holds the unit's own top-level bindings.
	defined []string
	isDef   map[string]bool
}

func (u *unit) addExport(name string, def exportDef) {
	if _, ok := u.exports[name]; !ok {
		u.exportOrder = append(u.exportOrder, name)
	}
	u.exports[name] = def
}

// collect fills the export, import and definition tables of u from its
// statement analysis.
func (u *unit) collect() {
	u.exports = make(map[string]exportDef)
	u.imports = make(map[string]importDef)
	u.isDef = make(map[string]bool)
	define := func(sym string) {
		if !u.isDef[sym] {
			u.isDef[sym] = true
			u.defined = append(u.defined, sym)
		}
	}

	for i := range u.ast.Statements {
		st := &u.ast.Statements[i]
		switch st.Kind {
		case script.StmtImport:
			for _, spec := range st.Import.Specifiers {
				u.imports[spec.Local.Sym] = importDef{source: st.Import.Source, name: spec.ImportedName()}
			}
			continue
		case script.StmtReExport:
			for _, spec := range st.Export.Specifiers {
				switch spec.Kind {
				case script.ExportAll:
					u.stars = append(u.stars, st.Export.Source)
				case script.ExportNamespace:
					u.addExport(spec.ExportedName(), exportDef{source: st.Export.Source, name: "*"})
				default:
					u.addExport(spec.ExportedName(), exportDef{source: st.Export.Source, name: spec.Local.Sym})
				}
			}
			continue
		case script.StmtExportDecl, script.StmtExportDefaultDecl, script.StmtExportDefaultExpr, script.StmtExportNamed:
			for _, spec := range st.Export.Specifiers {
				u.addExport(spec.ExportedName(), exportDef{local: spec.Local.Sym})
			}
		}
		for _, id := range st.Defined {
			define(id.Sym)
		}
	}

	top := u.ast.TopLevelMark
	for _, ref := range u.ast.Idents {
		if ref.Ident.Ctxt != top {
			continue
		}
		if ref.Role == script.RoleDecl || ref.Role == script.RoleShorthandPattern {
			if _, imported := u.imports[ref.Ident.Sym]; !imported {
				define(ref.Ident.Sym)
			}
		}
	}
}

type linkKey struct {
	unit int
	name string
}

// linker follows imports and re-exports across the units of a pot.
type linker struct {
	units []*unit
	index map[module.ID]int
	warn  func(format string, args ...any)
	// ambiguous collects names several export * sources provide.
	ambiguous map[linkKey]bool
}

func (l *linker) target(u *unit, source string) (module.ID, int, bool) {
	id, ok := u.targets[source]
	if !ok {
		return module.ParseID(source), -1, false
	}
	idx, in := l.index[id]
	return id, idx, in
}

func (l *linker) resolveImport(u *unit, local string) binding {
	def := u.imports[local]
	id, idx, in := l.target(u, def.source)
	if !in {
		return binding{kind: bindExternal, ext: id, name: def.name}
	}
	if def.name == "*" {
		return binding{kind: bindNamespace, unit: idx}
	}
	b, ok := l.resolveExport(idx, def.name, map[linkKey]bool{})
	if !ok {
		l.warn("%q is not exported by %s, imported by %s", def.name, l.units[idx].m.ID, u.m.ID)
	}
	return b
}

// resolveExport returns the binding unit idx exports as name.
func (l *linker) resolveExport(idx int, name string, visiting map[linkKey]bool) (binding, bool) {
	key := linkKey{idx, name}
	if visiting[key] {
		return binding{}, false
	}
	visiting[key] = true

	u := l.units[idx]
	if u.cjs {
		return binding{kind: bindMember, unit: idx, name: name}, true
	}
	if def, ok := u.exports[name]; ok {
		if def.source == "" {
			if _, imported := u.imports[def.local]; imported {
				return l.resolveImport(u, def.local), true
			}
			return binding{kind: bindLocal, unit: idx, sym: def.local}, true
		}
		id, t, in := l.target(u, def.source)
		if !in {
			return binding{kind: bindExternal, ext: id, name: def.name}, true
		}
		if def.name == "*" {
			return binding{kind: bindNamespace, unit: t}, true
		}
		return l.resolveExport(t, def.name, visiting)
	}
	if name == "default" {
		return binding{}, false
	}

	var found []binding
	var external *binding
	for _, source := range u.stars {
		id, t, in := l.target(u, source)
		if !in {
			if external == nil {
				external = &binding{kind: bindExternal, ext: id, name: name}
			}
			continue
		}
		if b, ok := l.resolveExport(t, name, visiting); ok && !containsBinding(found, b) {
			found = append(found, b)
		}
	}
	switch {
	case len(found) > 1:
		// Conflicting star exports are not exported at all.
		if !l.ambiguous[key] {
			l.ambiguous[key] = true
			l.warn("%q is exported by several modules re-exported from %s and is left out", name, u.m.ID)
		}
		return binding{}, false
	case len(found) == 1:
		return found[0], true
	case external != nil:
		return *external, true
	}
	return binding{}, false
}

func containsBinding(bs []binding, b binding) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}

// exportNames lists every name unit idx may export, including those reached
// through export * inside the pot, in declaration order. Stars are never
// followed out of the pot. Names resolveExport rejects are still listed.
func (l *linker) exportNames(idx int, visiting map[int]bool) []string {
	if visiting[idx] {
		return nil
	}
	visiting[idx] = true
	u := l.units[idx]
	names := append([]string(nil), u.exportOrder...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, source := range u.stars {
		_, t, in := l.target(u, source)
		if !in {
			continue
		}
		for _, n := range l.exportNames(t, visiting) {
			if n != "default" && !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

// externalStars returns the out-of-pot modules unit idx re-exports with
// export *, directly or through stars inside the pot.
func (l *linker) externalStars(idx int, visiting map[int]bool) []module.ID {
	if visiting[idx] {
		return nil
	}
	visiting[idx] = true
	u := l.units[idx]
	var out []module.ID
	for _, source := range u.stars {
		id, t, in := l.target(u, source)
		if in {
			out = append(out, l.externalStars(t, visiting)...)
			continue
		}
		out = append(out, id)
	}
	return out
}

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

// Package render turns script modules into factories for the module system
// runtime and wraps the factories of a resource pot into the code that
// registers them.
package render

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/runtime"
	"github.com/farm-fe/farm-sub001/script"
)

// Factory parameter names. Rendered module bodies refer to them.
const (
	ParamModule         = "module"
	ParamExports        = "exports"
	ParamRequire        = "farmRequire"
	ParamDynamicRequire = "farmDynamicRequire"
)

// Options control how module ids are printed into generated code.
type Options struct {
	Mode      module.Mode
	Namespace string
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Member returns the property access obj.name, falling back to bracket
// syntax for names that are not identifiers.
func Member(obj, name string) string {
	if identRe.MatchString(name) {
		return obj + "." + name
	}
	return obj + "[" + script.Quote(name) + "]"
}

// Factory renders m as a module system factory:
//
//	function(module, exports, farmRequire, farmDynamicRequire) { ... }
//
// Static imports become farmRequire bindings whose uses are rewritten to
// member accesses, exports become getters on exports, dynamic imports
// call farmDynamicRequire and import.meta reads module.meta. Stylesheet
// modules render as a factory that updates their style tag.
func Factory(m *module.Module, graph *module.Graph, opts Options) (string, error) {
	if m.Type == module.TypeCss {
		return cssFactory(m, opts), nil
	}
	body, err := Body(m, graph, opts)
	if err != nil {
		return "", err
	}
	return Wrapper(body), nil
}

// Wrapper encloses rendered factory statements in the factory function.
func Wrapper(body string) string {
	return "function(" + ParamModule + ", " + ParamExports + ", " + ParamRequire + ", " + ParamDynamicRequire + ") {\n" + body + "\n}"
}

func cssFactory(m *module.Module, opts Options) string {
	return fmt.Sprintf("function(%s) {\n%s.updateStyle(%s, %s);\n}",
		ParamModule, runtime.ModuleSystem(opts.Namespace), script.Quote(m.ID.Printable(opts.Mode)), script.Quote(m.Content))
}

// AST returns the analyzed form of a script module, parsing its content
// again when the module came from the persistent cache.
func AST(m *module.Module) (*script.AST, error) {
	if m.Meta.Script != nil && m.Meta.Script.AST != nil {
		return m.Meta.Script.AST, nil
	}
	ast, err := script.Parse([]byte(m.Content), script.Options{JSX: m.Type == module.TypeJsx || m.Type == module.TypeTsx})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", m.ID, err)
	}
	return ast, nil
}

// target is what an import source of a module resolved to.
type target struct {
	id  module.ID
	mod *module.Module
}

func (t target) esm() bool {
	return t.mod != nil && !t.mod.External && t.mod.Meta.Script != nil && t.mod.Meta.Script.System == script.SystemEsModule
}

func (t target) css() bool {
	return t.mod != nil && t.mod.Type == module.TypeCss
}

// Resolver maps an import source of the rendered script to the module it
// refers to. mod may be nil when only the id is known.
type Resolver func(source string) (id module.ID, mod *module.Module, ok bool)

// GraphResolver resolves the sources of m through its edges in graph.
func GraphResolver(m *module.Module, graph *module.Graph) Resolver {
	targets := make(map[string]module.ID)
	for _, dep := range graph.Dependencies(m.ID) {
		for _, item := range dep.Edge {
			targets[item.Source] = dep.ID
		}
	}
	return func(source string) (module.ID, *module.Module, bool) {
		id, ok := targets[source]
		if !ok {
			return module.ID{}, nil, false
		}
		return id, graph.Module(id), true
	}
}

// IDResolver resolves sources that are already module ids of graph, as
// left by the concatenator.
func IDResolver(graph *module.Graph) Resolver {
	return func(source string) (module.ID, *module.Module, bool) {
		id := module.ParseID(source)
		m := graph.Module(id)
		if m == nil {
			return module.ID{}, nil, false
		}
		return id, m, true
	}
}

type renderer struct {
	ast      *script.AST
	opts     Options
	ed       *script.Editor
	resolve  Resolver
	targets  map[string]target
	names    set.Set[string]
	// imported maps each imported binding to the expression reading it.
	imported map[string]string
	exports  []export
	prefix   strings.Builder
}

type export struct {
	name  string
	value string
}

// Body renders the statements of a factory for m without the enclosing
// function.
func Body(m *module.Module, graph *module.Graph, opts Options) (string, error) {
	ast, err := AST(m)
	if err != nil {
		return "", err
	}
	return Source(ast, GraphResolver(m, graph), opts), nil
}

// Source renders the factory statements of an analyzed script whose
// sources resolve through resolve.
func Source(ast *script.AST, resolve Resolver, opts Options) string {
	r := &renderer{
		ast:      ast,
		opts:     opts,
		ed:       script.NewEditor(ast.Source),
		resolve:  resolve,
		targets:  make(map[string]target),
		names:    ast.Names.Clone(),
		imported: make(map[string]string),
	}
	return r.render()
}

func (r *renderer) target(source string) (target, bool) {
	if t, ok := r.targets[source]; ok {
		return t, true
	}
	id, mod, ok := r.resolve(source)
	if !ok {
		return target{}, false
	}
	t := target{id: id, mod: mod}
	r.targets[source] = t
	return t, true
}

func (r *renderer) require(source string) string {
	t, ok := r.target(source)
	if !ok {
		return ParamRequire + "(" + script.Quote(source) + ")"
	}
	if t.mod != nil && t.mod.External {
		return ParamRequire + "(" + script.Quote(t.id.String()) + ")"
	}
	return ParamRequire + "(" + script.Quote(t.id.Printable(r.opts.Mode)) + ")"
}

// binding returns a fresh identifier for the exports of source.
func (r *renderer) binding(source string) string {
	base := path.Base(source)
	base = strings.TrimSuffix(base, path.Ext(base))
	name := "_f_" + strings.TrimPrefix(module.SafeIdent(base), "_")
	candidate := name
	for i := 1; r.names.Has(candidate); i++ {
		candidate = fmt.Sprintf("%s%d", name, i)
	}
	r.names.Add(candidate)
	return candidate
}

// interop wraps the require of a module that is not known to be an ES
// module in the helper matching how its exports are read.
func (r *renderer) interop(t target, source string, namespace, readsDefault, readsNamed bool) string {
	expr := r.require(source)
	if t.esm() {
		return expr
	}
	switch {
	case namespace || (readsDefault && readsNamed):
		return runtime.InteropRequireWildcard + "(" + expr + ")"
	case readsDefault:
		return runtime.InteropRequireDefault + "(" + expr + ")"
	}
	return expr
}

func (r *renderer) render() string {
	esm := r.ast.System != script.SystemCommonJs
	for i := range r.ast.Statements {
		st := &r.ast.Statements[i]
		switch st.Kind {
		case script.StmtImport:
			r.importStatement(st)
		case script.StmtReExport:
			r.reExport(st)
		}
	}
	for i := range r.ast.Statements {
		st := &r.ast.Statements[i]
		switch st.Kind {
		case script.StmtExportDecl, script.StmtExportDefaultDecl:
			r.ed.Remove(st.Range.Start, st.Body.Start)
			if st.NameInsert != 0 {
				r.ed.Insert(st.NameInsert, " "+st.Defined[0].Sym)
			}
			r.localExports(st)
		case script.StmtExportDefaultExpr:
			r.ed.Replace(st.Range.Start, st.Body.Start, "var "+st.Defined[0].Sym+" = ")
			if !st.HasSemicolon {
				r.ed.Insert(st.Body.End, ";")
			}
			r.localExports(st)
		case script.StmtExportNamed:
			r.ed.ReplaceRange(st.Range, "")
			r.localExports(st)
		}
	}

	r.rewriteIdents()
	r.rewriteDeps()
	for _, rng := range r.ast.ImportMeta {
		r.ed.ReplaceRange(rng, Member(ParamModule, "meta"))
	}

	var head strings.Builder
	if esm {
		head.WriteString("\"use strict\";\n")
		head.WriteString("Object.defineProperty(" + ParamExports + ", \"__esModule\", { value: true });\n")
		for _, e := range r.exports {
			fmt.Fprintf(&head, "Object.defineProperty(%s, %s, { enumerable: true, get: function() { return %s; } });\n",
				ParamExports, script.Quote(e.name), e.value)
		}
	}
	head.WriteString(r.prefix.String())
	r.ed.Prepend(head.String())
	return strings.TrimRight(r.ed.String(), "\n")
}

func (r *renderer) importStatement(st *script.Statement) {
	r.ed.ReplaceRange(st.Range, "")
	source := st.Import.Source
	t, _ := r.target(source)
	if t.css() {
		return
	}
	if len(st.Import.Specifiers) == 0 {
		r.prefix.WriteString(r.require(source) + ";\n")
		return
	}

	var namespace string
	readsDefault, readsNamed := false, false
	for _, spec := range st.Import.Specifiers {
		switch spec.Kind {
		case script.ImportNamespace:
			namespace = spec.Local.Sym
		case script.ImportDefault:
			readsDefault = true
		default:
			if spec.ImportedName() == "default" {
				readsDefault = true
			} else {
				readsNamed = true
			}
		}
	}
	name := namespace
	if name == "" {
		name = r.binding(source)
	}
	fmt.Fprintf(&r.prefix, "var %s = %s;\n", name, r.interop(t, source, namespace != "", readsDefault, readsNamed))
	for _, spec := range st.Import.Specifiers {
		if spec.Kind == script.ImportNamespace {
			continue
		}
		r.imported[spec.Local.Sym] = Member(name, spec.ImportedName())
	}
}

func (r *renderer) reExport(st *script.Statement) {
	r.ed.ReplaceRange(st.Range, "")
	source := st.Export.Source
	t, _ := r.target(source)

	namespace, readsDefault, readsNamed := false, false, false
	for _, spec := range st.Export.Specifiers {
		switch {
		case spec.Kind == script.ExportAll:
			r.prefix.WriteString(runtime.ExportStar + "(" + r.require(source) + ", " + ParamExports + ");\n")
			return
		case spec.Kind == script.ExportNamespace:
			namespace = true
		case spec.Local.Sym == "default":
			readsDefault = true
		default:
			readsNamed = true
		}
	}
	name := r.binding(source)
	fmt.Fprintf(&r.prefix, "var %s = %s;\n", name, r.interop(t, source, namespace, readsDefault, readsNamed))
	for _, spec := range st.Export.Specifiers {
		value := name
		if spec.Kind != script.ExportNamespace {
			value = Member(name, spec.Local.Sym)
		}
		r.exports = append(r.exports, export{name: spec.ExportedName(), value: value})
	}
}

func (r *renderer) localExports(st *script.Statement) {
	for _, spec := range st.Export.Specifiers {
		value := spec.Local.Sym
		if rep, ok := r.imported[value]; ok && spec.Local.Ctxt == r.ast.TopLevelMark {
			value = rep
		}
		r.exports = append(r.exports, export{name: spec.ExportedName(), value: value})
	}
}

func (r *renderer) rewriteIdents() {
	top := r.ast.TopLevelMark
	for _, ref := range r.ast.Idents {
		if ref.Ident.Ctxt != top {
			continue
		}
		rep, ok := r.imported[ref.Ident.Sym]
		if !ok {
			continue
		}
		switch ref.Role {
		case script.RoleRef:
			r.ed.ReplaceRange(ref.Range, rep)
		case script.RoleCallee:
			r.ed.ReplaceRange(ref.Range, "(0, "+rep+")")
		case script.RoleShorthand:
			r.ed.ReplaceRange(ref.Range, ref.Ident.Sym+": "+rep)
		}
	}
}

func (r *renderer) rewriteDeps() {
	for _, dep := range r.ast.Deps {
		t, ok := r.target(dep.Source)
		switch dep.Kind {
		case script.DepDynamicImport:
			if !ok || (t.mod != nil && t.mod.External) {
				continue
			}
			r.ed.ReplaceRange(dep.Range, ParamDynamicRequire+"("+script.Quote(t.id.Printable(r.opts.Mode))+")")
		case script.DepRequire:
			if t.css() {
				r.ed.ReplaceRange(dep.Range, "void 0")
				continue
			}
			r.ed.ReplaceRange(dep.Range, r.require(dep.Source))
		}
	}
}

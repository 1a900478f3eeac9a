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

// Package concat hoists the modules of a resource pot into a single scope.
// Import and export declarations between the modules are removed, top-level
// bindings are renamed so they stay unique across the pot, namespace objects
// are synthesized where a module is used as a whole and CommonJS modules are
// wrapped in lazily evaluated factories. The result is one ES module whose
// exports are those of the pot's root module.
package concat

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/render"
	"github.com/farm-fe/farm-sub001/runtime"
	"github.com/farm-fe/farm-sub001/script"
)

const registerHelper = "farmRegister"

// Result is a concatenated pot.
type Result struct {
	// Root is the module the rest of the graph reaches the pot through.
	Root    module.ID
	Modules []module.ID
	Source  string
	// AST is Source analyzed again with the globals given to Concatenate.
	AST *script.AST
	// Ambiguous lists "<module>:<name>" for names several export * sources
	// provide.
	Ambiguous []string
	Warnings  []string
}

// Eligible reports whether the modules ids of graph can be concatenated
// and returns the module the pot is entered through. The rest of the graph
// must only reach the pot through that one module, which must be an ES
// module; every module must be a script without top-level await, and no
// module may mix ESM and CommonJS or re-export everything from an in-pot
// CommonJS module.
func Eligible(graph *module.Graph, ids []module.ID) (module.ID, bool) {
	if len(ids) < 2 {
		return module.ID{}, false
	}
	in := set.New(ids...)
	var roots []module.ID
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.External || m.Meta.Script == nil || m.Meta.Script.TopLevelAwait {
			return module.ID{}, false
		}
		if m.Meta.Script.System == script.SystemHybrid {
			return module.ID{}, false
		}
		outside := graph.IsEntry(id) || graph.IsDynamicEntry(id)
		for _, dep := range graph.Dependents(id) {
			if !in.Has(dep.ID) {
				outside = true
			}
		}
		if outside {
			roots = append(roots, id)
		}
		if starsFromCommonJs(graph, m, in) {
			return module.ID{}, false
		}
	}
	if len(roots) != 1 {
		return module.ID{}, false
	}
	root := graph.Module(roots[0])
	if root.Meta.Script.System != script.SystemEsModule {
		return module.ID{}, false
	}
	return roots[0], true
}

func starsFromCommonJs(graph *module.Graph, m *module.Module, in set.Set[module.ID]) bool {
	targets := make(map[string]module.ID)
	for _, dep := range graph.Dependencies(m.ID) {
		if !in.Has(dep.ID) {
			continue
		}
		for _, item := range dep.Edge {
			targets[item.Source] = dep.ID
		}
	}
	for _, st := range m.Meta.Script.Statements {
		if st.Kind != script.StmtReExport {
			continue
		}
		id, ok := targets[st.Export.Source]
		if !ok {
			continue
		}
		for _, spec := range st.Export.Specifiers {
			if spec.Kind != script.ExportAll {
				continue
			}
			if t := graph.Module(id); t != nil && t.Meta.Script != nil && t.Meta.Script.System != script.SystemEsModule {
				return true
			}
		}
	}
	return false
}

type concatenator struct {
	graph  *module.Graph
	units  []*unit
	root   int
	link   *linker
	cycles map[module.ID]bool

	reserved set.Set[string]
	allNames set.Set[string]
	// rename maps unit index and original symbol to the pot-wide name.
	rename []map[string]string
	// aliasUsers lists, per binding, the units referring to it under a
	// different local name.
	aliasUsers map[linkKey][]int

	nsName    map[int]string
	needNs    set.Set[int]
	register  map[int]string
	extNs     map[module.ID]string
	extOrder  []module.ID
	extNeedNs set.Set[module.ID]
	helper    string

	warnings []string
}

// Concatenate hoists the modules ids of graph into one module rooted at
// root. ids may come in any order; modules are emitted in execution order.
// g allocates the marks of the re-analyzed result.
func Concatenate(graph *module.Graph, ids []module.ID, root module.ID, g *script.Globals) (*Result, error) {
	mods := make([]*module.Module, 0, len(ids))
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil {
			return nil, fmt.Errorf("module %s is not in the graph", id)
		}
		if m.Meta.Script == nil {
			return nil, fmt.Errorf("module %s is not a script", id)
		}
		mods = append(mods, m)
	}
	slices.SortStableFunc(mods, func(a, b *module.Module) int {
		if c := cmp.Compare(a.ExecutionOrder, b.ExecutionOrder); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})

	c := &concatenator{
		graph:      graph,
		root:       -1,
		cycles:     graph.InCycle(),
		reserved:   set.New[string](),
		allNames:   set.New[string](),
		aliasUsers: make(map[linkKey][]int),
		nsName:     make(map[int]string),
		needNs:     set.New[int](),
		register:   make(map[int]string),
		extNs:      make(map[module.ID]string),
		extNeedNs:  set.New[module.ID](),
	}
	c.link = &linker{
		index:     make(map[module.ID]int, len(mods)),
		ambiguous: make(map[linkKey]bool),
		warn: func(format string, args ...any) {
			msg := fmt.Sprintf(format, args...)
			if !slices.Contains(c.warnings, msg) {
				c.warnings = append(c.warnings, msg)
			}
		},
	}

	for i, m := range mods {
		ast, err := render.AST(m)
		if err != nil {
			return nil, err
		}
		u := &unit{idx: i, m: m, ast: ast, cjs: ast.System == script.SystemCommonJs, targets: make(map[string]module.ID)}
		for _, dep := range graph.Dependencies(m.ID) {
			for _, item := range dep.Edge {
				u.targets[item.Source] = dep.ID
			}
		}
		u.collect()
		c.units = append(c.units, u)
		c.link.index[m.ID] = i
		if m.ID == root {
			c.root = i
		}
		c.reserved.Extend(ast.Unresolved)
		c.allNames.Extend(ast.Names)
	}
	c.link.units = c.units
	if c.root < 0 {
		return nil, fmt.Errorf("root %s is not among the concatenated modules", root)
	}

	c.collectAliases()
	c.assignNames()

	bodies := make([]string, len(c.units))
	for i, u := range c.units {
		if u.cjs {
			bodies[i] = c.cjsBody(u)
		} else {
			bodies[i] = c.esmBody(u)
		}
	}
	exports := c.rootExports()
	// Namespace objects may ask for further namespaces.
	nsText := make(map[int]string)
	for {
		pending := set.Sorted(c.needNs)
		added := false
		for _, i := range pending {
			if _, done := nsText[i]; !done {
				nsText[i] = c.namespaceObject(i)
				added = true
			}
		}
		if !added {
			break
		}
	}

	var b strings.Builder
	for _, id := range c.extOrder {
		if c.extNeedNs.Has(id) {
			fmt.Fprintf(&b, "import * as %s from %s;\n", c.extNs[id], script.Quote(id.String()))
		} else {
			fmt.Fprintf(&b, "import %s;\n", script.Quote(id.String()))
		}
	}
	if c.helper != "" {
		fmt.Fprintf(&b, "function %s(factory) {\n  var module = { exports: {} }, done = false;\n  return function () {\n    if (!done) {\n      done = true;\n      factory(module, module.exports);\n    }\n    return module.exports;\n  };\n}\n", c.helper)
	}
	// Namespaces of modules in a cycle only hold accessors, so they are
	// declared ahead of every body and readable during evaluation.
	for i := range c.units {
		if c.hoistNamespace(i) {
			b.WriteString(nsText[i])
		}
	}
	for i, u := range c.units {
		b.WriteString("// " + u.m.ID.String() + "\n")
		b.WriteString(strings.TrimRight(bodies[i], "\n"))
		b.WriteString("\n")
		if !c.hoistNamespace(i) {
			b.WriteString(nsText[i])
		}
	}
	b.WriteString(exports)

	source := b.String()
	ast, err := script.Parse([]byte(source), script.Options{Globals: g})
	if err != nil {
		return nil, fmt.Errorf("failed to parse concatenated modules: %w", err)
	}

	res := &Result{
		Root:     root,
		Source:   source,
		AST:      ast,
		Warnings: c.warnings,
	}
	for _, u := range c.units {
		res.Modules = append(res.Modules, u.m.ID)
	}
	for key := range c.link.ambiguous {
		res.Ambiguous = append(res.Ambiguous, c.units[key.unit].m.ID.String()+":"+key.name)
	}
	slices.Sort(res.Ambiguous)
	return res, nil
}

// collectAliases records which units read a binding under a local name
// other than the binding's own, so renaming can avoid names those units
// use for something else.
func (c *concatenator) collectAliases() {
	for _, u := range c.units {
		if u.cjs {
			continue
		}
		for local := range u.imports {
			b := c.link.resolveImport(u, local)
			if b.kind == bindLocal && b.sym != local {
				key := linkKey{b.unit, b.sym}
				c.aliasUsers[key] = append(c.aliasUsers[key], u.idx)
			}
		}
	}
}

// assignNames reserves a pot-wide name for every top-level binding, the
// root module first.
func (c *concatenator) assignNames() {
	c.rename = make([]map[string]string, len(c.units))
	order := []int{c.root}
	for i := range c.units {
		if i != c.root {
			order = append(order, i)
		}
	}
	for _, i := range order {
		u := c.units[i]
		c.rename[i] = make(map[string]string)
		if u.cjs {
			continue
		}
		for _, sym := range u.defined {
			c.rename[i][sym] = c.choose(sym, c.aliasUsers[linkKey{i, sym}])
		}
	}
}

// choose returns sym itself when that is free, and sym$N otherwise.
func (c *concatenator) choose(sym string, aliasUsers []int) string {
	ok := !c.reserved.Has(sym)
	for _, x := range aliasUsers {
		if c.units[x].ast.Names.Has(sym) {
			ok = false
		}
	}
	if ok {
		c.reserved.Add(sym)
		return sym
	}
	return c.fresh(sym)
}

// fresh allocates a name no module uses, derived from base.
func (c *concatenator) fresh(base string) string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s$%d", base, i)
		if !c.reserved.Has(name) && !c.allNames.Has(name) {
			c.reserved.Add(name)
			return name
		}
	}
}

// generated allocates a name for a synthesized binding.
func (c *concatenator) generated(name string) string {
	if !c.reserved.Has(name) && !c.allNames.Has(name) {
		c.reserved.Add(name)
		return name
	}
	return c.fresh(name)
}

func (c *concatenator) namespace(idx int) string {
	if name, ok := c.nsName[idx]; ok {
		c.needNs.Add(idx)
		return name
	}
	name := c.generated(module.SafeName(c.units[idx].m.ID) + "_ns")
	c.nsName[idx] = name
	c.needNs.Add(idx)
	return name
}

func (c *concatenator) registerName(idx int) string {
	if name, ok := c.register[idx]; ok {
		return name
	}
	if c.helper == "" {
		c.helper = c.generated(registerHelper)
	}
	name := c.generated(module.SafeName(c.units[idx].m.ID) + "_cjs")
	c.register[idx] = name
	return name
}

// external records an import of a module outside the pot. ns asks for a
// namespace binding rather than a side-effect import.
func (c *concatenator) external(id module.ID, ns bool) string {
	name, ok := c.extNs[id]
	if !ok {
		name = c.generated("_ext_" + strings.TrimPrefix(module.SafeName(id), "_"))
		c.extNs[id] = name
		c.extOrder = append(c.extOrder, id)
	}
	if ns {
		c.extNeedNs.Add(id)
	}
	return name
}

// expr returns the expression reading b.
func (c *concatenator) expr(b binding) string {
	switch b.kind {
	case bindLocal:
		if name, ok := c.rename[b.unit][b.sym]; ok {
			return name
		}
		return b.sym
	case bindNamespace:
		return c.namespace(b.unit)
	case bindMember:
		return render.Member(c.namespace(b.unit), b.name)
	case bindExternal:
		ns := c.external(b.ext, true)
		if b.name == "*" {
			return ns
		}
		return render.Member(ns, b.name)
	}
	return "undefined"
}

// identText rewrites one identifier occurrence to text.
func identText(ref script.IdentRef, text string, member bool) string {
	switch ref.Role {
	case script.RoleCallee:
		if member {
			return "(0, " + text + ")"
		}
	case script.RoleShorthand, script.RoleShorthandPattern:
		if text != ref.Ident.Sym {
			return ref.Ident.Sym + ": " + text
		}
	}
	return text
}

func (c *concatenator) esmBody(u *unit) string {
	ed := script.NewEditor(u.ast.Source)
	rename := c.rename[u.idx]

	for i := range u.ast.Statements {
		st := &u.ast.Statements[i]
		switch st.Kind {
		case script.StmtImport:
			ed.ReplaceRange(st.Range, "")
			if id, _, in := c.link.target(u, st.Import.Source); !in && !c.isCss(id) {
				c.external(id, false)
			}
		case script.StmtReExport, script.StmtExportNamed:
			ed.ReplaceRange(st.Range, "")
			if st.Kind == script.StmtReExport {
				if id, _, in := c.link.target(u, st.Export.Source); !in {
					c.external(id, false)
				}
			}
		case script.StmtExportDecl, script.StmtExportDefaultDecl:
			ed.Remove(st.Range.Start, st.Body.Start)
			if st.NameInsert != 0 {
				ed.Insert(st.NameInsert, " "+rename[st.Defined[0].Sym])
			}
		case script.StmtExportDefaultExpr:
			ed.Replace(st.Range.Start, st.Body.Start, "var "+rename[st.Defined[0].Sym]+" = ")
			if !st.HasSemicolon {
				ed.Insert(st.Body.End, ";")
			}
		}
	}

	imported := make(map[string]binding, len(u.imports))
	for local := range u.imports {
		imported[local] = c.link.resolveImport(u, local)
	}
	top := u.ast.TopLevelMark
	for _, ref := range u.ast.Idents {
		if ref.Ident.Ctxt != top {
			continue
		}
		if b, ok := imported[ref.Ident.Sym]; ok {
			text := c.expr(b)
			member := b.kind == bindMember || (b.kind == bindExternal && b.name != "*")
			ed.ReplaceRange(ref.Range, identText(ref, text, member))
			continue
		}
		if name, ok := rename[ref.Ident.Sym]; ok && name != ref.Ident.Sym {
			ed.ReplaceRange(ref.Range, identText(ref, name, false))
		}
	}
	c.rewriteDeps(u, ed)
	return ed.String()
}

func (c *concatenator) cjsBody(u *unit) string {
	ed := script.NewEditor(u.ast.Source)
	c.rewriteDeps(u, ed)
	return fmt.Sprintf("var %s = %s(function (module, exports) {\n%s\n});\n",
		c.registerName(u.idx), c.helperName(), strings.TrimRight(ed.String(), "\n"))
}

func (c *concatenator) helperName() string {
	if c.helper == "" {
		c.helper = c.generated(registerHelper)
	}
	return c.helper
}

func (c *concatenator) isCss(id module.ID) bool {
	m := c.graph.Module(id)
	return m != nil && m.Type == module.TypeCss
}

// rewriteDeps handles dynamic imports and requires. In-pot targets read
// the synthesized namespace or the CommonJS factory; out-of-pot sources are
// rewritten to module ids so the concatenated module resolves them without
// its original importers.
func (c *concatenator) rewriteDeps(u *unit, ed *script.Editor) {
	for _, dep := range u.ast.Deps {
		if dep.Kind != script.DepDynamicImport && dep.Kind != script.DepRequire {
			continue
		}
		id, idx, in := c.link.target(u, dep.Source)
		if !in {
			if _, known := u.targets[dep.Source]; known {
				ed.ReplaceRange(dep.Arg, script.Quote(id.String()))
			}
			continue
		}
		var value string
		if c.units[idx].cjs {
			value = c.registerName(idx) + "()"
		} else {
			value = c.namespace(idx)
		}
		if dep.Kind == script.DepDynamicImport {
			if c.units[idx].cjs {
				value = runtime.InteropRequireWildcard + "(" + value + ")"
			}
			value = "Promise.resolve(" + value + ")"
		}
		ed.ReplaceRange(dep.Range, value)
	}
}

func (c *concatenator) hoistNamespace(idx int) bool {
	u := c.units[idx]
	return !u.cjs && c.cycles[u.m.ID]
}

// namespaceObject renders the namespace of unit idx. Modules in a cycle
// get accessors so reads observe bindings assigned later.
func (c *concatenator) namespaceObject(idx int) string {
	u := c.units[idx]
	name := c.nsName[idx]
	if u.cjs {
		return fmt.Sprintf("var %s = %s(%s());\n", name, runtime.InteropRequireWildcard, c.registerName(idx))
	}
	getters := c.cycles[u.m.ID]
	var props []string
	for _, export := range c.link.exportNames(idx, map[int]bool{}) {
		b, ok := c.link.resolveExport(idx, export, map[linkKey]bool{})
		if !ok {
			continue
		}
		key := export
		if !identOK(key) {
			key = script.Quote(key)
		}
		if getters {
			props = append(props, fmt.Sprintf("get %s() { return %s; }", key, c.expr(b)))
		} else {
			props = append(props, fmt.Sprintf("%s: %s", key, c.expr(b)))
		}
	}
	return fmt.Sprintf("var %s = { %s };\n", name, strings.Join(props, ", "))
}

// rootExports renders the export declarations of the root module.
func (c *concatenator) rootExports() string {
	var b strings.Builder
	var specs []string
	for _, export := range c.link.exportNames(c.root, map[int]bool{}) {
		bind, ok := c.link.resolveExport(c.root, export, map[linkKey]bool{})
		if !ok {
			continue
		}
		switch bind.kind {
		case bindExternal:
			c.external(bind.ext, false)
			if bind.name == "*" {
				fmt.Fprintf(&b, "export * as %s from %s;\n", exportName(export), script.Quote(bind.ext.String()))
			} else {
				fmt.Fprintf(&b, "export { %s as %s } from %s;\n", exportName(bind.name), exportName(export), script.Quote(bind.ext.String()))
			}
		case bindMember:
			local := c.generated("_" + module.SafeIdent(export))
			fmt.Fprintf(&b, "var %s = %s;\n", local, c.expr(bind))
			specs = append(specs, local+" as "+exportName(export))
		default:
			specs = append(specs, c.expr(bind)+" as "+exportName(export))
		}
	}
	for _, id := range c.link.externalStars(c.root, map[int]bool{}) {
		c.external(id, false)
		fmt.Fprintf(&b, "export * from %s;\n", script.Quote(id.String()))
	}
	if len(specs) > 0 {
		fmt.Fprintf(&b, "export { %s };\n", strings.Join(specs, ", "))
	}
	return b.String()
}

func identOK(name string) bool {
	return render.Member("x", name) == "x."+name
}

func exportName(name string) string {
	if identOK(name) {
		return name
	}
	return script.Quote(name)
}

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
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

type scope struct {
	parent   *scope
	mark     Mark
	function bool
	bindings map[string]struct{}
}

func (s *scope) declare(name string) {
	s.bindings[name] = struct{}{}
}

type analyzer struct {
	src    []byte
	g      *Globals
	ast    *AST
	module *scope
	stmt   int
	depth  int
}

func (a *analyzer) newScope(parent *scope, function bool) *scope {
	return &scope{parent: parent, mark: a.g.NewMark(), function: function, bindings: map[string]struct{}{}}
}

// lookup returns the mark of the scope binding name, or the unresolved mark.
func (a *analyzer) lookup(sc *scope, name string) Mark {
	for cur := sc; cur != nil; cur = cur.parent {
		if _, ok := cur.bindings[name]; ok {
			return cur.mark
		}
	}
	a.ast.Unresolved.Add(name)
	return a.ast.UnresolvedMark
}

func (a *analyzer) text(n *ts.Node) string {
	return n.Utf8Text(a.src)
}

func (a *analyzer) record(n *ts.Node, sc *scope, role IdentRole) {
	name := a.text(n)
	a.ast.Names.Add(name)
	a.ast.Idents = append(a.ast.Idents, IdentRef{
		Range: nodeRange(n),
		Ident: Ident{Sym: name, Ctxt: a.lookup(sc, name)},
		Role:  role,
		Stmt:  a.stmt,
	})
}

func (a *analyzer) run(root *ts.Node) {
	a.module = &scope{mark: a.ast.TopLevelMark, function: true, bindings: map[string]struct{}{}}

	var stmts []*ts.Node
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		switch child.Kind() {
		case "comment", "hash_bang_line":
			continue
		}
		stmts = append(stmts, child)
	}

	a.hoistVars(a.module, root)
	a.hoistLexical(a.module, stmts)

	for i, n := range stmts {
		a.stmt = i
		a.walkStatement(n)
	}
	for i, n := range stmts {
		a.stmt = i
		a.ast.Statements = append(a.ast.Statements, a.statement(i, n))
	}
}

func (a *analyzer) walkStatement(n *ts.Node) {
	switch n.Kind() {
	case "import_statement":
		if clause := childOfKind(n, "import_clause"); clause != nil {
			a.collectNames(clause)
		}
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			a.walk(decl, a.module)
		} else if value := n.ChildByFieldName("value"); value != nil {
			a.walk(value, a.module)
		} else if clause := childOfKind(n, "export_clause"); clause != nil {
			a.collectNames(clause)
		}
	default:
		a.walk(n, a.module)
	}
}

// collectNames adds identifier texts below n to Names without recording
// occurrences.
func (a *analyzer) collectNames(n *ts.Node) {
	if n.Kind() == "identifier" {
		a.ast.Names.Add(a.text(n))
		return
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		a.collectNames(n.NamedChild(i))
	}
}

var skippedKinds = map[string]bool{
	"comment":                true,
	"string":                 true,
	"number":                 true,
	"regex":                  true,
	"this":                   true,
	"super":                  true,
	"undefined":              true,
	"meta_property":          true,
	"type_annotation":        true,
	"type_arguments":         true,
	"type_parameters":        true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"ambient_declaration":    true,
	"import_statement":       true,
}

func isFunctionKind(kind string) bool {
	switch kind {
	case "function_declaration", "generator_function_declaration",
		"function_expression", "function", "generator_function",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

func (a *analyzer) walk(n *ts.Node, sc *scope) {
	if n == nil {
		return
	}
	kind := n.Kind()
	if kind == "meta_property" && a.text(n) == "import.meta" {
		a.ast.ImportMeta = append(a.ast.ImportMeta, nodeRange(n))
	}
	if skippedKinds[kind] {
		return
	}

	switch kind {
	case "identifier":
		a.record(n, sc, RoleRef)

	case "shorthand_property_identifier":
		a.record(n, sc, RoleShorthand)

	case "function_declaration", "generator_function_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			a.record(name, sc, RoleDecl)
		}
		a.walkFunction(n, a.newScope(sc, true))

	case "function_expression", "function", "generator_function":
		fs := a.newScope(sc, true)
		if name := n.ChildByFieldName("name"); name != nil {
			fs.declare(a.text(name))
			a.record(name, fs, RoleDecl)
		}
		a.walkFunction(n, fs)

	case "arrow_function":
		a.walkFunction(n, a.newScope(sc, true))

	case "method_definition":
		if name := n.ChildByFieldName("name"); name != nil && name.Kind() == "computed_property_name" {
			a.walk(name, sc)
		}
		a.walkFunction(n, a.newScope(sc, true))

	case "class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			a.record(name, sc, RoleDecl)
		}
		a.walkClass(n, sc)

	case "class":
		cs := sc
		if name := n.ChildByFieldName("name"); name != nil {
			cs = a.newScope(sc, false)
			cs.declare(a.text(name))
			a.record(name, cs, RoleDecl)
		}
		a.walkClass(n, cs)

	case "class_static_block":
		bs := a.newScope(sc, true)
		if body := n.ChildByFieldName("body"); body != nil {
			a.walkBlock(body, bs)
		}

	case "statement_block":
		a.walkBlock(n, a.newScope(sc, false))

	case "switch_body":
		bs := a.newScope(sc, false)
		var stmts []*ts.Node
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			for j := uint(0); j < c.NamedChildCount(); j++ {
				stmts = append(stmts, c.NamedChild(j))
			}
		}
		a.hoistLexical(bs, stmts)
		a.walkChildren(n, bs)

	case "for_statement":
		bs := a.newScope(sc, false)
		var stmts []*ts.Node
		for i := uint(0); i < n.NamedChildCount(); i++ {
			stmts = append(stmts, n.NamedChild(i))
		}
		a.hoistLexical(bs, stmts)
		a.walkChildren(n, bs)

	case "for_in_statement":
		bs := a.newScope(sc, false)
		left := n.ChildByFieldName("left")
		declKind := ""
		if k := n.ChildByFieldName("kind"); k != nil {
			declKind = a.text(k)
		}
		if declKind == "let" || declKind == "const" {
			a.bindingNames(left, bs.declare)
		}
		if declKind != "" {
			a.walkPattern(left, bs)
		} else {
			a.walkTarget(left, bs)
		}
		a.walk(n.ChildByFieldName("right"), bs)
		a.walk(n.ChildByFieldName("body"), bs)

	case "catch_clause":
		cs := a.newScope(sc, false)
		if param := n.ChildByFieldName("parameter"); param != nil {
			a.bindingNames(param, cs.declare)
			a.walkPattern(param, cs)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			a.walkBlock(body, a.newScope(cs, false))
		}

	case "variable_declarator":
		a.walkPattern(n.ChildByFieldName("name"), sc)
		a.walk(n.ChildByFieldName("value"), sc)

	case "assignment_expression":
		a.walkTarget(n.ChildByFieldName("left"), sc)
		a.walk(n.ChildByFieldName("right"), sc)

	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Kind() == "identifier" {
			a.record(fn, sc, RoleCallee)
		} else {
			if fn != nil && isHotAccept(a.text(fn)) {
				a.ast.HotAccept = true
			}
			a.walk(fn, sc)
		}
		a.walk(n.ChildByFieldName("arguments"), sc)

	case "await_expression":
		if a.depth == 0 {
			a.ast.TopLevelAwait = true
		}
		a.walkChildren(n, sc)

	case "jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c.Kind() == "identifier" {
				if name := a.text(c); name != "" && name[0] >= 'A' && name[0] <= 'Z' {
					a.record(c, sc, RoleRef)
				}
				continue
			}
			a.walk(c, sc)
		}

	case "member_expression":
		a.walk(n.ChildByFieldName("object"), sc)

	case "pair":
		if key := n.ChildByFieldName("key"); key != nil && key.Kind() == "computed_property_name" {
			a.walk(key, sc)
		}
		a.walk(n.ChildByFieldName("value"), sc)

	case "labeled_statement":
		a.walk(n.ChildByFieldName("body"), sc)

	case "break_statement", "continue_statement":

	default:
		a.walkChildren(n, sc)
	}
}

func (a *analyzer) walkChildren(n *ts.Node, sc *scope) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		a.walk(n.NamedChild(i), sc)
	}
}

func (a *analyzer) walkBlock(n *ts.Node, sc *scope) {
	var stmts []*ts.Node
	for i := uint(0); i < n.NamedChildCount(); i++ {
		stmts = append(stmts, n.NamedChild(i))
	}
	a.hoistLexical(sc, stmts)
	for _, s := range stmts {
		a.walk(s, sc)
	}
}

func (a *analyzer) walkFunction(n *ts.Node, fs *scope) {
	a.depth++
	defer func() { a.depth-- }()

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = n.ChildByFieldName("parameter")
	}
	if params != nil {
		a.bindingNames(params, fs.declare)
	}

	body := n.ChildByFieldName("body")
	if body != nil && body.Kind() == "statement_block" {
		a.hoistVars(fs, body)
		var stmts []*ts.Node
		for i := uint(0); i < body.NamedChildCount(); i++ {
			stmts = append(stmts, body.NamedChild(i))
		}
		a.hoistLexical(fs, stmts)
	}

	if params != nil {
		a.walkPattern(params, fs)
	}
	if body == nil {
		return
	}
	if body.Kind() == "statement_block" {
		for i := uint(0); i < body.NamedChildCount(); i++ {
			a.walk(body.NamedChild(i), fs)
		}
		return
	}
	a.walk(body, fs)
}

func (a *analyzer) walkClass(n *ts.Node, sc *scope) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "class_heritage", "decorator":
			a.walk(c, sc)
		case "class_body":
			a.depth++
			a.walkChildren(c, sc)
			a.depth--
		}
	}
}

// walkPattern records the identifiers of a binding pattern.
func (a *analyzer) walkPattern(n *ts.Node, sc *scope) {
	a.pattern(n, sc, RoleDecl)
}

// walkTarget records the identifiers of an assignment target.
func (a *analyzer) walkTarget(n *ts.Node, sc *scope) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "object_pattern", "array_pattern":
		a.pattern(n, sc, RoleRef)
	default:
		a.walk(n, sc)
	}
}

func (a *analyzer) pattern(n *ts.Node, sc *scope, role IdentRole) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "identifier":
		a.record(n, sc, role)
	case "shorthand_property_identifier_pattern":
		a.record(n, sc, RoleShorthandPattern)
	case "formal_parameters", "array_pattern", "object_pattern", "rest_pattern":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			a.pattern(n.NamedChild(i), sc, role)
		}
	case "pair_pattern":
		if key := n.ChildByFieldName("key"); key != nil && key.Kind() == "computed_property_name" {
			a.walk(key, sc)
		}
		a.pattern(n.ChildByFieldName("value"), sc, role)
	case "assignment_pattern", "object_assignment_pattern":
		a.pattern(n.ChildByFieldName("left"), sc, role)
		a.walk(n.ChildByFieldName("right"), sc)
	case "required_parameter", "optional_parameter":
		a.pattern(n.ChildByFieldName("pattern"), sc, role)
		a.walk(n.ChildByFieldName("value"), sc)
	case "type_annotation", "comment":
	default:
		a.walk(n, sc)
	}
}

// bindingNames reports every name a binding pattern declares.
func (a *analyzer) bindingNames(n *ts.Node, fn func(string)) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		fn(a.text(n))
	case "formal_parameters", "array_pattern", "object_pattern", "rest_pattern":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			a.bindingNames(n.NamedChild(i), fn)
		}
	case "pair_pattern":
		a.bindingNames(n.ChildByFieldName("value"), fn)
	case "assignment_pattern", "object_assignment_pattern":
		a.bindingNames(n.ChildByFieldName("left"), fn)
	case "required_parameter", "optional_parameter":
		a.bindingNames(n.ChildByFieldName("pattern"), fn)
	}
}

// hoistVars declares every var binding below n that belongs to fs.
func (a *analyzer) hoistVars(fs *scope, n *ts.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		if isFunctionKind(kind) || kind == "class_declaration" || kind == "class" {
			continue
		}
		switch kind {
		case "variable_declaration":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				d := c.NamedChild(j)
				if d.Kind() == "variable_declarator" {
					a.bindingNames(d.ChildByFieldName("name"), fs.declare)
				}
			}
		case "for_in_statement":
			if k := c.ChildByFieldName("kind"); k != nil && a.text(k) == "var" {
				a.bindingNames(c.ChildByFieldName("left"), fs.declare)
			}
		}
		a.hoistVars(fs, c)
	}
}

// hoistLexical declares the block-scoped bindings of stmts in sc.
func (a *analyzer) hoistLexical(sc *scope, stmts []*ts.Node) {
	for _, s := range stmts {
		switch s.Kind() {
		case "lexical_declaration":
			for j := uint(0); j < s.NamedChildCount(); j++ {
				d := s.NamedChild(j)
				if d.Kind() == "variable_declarator" {
					a.bindingNames(d.ChildByFieldName("name"), sc.declare)
				}
			}
		case "function_declaration", "generator_function_declaration", "class_declaration":
			if name := s.ChildByFieldName("name"); name != nil {
				sc.declare(a.text(name))
			}
		case "export_statement":
			if decl := s.ChildByFieldName("declaration"); decl != nil {
				a.hoistLexical(sc, []*ts.Node{decl})
			} else if value := s.ChildByFieldName("value"); value != nil {
				switch value.Kind() {
				case "function_expression", "function", "generator_function", "class":
					if name := value.ChildByFieldName("name"); name != nil {
						sc.declare(a.text(name))
					}
				}
			}
		case "import_statement":
			for _, spec := range a.importSpecifiers(s) {
				sc.declare(spec.Local.Sym)
			}
		}
	}
}

func (a *analyzer) importSpecifiers(n *ts.Node) []ImportSpecifier {
	clause := childOfKind(n, "import_clause")
	if clause == nil {
		return nil
	}
	var specs []ImportSpecifier
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		c := clause.NamedChild(i)
		switch c.Kind() {
		case "identifier":
			specs = append(specs, ImportSpecifier{Kind: ImportDefault, Local: Ident{Sym: a.text(c)}})
		case "namespace_import":
			if id := childOfKind(c, "identifier"); id != nil {
				specs = append(specs, ImportSpecifier{Kind: ImportNamespace, Local: Ident{Sym: a.text(id)}})
			}
		case "named_imports":
			for j := uint(0); j < c.NamedChildCount(); j++ {
				s := c.NamedChild(j)
				if s.Kind() != "import_specifier" {
					continue
				}
				name := s.ChildByFieldName("name")
				if name == nil {
					continue
				}
				imported := unquote(a.text(name))
				local := imported
				if alias := s.ChildByFieldName("alias"); alias != nil {
					local = a.text(alias)
				}
				spec := ImportSpecifier{Kind: ImportNamed, Local: Ident{Sym: local}}
				if imported != local {
					spec.Imported = imported
				}
				specs = append(specs, spec)
			}
		}
	}
	return specs
}

// statement classifies a top-level statement once every binding is known.
func (a *analyzer) statement(index int, n *ts.Node) Statement {
	st := Statement{
		Index: index,
		Kind:  StmtOther,
		Range: nodeRange(n),
		Body:  nodeRange(n),
	}
	st.HasSemicolon = strings.HasSuffix(strings.TrimSpace(a.text(n)), ";")
	top := a.ast.TopLevelMark

	switch n.Kind() {
	case "import_statement":
		st.Kind = StmtImport
		info := &ImportInfo{}
		if src := n.ChildByFieldName("source"); src != nil {
			info.Source = unquote(a.text(src))
		}
		for _, spec := range a.importSpecifiers(n) {
			spec.Local.Ctxt = top
			info.Specifiers = append(info.Specifiers, spec)
			st.Defined = append(st.Defined, spec.Local)
		}
		st.Import = info

	case "export_statement":
		a.exportStatement(n, &st)

	case "lexical_declaration", "variable_declaration",
		"function_declaration", "generator_function_declaration", "class_declaration":
		for _, name := range a.declaredNames(n) {
			st.Defined = append(st.Defined, Ident{Sym: name, Ctxt: top})
		}
	}
	return st
}

func (a *analyzer) declaredNames(n *ts.Node) []string {
	var names []string
	switch n.Kind() {
	case "lexical_declaration", "variable_declaration":
		for j := uint(0); j < n.NamedChildCount(); j++ {
			d := n.NamedChild(j)
			if d.Kind() == "variable_declarator" {
				a.bindingNames(d.ChildByFieldName("name"), func(s string) { names = append(names, s) })
			}
		}
	case "function_declaration", "generator_function_declaration", "class_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			names = append(names, a.text(name))
		}
	}
	return names
}

func (a *analyzer) exportStatement(n *ts.Node, st *Statement) {
	top := a.ast.TopLevelMark
	info := &ExportInfo{}
	st.Export = info

	if src := n.ChildByFieldName("source"); src != nil {
		st.Kind = StmtReExport
		info.Source = unquote(a.text(src))
		if ns := childOfKind(n, "namespace_export"); ns != nil {
			if name := ns.NamedChild(0); name != nil {
				sym := unquote(a.text(name))
				info.Specifiers = append(info.Specifiers, ExportSpecifier{Kind: ExportNamespace, Local: Ident{Sym: sym}, Exported: sym})
			}
			return
		}
		if clause := childOfKind(n, "export_clause"); clause != nil {
			info.Specifiers = a.exportSpecifiers(clause, 0)
			return
		}
		info.Specifiers = append(info.Specifiers, ExportSpecifier{Kind: ExportAll})
		return
	}

	isDefault := false
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); !c.IsNamed() && c.Kind() == "default" {
			isDefault = true
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		st.Body = nodeRange(decl)
		names := a.declaredNames(decl)
		if isDefault && len(names) == 1 {
			st.Kind = StmtExportDefaultDecl
			local := Ident{Sym: names[0], Ctxt: top}
			st.Defined = []Ident{local}
			info.Specifiers = []ExportSpecifier{{Kind: ExportDefault, Local: local}}
			return
		}
		st.Kind = StmtExportDecl
		for _, name := range names {
			local := Ident{Sym: name, Ctxt: top}
			st.Defined = append(st.Defined, local)
			info.Specifiers = append(info.Specifiers, ExportSpecifier{Kind: ExportNamed, Local: local})
		}
		return
	}

	if value := n.ChildByFieldName("value"); value != nil {
		st.Body = nodeRange(value)
		switch value.Kind() {
		case "function_expression", "function", "generator_function", "class":
			st.Kind = StmtExportDefaultDecl
			var local Ident
			if name := value.ChildByFieldName("name"); name != nil {
				local = Ident{Sym: a.text(name), Ctxt: top}
			} else {
				local = Ident{Sym: a.defaultName(), Ctxt: top}
				st.NameInsert = a.nameInsertPoint(value)
			}
			st.Defined = []Ident{local}
			info.Specifiers = []ExportSpecifier{{Kind: ExportDefault, Local: local}}
			return
		}
		st.Kind = StmtExportDefaultExpr
		local := Ident{Sym: a.defaultName(), Ctxt: top}
		st.Defined = []Ident{local}
		info.Specifiers = []ExportSpecifier{{Kind: ExportDefault, Local: local}}
		return
	}

	st.Kind = StmtExportNamed
	if clause := childOfKind(n, "export_clause"); clause != nil {
		info.Specifiers = a.exportSpecifiers(clause, top)
	}
}

func (a *analyzer) exportSpecifiers(clause *ts.Node, top Mark) []ExportSpecifier {
	var specs []ExportSpecifier
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		s := clause.NamedChild(i)
		if s.Kind() != "export_specifier" {
			continue
		}
		name := s.ChildByFieldName("name")
		if name == nil {
			continue
		}
		local := unquote(a.text(name))
		exported := ""
		if alias := s.ChildByFieldName("alias"); alias != nil {
			exported = unquote(a.text(alias))
			if exported == local {
				exported = ""
			}
		}
		ident := Ident{Sym: local}
		if top != 0 {
			ident.Ctxt = a.lookup(a.module, local)
		}
		specs = append(specs, ExportSpecifier{Kind: ExportNamed, Local: ident, Exported: exported})
	}
	return specs
}

// nameInsertPoint returns where " name" must be inserted to name an
// anonymous function or class expression.
func (a *analyzer) nameInsertPoint(value *ts.Node) uint32 {
	if value.Kind() == "class" {
		for i := uint(0); i < value.ChildCount(); i++ {
			if c := value.Child(i); !c.IsNamed() && c.Kind() == "class" {
				return uint32(c.EndByte())
			}
		}
		return uint32(value.StartByte()) + uint32(len("class"))
	}
	if params := value.ChildByFieldName("parameters"); params != nil {
		return uint32(params.StartByte())
	}
	return uint32(value.StartByte())
}

func (a *analyzer) defaultName() string {
	if a.ast.DefaultName != "" {
		return a.ast.DefaultName
	}
	name := "_default"
	for i := 1; a.ast.Names.Has(name); i++ {
		name = "_default" + strconv.Itoa(i)
	}
	a.ast.DefaultName = name
	a.ast.Names.Add(name)
	return name
}

func childOfKind(n *ts.Node, kind string) *ts.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c.Kind() == kind {
			return c
		}
	}
	return nil
}

func isHotAccept(callee string) bool {
	callee = strings.Join(strings.Fields(callee), "")
	return callee == "import.meta.hot.accept" || callee == "module.meta.hot.accept"
}

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *AST {
	t.Helper()
	ast, err := Parse([]byte(src), Options{})
	require.NoError(t, err)
	return ast
}

func identsNamed(ast *AST, sym string) []IdentRef {
	var out []IdentRef
	for _, id := range ast.Idents {
		if id.Ident.Sym == sym {
			out = append(out, id)
		}
	}
	return out
}

func TestParseImports(t *testing.T) {
	ast := mustParse(t, `import a, { b as c, d } from "./dep";
import * as ns from './ns';
import "./side-effect";
console.log(a, c, d, ns);
`)

	require.Len(t, ast.Statements, 4)

	first := ast.Statements[0]
	require.Equal(t, StmtImport, first.Kind)
	require.NotNil(t, first.Import)
	assert.Equal(t, "./dep", first.Import.Source)
	require.Len(t, first.Import.Specifiers, 3)
	assert.Equal(t, ImportDefault, first.Import.Specifiers[0].Kind)
	assert.Equal(t, "a", first.Import.Specifiers[0].Local.Sym)
	assert.Equal(t, "b", first.Import.Specifiers[1].ImportedName())
	assert.Equal(t, "c", first.Import.Specifiers[1].Local.Sym)
	assert.Equal(t, "d", first.Import.Specifiers[2].ImportedName())
	for _, spec := range first.Import.Specifiers {
		assert.Equal(t, ast.TopLevelMark, spec.Local.Ctxt)
	}

	assert.Equal(t, ImportNamespace, ast.Statements[1].Import.Specifiers[0].Kind)
	assert.Equal(t, "./ns", ast.Statements[1].Import.Source)
	assert.Empty(t, ast.Statements[2].Import.Specifiers)

	require.Len(t, ast.Deps, 3)
	assert.Equal(t, "./dep", ast.Deps[0].Source)
	assert.Equal(t, "./ns", ast.Deps[1].Source)
	assert.Equal(t, "./side-effect", ast.Deps[2].Source)
	assert.Equal(t, SystemEsModule, ast.System)

	for _, ref := range identsNamed(ast, "c") {
		assert.Equal(t, ast.TopLevelMark, ref.Ident.Ctxt)
		assert.Equal(t, 3, ref.Stmt)
	}
	assert.True(t, ast.Unresolved.Has("console"))
}

func TestParseExports(t *testing.T) {
	ast := mustParse(t, `export const x = 1, y = 2;
export function f() {}
export default class {}
const z = 3;
export { z as renamed, z };
export * from "./all";
export * as space from "./space";
export { q as r } from "./named";
`)

	require.Len(t, ast.Statements, 8)

	decl := ast.Statements[0]
	assert.Equal(t, StmtExportDecl, decl.Kind)
	require.Len(t, decl.Export.Specifiers, 2)
	assert.Equal(t, "x", decl.Export.Specifiers[0].ExportedName())
	assert.Equal(t, "y", decl.Export.Specifiers[1].ExportedName())
	assert.Equal(t, []Ident{{Sym: "x", Ctxt: ast.TopLevelMark}, {Sym: "y", Ctxt: ast.TopLevelMark}}, decl.Defined)

	assert.Equal(t, StmtExportDecl, ast.Statements[1].Kind)
	assert.Equal(t, "f", ast.Statements[1].Export.Specifiers[0].Local.Sym)

	def := ast.Statements[2]
	assert.Equal(t, StmtExportDefaultDecl, def.Kind)
	assert.Equal(t, ExportDefault, def.Export.Specifiers[0].Kind)
	assert.Equal(t, "_default", def.Export.Specifiers[0].Local.Sym)
	assert.NotZero(t, def.NameInsert)

	named := ast.Statements[4]
	assert.Equal(t, StmtExportNamed, named.Kind)
	require.Len(t, named.Export.Specifiers, 2)
	assert.Equal(t, "renamed", named.Export.Specifiers[0].ExportedName())
	assert.Equal(t, ast.TopLevelMark, named.Export.Specifiers[0].Local.Ctxt)

	all := ast.Statements[5]
	assert.Equal(t, StmtReExport, all.Kind)
	assert.Equal(t, ExportAll, all.Export.Specifiers[0].Kind)
	assert.Equal(t, "./all", all.Export.Source)

	space := ast.Statements[6]
	assert.Equal(t, ExportNamespace, space.Export.Specifiers[0].Kind)
	assert.Equal(t, "space", space.Export.Specifiers[0].ExportedName())

	reexport := ast.Statements[7]
	assert.Equal(t, "q", reexport.Export.Specifiers[0].Local.Sym)
	assert.Equal(t, "r", reexport.Export.Specifiers[0].ExportedName())
	assert.Zero(t, reexport.Export.Specifiers[0].Local.Ctxt)

	kinds := []DepKind{}
	for _, d := range ast.Deps {
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []DepKind{DepExportFrom, DepExportFrom, DepExportFrom}, kinds)
}

func TestParseDefaultExpressionAvoidsCollisions(t *testing.T) {
	ast := mustParse(t, `const _default = 1;
export default _default + 1;
`)
	def := ast.Statements[1]
	assert.Equal(t, StmtExportDefaultExpr, def.Kind)
	assert.Equal(t, "_default1", ast.DefaultName)
	assert.Equal(t, "_default1", def.Export.Specifiers[0].Local.Sym)
}

func TestParseScopes(t *testing.T) {
	ast := mustParse(t, `const a = 1;
function f(a) {
  return a + b;
}
{
  let a = 2;
  a;
}
a;
`)
	refs := identsNamed(ast, "a")
	require.Len(t, refs, 6)

	top := ast.TopLevelMark
	assert.Equal(t, top, refs[0].Ident.Ctxt, "declaration")
	assert.Equal(t, RoleDecl, refs[0].Role)
	assert.NotEqual(t, top, refs[1].Ident.Ctxt, "parameter")
	assert.Equal(t, refs[1].Ident.Ctxt, refs[2].Ident.Ctxt, "parameter use")
	assert.NotEqual(t, top, refs[3].Ident.Ctxt, "block declaration")
	assert.Equal(t, refs[3].Ident.Ctxt, refs[4].Ident.Ctxt, "block use")
	assert.Equal(t, top, refs[5].Ident.Ctxt, "top-level use")

	b := identsNamed(ast, "b")
	require.Len(t, b, 1)
	assert.Equal(t, ast.UnresolvedMark, b[0].Ident.Ctxt)
}

func TestParseHoisting(t *testing.T) {
	ast := mustParse(t, `g();
function g() { return v; }
var v = 1;
`)
	for _, ref := range append(identsNamed(ast, "g"), identsNamed(ast, "v")...) {
		assert.Equal(t, ast.TopLevelMark, ref.Ident.Ctxt, ref.Ident.Sym)
	}
	assert.Equal(t, RoleCallee, identsNamed(ast, "g")[0].Role)
}

func TestParseShorthand(t *testing.T) {
	ast := mustParse(t, `const a = 1;
const o = { a };
const { b } = o;
`)
	refs := identsNamed(ast, "a")
	require.Len(t, refs, 2)
	assert.Equal(t, RoleShorthand, refs[1].Role)

	b := identsNamed(ast, "b")
	require.Len(t, b, 1)
	assert.Equal(t, RoleShorthandPattern, b[0].Role)
	assert.Equal(t, ast.TopLevelMark, b[0].Ident.Ctxt)
}

func TestParseDynamicImportAndRequire(t *testing.T) {
	ast := mustParse(t, "const lazy = () => import('./lazy');\nconst dep = require(\"./dep\");\nmodule.exports = dep;\n")
	require.Len(t, ast.Deps, 2)
	assert.Equal(t, DepDynamicImport, ast.Deps[0].Kind)
	assert.Equal(t, "./lazy", ast.Deps[0].Source)
	assert.Equal(t, DepRequire, ast.Deps[1].Kind)
	assert.Equal(t, SystemCommonJs, ast.System)
}

func TestParseShadowedRequire(t *testing.T) {
	ast := mustParse(t, "function require(x) { return x; }\nrequire('./not-a-dep');\n")
	assert.Empty(t, ast.Deps)
}

func TestParseHybrid(t *testing.T) {
	ast := mustParse(t, "import a from './a';\nmodule.exports = a;\n")
	assert.Equal(t, SystemHybrid, ast.System)
}

func TestParseHotAccept(t *testing.T) {
	ast := mustParse(t, "export const x = 1;\nif (import.meta.hot) { import.meta.hot.accept(); }\n")
	assert.True(t, ast.HotAccept)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("const = ;"), Options{})
	require.Error(t, err)
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 1, syntaxErr.Line)
}

func TestResolveModuleMarkUsesFreshGlobals(t *testing.T) {
	g := NewGlobals()
	first, err := Parse([]byte("export const a = 1;"), Options{Globals: g})
	require.NoError(t, err)

	again, err := ResolveModuleMark(first, false, g)
	require.NoError(t, err)
	assert.NotEqual(t, first.TopLevelMark, again.TopLevelMark)
	assert.Equal(t, again.TopLevelMark, again.Statements[0].Defined[0].Ctxt)
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"a"`, "a"},
		{`'b'`, "b"},
		{"`c`", "c"},
		{`'it\'s'`, "it's"},
		{`"line\n"`, "line\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unquote(tt.in), tt.in)
	}
}

func TestParseImportMeta(t *testing.T) {
	src := "const u = import.meta.url;\nif (import.meta.hot) {\n  import.meta.hot.accept();\n}\n"
	ast := mustParse(t, src)

	require.Len(t, ast.ImportMeta, 3)
	for _, r := range ast.ImportMeta {
		assert.Equal(t, "import.meta", src[r.Start:r.End])
	}
	assert.True(t, ast.HotAccept)
}

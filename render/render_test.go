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

package render_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/render"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/script"
	"github.com/farm-fe/farm-sub001/testutil"
)

var dev = render.Options{Mode: module.ModeDevelopment, Namespace: "ns"}

func addScript(t *testing.T, g *module.Graph, id, src string) *module.Module {
	t.Helper()
	ast, err := script.Parse([]byte(src), script.Options{})
	require.NoError(t, err)
	m := module.New(module.ParseID(id))
	m.Type = module.TypeJs
	m.Content = src
	m.Meta.Script = module.NewScriptMeta(ast)
	g.AddModule(m)
	return m
}

func link(t *testing.T, g *module.Graph, from, to, source string, kind module.ResolveKind) {
	t.Helper()
	require.NoError(t, g.AddEdgeItem(module.ParseID(from), module.ParseID(to), module.EdgeItem{Kind: kind, Source: source}))
}

func TestFactoryESM(t *testing.T) {
	g := module.NewGraph()
	main := addScript(t, g, "main.js", `import foo, { bar as baz } from "./dep";
import * as ns from "./ns";
import "./style.css";
export const x = baz(1);
export default function () { return foo + ns.y; }
export { baz as qux };
const lazy = () => import("./lazy");
console.log(import.meta.url, { foo });
`)
	addScript(t, g, "dep.js", "export const bar = 1; export default 2;")
	addScript(t, g, "ns.js", "module.exports = { y: 1 };")
	addScript(t, g, "lazy.js", "export const z = 1;")
	css := module.New(module.ParseID("style.css"))
	css.Type = module.TypeCss
	g.AddModule(css)

	link(t, g, "main.js", "dep.js", "./dep", module.KindImport)
	link(t, g, "main.js", "ns.js", "./ns", module.KindImport)
	link(t, g, "main.js", "style.css", "./style.css", module.KindImport)
	link(t, g, "main.js", "lazy.js", "./lazy", module.KindDynamicImport)

	out, err := render.Factory(main, g, dev)
	require.NoError(t, err)

	assert.Contains(t, out, "function(module, exports, farmRequire, farmDynamicRequire) {\n\"use strict\";")
	assert.Contains(t, out, `var _f_dep = farmRequire("dep.js");`)
	assert.Contains(t, out, `var ns = _interop_require_wildcard(farmRequire("ns.js"));`)
	assert.NotContains(t, out, "style.css")
	assert.NotContains(t, out, "import ")
	assert.Contains(t, out, "const x = (0, _f_dep.bar)(1);")
	assert.Contains(t, out, "_default() { return _f_dep.default + ns.y; }")
	assert.Contains(t, out, `Object.defineProperty(exports, "x", { enumerable: true, get: function() { return x; } });`)
	assert.Contains(t, out, `Object.defineProperty(exports, "default", { enumerable: true, get: function() { return _default; } });`)
	assert.Contains(t, out, `Object.defineProperty(exports, "qux", { enumerable: true, get: function() { return _f_dep.bar; } });`)
	assert.Contains(t, out, `farmDynamicRequire("lazy.js")`)
	assert.Contains(t, out, "console.log(module.meta.url, { foo: _f_dep.default });")
}

func TestFactoryExportDefaultExpression(t *testing.T) {
	g := module.NewGraph()
	m := addScript(t, g, "a.js", "const v = 1\nexport default v + 1\n")

	out, err := render.Factory(m, g, dev)
	require.NoError(t, err)
	assert.Contains(t, out, "var _default = v + 1;")
	assert.Contains(t, out, `get: function() { return _default; }`)
}

func TestFactoryReExports(t *testing.T) {
	g := module.NewGraph()
	m := addScript(t, g, "index.js", `export * from "./a";
export { b as c, default as d } from "./b";
export * as all from "./c";
`)
	addScript(t, g, "a.js", "export const a = 1;")
	addScript(t, g, "b.js", "export const b = 1; export default 0;")
	addScript(t, g, "c.js", "module.exports = {};")
	link(t, g, "index.js", "a.js", "./a", module.KindExportFrom)
	link(t, g, "index.js", "b.js", "./b", module.KindExportFrom)
	link(t, g, "index.js", "c.js", "./c", module.KindExportFrom)

	out, err := render.Factory(m, g, dev)
	require.NoError(t, err)
	assert.Contains(t, out, `_export_star(farmRequire("a.js"), exports);`)
	assert.Contains(t, out, `var _f_b = farmRequire("b.js");`)
	assert.Contains(t, out, `Object.defineProperty(exports, "c", { enumerable: true, get: function() { return _f_b.b; } });`)
	assert.Contains(t, out, `Object.defineProperty(exports, "d", { enumerable: true, get: function() { return _f_b.default; } });`)
	assert.Contains(t, out, `var _f_c = _interop_require_wildcard(farmRequire("c.js"));`)
	assert.Contains(t, out, `get: function() { return _f_c; }`)
}

func TestFactoryCommonJs(t *testing.T) {
	g := module.NewGraph()
	m := addScript(t, g, "a.js", "const d = require(\"./dep\");\nconst ext = require(\"lodash\");\nmodule.exports = d;\n")
	addScript(t, g, "dep.js", "module.exports = 1;")
	lodash := module.New(module.ParseID("lodash"))
	lodash.External = true
	g.AddModule(lodash)
	link(t, g, "a.js", "dep.js", "./dep", module.KindRequire)
	link(t, g, "a.js", "lodash", "lodash", module.KindRequire)

	out, err := render.Factory(m, g, render.Options{Mode: module.ModeProduction, Namespace: "ns"})
	require.NoError(t, err)
	assert.NotContains(t, out, "use strict")
	assert.Contains(t, out, "const d = farmRequire("+script.Quote(module.ParseID("dep.js").Hash())+");")
	assert.Contains(t, out, `const ext = farmRequire("lodash");`)
	assert.Contains(t, out, "module.exports = d;")
}

func TestFactoryShadowedImport(t *testing.T) {
	g := module.NewGraph()
	m := addScript(t, g, "a.js", "import { v } from \"./dep\";\nfunction f(v) { return v; }\nexport const w = v;\n")
	addScript(t, g, "dep.js", "export const v = 1;")
	link(t, g, "a.js", "dep.js", "./dep", module.KindImport)

	out, err := render.Factory(m, g, dev)
	require.NoError(t, err)
	assert.Contains(t, out, "function f(v) { return v; }")
	assert.Contains(t, out, "const w = _f_dep.v;")
}

func TestFactoryCss(t *testing.T) {
	m := module.New(module.ParseID("a.css"))
	m.Type = module.TypeCss
	m.Content = ".a { color: red }"

	out, err := render.Factory(m, module.NewGraph(), dev)
	require.NoError(t, err)
	assert.Contains(t, out, `globalThis["ns"].__farm_module_system__.updateStyle("a.css", ".a { color: red }");`)
}

func TestMember(t *testing.T) {
	assert.Equal(t, "a.b", render.Member("a", "b"))
	assert.Equal(t, `a["my-name"]`, render.Member("a", "my-name"))
}

func TestPotAndDynamicResourcesMap(t *testing.T) {
	cfg := testutil.NewConfig(t, nil)
	c := core.NewContext(cfg, testutil.NewProject(t, nil), nil)
	g := c.ModuleGraph()
	addScript(t, g, "main.js", `import { a } from "./a"; import("./lazy").then(console.log); export { a };`)
	addScript(t, g, "a.js", "export const a = 1;")
	addScript(t, g, "lazy.js", "export const l = 1;")
	link(t, g, "main.js", "a.js", "./a", module.KindImport)
	link(t, g, "main.js", "lazy.js", "./lazy", module.KindDynamicImport)
	g.SetEntry(module.ParseID("main.js"), "main")
	g.UpdateExecutionOrder()
	c.SetModuleGroupGraph(module.BuildGroupGraph(g))

	pot := resource.NewResourcePot("main", resource.TypeJs)
	pot.AddModule(g.Module(module.ParseID("main.js")))
	pot.AddModule(g.Module(module.ParseID("a.js")))
	lazy := resource.NewResourcePot("lazy", resource.TypeJs)
	lazy.AddModule(g.Module(module.ParseID("lazy.js")))
	g.Module(module.ParseID("lazy.js")).ResourcePots.Add(lazy.ID)
	lazy.Resources.Add("lazy.123.js")
	c.ResourcePots().Add(pot)
	c.ResourcePots().Add(lazy)
	c.EmitResource(&resource.Resource{Name: "lazy.123.js", Type: resource.TypeJs})

	rendered, err := render.Pot(c, pot)
	require.NoError(t, err)
	assert.Contains(t, rendered.Content, `var farmModuleSystem = globalThis["__farm_default_namespace__"].__farm_module_system__;`)
	assert.Contains(t, rendered.Content, `"a.js": function(module, exports, farmRequire, farmDynamicRequire)`)
	assert.Contains(t, rendered.Content, `"main.js": function(module, exports, farmRequire, farmDynamicRequire)`)
	assert.Less(t, strings.Index(rendered.Content, `"a.js"`), strings.Index(rendered.Content, `"main.js"`))
	assert.Len(t, pot.Meta.RenderedModules, 2)
	assert.NotContains(t, rendered.Content, "function _export_star(")

	dyn := render.DynamicResourcesMap(c)
	assert.Equal(t, map[string][]render.ResourceRef{
		"lazy.js": {{"lazy.123.js", "js"}},
	}, dyn)
}

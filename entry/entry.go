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

// Package entry weaves the runtime into entry resources: HTML entries get
// the module system, their initial resources and a bootstrap call; script
// entries import a runtime resource and re-export the entry module.
package entry

import (
	"cmp"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/html"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/render"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/runtime"
	"github.com/farm-fe/farm-sub001/script"
)

// RuntimeSuffix names the runtime resource of a script entry after the
// entry resource.
const RuntimeSuffix = ".runtime.js"

const (
	msVar    = "__farm_ms__"
	entryVar = "__farm_entry__"
)

// InitialResources lists the js and css resources of every pot holding a
// module of entry's group, except exclude. Stylesheets come first.
func InitialResources(c *core.Context, entry module.ID, exclude string) []string {
	graph := c.ModuleGraph()
	groups := c.ModuleGroupGraph()
	if groups == nil {
		return nil
	}
	group := groups.Group(module.GroupID{ModuleID: entry, Type: module.GroupEntry})
	if group == nil {
		return nil
	}
	pots := set.New[string]()
	for _, mid := range group.Modules() {
		if m := graph.Module(mid); m != nil {
			pots.Extend(m.ResourcePots)
		}
	}
	type named struct {
		name string
		typ  resource.Type
	}
	var out []named
	for _, id := range pots.SortedFunc(strings.Compare) {
		pot := c.ResourcePots().Get(id)
		if pot == nil {
			continue
		}
		for _, name := range pot.Resources.SortedFunc(strings.Compare) {
			r, ok := c.Resource(name)
			if !ok || name == exclude || (r.Type != resource.TypeJs && r.Type != resource.TypeCss) {
				continue
			}
			out = append(out, named{name, r.Type})
		}
	}
	slices.SortStableFunc(out, func(a, b named) int {
		return cmp.Compare(rank(a.typ), rank(b.typ))
	})
	names := make([]string, len(out))
	for i, n := range out {
		names[i] = n.name
	}
	return names
}

func rank(t resource.Type) int {
	if t == resource.TypeCss {
		return 0
	}
	return 1
}

// publicURL prefixes a resource name with the public path.
func publicURL(cfg *config.Config, name string) string {
	base := cfg.Output.PublicPath
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + name
}

// setup returns the statements configuring the module system before any
// module runs. externals is the object literal of external modules.
func setup(c *core.Context, initial []string, externals string) (string, error) {
	dynamic, err := json.Marshal(render.DynamicResourcesMap(c))
	if err != nil {
		return "", err
	}
	publicPaths, err := json.Marshal([]string{publicURL(c.Config, "")})
	if err != nil {
		return "", err
	}
	if initial == nil {
		initial = []string{}
	}
	loaded, err := json.Marshal(initial)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "var %s = %s;\n", msVar, runtime.ModuleSystem(c.Config.Runtime.Namespace))
	fmt.Fprintf(&b, "%s.setPublicPaths(%s);\n", msVar, publicPaths)
	fmt.Fprintf(&b, "%s.setInitialLoadedResources(%s);\n", msVar, loaded)
	fmt.Fprintf(&b, "%s.setDynamicModuleResourcesMap(%s);\n", msVar, dynamic)
	if externals != "" {
		fmt.Fprintf(&b, "%s.setExternalModules(%s);\n", msVar, externals)
	}
	return b.String(), nil
}

func bootstrap(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = script.Quote(id)
	}
	return fmt.Sprintf("%s.setEntries([%s]);\n%s.bootstrap();\n", msVar, strings.Join(quoted, ", "), msVar)
}

func externalModules(graph *module.Graph) []module.ID {
	var ids []module.ID
	for _, m := range graph.Modules() {
		if m.External {
			ids = append(ids, m.ID)
		}
	}
	slices.SortFunc(ids, module.ID.Compare)
	return ids
}

// browserExternals maps each external module to the global of its name.
func browserExternals(graph *module.Graph) string {
	ids := externalModules(graph)
	if len(ids) == 0 {
		return ""
	}
	props := make([]string, len(ids))
	for i, id := range ids {
		props[i] = fmt.Sprintf("%s: globalThis[%s]", script.Quote(id.String()), script.Quote(id.String()))
	}
	return "{ " + strings.Join(props, ", ") + " }"
}

// HTML rewrites an HTML entry resource: bundled scripts and stylesheets
// are removed, the initial stylesheets are linked from the head and the
// body gets the runtime, the initial scripts and the bootstrap call.
func HTML(c *core.Context, p *core.EntryResourceParam) error {
	graph := c.ModuleGraph()
	ns := c.Config.Runtime.Namespace

	bundled := make(map[string]bool)
	var entries []string
	for _, dep := range graph.Dependencies(p.EntryModule) {
		target := graph.Module(dep.ID)
		if target == nil || target.External {
			continue
		}
		for _, item := range dep.Edge {
			bundled[item.Source] = true
		}
		if dep.Edge.ContainsKind(module.KindScriptSrc) {
			entries = append(entries, dep.ID.Printable(c.Mode()))
		}
	}

	setupCode, err := setup(c, p.InitialResources, browserExternals(graph))
	if err != nil {
		return err
	}
	inj := html.Injection{
		Bundled: func(ref string) bool { return bundled[ref] },
	}
	if c.Mode() == module.ModeDevelopment && c.Config.HMR.Enabled {
		url := fmt.Sprintf("ws://%s:%d%s", c.Config.HMR.Host, c.Config.HMR.Port, c.Config.HMR.Path)
		inj.Body = append(inj.Body, html.InlineScript(runtime.HMRClient(ns, url)))
	}
	inj.Body = append(inj.Body, html.InlineScript(runtime.Source(ns)+setupCode))
	for _, name := range p.InitialResources {
		r, ok := c.Resource(name)
		if !ok {
			continue
		}
		switch r.Type {
		case resource.TypeCss:
			inj.Head = append(inj.Head, html.StylesheetTag(publicURL(c.Config, name)))
		case resource.TypeJs:
			inj.Body = append(inj.Body, html.ScriptTag(publicURL(c.Config, name)))
		}
	}
	inj.Body = append(inj.Body, html.InlineScript("var "+msVar+" = "+runtime.ModuleSystem(ns)+";\n"+bootstrap(entries)))

	out, err := html.Inject(p.Resource.Bytes, inj)
	if err != nil {
		return fmt.Errorf("failed to inject resources into %s: %w", p.Resource.Name, err)
	}
	p.Resource.Bytes = out
	return nil
}

// relativeImport returns the specifier importing name from the resource
// from.
func relativeImport(from, name string) string {
	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(from)), filepath.FromSlash(name))
	if err != nil {
		rel = name
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

// JS rewrites a script entry resource. The module system and its setup go
// to a runtime resource emitted next to the entry, which the entry imports
// first, followed by its externals and initial resources; the entry module
// is then bootstrapped and re-exported.
func JS(c *core.Context, p *core.EntryResourceParam) error {
	graph := c.ModuleGraph()
	ns := c.Config.Runtime.Namespace
	esm := c.Config.Output.Format == config.FormatEsModule

	externals := externalModules(graph)
	var head strings.Builder
	var externalsMap string
	if c.Config.Output.TargetEnv == config.TargetNode || esm {
		props := make([]string, len(externals))
		for i, id := range externals {
			local := fmt.Sprintf("__farm_external_%d__", i)
			if esm {
				fmt.Fprintf(&head, "import * as %s from %s;\n", local, script.Quote(id.String()))
			} else {
				fmt.Fprintf(&head, "var %s = require(%s);\n", local, script.Quote(id.String()))
			}
			props[i] = script.Quote(id.String()) + ": " + local
		}
		if len(props) > 0 {
			externalsMap = "{ " + strings.Join(props, ", ") + " }"
		}
	} else {
		externalsMap = browserExternals(graph)
	}

	setupCode, err := setup(c, p.InitialResources, "")
	if err != nil {
		return err
	}
	runtimeName := strings.TrimSuffix(p.Resource.Name, ".js") + RuntimeSuffix
	c.EmitResource(&resource.Resource{
		Name:         runtimeName,
		Bytes:        []byte(runtime.Source(ns) + setupCode),
		Type:         resource.TypeRuntime,
		Origin:       resource.Origin{Module: p.EntryModule},
		PreserveName: true,
		Emitted:      true,
	})

	var b strings.Builder
	importStmt := func(name string) {
		if esm {
			fmt.Fprintf(&b, "import %s;\n", script.Quote(relativeImport(p.Resource.Name, name)))
		} else {
			fmt.Fprintf(&b, "require(%s);\n", script.Quote(relativeImport(p.Resource.Name, name)))
		}
	}
	importStmt(runtimeName)
	b.WriteString(head.String())
	for _, name := range p.InitialResources {
		if r, ok := c.Resource(name); ok && r.Type == resource.TypeJs {
			importStmt(name)
		}
	}
	b.Write(p.Resource.Bytes)

	fmt.Fprintf(&b, "var %s = %s;\n", msVar, runtime.ModuleSystem(ns))
	if externalsMap != "" {
		fmt.Fprintf(&b, "%s.setExternalModules(%s);\n", msVar, externalsMap)
	}
	entryID := p.EntryModule.Printable(c.Mode())
	b.WriteString(bootstrap([]string{entryID}))
	fmt.Fprintf(&b, "var %s = %s.require(%s);\n", entryVar, msVar, script.Quote(entryID))
	b.WriteString(reExport(graph, p.EntryModule, esm))

	p.Resource.Bytes = []byte(b.String())
	return nil
}

// reExport exposes the exports of the entry module from the entry
// resource.
func reExport(graph *module.Graph, id module.ID, esm bool) string {
	if !esm {
		return "module.exports = " + entryVar + ";\n"
	}
	m := graph.Module(id)
	if m == nil || m.Meta.Script == nil || m.Meta.Script.System != script.SystemEsModule {
		return "export default " + entryVar + ";\n"
	}
	var b strings.Builder
	var specs []string
	for i, name := range ExportNames(graph, id) {
		if name == "default" {
			fmt.Fprintf(&b, "export default %s;\n", render.Member(entryVar, name))
			continue
		}
		local := fmt.Sprintf("__farm_export_%d__", i)
		fmt.Fprintf(&b, "var %s = %s;\n", local, render.Member(entryVar, name))
		if render.Member("x", name) == "x."+name {
			specs = append(specs, local+" as "+name)
		} else {
			specs = append(specs, local+" as "+script.Quote(name))
		}
	}
	if len(specs) > 0 {
		fmt.Fprintf(&b, "export { %s };\n", strings.Join(specs, ", "))
	}
	return b.String()
}

// ExportNames lists the names an ES module exports, following export *
// through the graph. Names re-exported from modules whose exports cannot
// be enumerated statically are missed.
func ExportNames(graph *module.Graph, id module.ID) []string {
	seen := set.New[string]()
	var names []string
	var visit func(id module.ID, visited set.Set[module.ID], star bool)
	visit = func(id module.ID, visited set.Set[module.ID], star bool) {
		if !visited.Add(id) {
			return
		}
		m := graph.Module(id)
		if m == nil || m.External || m.Meta.Script == nil || m.Meta.Script.System != script.SystemEsModule {
			return
		}
		targets := make(map[string]module.ID)
		for _, dep := range graph.Dependencies(id) {
			for _, item := range dep.Edge {
				targets[item.Source] = dep.ID
			}
		}
		for _, st := range m.Meta.Script.Statements {
			if st.Export == nil {
				continue
			}
			for _, spec := range st.Export.Specifiers {
				if spec.Kind == script.ExportAll {
					if t, ok := targets[st.Export.Source]; ok {
						visit(t, visited, true)
					}
					continue
				}
				name := spec.ExportedName()
				if star && name == "default" {
					continue
				}
				if seen.Add(name) {
					names = append(names, name)
				}
			}
		}
	}
	visit(id, set.New[module.ID](), false)
	return names
}

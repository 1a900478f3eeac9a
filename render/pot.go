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

package render

import (
	"cmp"
	"slices"
	"strings"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/runtime"
	"github.com/farm-fe/farm-sub001/script"
)

// ModuleMap renders the modules ids of graph as an object literal mapping
// each printable id to its factory. rendered, if non-nil, receives every
// factory.
func ModuleMap(graph *module.Graph, ids []module.ID, opts Options, rendered map[module.ID]string) (string, error) {
	var b strings.Builder
	b.WriteString("{")
	first := true
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.External {
			continue
		}
		factory, err := Factory(m, graph, opts)
		if err != nil {
			return "", err
		}
		if rendered != nil {
			rendered[id] = factory
		}
		if !first {
			b.WriteString(",")
		}
		first = false
		b.WriteString("\n" + script.Quote(id.Printable(opts.Mode)) + ": " + factory)
	}
	b.WriteString("\n}")
	return b.String(), nil
}

// Wrap returns the code registering moduleMap with the module system,
// preceded by the helpers the factories call.
func Wrap(namespace, moduleMap string) string {
	var b strings.Builder
	b.WriteString("(function(){\n")
	b.WriteString(runtime.PolyfillsFor(moduleMap))
	b.WriteString("var farmModuleSystem = " + runtime.ModuleSystem(namespace) + ";\n")
	b.WriteString("farmModuleSystem.registerModules(" + moduleMap + ");\n")
	b.WriteString("})();\n")
	return b.String()
}

// Pot renders a script pot. Its modules are rendered in execution order
// and registered as one module map; the factories are kept on the pot so
// hot updates can reuse them.
func Pot(c *core.Context, pot *resource.ResourcePot) (*core.RenderedPot, error) {
	graph := c.ModuleGraph()
	opts := Options{Mode: c.Mode(), Namespace: c.Config.Runtime.Namespace}

	var ids []module.ID
	for _, m := range pot.Modules(graph) {
		ids = append(ids, m.ID)
	}
	rendered := make(map[module.ID]string, len(ids))
	moduleMap, err := ModuleMap(graph, ids, opts, rendered)
	if err != nil {
		return nil, &core.RenderResourcePotError{Name: pot.Name, Modules: ids, Msg: err.Error()}
	}
	pot.Meta.RenderedModules = rendered
	return &core.RenderedPot{Content: Wrap(opts.Namespace, moduleMap)}, nil
}

// ResourceRef is a resource the runtime loads before requiring a module,
// as [name, type].
type ResourceRef [2]string

// DynamicResourcesMap lists, for every dynamically imported module, the
// resources of the pots holding its group. Keys are printable module ids.
func DynamicResourcesMap(c *core.Context) map[string][]ResourceRef {
	graph := c.ModuleGraph()
	groups := c.ModuleGroupGraph()
	out := make(map[string][]ResourceRef)
	if groups == nil {
		return out
	}
	for _, g := range groups.Groups() {
		if g.ID.Type == module.GroupEntry {
			continue
		}
		pots := set.New[string]()
		for _, mid := range g.Modules() {
			if m := graph.Module(mid); m != nil {
				pots.Extend(m.ResourcePots)
			}
		}
		var refs []ResourceRef
		for _, potID := range pots.SortedFunc(strings.Compare) {
			pot := c.ResourcePots().Get(potID)
			if pot == nil {
				continue
			}
			for _, name := range pot.Resources.SortedFunc(strings.Compare) {
				r, ok := c.Resource(name)
				if !ok || (r.Type != resource.TypeJs && r.Type != resource.TypeCss) {
					continue
				}
				refs = append(refs, ResourceRef{name, string(r.Type)})
			}
		}
		// Stylesheets first so styles apply before the module runs.
		slices.SortStableFunc(refs, func(a, b ResourceRef) int {
			return cmp.Compare(typeRank(a[1]), typeRank(b[1]))
		})
		out[g.ID.ModuleID.Printable(c.Mode())] = refs
	}
	return out
}

func typeRank(t string) int {
	if t == string(resource.TypeCss) {
		return 0
	}
	return 1
}

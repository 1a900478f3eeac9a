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

package update

import (
	"slices"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/render"
)

// ExtraWatch lists watch files an update started or stopped depending on.
type ExtraWatch struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// Result is the hot replacement payload of one update. Module ids are
// printable ids, as registered with the module system.
type Result struct {
	Added   []string `json:"added"`
	Updated []string `json:"changed"`
	Removed []string `json:"removed"`
	// ImmutableResources and MutableResources are scripts registering the
	// factories of the added and updated modules.
	ImmutableResources string `json:"immutableModules"`
	MutableResources   string `json:"mutableModules"`
	// Boundaries maps each updated module to the importer chains ending at
	// the modules accepting the update. An empty list means reload.
	Boundaries          map[string][][]string           `json:"boundaries"`
	DynamicResourcesMap map[string][]render.ResourceRef `json:"dynamicResourcesMap"`
	ExtraWatchResult    ExtraWatch                      `json:"extraWatchResult"`
}

// acceptsUpdate reports whether m terminates hot update propagation.
func acceptsUpdate(m *module.Module) bool {
	if m.Type == module.TypeCss {
		return true
	}
	return m.Meta.Script != nil && m.Meta.Script.HotAccept
}

// Boundaries walks the importers of every updated module up to the modules
// accepting the update. Each chain starts at the updated module and ends at
// its boundary, and every importer path yields its own chain so that each
// module in between is re-executed. Only importers already on the current
// path are skipped. Reaching an entry, or a module nothing imports, without
// meeting a boundary yields an empty chain list for that module.
func Boundaries(graph *module.Graph, updated []module.ID, mode module.Mode) map[string][][]string {
	out := make(map[string][][]string, len(updated))
	for _, id := range updated {
		w := &boundaryWalker{graph: graph, mode: mode, onPath: set.New(id)}
		if !w.walk(id, []module.ID{id}) {
			w.chains = nil
		}
		if w.chains == nil {
			w.chains = [][]string{}
		}
		out[id.Printable(mode)] = w.chains
	}
	return out
}

type boundaryWalker struct {
	graph  *module.Graph
	mode   module.Mode
	onPath set.Set[module.ID]
	chains [][]string
}

func (w *boundaryWalker) walk(id module.ID, path []module.ID) bool {
	m := w.graph.Module(id)
	if m == nil {
		return false
	}
	if acceptsUpdate(m) {
		chain := make([]string, len(path))
		for i, p := range path {
			chain[i] = p.Printable(w.mode)
		}
		w.chains = append(w.chains, chain)
		return true
	}
	importers := w.graph.Dependents(id)
	if len(importers) == 0 || w.graph.IsEntry(id) {
		return false
	}
	for _, dep := range importers {
		if w.onPath.Has(dep.ID) {
			continue
		}
		w.onPath.Add(dep.ID)
		ok := w.walk(dep.ID, append(slices.Clone(path), dep.ID))
		w.onPath.Remove(dep.ID)
		if !ok {
			return false
		}
	}
	return true
}

// RenderModuleMaps renders the factories of ids split by mutability. Each
// non-empty map is wrapped so that evaluating it registers the factories.
func RenderModuleMaps(c *core.Context, ids []module.ID) (immutable, mutable string, err error) {
	graph := c.ModuleGraph()
	opts := render.Options{Mode: c.Mode(), Namespace: c.Config.Runtime.Namespace}

	var imm, mut []module.ID
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.External {
			continue
		}
		if m.Immutable {
			imm = append(imm, id)
		} else {
			mut = append(mut, id)
		}
	}
	wrap := func(ids []module.ID) (string, error) {
		if len(ids) == 0 {
			return "", nil
		}
		moduleMap, err := render.ModuleMap(graph, ids, opts, nil)
		if err != nil {
			return "", err
		}
		return render.Wrap(opts.Namespace, moduleMap), nil
	}
	if immutable, err = wrap(imm); err != nil {
		return "", "", err
	}
	if mutable, err = wrap(mut); err != nil {
		return "", "", err
	}
	return immutable, mutable, nil
}

// Package assembles the hot replacement payload once the live graph, its
// groups and its pots have been patched.
func Package(c *core.Context, added, updated, removed []module.ID) (*Result, error) {
	mode := c.Mode()
	printable := func(ids []module.ID) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, id.Printable(mode))
		}
		return out
	}

	immutable, mutable, err := RenderModuleMaps(c, slices.Concat(added, updated))
	if err != nil {
		return nil, err
	}
	return &Result{
		Added:               printable(added),
		Updated:             printable(updated),
		Removed:             printable(removed),
		ImmutableResources:  immutable,
		MutableResources:    mutable,
		Boundaries:          Boundaries(c.ModuleGraph(), updated, mode),
		DynamicResourcesMap: render.DynamicResourcesMap(c),
	}, nil
}

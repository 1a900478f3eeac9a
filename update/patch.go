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
	"path"
	"strings"

	"github.com/farm-fe/farm-sub001/module"
)

// PatchModuleGraph applies diff to the live graph, moving modules and
// edges over from the update graph. It returns the modules it removed so
// later steps can still inspect their group and pot membership.
//
// The steps run in a fixed order: removed edges go first, then added
// modules are moved in so added edges always find both endpoints, removed
// modules are dropped, and finally each rebuilt start point replaces its
// old version while keeping the old group and pot membership.
func PatchModuleGraph(startPoints []module.ID, diff *DiffResult, live, update *module.Graph) map[module.ID]*module.Module {
	type staged struct {
		from, to module.ID
		edge     module.Edge
	}

	for _, c := range diff.DepsChanges {
		for _, dep := range c.Removed {
			edge, ok := live.RemoveEdge(c.ID, dep.ID)
			if ok && edge.ContainsKind(module.KindDynamicEntry) && !hasDynamicEntryImporter(live, dep.ID) {
				live.RemoveDynamicEntry(dep.ID)
			}
		}
	}

	var edges []staged
	for _, c := range diff.DepsChanges {
		for _, dep := range c.Added {
			edge, ok := update.Edge(c.ID, dep.ID)
			if !ok {
				edge = dep.Edge
			}
			edges = append(edges, staged{from: c.ID, to: dep.ID, edge: edge})
		}
	}

	for _, id := range update.ModuleIDs() {
		if diff.AddedModules.Has(id) {
			live.AddModule(update.Module(id))
		}
	}

	for _, e := range edges {
		if err := live.AddEdge(e.from, e.to, e.edge); err != nil {
			continue
		}
		if e.edge.ContainsKind(module.KindDynamicEntry) {
			live.SetDynamicEntry(e.to, dynamicEntryName(update, e.to))
		}
	}

	removed := make(map[module.ID]*module.Module, diff.RemovedModules.Len())
	for _, id := range diff.RemovedModules.SortedFunc(module.ID.Compare) {
		if m := live.RemoveModule(id); m != nil {
			removed[id] = m
		}
	}

	for _, id := range startPoints {
		m := update.Module(id)
		if m == nil || diff.AddedModules.Has(id) {
			continue
		}
		prev := live.Module(id)
		if prev == nil {
			continue
		}
		m.ModuleGroups = prev.ModuleGroups
		m.ResourcePots = prev.ResourcePots
		m.IsEntry = prev.IsEntry
		m.IsDynamicEntry = prev.IsDynamicEntry
		m.ExecutionOrder = prev.ExecutionOrder
		live.AddModule(m)
	}
	return removed
}

func hasDynamicEntryImporter(g *module.Graph, id module.ID) bool {
	for _, dep := range g.Dependents(id) {
		if dep.Edge.ContainsKind(module.KindDynamicEntry) {
			return true
		}
	}
	return false
}

func dynamicEntryName(g *module.Graph, id module.ID) string {
	for _, e := range g.DynamicEntries() {
		if e.ID == id {
			return e.Name
		}
	}
	base := path.Base(id.RelativePath())
	return strings.TrimSuffix(base, path.Ext(base))
}

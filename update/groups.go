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
	"maps"
	"slices"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

type groupPatcher struct {
	graph    *module.Graph
	groups   *module.GroupGraph
	removed  map[module.ID]*module.Module
	affected set.Set[module.GroupID]
	// recompute holds groups whose membership may have shrunk; edges holds
	// groups whose outgoing dynamic edges may have changed.
	recompute set.Set[module.GroupID]
	edges     set.Set[module.GroupID]
	orphans   set.Set[module.GroupID]
}

// PatchModuleGroupGraph brings groups in line with the patched graph after
// PatchModuleGraph applied diff. removed are the modules PatchModuleGraph
// dropped. It returns every group whose membership changed, including
// groups it created or deleted.
//
// Additions are applied incrementally: a dynamic edge ensures the group
// rooted at its target, a static edge adds the target's static closure to
// the importer's groups. Removals mark the importer's groups for a
// membership recomputation from their roots, after which groups nothing
// imports dynamically any more are deleted.
func PatchModuleGroupGraph(diff *DiffResult, graph *module.Graph, groups *module.GroupGraph, removed map[module.ID]*module.Module) set.Set[module.GroupID] {
	p := &groupPatcher{
		graph:     graph,
		groups:    groups,
		removed:   removed,
		affected:  set.New[module.GroupID](),
		recompute: set.New[module.GroupID](),
		edges:     set.New[module.GroupID](),
		orphans:   set.New[module.GroupID](),
	}

	for _, c := range diff.DepsChanges {
		from := p.groupsOf(c.ID)
		for _, dep := range c.Added {
			p.addDep(from, dep)
		}
		for _, dep := range c.Removed {
			if dep.Edge.IsStatic() {
				p.recompute.Extend(from)
			}
			if dep.Edge.IsDynamic() {
				p.edges.Extend(from)
				for _, gid := range module.DynamicGroupIDs(dep.ID, dep.Edge) {
					p.orphans.Add(gid)
				}
			}
		}
	}

	for _, id := range slices.SortedFunc(maps.Keys(removed), module.ID.Compare) {
		m := removed[id]
		for gid := range m.ModuleGroups {
			if groups.RemoveModule(graph, gid, m.ID) {
				p.affected.Add(gid)
			}
			p.recompute.Add(gid)
		}
		for _, t := range []module.GroupType{module.GroupEntry, module.GroupDynamicImport, module.GroupDynamicEntry} {
			gid := module.GroupID{ModuleID: m.ID, Type: t}
			if groups.HasGroup(gid) {
				p.removeGroup(gid)
			}
		}
	}

	for _, gid := range p.recompute.SortedFunc(module.GroupID.Compare) {
		p.recomputeMembers(gid)
	}
	for _, gid := range p.edges.SortedFunc(module.GroupID.Compare) {
		p.recomputeEdges(gid)
	}
	p.removeOrphans()
	return p.affected
}

// groupsOf returns the groups a module belongs to, looking at removed
// modules for those PatchModuleGraph already dropped.
func (p *groupPatcher) groupsOf(id module.ID) set.Set[module.GroupID] {
	if m := p.graph.Module(id); m != nil {
		return m.ModuleGroups.Clone()
	}
	if m := p.removed[id]; m != nil {
		return m.ModuleGroups.Clone()
	}
	return set.New[module.GroupID]()
}

func (p *groupPatcher) addDep(from set.Set[module.GroupID], dep module.Dependency) {
	if !p.graph.HasModule(dep.ID) {
		return
	}
	for _, gid := range module.DynamicGroupIDs(dep.ID, dep.Edge) {
		p.ensureGroup(gid)
		for g := range from {
			if p.groups.HasGroup(g) {
				p.groups.AddEdge(g, gid)
			}
		}
	}
	if !dep.Edge.IsStatic() {
		return
	}
	for _, g := range from.SortedFunc(module.GroupID.Compare) {
		group := p.groups.Group(g)
		if group == nil {
			continue
		}
		before := group.Len()
		for _, dyn := range p.groups.AddStaticClosure(p.graph, g, dep.ID) {
			p.ensureGroup(dyn.To)
			p.groups.AddEdge(g, dyn.To)
		}
		if group.Len() != before {
			p.affected.Add(g)
		}
	}
}

// ensureGroup creates and fills the group gid if it does not exist yet,
// along with the groups its members import dynamically.
func (p *groupPatcher) ensureGroup(gid module.GroupID) {
	if _, created := p.groups.EnsureGroup(gid); !created {
		return
	}
	p.affected.Add(gid)
	for _, dyn := range p.groups.FillGroup(p.graph, gid) {
		p.ensureGroup(dyn.To)
		p.groups.AddEdge(gid, dyn.To)
	}
}

func (p *groupPatcher) removeGroup(gid module.GroupID) {
	if p.groups.RemoveGroup(p.graph, gid) != nil {
		p.affected.Add(gid)
	}
}

// recomputeMembers drops the members of gid its root no longer reaches
// statically.
func (p *groupPatcher) recomputeMembers(gid module.GroupID) {
	group := p.groups.Group(gid)
	if group == nil {
		return
	}
	if !p.graph.HasModule(gid.ModuleID) {
		p.removeGroup(gid)
		return
	}
	reach := module.StaticClosure(p.graph, gid.ModuleID)
	for _, mid := range group.Modules() {
		if !reach.Has(mid) && p.groups.RemoveModule(p.graph, gid, mid) {
			p.affected.Add(gid)
			p.edges.Add(gid)
		}
	}
}

// recomputeEdges rebuilds the dynamic edges leaving gid from its members.
func (p *groupPatcher) recomputeEdges(gid module.GroupID) {
	group := p.groups.Group(gid)
	if group == nil {
		return
	}
	for _, to := range p.groups.Dependencies(gid) {
		p.groups.RemoveEdge(gid, to)
		p.orphans.Add(to)
	}
	for _, mid := range group.Modules() {
		for _, dep := range p.graph.Dependencies(mid) {
			for _, to := range module.DynamicGroupIDs(dep.ID, dep.Edge) {
				if p.groups.HasGroup(to) {
					p.groups.AddEdge(gid, to)
				}
			}
		}
	}
}

// removeOrphans deletes the dynamic groups whose root nothing imports
// dynamically any more, and every group left empty.
func (p *groupPatcher) removeOrphans() {
	queue := p.orphans.SortedFunc(module.GroupID.Compare)
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if !p.groups.HasGroup(gid) || gid.Type == module.GroupEntry || p.stillImported(gid) {
			continue
		}
		queue = append(queue, p.groups.Dependencies(gid)...)
		p.removeGroup(gid)
	}
	for _, g := range p.groups.Groups() {
		if g.Len() == 0 {
			p.removeGroup(g.ID)
		}
	}
}

func (p *groupPatcher) stillImported(gid module.GroupID) bool {
	kind := module.KindDynamicImport
	if gid.Type == module.GroupDynamicEntry {
		if p.graph.IsDynamicEntry(gid.ModuleID) {
			return true
		}
		kind = module.KindDynamicEntry
	}
	for _, dep := range p.graph.Dependents(gid.ModuleID) {
		if dep.Edge.ContainsKind(kind) {
			return true
		}
	}
	return false
}

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

package module

import (
	"cmp"
	"slices"

	"github.com/farm-fe/farm-sub001/internal/set"
)

// GroupType says what made a module the root of a group.
type GroupType int

const (
	GroupEntry GroupType = iota
	GroupDynamicImport
	GroupDynamicEntry
)

func (t GroupType) String() string {
	switch t {
	case GroupDynamicImport:
		return "dynamicImport"
	case GroupDynamicEntry:
		return "dynamicEntry"
	}
	return "entry"
}

// GroupID identifies a module group by its root and type.
type GroupID struct {
	ModuleID ID        `json:"moduleId"`
	Type     GroupType `json:"type"`
}

func (id GroupID) String() string {
	return id.Type.String() + ":" + id.ModuleID.String()
}

// Compare orders group ids by root, then type.
func (id GroupID) Compare(other GroupID) int {
	if c := id.ModuleID.Compare(other.ModuleID); c != 0 {
		return c
	}
	return cmp.Compare(id.Type, other.Type)
}

// Group is the set of modules reachable from a root over static edges.
type Group struct {
	ID           GroupID
	modules      set.Set[ID]
	ResourcePots set.Set[string]
}

// NewGroup creates an empty group.
func NewGroup(id GroupID) *Group {
	return &Group{ID: id, modules: set.New[ID](), ResourcePots: set.New[string]()}
}

// Has reports whether id belongs to the group.
func (g *Group) Has(id ID) bool {
	return g.modules.Has(id)
}

// Len returns the number of members.
func (g *Group) Len() int {
	return g.modules.Len()
}

// Modules returns the members sorted by id.
func (g *Group) Modules() []ID {
	return g.modules.SortedFunc(ID.Compare)
}

// GroupGraph holds module groups and the dynamic dependencies between them.
type GroupGraph struct {
	groups  map[GroupID]*Group
	seq     map[GroupID]int
	nextSeq int
	deps    map[GroupID]set.Set[GroupID]
	rdeps   map[GroupID]set.Set[GroupID]
}

// NewGroupGraph creates an empty group graph.
func NewGroupGraph() *GroupGraph {
	return &GroupGraph{
		groups: make(map[GroupID]*Group),
		seq:    make(map[GroupID]int),
		deps:   make(map[GroupID]set.Set[GroupID]),
		rdeps:  make(map[GroupID]set.Set[GroupID]),
	}
}

// AddGroup inserts g unless a group with the same id exists, and returns
// the group held by the graph.
func (gg *GroupGraph) AddGroup(g *Group) *Group {
	if existing, ok := gg.groups[g.ID]; ok {
		return existing
	}
	gg.groups[g.ID] = g
	gg.seq[g.ID] = gg.nextSeq
	gg.nextSeq++
	return g
}

// EnsureGroup returns the group with id, creating it when needed.
func (gg *GroupGraph) EnsureGroup(id GroupID) (*Group, bool) {
	if g, ok := gg.groups[id]; ok {
		return g, false
	}
	return gg.AddGroup(NewGroup(id)), true
}

// Group returns the group with id, or nil.
func (gg *GroupGraph) Group(id GroupID) *Group {
	return gg.groups[id]
}

// HasGroup reports whether the group exists.
func (gg *GroupGraph) HasGroup(id GroupID) bool {
	_, ok := gg.groups[id]
	return ok
}

// Len returns the number of groups.
func (gg *GroupGraph) Len() int {
	return len(gg.groups)
}

// Groups returns every group in creation order.
func (gg *GroupGraph) Groups() []*Group {
	ids := gg.GroupIDs()
	out := make([]*Group, len(ids))
	for i, id := range ids {
		out[i] = gg.groups[id]
	}
	return out
}

// GroupIDs returns every group id in creation order.
func (gg *GroupGraph) GroupIDs() []GroupID {
	ids := make([]GroupID, 0, len(gg.groups))
	for id := range gg.groups {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b GroupID) int { return cmp.Compare(gg.seq[a], gg.seq[b]) })
	return ids
}

// RemoveGroup deletes a group, its edges and the back-references its
// members hold in graph.
func (gg *GroupGraph) RemoveGroup(graph *Graph, id GroupID) *Group {
	g, ok := gg.groups[id]
	if !ok {
		return nil
	}
	for mid := range g.modules {
		if m := graph.Module(mid); m != nil {
			m.ModuleGroups.Remove(id)
		}
	}
	for dep := range gg.deps[id] {
		gg.rdeps[dep].Remove(id)
	}
	for parent := range gg.rdeps[id] {
		gg.deps[parent].Remove(id)
	}
	delete(gg.deps, id)
	delete(gg.rdeps, id)
	delete(gg.groups, id)
	delete(gg.seq, id)
	return g
}

// AddEdge records that a module of from dynamically imports the root of to.
func (gg *GroupGraph) AddEdge(from, to GroupID) {
	if gg.deps[from] == nil {
		gg.deps[from] = set.New[GroupID]()
	}
	gg.deps[from].Add(to)
	if gg.rdeps[to] == nil {
		gg.rdeps[to] = set.New[GroupID]()
	}
	gg.rdeps[to].Add(from)
}

// RemoveEdge removes the edge from -> to.
func (gg *GroupGraph) RemoveEdge(from, to GroupID) {
	if d := gg.deps[from]; d != nil {
		d.Remove(to)
	}
	if r := gg.rdeps[to]; r != nil {
		r.Remove(from)
	}
}

// HasEdge reports whether from -> to exists.
func (gg *GroupGraph) HasEdge(from, to GroupID) bool {
	return gg.deps[from].Has(to)
}

// Dependencies returns the groups from dynamically depends on.
func (gg *GroupGraph) Dependencies(id GroupID) []GroupID {
	return gg.deps[id].SortedFunc(GroupID.Compare)
}

// Dependents returns the groups that dynamically depend on id.
func (gg *GroupGraph) Dependents(id GroupID) []GroupID {
	return gg.rdeps[id].SortedFunc(GroupID.Compare)
}

// AddModule makes mid a member of group id, keeping the module's
// back-reference in graph in sync.
func (gg *GroupGraph) AddModule(graph *Graph, id GroupID, mid ID) bool {
	g := gg.groups[id]
	if g == nil || !g.modules.Add(mid) {
		return false
	}
	if m := graph.Module(mid); m != nil {
		if m.ModuleGroups == nil {
			m.ModuleGroups = set.New[GroupID]()
		}
		m.ModuleGroups.Add(id)
	}
	return true
}

// RemoveModule drops mid from group id.
func (gg *GroupGraph) RemoveModule(graph *Graph, id GroupID, mid ID) bool {
	g := gg.groups[id]
	if g == nil || !g.modules.Remove(mid) {
		return false
	}
	if m := graph.Module(mid); m != nil {
		m.ModuleGroups.Remove(id)
	}
	return true
}

// DynamicGroupIDs returns the group ids rooted at to that an edge creates.
func DynamicGroupIDs(to ID, edge Edge) []GroupID {
	var ids []GroupID
	if edge.ContainsKind(KindDynamicImport) {
		ids = append(ids, GroupID{ModuleID: to, Type: GroupDynamicImport})
	}
	if edge.ContainsKind(KindDynamicEntry) {
		ids = append(ids, GroupID{ModuleID: to, Type: GroupDynamicEntry})
	}
	return ids
}

// BuildGroupGraph computes every module group of graph from scratch and
// resets each module's ModuleGroups to match.
func BuildGroupGraph(graph *Graph) *GroupGraph {
	gg := NewGroupGraph()
	for _, m := range graph.Modules() {
		m.ModuleGroups = set.New[GroupID]()
	}

	var roots []GroupID
	for _, e := range graph.Entries() {
		roots = append(roots, GroupID{ModuleID: e.ID, Type: GroupEntry})
	}
	for _, e := range graph.DynamicEntries() {
		roots = append(roots, GroupID{ModuleID: e.ID, Type: GroupDynamicEntry})
	}

	queue := slices.Clone(roots)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if gg.HasGroup(id) {
			continue
		}
		gg.AddGroup(NewGroup(id))

		for _, dyn := range gg.FillGroup(graph, id) {
			queue = append(queue, dyn.To)
		}
	}

	// Edges are added once every group exists.
	for _, g := range gg.Groups() {
		for _, mid := range g.Modules() {
			for _, dep := range graph.Dependencies(mid) {
				for _, to := range DynamicGroupIDs(dep.ID, dep.Edge) {
					if gg.HasGroup(to) {
						gg.AddEdge(g.ID, to)
					}
				}
			}
		}
	}
	return gg
}

// FillGroup walks the static closure of the group root, adding every module
// it reaches. It returns the dynamic dependencies met on the way.
func (gg *GroupGraph) FillGroup(graph *Graph, id GroupID) []DynamicDep {
	return gg.fillFrom(graph, id, []ID{id.ModuleID}, false)
}

// fillFrom adds the static closure of starts to group id. With stopAtMembers
// the walk does not descend below modules already in the group.
func (gg *GroupGraph) fillFrom(graph *Graph, id GroupID, starts []ID, stopAtMembers bool) []DynamicDep {
	var dyn []DynamicDep
	visited := set.New[ID]()
	queue := slices.Clone(starts)
	for len(queue) > 0 {
		mid := queue[0]
		queue = queue[1:]
		if !visited.Add(mid) || !graph.HasModule(mid) {
			continue
		}
		added := gg.AddModule(graph, id, mid)
		if stopAtMembers && !added {
			continue
		}
		for _, dep := range graph.Dependencies(mid) {
			for _, to := range DynamicGroupIDs(dep.ID, dep.Edge) {
				dyn = append(dyn, DynamicDep{From: mid, To: to})
			}
			if dep.Edge.IsStatic() {
				queue = append(queue, dep.ID)
			}
		}
	}
	return dyn
}

// AddStaticClosure adds start and everything statically reachable from it
// to group id, not descending below modules the group already holds. It
// returns the dynamic dependencies met on the way.
func (gg *GroupGraph) AddStaticClosure(graph *Graph, id GroupID, start ID) []DynamicDep {
	return gg.fillFrom(graph, id, []ID{start}, true)
}

// DynamicDep is a dynamic reference from a module to the group it roots.
type DynamicDep struct {
	From ID
	To   GroupID
}

// StaticClosure returns the modules reachable from root over static edges.
func StaticClosure(graph *Graph, root ID) set.Set[ID] {
	seen := set.New[ID]()
	queue := []ID{root}
	for len(queue) > 0 {
		mid := queue[0]
		queue = queue[1:]
		if !graph.HasModule(mid) || !seen.Add(mid) {
			continue
		}
		for _, dep := range graph.Dependencies(mid) {
			if dep.Edge.IsStatic() {
				queue = append(queue, dep.ID)
			}
		}
	}
	return seen
}

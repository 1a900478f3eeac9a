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
	"fmt"
	"slices"

	"github.com/farm-fe/farm-sub001/internal/set"
)

// Entry is a named entry module.
type Entry struct {
	ID   ID
	Name string
}

// Graph is the module graph. Modules are keyed by ID and remember the order
// they were inserted in, which breaks ties wherever an ordering is needed.
//
// Graph is not safe for concurrent mutation; the compilation context guards
// it with a reader-writer lock.
type Graph struct {
	modules map[ID]*Module
	seq     map[ID]int
	nextSeq int

	// deps maps importer -> dependency -> edge.
	deps map[ID]map[ID]Edge
	// rdeps maps dependency -> importers.
	rdeps map[ID]set.Set[ID]

	entries        []Entry
	dynamicEntries []Entry

	// fileIDs maps a relative path to every module id loaded from it, for
	// files that produce several modules (query variants).
	fileIDs map[string]set.Set[ID]
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		modules: make(map[ID]*Module),
		seq:     make(map[ID]int),
		deps:    make(map[ID]map[ID]Edge),
		rdeps:   make(map[ID]set.Set[ID]),
		fileIDs: make(map[string]set.Set[ID]),
	}
}

// AddModule inserts m, or replaces the module with the same id while
// keeping its edges and insertion order.
func (g *Graph) AddModule(m *Module) {
	if _, ok := g.modules[m.ID]; !ok {
		g.seq[m.ID] = g.nextSeq
		g.nextSeq++
	}
	g.modules[m.ID] = m
	path := m.ID.RelativePath()
	if g.fileIDs[path] == nil {
		g.fileIDs[path] = set.New[ID]()
	}
	g.fileIDs[path].Add(m.ID)
}

// ReplaceModule swaps in a new version of an existing module. It is an
// error to replace a module the graph does not hold.
func (g *Graph) ReplaceModule(m *Module) error {
	if _, ok := g.modules[m.ID]; !ok {
		return fmt.Errorf("replace module %s: not in graph", m.ID)
	}
	g.modules[m.ID] = m
	return nil
}

// HasModule reports whether id is a node.
func (g *Graph) HasModule(id ID) bool {
	_, ok := g.modules[id]
	return ok
}

// Module returns the module with id, or nil.
func (g *Graph) Module(id ID) *Module {
	return g.modules[id]
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.modules)
}

// Modules returns every module in insertion order.
func (g *Graph) Modules() []*Module {
	ids := g.ModuleIDs()
	out := make([]*Module, len(ids))
	for i, id := range ids {
		out[i] = g.modules[id]
	}
	return out
}

// ModuleIDs returns every module id in insertion order.
func (g *Graph) ModuleIDs() []ID {
	ids := make([]ID, 0, len(g.modules))
	for id := range g.modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, g.compareSeq)
	return ids
}

func (g *Graph) compareSeq(a, b ID) int {
	return cmp.Compare(g.seq[a], g.seq[b])
}

// ModuleIDsByFile returns the ids of modules loaded from the same file.
func (g *Graph) ModuleIDsByFile(relativePath string) []ID {
	ids := g.fileIDs[relativePath]
	if ids == nil {
		return nil
	}
	return ids.SortedFunc(g.compareSeq)
}

// RemoveModule removes id together with its edges and entry registrations,
// and returns the removed module.
func (g *Graph) RemoveModule(id ID) *Module {
	m, ok := g.modules[id]
	if !ok {
		return nil
	}
	for dep := range g.deps[id] {
		if r := g.rdeps[dep]; r != nil {
			r.Remove(id)
		}
	}
	for importer := range g.rdeps[id] {
		delete(g.deps[importer], id)
	}
	delete(g.deps, id)
	delete(g.rdeps, id)
	delete(g.modules, id)
	delete(g.seq, id)

	g.entries = slices.DeleteFunc(g.entries, func(e Entry) bool { return e.ID == id })
	g.dynamicEntries = slices.DeleteFunc(g.dynamicEntries, func(e Entry) bool { return e.ID == id })

	if ids := g.fileIDs[id.RelativePath()]; ids != nil {
		ids.Remove(id)
		if ids.Len() == 0 {
			delete(g.fileIDs, id.RelativePath())
		}
	}
	return m
}

// AddEdge connects from to to, replacing any previous edge. Both endpoints
// must already be nodes.
func (g *Graph) AddEdge(from, to ID, edge Edge) error {
	if !g.HasModule(from) {
		return fmt.Errorf("add edge %s -> %s: importer not in graph", from, to)
	}
	if !g.HasModule(to) {
		return fmt.Errorf("add edge %s -> %s: dependency not in graph", from, to)
	}
	if g.deps[from] == nil {
		g.deps[from] = make(map[ID]Edge)
	}
	g.deps[from][to] = edge.Clone()
	if g.rdeps[to] == nil {
		g.rdeps[to] = set.New[ID]()
	}
	g.rdeps[to].Add(from)
	return nil
}

// AddEdgeItem appends one reference to the edge from -> to, creating the
// edge when needed.
func (g *Graph) AddEdgeItem(from, to ID, item EdgeItem) error {
	edge, _ := g.Edge(from, to)
	return g.AddEdge(from, to, append(edge.Clone(), item))
}

// UpdateEdge replaces the edge from -> to.
func (g *Graph) UpdateEdge(from, to ID, edge Edge) error {
	if !g.HasEdge(from, to) {
		return fmt.Errorf("update edge %s -> %s: no such edge", from, to)
	}
	return g.AddEdge(from, to, edge)
}

// RemoveEdge disconnects from and to, returning the removed edge.
func (g *Graph) RemoveEdge(from, to ID) (Edge, bool) {
	edge, ok := g.deps[from][to]
	if !ok {
		return nil, false
	}
	delete(g.deps[from], to)
	if r := g.rdeps[to]; r != nil {
		r.Remove(from)
	}
	return edge, true
}

// Edge returns the edge from -> to.
func (g *Graph) Edge(from, to ID) (Edge, bool) {
	edge, ok := g.deps[from][to]
	return edge, ok
}

// HasEdge reports whether from imports to.
func (g *Graph) HasEdge(from, to ID) bool {
	_, ok := g.deps[from][to]
	return ok
}

// Dependencies returns the dependencies of id ordered by the position of
// their first reference, then by insertion order.
func (g *Graph) Dependencies(id ID) []Dependency {
	out := make([]Dependency, 0, len(g.deps[id]))
	for dep, edge := range g.deps[id] {
		out = append(out, Dependency{ID: dep, Edge: edge})
	}
	slices.SortFunc(out, func(a, b Dependency) int {
		if c := cmp.Compare(a.Edge.MinOrder(), b.Edge.MinOrder()); c != 0 {
			return c
		}
		return g.compareSeq(a.ID, b.ID)
	})
	return out
}

// DependenciesIDs returns the ids of Dependencies(id).
func (g *Graph) DependenciesIDs(id ID) []ID {
	deps := g.Dependencies(id)
	ids := make([]ID, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return ids
}

// Dependents returns the importers of id in insertion order, each with the
// edge pointing at id.
func (g *Graph) Dependents(id ID) []Dependency {
	importers := g.DependentsIDs(id)
	out := make([]Dependency, len(importers))
	for i, importer := range importers {
		out[i] = Dependency{ID: importer, Edge: g.deps[importer][id]}
	}
	return out
}

// DependentsIDs returns the importers of id in insertion order.
func (g *Graph) DependentsIDs(id ID) []ID {
	r := g.rdeps[id]
	if r == nil {
		return nil
	}
	return r.SortedFunc(g.compareSeq)
}

// SetEntry registers id as a named entry.
func (g *Graph) SetEntry(id ID, name string) {
	for i, e := range g.entries {
		if e.ID == id {
			g.entries[i].Name = name
			return
		}
	}
	g.entries = append(g.entries, Entry{ID: id, Name: name})
	if m := g.modules[id]; m != nil {
		m.IsEntry = true
	}
}

// Entries returns the entries in registration order.
func (g *Graph) Entries() []Entry {
	return slices.Clone(g.entries)
}

// IsEntry reports whether id is an entry.
func (g *Graph) IsEntry(id ID) bool {
	_, ok := g.EntryName(id)
	return ok
}

// EntryName returns the name id was registered under.
func (g *Graph) EntryName(id ID) (string, bool) {
	for _, e := range g.entries {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

// SetDynamicEntry registers id as a named dynamic entry.
func (g *Graph) SetDynamicEntry(id ID, name string) {
	for i, e := range g.dynamicEntries {
		if e.ID == id {
			g.dynamicEntries[i].Name = name
			return
		}
	}
	g.dynamicEntries = append(g.dynamicEntries, Entry{ID: id, Name: name})
	if m := g.modules[id]; m != nil {
		m.IsDynamicEntry = true
	}
}

// RemoveDynamicEntry unregisters id as a dynamic entry.
func (g *Graph) RemoveDynamicEntry(id ID) {
	g.dynamicEntries = slices.DeleteFunc(g.dynamicEntries, func(e Entry) bool { return e.ID == id })
	if m := g.modules[id]; m != nil {
		m.IsDynamicEntry = false
	}
}

// DynamicEntries returns the dynamic entries in registration order.
func (g *Graph) DynamicEntries() []Entry {
	return slices.Clone(g.dynamicEntries)
}

// IsDynamicEntry reports whether id is a dynamic entry.
func (g *Graph) IsDynamicEntry(id ID) bool {
	return slices.ContainsFunc(g.dynamicEntries, func(e Entry) bool { return e.ID == id })
}

// Clone returns a deep copy of the graph with cloned modules.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for _, id := range g.ModuleIDs() {
		c.AddModule(g.modules[id].Clone())
	}
	for from, deps := range g.deps {
		for to, edge := range deps {
			_ = c.AddEdge(from, to, edge)
		}
	}
	c.entries = slices.Clone(g.entries)
	c.dynamicEntries = slices.Clone(g.dynamicEntries)
	return c
}

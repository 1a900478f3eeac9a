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

package resource

import (
	"cmp"
	"slices"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

// ResourcePot is a container of modules rendered into one family of
// resources.
type ResourcePot struct {
	ID   string
	Name string
	Type Type
	// EntryModule is set when the pot holds an entry.
	EntryModule  module.ID
	ModuleGroups set.Set[module.GroupID]
	// Resources holds the names of the resources the pot produced.
	Resources set.Set[string]
	// Immutable is true iff every member module is immutable.
	Immutable bool
	Meta      Meta

	modules set.Set[module.ID]
}

// Meta is the rendered state of a pot.
type Meta struct {
	Content   string
	SourceMap string
	// RenderedModules maps each module to its rendered factory source so
	// HMR updates can reuse them.
	RenderedModules map[module.ID]string
	// Concatenated is set when modules were scope hoisted.
	Concatenated bool
}

// PotID builds the id of a pot from its name and type.
func PotID(name string, t Type) string {
	return name + "_" + string(t)
}

// NewResourcePot creates an empty pot.
func NewResourcePot(name string, t Type) *ResourcePot {
	return &ResourcePot{
		ID:           PotID(name, t),
		Name:         name,
		Type:         t,
		ModuleGroups: set.New[module.GroupID](),
		Resources:    set.New[string](),
		Immutable:    true,
		modules:      set.New[module.ID](),
	}
}

// AddModule adds a module; Immutable drops to false unless every member is
// immutable.
func (p *ResourcePot) AddModule(m *module.Module) {
	if p.modules.Add(m.ID) && !m.Immutable {
		p.Immutable = false
	}
}

// RemoveModule removes id from the pot.
func (p *ResourcePot) RemoveModule(id module.ID) bool {
	return p.modules.Remove(id)
}

// HasModule reports whether id is a member.
func (p *ResourcePot) HasModule(id module.ID) bool {
	return p.modules.Has(id)
}

// Len returns the number of members.
func (p *ResourcePot) Len() int {
	return p.modules.Len()
}

// ModuleIDs returns the members sorted by id.
func (p *ResourcePot) ModuleIDs() []module.ID {
	return p.modules.SortedFunc(module.ID.Compare)
}

// Modules returns the members ordered dependencies first, by execution
// order, ties broken by id.
func (p *ResourcePot) Modules(graph *module.Graph) []*module.Module {
	out := make([]*module.Module, 0, p.modules.Len())
	for id := range p.modules {
		if m := graph.Module(id); m != nil {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b *module.Module) int {
		if c := cmp.Compare(a.ExecutionOrder, b.ExecutionOrder); c != 0 {
			return c
		}
		return a.ID.Compare(b.ID)
	})
	return out
}

// IsEntry reports whether the pot holds an entry module.
func (p *ResourcePot) IsEntry() bool {
	return !p.EntryModule.IsZero()
}

// PotMap holds resource pots in insertion order.
type PotMap struct {
	pots  map[string]*ResourcePot
	order []string
}

// NewPotMap creates an empty map.
func NewPotMap() *PotMap {
	return &PotMap{pots: make(map[string]*ResourcePot)}
}

// Add inserts or replaces a pot.
func (m *PotMap) Add(p *ResourcePot) {
	if _, ok := m.pots[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.pots[p.ID] = p
}

// Remove deletes a pot and returns it.
func (m *PotMap) Remove(id string) *ResourcePot {
	p, ok := m.pots[id]
	if !ok {
		return nil
	}
	delete(m.pots, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return p
}

// Get returns the pot with id, or nil.
func (m *PotMap) Get(id string) *ResourcePot {
	return m.pots[id]
}

// Has reports whether a pot with id exists.
func (m *PotMap) Has(id string) bool {
	_, ok := m.pots[id]
	return ok
}

// Len returns the number of pots.
func (m *PotMap) Len() int {
	return len(m.pots)
}

// IDs returns the pot ids in insertion order.
func (m *PotMap) IDs() []string {
	return slices.Clone(m.order)
}

// Pots returns the pots in insertion order.
func (m *PotMap) Pots() []*ResourcePot {
	out := make([]*ResourcePot, len(m.order))
	for i, id := range m.order {
		out[i] = m.pots[id]
	}
	return out
}

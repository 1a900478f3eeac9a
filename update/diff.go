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

// Package update applies file changes to a live compilation: it diffs the
// graph rebuilt from the changed files against the live graph, patches the
// module graph and the module group graph, regenerates the affected
// resource pots and packages the result for hot replacement.
package update

import (
	"cmp"
	"math"
	"slices"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

// DepsChange lists how the dependencies of one module changed. A
// dependency whose edge changed appears in both lists: the old edge in
// Removed and the new one in Added.
type DepsChange struct {
	ID      module.ID
	Added   []module.Dependency
	Removed []module.Dependency
}

// DiffResult is the difference between the live graph and an update graph.
type DiffResult struct {
	// DepsChanges is ordered by descending execution order, so importers
	// come before the modules they import.
	DepsChanges    []*DepsChange
	AddedModules   set.Set[module.ID]
	RemovedModules set.Set[module.ID]
}

// Change returns the change recorded for id, or nil.
func (d *DiffResult) Change(id module.ID) *DepsChange {
	for _, c := range d.DepsChanges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

type differ struct {
	old, new *module.Graph
	changes  map[module.ID]*DepsChange
	order    []module.ID
	added    set.Set[module.ID]
	removed  set.Set[module.ID]
}

func (d *differ) change(id module.ID) *DepsChange {
	c, ok := d.changes[id]
	if !ok {
		c = &DepsChange{ID: id}
		d.changes[id] = c
		d.order = append(d.order, id)
	}
	return c
}

// DiffModuleGraph compares the dependencies of startPoints in the live
// graph old with those in the update graph new. Modules that only new
// holds are followed into new and reported as added; modules nothing in
// the live graph references any more are followed into old and reported as
// removed. A start point missing from new was deleted: its importers lose
// their edge to it.
func DiffModuleGraph(startPoints []module.ID, old, new *module.Graph) *DiffResult {
	d := &differ{
		old:     old,
		new:     new,
		changes: make(map[module.ID]*DepsChange),
		added:   set.New[module.ID](),
		removed: set.New[module.ID](),
	}

	var candidates []module.ID
	for _, id := range startPoints {
		if !new.HasModule(id) {
			if !old.HasModule(id) {
				continue
			}
			for _, parent := range old.Dependents(id) {
				c := d.change(parent.ID)
				c.Removed = append(c.Removed, module.Dependency{ID: id, Edge: parent.Edge})
			}
			candidates = append(candidates, id)
			continue
		}
		if !old.HasModule(id) {
			d.addModule(id)
			continue
		}
		candidates = append(candidates, d.diffDeps(id)...)
	}

	protected := set.New[module.ID]()
	for _, id := range startPoints {
		if new.HasModule(id) {
			protected.Add(id)
		}
	}
	d.sweepUnreachable(d.collectRemoved(candidates), protected)

	result := &DiffResult{AddedModules: d.added, RemovedModules: d.removed}
	for _, id := range d.order {
		c := d.changes[id]
		if len(c.Added) > 0 || len(c.Removed) > 0 {
			result.DepsChanges = append(result.DepsChanges, c)
		}
	}
	rank := func(id module.ID) int {
		if m := old.Module(id); m != nil {
			return m.ExecutionOrder
		}
		return math.MinInt
	}
	slices.SortStableFunc(result.DepsChanges, func(a, b *DepsChange) int {
		return cmp.Compare(rank(b.ID), rank(a.ID))
	})
	return result
}

// diffDeps records the dependency changes of a module both graphs hold and
// returns the removed dependencies.
func (d *differ) diffDeps(id module.ID) []module.ID {
	oldDeps := make(map[module.ID]module.Edge)
	for _, dep := range d.old.Dependencies(id) {
		oldDeps[dep.ID] = dep.Edge
	}

	var removed []module.ID
	newDeps := d.new.Dependencies(id)
	seen := set.New[module.ID]()
	for _, dep := range newDeps {
		seen.Add(dep.ID)
		prev, ok := oldDeps[dep.ID]
		if ok && prev.Equal(dep.Edge) {
			continue
		}
		c := d.change(id)
		if ok {
			c.Removed = append(c.Removed, module.Dependency{ID: dep.ID, Edge: prev})
		}
		c.Added = append(c.Added, dep)
		if !d.old.HasModule(dep.ID) {
			d.addModule(dep.ID)
		}
	}
	for _, dep := range d.old.Dependencies(id) {
		if seen.Has(dep.ID) {
			continue
		}
		c := d.change(id)
		c.Removed = append(c.Removed, dep)
		removed = append(removed, dep.ID)
	}
	return removed
}

// addModule marks id as added and walks its dependencies in the update
// graph, recursing into those the live graph does not hold.
func (d *differ) addModule(id module.ID) {
	queue := []module.ID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if !d.added.Add(current) {
			continue
		}
		for _, dep := range d.new.Dependencies(current) {
			c := d.change(current)
			c.Added = append(c.Added, dep)
			if !d.old.HasModule(dep.ID) && !d.added.Has(dep.ID) {
				queue = append(queue, dep.ID)
			}
		}
	}
}

// collectRemoved decides which candidates no longer belong to the graph. A
// module goes when it is not an entry, no added edge points at it and every
// importer in the live graph either dropped its edge or is itself removed.
// Its dependencies then become candidates; a candidate rejected early is
// re-examined when another of its importers goes. It returns the
// candidates that stayed.
func (d *differ) collectRemoved(candidates []module.ID) []module.ID {
	targets := set.New[module.ID]()
	for _, c := range d.changes {
		for _, dep := range c.Added {
			targets.Add(dep.ID)
		}
	}

	var kept []module.ID
	queue := slices.Clone(candidates)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if d.removed.Has(id) || d.added.Has(id) || targets.Has(id) {
			continue
		}
		if d.old.IsEntry(id) || !d.unreferenced(id) {
			kept = append(kept, id)
			continue
		}
		d.removed.Add(id)
		for _, dep := range d.old.Dependencies(id) {
			c := d.change(id)
			c.Removed = append(c.Removed, dep)
			queue = append(queue, dep.ID)
		}
	}
	return slices.DeleteFunc(kept, d.removed.Has)
}

// sweepUnreachable removes the modules no entry reaches any more although
// each still has a live importer, as happens to a cycle cut off as a
// whole. It only runs when some candidate was kept. Start points the
// update graph rebuilt are never removed here.
func (d *differ) sweepUnreachable(kept []module.ID, protected set.Set[module.ID]) {
	if len(kept) == 0 {
		return
	}
	before := d.reachable(d.old.DependenciesIDs, false)
	after := d.reachable(d.depsAfter, true)
	for _, id := range d.old.ModuleIDs() {
		if !before.Has(id) || after.Has(id) || d.removed.Has(id) || d.added.Has(id) || protected.Has(id) {
			continue
		}
		d.removed.Add(id)
		for _, dep := range d.old.Dependencies(id) {
			c := d.change(id)
			if !containsDep(c.Removed, dep.ID) {
				c.Removed = append(c.Removed, dep)
			}
		}
	}
}

// reachable walks from the entries and dynamic entries of the live graph.
func (d *differ) reachable(next func(module.ID) []module.ID, skipRemoved bool) set.Set[module.ID] {
	var queue []module.ID
	for _, e := range d.old.Entries() {
		queue = append(queue, e.ID)
	}
	for _, e := range d.old.DynamicEntries() {
		queue = append(queue, e.ID)
	}
	seen := set.New[module.ID]()
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if (skipRemoved && d.removed.Has(id)) || !seen.Add(id) {
			continue
		}
		queue = append(queue, next(id)...)
	}
	return seen
}

// depsAfter returns the dependencies of id once the recorded changes apply.
func (d *differ) depsAfter(id module.ID) []module.ID {
	if d.added.Has(id) {
		return d.new.DependenciesIDs(id)
	}
	deps := d.old.DependenciesIDs(id)
	c := d.changes[id]
	if c == nil {
		return deps
	}
	out := make([]module.ID, 0, len(deps)+len(c.Added))
	for _, dep := range deps {
		if !containsDep(c.Removed, dep) {
			out = append(out, dep)
		}
	}
	for _, dep := range c.Added {
		out = append(out, dep.ID)
	}
	return out
}

// unreferenced reports whether every live importer of id drops its edge.
func (d *differ) unreferenced(id module.ID) bool {
	for _, parent := range d.old.DependentsIDs(id) {
		if d.removed.Has(parent) {
			continue
		}
		c := d.changes[parent]
		if c == nil || !containsDep(c.Removed, id) || containsDep(c.Added, id) {
			return false
		}
	}
	return true
}

func containsDep(deps []module.Dependency, id module.ID) bool {
	return slices.ContainsFunc(deps, func(dep module.Dependency) bool {
		return dep.ID == id
	})
}

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

import "slices"

// Toposort orders the graph so that every module comes before its
// dependencies. Traversal starts at the entries in registration order, then
// the dynamic entries, then any module not reached yet in insertion order;
// dependencies are visited in Dependencies order. Back edges are reported
// as cycles, each listed from the first module of the cycle on the stack.
func (g *Graph) Toposort() (sorted []ID, cycles [][]ID) {
	post := g.postOrder(func(cycle []ID) {
		cycles = append(cycles, cycle)
	})
	slices.Reverse(post)
	return post, cycles
}

// UpdateExecutionOrder assigns each module its position in a
// dependencies-first traversal: leaves get the smallest orders and entries
// the largest.
func (g *Graph) UpdateExecutionOrder() {
	for i, id := range g.postOrder(nil) {
		g.modules[id].ExecutionOrder = i
	}
}

// Cycles returns the cycles found by Toposort.
func (g *Graph) Cycles() [][]ID {
	_, cycles := g.Toposort()
	return cycles
}

// InCycle returns every module that takes part in a cycle.
func (g *Graph) InCycle() map[ID]bool {
	out := make(map[ID]bool)
	for _, cycle := range g.Cycles() {
		for _, id := range cycle {
			out[id] = true
		}
	}
	return out
}

func (g *Graph) postOrder(onCycle func([]ID)) []ID {
	var (
		order   = make([]ID, 0, len(g.modules))
		visited = make(map[ID]bool, len(g.modules))
		onStack = make(map[ID]bool)
		stack   []ID
	)

	var visit func(id ID)
	visit = func(id ID) {
		if onStack[id] {
			if onCycle != nil {
				start := slices.Index(stack, id)
				onCycle(slices.Clone(stack[start:]))
			}
			return
		}
		if visited[id] {
			return
		}
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range g.DependenciesIDs(id) {
			visit(dep)
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		order = append(order, id)
	}

	for _, e := range g.entries {
		visit(e.ID)
	}
	for _, e := range g.dynamicEntries {
		visit(e.ID)
	}
	for _, id := range g.ModuleIDs() {
		visit(id)
	}
	return order
}

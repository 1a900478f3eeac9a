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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(s string) ID {
	return ParseID(s)
}

// buildGraph creates a graph from "A->B" style edges. Edges written "A~>B"
// are dynamic imports. The first module named is the entry.
func buildGraph(t *testing.T, edges ...string) *Graph {
	t.Helper()
	g := NewGraph()
	order := map[ID]int{}
	for _, e := range edges {
		dynamic := false
		var from, to string
		for i := 0; i+1 < len(e); i++ {
			if e[i:i+2] == "->" || e[i:i+2] == "~>" {
				dynamic = e[i] == '~'
				from, to = e[:i], e[i+2:]
				break
			}
		}
		require.NotEmpty(t, from, e)
		for _, name := range []string{from, to} {
			if !g.HasModule(id(name)) {
				g.AddModule(New(id(name)))
			}
		}
		kind := KindImport
		if dynamic {
			kind = KindDynamicImport
		}
		require.NoError(t, g.AddEdgeItem(id(from), id(to), EdgeItem{Kind: kind, Source: "./" + to, Order: order[id(from)]}))
		order[id(from)]++
	}
	return g
}

func TestGraphEdges(t *testing.T) {
	g := buildGraph(t, "A->B", "A->C", "B->C")

	assert.Equal(t, []ID{id("B"), id("C")}, g.DependenciesIDs(id("A")))
	assert.Equal(t, []ID{id("A"), id("B")}, g.DependentsIDs(id("C")))

	err := g.AddEdge(id("A"), id("missing"), Edge{{Kind: KindImport}})
	require.Error(t, err)

	removed := g.RemoveModule(id("B"))
	require.NotNil(t, removed)
	assert.False(t, g.HasEdge(id("A"), id("B")))
	assert.Equal(t, []ID{id("A")}, g.DependentsIDs(id("C")))
}

func TestGraphDependenciesFollowReferenceOrder(t *testing.T) {
	g := NewGraph()
	for _, name := range []string{"A", "Z", "Y"} {
		g.AddModule(New(id(name)))
	}
	require.NoError(t, g.AddEdge(id("A"), id("Y"), Edge{{Kind: KindImport, Order: 0}}))
	require.NoError(t, g.AddEdge(id("A"), id("Z"), Edge{{Kind: KindImport, Order: 1}}))
	assert.Equal(t, []ID{id("Y"), id("Z")}, g.DependenciesIDs(id("A")))
}

func TestEdge(t *testing.T) {
	static := Edge{{Kind: KindImport, Source: "./a"}}
	dynamic := Edge{{Kind: KindDynamicImport, Source: "./a"}}
	mixed := Edge{{Kind: KindImport, Source: "./a"}, {Kind: KindDynamicImport, Source: "./a", Order: 1}}

	assert.True(t, static.IsStatic())
	assert.False(t, static.IsDynamic())
	assert.True(t, dynamic.IsDynamicOnly())
	assert.True(t, mixed.IsStatic())
	assert.True(t, mixed.IsDynamic())
	assert.False(t, static.Equal(mixed))
	assert.True(t, mixed.Equal(mixed.Clone()))
	assert.Equal(t, 0, mixed.MinOrder())
}

func TestToposortAndExecutionOrder(t *testing.T) {
	g := buildGraph(t, "A->B", "B->C", "A->D")
	g.SetEntry(id("A"), "main")

	sorted, cycles := g.Toposort()
	assert.Empty(t, cycles)
	assert.Equal(t, []ID{id("A"), id("D"), id("B"), id("C")}, sorted)

	g.UpdateExecutionOrder()
	assert.Equal(t, 0, g.Module(id("C")).ExecutionOrder)
	assert.Equal(t, 1, g.Module(id("B")).ExecutionOrder)
	assert.Equal(t, 2, g.Module(id("D")).ExecutionOrder)
	assert.Equal(t, 3, g.Module(id("A")).ExecutionOrder)
}

func TestToposortCycles(t *testing.T) {
	g := buildGraph(t, "A->B", "B->C", "C->B")
	g.SetEntry(id("A"), "main")

	_, cycles := g.Toposort()
	require.Len(t, cycles, 1)
	assert.Equal(t, []ID{id("B"), id("C")}, cycles[0])
	assert.True(t, g.InCycle()[id("C")])
	assert.False(t, g.InCycle()[id("A")])
}

func TestBuildGroupGraph(t *testing.T) {
	g := buildGraph(t, "A->B", "A~>C", "C->D", "D->B")
	g.SetEntry(id("A"), "main")

	gg := BuildGroupGraph(g)
	entry := GroupID{ModuleID: id("A"), Type: GroupEntry}
	dyn := GroupID{ModuleID: id("C"), Type: GroupDynamicImport}

	require.True(t, gg.HasGroup(entry))
	require.True(t, gg.HasGroup(dyn))
	assert.Equal(t, []ID{id("A"), id("B")}, gg.Group(entry).Modules())
	assert.Equal(t, []ID{id("B"), id("C"), id("D")}, gg.Group(dyn).Modules())
	assert.True(t, gg.HasEdge(entry, dyn))

	assert.True(t, g.Module(id("B")).ModuleGroups.Has(entry))
	assert.True(t, g.Module(id("B")).ModuleGroups.Has(dyn))
	assert.False(t, g.Module(id("C")).ModuleGroups.Has(entry))

	// Every member's back-reference matches the group contents.
	for _, grp := range gg.Groups() {
		for _, mid := range grp.Modules() {
			assert.True(t, g.Module(mid).ModuleGroups.Has(grp.ID))
		}
	}
}

func TestGroupGraphRemoveGroup(t *testing.T) {
	g := buildGraph(t, "A~>B", "B->C")
	g.SetEntry(id("A"), "main")
	gg := BuildGroupGraph(g)

	dyn := GroupID{ModuleID: id("B"), Type: GroupDynamicImport}
	gg.RemoveGroup(g, dyn)

	assert.False(t, gg.HasGroup(dyn))
	assert.Empty(t, g.Module(id("C")).ModuleGroups)
	assert.Empty(t, gg.Dependencies(GroupID{ModuleID: id("A"), Type: GroupEntry}))
}

func TestGraphClone(t *testing.T) {
	g := buildGraph(t, "A->B")
	g.SetEntry(id("A"), "main")
	c := g.Clone()

	c.RemoveModule(id("B"))
	assert.True(t, g.HasModule(id("B")))
	assert.True(t, g.HasEdge(id("A"), id("B")))
	assert.True(t, c.IsEntry(id("A")))
}

func TestWatchGraph(t *testing.T) {
	w := NewWatchGraph()
	w.AddWatch(id("src/app.scss"), "src/_vars.scss")
	w.AddWatch(id("src/other.scss"), "src/_vars.scss")
	w.AddWatch(id("src/page.scss"), "src/app.scss")

	assert.True(t, w.IsWatched("src/_vars.scss"))
	assert.Equal(t, []ID{id("src/app.scss"), id("src/other.scss"), id("src/page.scss")}, w.RelatedModules("src/_vars.scss"))

	orphaned := w.RemoveModule(id("src/page.scss"))
	assert.Equal(t, []string{"src/app.scss"}, orphaned)
	assert.Equal(t, []string{"src/_vars.scss"}, w.Files())
}

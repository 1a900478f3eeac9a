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

package update_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/partialbundling"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/testutil"
	"github.com/farm-fe/farm-sub001/update"
)

// graph builds a module graph from edges written "A->B" for static imports
// and "A~>B" for dynamic ones. Modules named in entries become entries.
func graph(t *testing.T, entries []string, edges ...string) *module.Graph {
	t.Helper()
	g := module.NewGraph()
	ensure := func(name string) {
		if !g.HasModule(module.ParseID(name)) {
			m := module.New(module.ParseID(name))
			m.Type = module.TypeJs
			g.AddModule(m)
		}
	}
	for _, name := range entries {
		ensure(name)
	}
	for _, e := range edges {
		kind := module.KindImport
		sep := "->"
		if strings.Contains(e, "~>") {
			kind = module.KindDynamicImport
			sep = "~>"
		}
		from, to, ok := strings.Cut(e, sep)
		require.True(t, ok, e)
		ensure(from)
		ensure(to)
		require.NoError(t, g.AddEdgeItem(module.ParseID(from), module.ParseID(to), module.EdgeItem{Kind: kind, Source: "./" + to}))
	}
	for _, name := range entries {
		g.SetEntry(module.ParseID(name), name)
	}
	g.UpdateExecutionOrder()
	return g
}

func ids(names ...string) []module.ID {
	out := make([]module.ID, len(names))
	for i, n := range names {
		out[i] = module.ParseID(n)
	}
	return out
}

func depIDs(deps []module.Dependency) []module.ID {
	out := []module.ID{}
	for _, d := range deps {
		out = append(out, d.ID)
	}
	return out
}

func TestDiffModuleGraph(t *testing.T) {
	t.Run("dependency removed", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "B->C", "A->D")
		fresh := graph(t, []string{"A"}, "A->B", "B->C")

		diff := update.DiffModuleGraph(ids("A"), old, fresh)
		require.Len(t, diff.DepsChanges, 1)
		a := diff.Change(module.ParseID("A"))
		require.NotNil(t, a)
		assert.Empty(t, a.Added)
		assert.Equal(t, ids("D"), depIDs(a.Removed))
		assert.Equal(t, 0, diff.AddedModules.Len())
		assert.True(t, diff.RemovedModules.Equal(set.New(ids("D")...)))
	})

	t.Run("cycle cut off from the entries", func(t *testing.T) {
		old := graph(t, []string{"m1"}, "m1->m6", "m6->m4", "m4~>m6", "m1->m2")
		fresh := graph(t, []string{"m1"}, "m1->m2")

		diff := update.DiffModuleGraph(ids("m1"), old, fresh)
		assert.True(t, diff.RemovedModules.Equal(set.New(ids("m4", "m6")...)))
		assert.Equal(t, ids("m6"), depIDs(diff.Change(module.ParseID("m1")).Removed))
		assert.Equal(t, ids("m4"), depIDs(diff.Change(module.ParseID("m6")).Removed))
		assert.Equal(t, ids("m6"), depIDs(diff.Change(module.ParseID("m4")).Removed))
	})

	t.Run("cycle behind a removed module", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "B->C", "C->D", "D->C")
		fresh := graph(t, []string{"A"})

		diff := update.DiffModuleGraph(ids("A"), old, fresh)
		assert.True(t, diff.RemovedModules.Equal(set.New(ids("B", "C", "D")...)))
	})

	t.Run("cycle still reachable", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "B->C", "C->B", "A->C")
		fresh := graph(t, []string{"A"}, "A->C")

		diff := update.DiffModuleGraph(ids("A"), old, fresh)
		assert.Equal(t, 0, diff.RemovedModules.Len())
	})

	t.Run("new subtree shares an existing module", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "B->C")
		fresh := graph(t, []string{"A"}, "A->B", "B->C", "A->D", "D->C")

		diff := update.DiffModuleGraph(ids("A"), old, fresh)
		a := diff.Change(module.ParseID("A"))
		require.NotNil(t, a)
		assert.Equal(t, ids("D"), depIDs(a.Added))
		assert.Empty(t, a.Removed)
		d := diff.Change(module.ParseID("D"))
		require.NotNil(t, d)
		assert.Equal(t, ids("C"), depIDs(d.Added))
		assert.Empty(t, d.Removed)
		assert.True(t, diff.AddedModules.Equal(set.New(ids("D")...)))
		assert.Equal(t, 0, diff.RemovedModules.Len())
	})

	t.Run("edge moves to a new importer", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "A->D", "B->C")
		fresh := graph(t, []string{"A"}, "A->D", "A->E", "E->B", "B->C")

		diff := update.DiffModuleGraph(ids("A"), old, fresh)
		require.Len(t, diff.DepsChanges, 2)
		assert.Equal(t, module.ParseID("A"), diff.DepsChanges[0].ID)
		assert.Equal(t, module.ParseID("E"), diff.DepsChanges[1].ID)

		a := diff.DepsChanges[0]
		assert.Equal(t, ids("E"), depIDs(a.Added))
		assert.Equal(t, ids("B"), depIDs(a.Removed))
		e := diff.DepsChanges[1]
		assert.Equal(t, ids("B"), depIDs(e.Added))
		assert.Empty(t, e.Removed)
		assert.True(t, diff.AddedModules.Equal(set.New(ids("E")...)))
		assert.Equal(t, 0, diff.RemovedModules.Len())
	})

	t.Run("deleted start point", func(t *testing.T) {
		old := graph(t, []string{"A"}, "A->B", "B->C")
		fresh := module.NewGraph()

		diff := update.DiffModuleGraph(ids("B"), old, fresh)
		a := diff.Change(module.ParseID("A"))
		require.NotNil(t, a)
		assert.Equal(t, ids("B"), depIDs(a.Removed))
		assert.True(t, diff.RemovedModules.Equal(set.New(ids("B", "C")...)))
	})
}

func TestUpdateRescuesDynamicImport(t *testing.T) {
	live := graph(t, []string{"A"}, "A~>B")
	groups := module.BuildGroupGraph(live)
	fresh := graph(t, []string{"A"}, "A~>C", "C~>B")

	diff := update.DiffModuleGraph(ids("A"), live, fresh)
	assert.False(t, diff.RemovedModules.Has(module.ParseID("B")))
	assert.True(t, diff.AddedModules.Has(module.ParseID("C")))

	removed := update.PatchModuleGraph(ids("A"), diff, live, fresh)
	assert.Empty(t, removed)
	assert.True(t, live.HasEdge(module.ParseID("C"), module.ParseID("B")))
	assert.False(t, live.HasEdge(module.ParseID("A"), module.ParseID("B")))

	affected := update.PatchModuleGroupGraph(diff, live, groups, removed)
	dynB := module.GroupID{ModuleID: module.ParseID("B"), Type: module.GroupDynamicImport}
	dynC := module.GroupID{ModuleID: module.ParseID("C"), Type: module.GroupDynamicImport}
	require.True(t, groups.HasGroup(dynB))
	assert.Equal(t, ids("B"), groups.Group(dynB).Modules())
	require.True(t, groups.HasGroup(dynC))
	assert.Equal(t, ids("C"), groups.Group(dynC).Modules())
	assert.True(t, affected.Has(dynC))
	assert.True(t, groups.HasEdge(dynC, dynB))
}

func TestUpdateRebalancesGroups(t *testing.T) {
	live := graph(t, []string{"A", "B"}, "A->C", "C->F", "B->D", "D->F")
	groups := module.BuildGroupGraph(live)
	entryA := module.GroupID{ModuleID: module.ParseID("A"), Type: module.GroupEntry}
	entryB := module.GroupID{ModuleID: module.ParseID("B"), Type: module.GroupEntry}
	require.True(t, live.Module(module.ParseID("F")).ModuleGroups.Equal(set.New(entryA, entryB)))

	fresh := graph(t, []string{"B"})
	diff := update.DiffModuleGraph(ids("B"), live, fresh)
	assert.True(t, diff.RemovedModules.Equal(set.New(ids("D")...)))

	removed := update.PatchModuleGraph(ids("B"), diff, live, fresh)
	require.Contains(t, removed, module.ParseID("D"))
	assert.False(t, live.HasModule(module.ParseID("D")))

	affected := update.PatchModuleGroupGraph(diff, live, groups, removed)
	assert.True(t, affected.Has(entryB))
	assert.Equal(t, ids("B"), groups.Group(entryB).Modules())
	assert.True(t, live.Module(module.ParseID("F")).ModuleGroups.Equal(set.New(entryA)))
	assert.ElementsMatch(t, ids("A", "C", "F"), groups.Group(entryA).Modules())
	assert.True(t, live.Module(module.ParseID("B")).ModuleGroups.Has(entryB), "the rebuilt entry keeps its groups")
}

type bundler struct{}

func (bundler) Name() string { return "bundler" }

func (bundler) PartialBundling(modules []module.ID, ctx *core.Context, _ *core.HookContext) ([]*resource.ResourcePot, error) {
	return partialbundling.Bundle(ctx.Config, ctx.ModuleGraph(), modules), nil
}

// bundled returns a context whose graph holds main.js importing a.js and
// dynamically importing lazy.js, bundled into pots.
func bundled(t *testing.T) *core.Context {
	t.Helper()
	c := core.NewContext(testutil.NewConfig(t, nil), testutil.NewProject(t, nil), nil, bundler{})
	c.SetModuleGraph(graph(t, []string{"main.js"}, "main.js->a.js", "main.js~>lazy.js"))
	c.SetModuleGroupGraph(module.BuildGroupGraph(c.ModuleGraph()))
	for _, pot := range partialbundling.Bundle(c.Config, c.ModuleGraph(), c.ModuleGraph().ModuleIDs()) {
		c.ResourcePots().Add(pot)
	}
	return c
}

func potOf(t *testing.T, c *core.Context, name string) string {
	t.Helper()
	pots := c.ModuleGraph().Module(module.ParseID(name)).ResourcePots
	require.Equal(t, 1, pots.Len())
	return set.Sorted(pots)[0]
}

func TestRegenerateResourcePots(t *testing.T) {
	t.Run("affected group is bundled again", func(t *testing.T) {
		c := bundled(t)
		lazyPot := potOf(t, c, "lazy.js")
		c.ResourcePots().Get(lazyPot).Resources.Add("lazy.123.js")
		c.EmitResource(&resource.Resource{Name: "lazy.123.js", Type: resource.TypeJs})

		affected := set.New(module.GroupID{ModuleID: module.ParseID("lazy.js"), Type: module.GroupDynamicImport})
		changes, err := update.RegenerateResourcePots(c, affected, ids("lazy.js"), nil)
		require.NoError(t, err)
		assert.Empty(t, changes.Added)
		assert.Equal(t, []string{lazyPot}, changes.Updated)
		assert.Empty(t, changes.Removed)
		_, ok := c.Resource("lazy.123.js")
		assert.False(t, ok, "resources of dissolved pots are dropped")
		assert.True(t, c.ResourcePots().Has(lazyPot))
	})

	t.Run("updated module outside affected groups", func(t *testing.T) {
		c := bundled(t)
		aPot := potOf(t, c, "a.js")

		changes, err := update.RegenerateResourcePots(c, set.New[module.GroupID](), ids("a.js"), nil)
		require.NoError(t, err)
		assert.Empty(t, changes.Added)
		assert.Equal(t, []string{aPot}, changes.Updated)
		assert.Equal(t, []string{aPot}, changes.Render())
	})

	t.Run("removed module dissolves its pot", func(t *testing.T) {
		c := bundled(t)
		lazyPot := potOf(t, c, "lazy.js")
		lazy := c.ModuleGraph().RemoveModule(module.ParseID("lazy.js"))
		require.NotNil(t, lazy)

		changes, err := update.RegenerateResourcePots(c, set.New[module.GroupID](), nil, map[module.ID]*module.Module{lazy.ID: lazy})
		require.NoError(t, err)
		assert.Equal(t, []string{lazyPot}, changes.Removed)
		assert.False(t, c.ResourcePots().Has(lazyPot))
	})
}

func TestBoundaries(t *testing.T) {
	g := graph(t, []string{"main.js"}, "main.js->page.js", "page.js->comp.js", "main.js->style.css", "main.js->shared.js", "page.js->shared.js")
	g.Module(module.ParseID("page.js")).Meta.Script = &module.ScriptMeta{HotAccept: true}
	g.Module(module.ParseID("style.css")).Type = module.TypeCss

	got := update.Boundaries(g, ids("comp.js", "style.css", "main.js", "shared.js"), module.ModeDevelopment)
	assert.Equal(t, [][]string{{"comp.js", "page.js"}}, got["comp.js"])
	assert.Equal(t, [][]string{{"style.css"}}, got["style.css"])
	assert.Equal(t, [][]string{}, got["main.js"], "entries reload")
	assert.Equal(t, [][]string{}, got["shared.js"], "one importer reaching the entry forces a reload")
}

func TestBoundariesFollowEveryImporterPath(t *testing.T) {
	g := graph(t, []string{"main.js"},
		"main.js->z.js", "z.js->x.js", "z.js->y.js", "x.js->u.js", "y.js->u.js",
		"z.js->h.js", "h.js->q.js", "q.js->r.js", "r.js->q.js")
	g.Module(module.ParseID("z.js")).Meta.Script = &module.ScriptMeta{HotAccept: true}

	got := update.Boundaries(g, ids("u.js", "r.js"), module.ModeDevelopment)
	assert.Equal(t, [][]string{{"u.js", "x.js", "z.js"}, {"u.js", "y.js", "z.js"}}, got["u.js"])
	assert.Equal(t, [][]string{{"r.js", "q.js", "h.js", "z.js"}}, got["r.js"], "cycles are walked once")
}

func TestPackage(t *testing.T) {
	c := core.NewContext(testutil.NewConfig(t, nil), testutil.NewProject(t, nil), nil)
	g := c.ModuleGraph()
	app := module.New(module.ParseID("app.js"))
	app.Type = module.TypeJs
	app.Content = "export const x = 1;"
	app.Meta.Script = &module.ScriptMeta{HotAccept: true}
	g.AddModule(app)
	lib := module.New(module.ParseID("node_modules/lib/index.js"))
	lib.Type = module.TypeJs
	lib.Content = "module.exports = 1;"
	lib.Immutable = true
	g.AddModule(lib)

	res, err := update.Package(c, ids("node_modules/lib/index.js"), ids("app.js"), ids("gone.js"))
	require.NoError(t, err)
	assert.Equal(t, []string{"node_modules/lib/index.js"}, res.Added)
	assert.Equal(t, []string{"app.js"}, res.Updated)
	assert.Equal(t, []string{"gone.js"}, res.Removed)
	assert.Contains(t, res.ImmutableResources, `"node_modules/lib/index.js": function(module, exports, farmRequire, farmDynamicRequire)`)
	assert.NotContains(t, res.ImmutableResources, `"app.js"`)
	assert.Contains(t, res.MutableResources, `"app.js": function(module, exports, farmRequire, farmDynamicRequire)`)
	assert.Contains(t, res.MutableResources, "farmModuleSystem.registerModules(")
	assert.Equal(t, [][]string{{"app.js"}}, res.Boundaries["app.js"])
	assert.Empty(t, res.DynamicResourcesMap)
}

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

package partialbundling_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/partialbundling"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/testutil"
)

func add(g *module.Graph, path string, typ module.Type, size int) *module.Module {
	m := module.New(module.ParseID(path))
	m.Type = typ
	m.Size = size
	if strings.HasPrefix(path, "node_modules/") {
		m.Immutable = true
		m.PackageName = strings.Split(path, "/")[1]
		m.PackageVersion = "3.0.0"
	}
	g.AddModule(m)
	return m
}

func link(t *testing.T, g *module.Graph, from, to string, kind module.ResolveKind) {
	t.Helper()
	require.NoError(t, g.AddEdgeItem(module.ParseID(from), module.ParseID(to), module.EdgeItem{Kind: kind, Source: to}))
}

// app builds an html entry whose script statically imports a package and a
// stylesheet and dynamically imports lazy.ts; util.ts is shared by both
// groups.
func app(t *testing.T) *module.Graph {
	g := module.NewGraph()
	add(g, "index.html", module.TypeHtml, 10)
	add(g, "main.ts", module.TypeTs, 100)
	add(g, "util.ts", module.TypeTs, 100)
	add(g, "lazy.ts", module.TypeTs, 100)
	add(g, "style.css", module.TypeCss, 10)
	add(g, "node_modules/lit/index.js", module.TypeJs, 100)
	add(g, "node_modules/lit/decorators.js", module.TypeJs, 100)
	add(g, "react", module.TypeJs, 0).External = true

	link(t, g, "index.html", "main.ts", module.KindScriptSrc)
	link(t, g, "main.ts", "util.ts", module.KindImport)
	link(t, g, "main.ts", "style.css", module.KindImport)
	link(t, g, "main.ts", "node_modules/lit/index.js", module.KindImport)
	link(t, g, "main.ts", "lazy.ts", module.KindDynamicImport)
	link(t, g, "main.ts", "react", module.KindImport)
	link(t, g, "node_modules/lit/index.js", "node_modules/lit/decorators.js", module.KindImport)
	link(t, g, "lazy.ts", "util.ts", module.KindImport)

	g.SetEntry(module.ParseID("index.html"), "index")
	g.UpdateExecutionOrder()
	module.BuildGroupGraph(g)
	return g
}

func potsByID(pots []*resource.ResourcePot) map[string]*resource.ResourcePot {
	out := make(map[string]*resource.ResourcePot, len(pots))
	for _, p := range pots {
		out[p.ID] = p
	}
	return out
}

func ids(paths ...string) []module.ID {
	out := make([]module.ID, len(paths))
	for i, p := range paths {
		out[i] = module.ParseID(p)
	}
	return out
}

func TestBundleDefault(t *testing.T) {
	g := app(t)
	cfg := testutil.NewConfig(t, nil)

	pots := partialbundling.Bundle(cfg, g, g.ModuleIDs())
	byID := potsByID(pots)

	html := byID["index_html"]
	require.NotNil(t, html)
	assert.Equal(t, module.ParseID("index.html"), html.EntryModule)

	assert.Equal(t, ids("main.ts"), byID["index_js"].ModuleIDs())
	assert.Equal(t, ids("style.css"), byID["index_css"].ModuleIDs())
	assert.Equal(t, ids("lazy.ts"), byID["lazy_ts_js"].ModuleIDs())

	vendor := byID["index_vendor_js"]
	require.NotNil(t, vendor)
	assert.ElementsMatch(t, ids("node_modules/lit/index.js", "node_modules/lit/decorators.js"), vendor.ModuleIDs())
	assert.True(t, vendor.Immutable)
	assert.False(t, byID["index_js"].Immutable)

	var shared *resource.ResourcePot
	for _, p := range pots {
		if strings.HasPrefix(p.Name, "shared_") {
			shared = p
		}
	}
	require.NotNil(t, shared, "util.ts is shared by the entry and the dynamic group")
	assert.Equal(t, ids("util.ts"), shared.ModuleIDs())
	assert.Equal(t, 2, shared.ModuleGroups.Len())

	assert.Len(t, pots, 6, "the external module gets no pot")
	for _, p := range pots {
		for _, id := range p.ModuleIDs() {
			assert.True(t, g.Module(id).ResourcePots.Has(p.ID))
		}
	}
}

func TestBundleRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   map[string][]module.ID
	}{
		{
			name: "group rule",
			mutate: func(c *config.Config) {
				c.PartialBundling.Groups = []config.GroupRule{{Name: "lit", Test: []string{"node_modules/lit/"}}}
			},
			want: map[string][]module.ID{
				"lit_js": ids("node_modules/lit/decorators.js", "node_modules/lit/index.js"),
			},
		},
		{
			name: "group rule filtered by mutability",
			mutate: func(c *config.Config) {
				c.PartialBundling.Groups = []config.GroupRule{{
					Name:      "app",
					Test:      []string{".*"},
					GroupType: config.GroupTypeMutable,
				}}
			},
			want: map[string][]module.ID{
				"app_js":          ids("lazy.ts", "main.ts", "util.ts"),
				"index_vendor_js": ids("node_modules/lit/decorators.js", "node_modules/lit/index.js"),
			},
		},
		{
			name: "async resource rule",
			mutate: func(c *config.Config) {
				c.PartialBundling.Groups = []config.GroupRule{{
					Name:         "async",
					Test:         []string{"\\.ts$"},
					ResourceType: config.ResourceTypeAsync,
				}}
			},
			want: map[string][]module.ID{
				"async_js": ids("lazy.ts"),
				"index_js": ids("main.ts"),
			},
		},
		{
			name: "enforce resources win over groups",
			mutate: func(c *config.Config) {
				c.PartialBundling.Groups = []config.GroupRule{{Name: "lit", Test: []string{"lit"}}}
				c.PartialBundling.EnforceResources = []config.EnforceResource{{Name: "bundle", Test: []string{".*\\.(ts|js)$"}}}
			},
			want: map[string][]module.ID{
				"bundle_js": ids("lazy.ts", "main.ts", "node_modules/lit/decorators.js", "node_modules/lit/index.js", "util.ts"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := app(t)
			cfg := testutil.NewConfig(t, tt.mutate)
			byID := potsByID(partialbundling.Bundle(cfg, g, g.ModuleIDs()))
			for id, want := range tt.want {
				pot := byID[id]
				require.NotNil(t, pot, "pot %s", id)
				assert.Equal(t, want, pot.ModuleIDs(), "pot %s", id)
			}
		})
	}
}

func TestBundleTargetMaxSize(t *testing.T) {
	g := module.NewGraph()
	add(g, "a.js", module.TypeJs, 100)
	add(g, "b.js", module.TypeJs, 100)
	add(g, "c.js", module.TypeJs, 100)
	link(t, g, "a.js", "b.js", module.KindImport)
	link(t, g, "b.js", "c.js", module.KindImport)
	g.SetEntry(module.ParseID("a.js"), "main")
	g.UpdateExecutionOrder()
	module.BuildGroupGraph(g)

	cfg := testutil.NewConfig(t, func(c *config.Config) {
		c.PartialBundling.TargetMaxSize = 150
	})
	byID := potsByID(partialbundling.Bundle(cfg, g, g.ModuleIDs()))

	require.Len(t, byID, 3)
	assert.Equal(t, ids("c.js"), byID["main_js"].ModuleIDs(), "dependencies come first")
	assert.Equal(t, ids("b.js"), byID["main_1_js"].ModuleIDs())
	assert.Equal(t, ids("a.js"), byID["main_2_js"].ModuleIDs())
	assert.Equal(t, module.ParseID("a.js"), byID["main_2_js"].EntryModule)
}

func TestGroupName(t *testing.T) {
	g := app(t)
	g.SetDynamicEntry(module.ParseID("lazy.ts"), "worker")

	assert.Equal(t, "index", partialbundling.GroupName(g, module.GroupID{ModuleID: module.ParseID("index.html")}))
	assert.Equal(t, "worker", partialbundling.GroupName(g, module.GroupID{ModuleID: module.ParseID("lazy.ts"), Type: module.GroupDynamicEntry}))
	assert.Equal(t, "lazy_ts", partialbundling.GroupName(g, module.GroupID{ModuleID: module.ParseID("lazy.ts"), Type: module.GroupDynamicImport}))
}

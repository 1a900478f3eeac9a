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

package compiler

import (
	"slices"
	"strings"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

// TracedModule is one node of a traced module graph.
type TracedModule struct {
	ID             string `json:"id"`
	ContentHash    string `json:"contentHash"`
	PackageName    string `json:"packageName,omitempty"`
	PackageVersion string `json:"packageVersion,omitempty"`
}

// ModuleGraphTrace is a serializable snapshot of the module graph.
type ModuleGraphTrace struct {
	Root         string              `json:"root"`
	Modules      []TracedModule      `json:"modules"`
	Edges        map[string][]string `json:"edges"`
	ReverseEdges map[string][]string `json:"reverseEdges"`
}

// TraceModuleGraph snapshots the live module graph. Modules are ordered by
// id; edges list dependencies in import order.
func (c *Compiler) TraceModuleGraph() *ModuleGraphTrace {
	cc := c.ctx
	out := &ModuleGraphTrace{
		Root:         cc.Root(),
		Modules:      []TracedModule{},
		Edges:        make(map[string][]string),
		ReverseEdges: make(map[string][]string),
	}
	cc.ReadModuleGraph(func(g *module.Graph) {
		ids := g.ModuleIDs()
		slices.SortFunc(ids, module.ID.Compare)
		for _, id := range ids {
			m := g.Module(id)
			out.Modules = append(out.Modules, TracedModule{
				ID:             id.String(),
				ContentHash:    m.ContentHash,
				PackageName:    m.PackageName,
				PackageVersion: m.PackageVersion,
			})
			deps := g.DependenciesIDs(id)
			edges := make([]string, len(deps))
			for i, dep := range deps {
				edges[i] = dep.String()
			}
			out.Edges[id.String()] = edges
			dependents := g.DependentsIDs(id)
			reverse := make([]string, len(dependents))
			for i, dep := range dependents {
				reverse[i] = dep.String()
			}
			out.ReverseEdges[id.String()] = reverse
		}
	})
	return out
}

// TraceDependencies lists every file the compilation depends on: the
// files of its modules and the watched files behind them.
func (c *Compiler) TraceDependencies() []string {
	cc := c.ctx
	files := set.New[string]()
	cc.ReadModuleGraph(func(g *module.Graph) {
		for _, m := range g.Modules() {
			if m.External || m.ResolvedPath == "" {
				continue
			}
			files.Add(m.ResolvedPath)
		}
	})
	files.Extend(set.New(cc.WatchGraph.Files()...))
	return files.SortedFunc(strings.Compare)
}

// WatchModules lists the files a watcher should observe: those of mutable
// modules plus watched files. Files of immutable modules only change
// through a reinstall.
func (c *Compiler) WatchModules() []string {
	cc := c.ctx
	files := set.New[string]()
	cc.ReadModuleGraph(func(g *module.Graph) {
		for _, m := range g.Modules() {
			if m.External || m.Immutable || m.ResolvedPath == "" {
				continue
			}
			files.Add(m.ResolvedPath)
		}
	})
	files.Extend(set.New(cc.WatchGraph.Files()...))
	return files.SortedFunc(strings.Compare)
}

// RelativeModulePaths lists the distinct module paths relative to the
// root, without queries.
func (c *Compiler) RelativeModulePaths() []string {
	paths := set.New[string]()
	c.ctx.ReadModuleGraph(func(g *module.Graph) {
		for _, id := range g.ModuleIDs() {
			if m := g.Module(id); m != nil && !m.External {
				paths.Add(id.RelativePath())
			}
		}
	})
	return paths.SortedFunc(strings.Compare)
}

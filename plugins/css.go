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

package plugins

import (
	"path/filepath"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/css"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// Css handles stylesheets. A CSS module is loaded twice: without a query
// it becomes a script exporting the renamed classes and importing itself
// with the CSS modules query, which loads the renamed stylesheet.
type Css struct{}

func (*Css) Name() string  { return "farm:css" }
func (*Css) Priority() int { return BuiltinPriority }

func (*Css) Load(p *core.LoadParam, c *core.Context, _ *core.HookContext) (*core.LoadResult, error) {
	if module.TypeFromPath(p.ResolvedPath) != module.TypeCss {
		return nil, nil
	}
	data, err := c.FS.ReadFile(p.ResolvedPath)
	if err != nil {
		return nil, err
	}
	if !c.Config.IsCssModule(p.ResolvedPath) {
		return &core.LoadResult{Content: string(data), ModuleType: module.TypeCss}, nil
	}

	hash := c.ModuleID(p.ResolvedPath, "").Hash()
	renamed, classes := css.RenameClasses(string(data), c.Config.Css.Modules.IndentName, hash)
	if _, ok := queryValue(p.Query, css.ModulesQuery); ok {
		return &core.LoadResult{Content: renamed, ModuleType: module.TypeCss}, nil
	}
	source := "./" + filepath.Base(p.ResolvedPath) + "?" + css.ModulesQuery
	return &core.LoadResult{Content: css.Proxy(source, classes), ModuleType: module.TypeJs}, nil
}

func (*Css) Parse(p *core.ParseParam, _ *core.Context, _ *core.HookContext) (*module.Meta, error) {
	if p.ModuleType != module.TypeCss {
		return nil, nil
	}
	meta := &module.CssMeta{}
	for _, dep := range css.Deps(p.Content) {
		switch dep.Kind {
		case css.DepImport:
			meta.Imports = append(meta.Imports, dep.Source)
		case css.DepURL:
			if css.IsLocalURL(dep.Source) {
				meta.URLs = append(meta.URLs, dep.Source)
			}
		}
	}
	return &module.Meta{Css: meta}, nil
}

func (*Css) AnalyzeDeps(p *core.ModuleDepsParam, _ *core.Context) error {
	meta := p.Module.Meta.Css
	if meta == nil {
		return nil
	}
	for _, source := range meta.Imports {
		if css.IsLocalURL(source) {
			p.Deps = append(p.Deps, core.DepItem{Source: source, Kind: module.KindCssAtImport})
		}
	}
	for _, source := range meta.URLs {
		p.Deps = append(p.Deps, core.DepItem{Source: source, Kind: module.KindCssURL})
	}
	return nil
}

func (*Css) RenderResourcePot(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.RenderedPot, error) {
	if pot.Type != resource.TypeCss {
		return nil, nil
	}
	graph := c.ModuleGraph()
	var ids []module.ID
	for _, m := range pot.Modules(graph) {
		ids = append(ids, m.ID)
	}
	return &core.RenderedPot{Content: css.Concat(graph, ids, assetURLs(c))}, nil
}

// assetURLs points url() references to static assets at their emitted
// resources.
func assetURLs(c *core.Context) css.URLRewriter {
	graph := c.ModuleGraph()
	return func(m *module.Module, source string) string {
		for _, dep := range graph.Dependencies(m.ID) {
			for _, item := range dep.Edge {
				if item.Kind != module.KindCssURL || item.Source != source {
					continue
				}
				if name := AssetResource(graph.Module(dep.ID)); name != "" {
					return publicURL(c.Config, name)
				}
			}
		}
		return ""
	}
}

func (*Css) GenerateResources(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.GeneratedResources, error) {
	if pot.Type != resource.TypeCss {
		return nil, nil
	}
	return generate(c, pot), nil
}

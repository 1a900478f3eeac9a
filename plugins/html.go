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
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/html"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// Html handles HTML entries. Local scripts and stylesheets become
// dependencies; each inline module script becomes a script module of its
// own, addressed by the HTML path plus an inline script query.
type Html struct{}

func (*Html) Name() string  { return "farm:html" }
func (*Html) Priority() int { return BuiltinPriority }

func inlineIndex(query string) (int, bool) {
	v, ok := queryValue(query, html.InlineKey)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func (*Html) Load(p *core.LoadParam, c *core.Context, _ *core.HookContext) (*core.LoadResult, error) {
	if module.TypeFromPath(p.ResolvedPath) != module.TypeHtml {
		return nil, nil
	}
	data, err := c.FS.ReadFile(p.ResolvedPath)
	if err != nil {
		return nil, err
	}
	i, inline := inlineIndex(p.Query)
	if !inline {
		return &core.LoadResult{Content: string(data), ModuleType: module.TypeHtml}, nil
	}
	a, err := html.Analyze(data)
	if err != nil {
		return nil, err
	}
	if i >= len(a.Inline) {
		return nil, fmt.Errorf("%s has no inline module script %d", p.ResolvedPath, i)
	}
	return &core.LoadResult{Content: a.Inline[i], ModuleType: module.TypeJs}, nil
}

func (*Html) Parse(p *core.ParseParam, _ *core.Context, _ *core.HookContext) (*module.Meta, error) {
	if p.ModuleType != module.TypeHtml {
		return nil, nil
	}
	a, err := html.Analyze([]byte(p.Content))
	if err != nil {
		return nil, err
	}
	meta := &module.HtmlMeta{Scripts: a.Scripts, Links: a.Links}
	if len(a.Inline) > 0 {
		meta.Inline = make(map[string]string, len(a.Inline))
		for i, src := range a.Inline {
			meta.Inline[html.InlineQuery(i)] = src
		}
	}
	return &module.Meta{Html: meta}, nil
}

func (*Html) AnalyzeDeps(p *core.ModuleDepsParam, _ *core.Context) error {
	meta := p.Module.Meta.Html
	if meta == nil {
		return nil
	}
	for _, src := range meta.Scripts {
		p.Deps = append(p.Deps, core.DepItem{Source: src, Kind: module.KindScriptSrc})
	}
	for _, href := range meta.Links {
		p.Deps = append(p.Deps, core.DepItem{Source: href, Kind: module.KindLinkHref})
	}
	self := "./" + filepath.Base(p.Module.ResolvedPath)
	for i := range len(meta.Inline) {
		p.Deps = append(p.Deps, core.DepItem{Source: self + "?" + html.InlineQuery(i), Kind: module.KindScriptSrc})
	}
	return nil
}

// RenderResourcePot passes the HTML through; resources are woven in when
// the entry resource is handled.
func (*Html) RenderResourcePot(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.RenderedPot, error) {
	if pot.Type != resource.TypeHtml {
		return nil, nil
	}
	ids := pot.ModuleIDs()
	if len(ids) != 1 {
		return nil, &core.RenderResourcePotError{
			Name:    pot.Name,
			Modules: ids,
			Msg:     fmt.Sprintf("an html resource pot must hold exactly one module, got %d", len(ids)),
		}
	}
	m := c.ModuleGraph().Module(ids[0])
	if m == nil {
		return nil, &core.RenderResourcePotError{Name: pot.Name, Modules: ids, Msg: "module not in graph"}
	}
	return &core.RenderedPot{Content: m.Content}, nil
}

func (*Html) GenerateResources(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.GeneratedResources, error) {
	if pot.Type != resource.TypeHtml {
		return nil, nil
	}
	return generate(c, pot), nil
}

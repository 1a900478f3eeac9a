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
	"maps"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/farm-fe/farm-sub001/concat"
	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/render"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/script"
)

const nodeEnv = "process.env.NODE_ENV"

var loaders = map[module.Type]api.Loader{
	module.TypeJs:  api.LoaderJS,
	module.TypeJsx: api.LoaderJSX,
	module.TypeTs:  api.LoaderTS,
	module.TypeTsx: api.LoaderTSX,
}

// Script handles JavaScript and TypeScript modules: it loads them, strips
// types and JSX and applies define replacements with esbuild, analyzes
// them and renders script resource pots, concatenated when enabled.
type Script struct{}

func (*Script) Name() string  { return "farm:script" }
func (*Script) Priority() int { return BuiltinPriority }

func (*Script) Load(p *core.LoadParam, c *core.Context, _ *core.HookContext) (*core.LoadResult, error) {
	t := module.TypeFromPath(p.ResolvedPath)
	if !t.IsScript() {
		return nil, nil
	}
	data, err := c.FS.ReadFile(p.ResolvedPath)
	if err != nil {
		return nil, err
	}
	return &core.LoadResult{Content: string(data), ModuleType: t}, nil
}

// Defines returns the identifier replacements applied to scripts. Browser
// builds get process.env.NODE_ENV unless it is configured.
func Defines(cfg *config.Config) map[string]string {
	out := maps.Clone(cfg.Define)
	if out == nil {
		out = make(map[string]string)
	}
	if _, ok := out[nodeEnv]; !ok && cfg.Output.TargetEnv == config.TargetBrowser {
		out[nodeEnv] = strconv.Quote(string(cfg.Mode))
	}
	return out
}

func mentionsAny(content string, defines map[string]string) bool {
	for key := range defines {
		if strings.Contains(content, key) {
			return true
		}
	}
	return false
}

func (*Script) Transform(p *core.TransformParam, c *core.Context) (*core.TransformResult, error) {
	loader, ok := loaders[p.ModuleType]
	if !ok {
		return nil, nil
	}
	defines := Defines(c.Config)
	if loader == api.LoaderJS && !mentionsAny(p.Content, defines) {
		return nil, nil
	}
	opts := api.TransformOptions{
		Loader:     loader,
		Target:     api.ESNext,
		Define:     defines,
		JSX:        api.JSXAutomatic,
		Sourcefile: p.ModuleID.String(),
	}
	if c.Config.Sourcemap.Enabled {
		opts.Sourcemap = api.SourceMapExternal
	}
	res := api.Transform(p.Content, opts)
	if len(res.Errors) > 0 {
		return nil, esbuildError(res.Errors)
	}
	for _, w := range res.Warnings {
		c.Logger.Debug("%s: %s", p.ModuleID, w.Text)
	}
	return &core.TransformResult{Content: string(res.Code), SourceMap: string(res.Map)}, nil
}

func esbuildError(msgs []api.Message) error {
	var parts []string
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
		} else {
			parts = append(parts, m.Text)
		}
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

func jsx(t module.Type) bool {
	return t == module.TypeJsx || t == module.TypeTsx
}

func (*Script) Parse(p *core.ParseParam, c *core.Context, _ *core.HookContext) (*module.Meta, error) {
	if !p.ModuleType.IsScript() {
		return nil, nil
	}
	ast, err := script.Parse([]byte(p.Content), script.Options{JSX: jsx(p.ModuleType), Globals: c.Globals})
	if err != nil {
		return nil, err
	}
	return &module.Meta{Script: module.NewScriptMeta(ast)}, nil
}

var depKinds = map[script.DepKind]module.ResolveKind{
	script.DepImport:        module.KindImport,
	script.DepExportFrom:    module.KindExportFrom,
	script.DepDynamicImport: module.KindDynamicImport,
	script.DepRequire:       module.KindRequire,
}

func (*Script) AnalyzeDeps(p *core.ModuleDepsParam, _ *core.Context) error {
	meta := p.Module.Meta.Script
	if meta == nil || meta.AST == nil {
		return nil
	}
	for _, dep := range meta.AST.Deps {
		p.Deps = append(p.Deps, core.DepItem{Source: dep.Source, Kind: depKinds[dep.Kind]})
	}
	return nil
}

func (*Script) RenderResourcePot(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.RenderedPot, error) {
	if pot.Type != resource.TypeJs {
		return nil, nil
	}
	if c.Config.Concatenate() {
		rendered, err := concatenated(c, pot)
		if err != nil || rendered != nil {
			return rendered, err
		}
	}
	return render.Pot(c, pot)
}

// concatenated renders pot as one scope-hoisted factory registered under
// the pot's root module. It returns nil when the pot cannot be
// concatenated.
func concatenated(c *core.Context, pot *resource.ResourcePot) (*core.RenderedPot, error) {
	graph := c.ModuleGraph()
	ids := pot.ModuleIDs()
	root, ok := concat.Eligible(graph, ids)
	if !ok {
		return nil, nil
	}
	res, err := concat.Concatenate(graph, ids, root, script.NewGlobals())
	if err != nil {
		return nil, &core.RenderResourcePotError{Name: pot.Name, Modules: ids, Msg: err.Error()}
	}
	for _, w := range res.Warnings {
		c.Warn("%s", w)
	}

	opts := render.Options{Mode: c.Mode(), Namespace: c.Config.Runtime.Namespace}
	factory := render.Wrapper(render.Source(res.AST, render.IDResolver(graph), opts))
	pot.Meta.Concatenated = true
	pot.Meta.RenderedModules = map[module.ID]string{root: factory}
	moduleMap := "{\n" + script.Quote(root.Printable(opts.Mode)) + ": " + factory + "\n}"
	return &core.RenderedPot{Content: render.Wrap(opts.Namespace, moduleMap)}, nil
}

func (*Script) GenerateResources(pot *resource.ResourcePot, c *core.Context, _ *core.HookContext) (*core.GeneratedResources, error) {
	if pot.Type != resource.TypeJs {
		return nil, nil
	}
	return generate(c, pot), nil
}

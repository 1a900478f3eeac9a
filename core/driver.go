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

package core

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// Driver dispatches hooks to plugins sorted by ascending priority. Plugins
// with equal priority keep their registration order.
type Driver struct {
	plugins []Plugin
	byHook  sync.Map // hook name -> []H

	// Observe, when set, is called after every hook invocation.
	Observe func(hook, plugin string, elapsed time.Duration)
}

// NewDriver sorts plugins once and returns a driver over them.
func NewDriver(plugins ...Plugin) *Driver {
	sorted := slices.Clone(plugins)
	slices.SortStableFunc(sorted, func(a, b Plugin) int {
		return cmp.Compare(PriorityOf(a), PriorityOf(b))
	})
	return &Driver{plugins: sorted}
}

// Plugins returns the plugins in dispatch order.
func (d *Driver) Plugins() []Plugin {
	return slices.Clone(d.plugins)
}

// Names returns the plugin names in dispatch order.
func (d *Driver) Names() []string {
	names := make([]string, len(d.plugins))
	for i, p := range d.plugins {
		names[i] = p.Name()
	}
	return names
}

func hooksOf[H Plugin](d *Driver, hook string) []H {
	if cached, ok := d.byHook.Load(hook); ok {
		return cached.([]H)
	}
	var hs []H
	for _, p := range d.plugins {
		if h, ok := p.(H); ok {
			hs = append(hs, h)
		}
	}
	d.byHook.Store(hook, hs)
	return hs
}

func (d *Driver) observe(hook string, p Plugin, start time.Time) {
	if d.Observe != nil {
		d.Observe(hook, p.Name(), time.Since(start))
	}
}

// firstMatch returns the first non-nil result.
func firstMatch[H Plugin, R any](d *Driver, hook string, call func(H) (*R, error)) (*R, error) {
	for _, h := range hooksOf[H](d, hook) {
		start := time.Now()
		res, err := call(h)
		d.observe(hook, h, start)
		if err != nil {
			return nil, &PluginError{Plugin: h.Name(), Hook: hook, Err: err}
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// serial runs every plugin in order, stopping at the first error.
func serial[H Plugin](d *Driver, hook string, call func(H) error) error {
	for _, h := range hooksOf[H](d, hook) {
		start := time.Now()
		err := call(h)
		d.observe(hook, h, start)
		if err != nil {
			return &PluginError{Plugin: h.Name(), Hook: hook, Err: err}
		}
	}
	return nil
}

func (d *Driver) Resolve(p *ResolveParam, ctx *Context, hc *HookContext) (*ResolveResult, error) {
	return firstMatch(d, "resolve", func(h ResolveHook) (*ResolveResult, error) {
		return h.Resolve(p, ctx, hc)
	})
}

func (d *Driver) Load(p *LoadParam, ctx *Context, hc *HookContext) (*LoadResult, error) {
	return firstMatch(d, "load", func(h LoadHook) (*LoadResult, error) {
		return h.Load(p, ctx, hc)
	})
}

// Transform threads p through every transform hook, applying each result
// before the next plugin runs.
func (d *Driver) Transform(p *TransformParam, ctx *Context) error {
	return serial(d, "transform", func(h TransformHook) error {
		res, err := h.Transform(p, ctx)
		if err != nil || res == nil {
			return err
		}
		p.Content = res.Content
		if res.ModuleType != "" {
			p.ModuleType = res.ModuleType
		}
		if res.IgnorePreviousSourceMap {
			p.SourceMapChain = nil
		}
		if res.SourceMap != "" {
			p.SourceMapChain = append(p.SourceMapChain, res.SourceMap)
		}
		return nil
	})
}

func (d *Driver) Parse(p *ParseParam, ctx *Context, hc *HookContext) (*module.Meta, error) {
	return firstMatch(d, "parse", func(h ParseHook) (*module.Meta, error) {
		return h.Parse(p, ctx, hc)
	})
}

func (d *Driver) ProcessModule(m *module.Module, ctx *Context) error {
	return serial(d, "process_module", func(h ProcessModuleHook) error {
		return h.ProcessModule(m, ctx)
	})
}

func (d *Driver) AnalyzeDeps(p *ModuleDepsParam, ctx *Context) error {
	return serial(d, "analyze_deps", func(h AnalyzeDepsHook) error {
		return h.AnalyzeDeps(p, ctx)
	})
}

func (d *Driver) FinalizeModule(p *ModuleDepsParam, ctx *Context) error {
	return serial(d, "finalize_module", func(h FinalizeModuleHook) error {
		return h.FinalizeModule(p, ctx)
	})
}

func (d *Driver) FreezeModule(m *module.Module, ctx *Context) error {
	return serial(d, "freeze_module", func(h FreezeModuleHook) error {
		return h.FreezeModule(m, ctx)
	})
}

func (d *Driver) ModuleGraphBuildEnd(graph *module.Graph, ctx *Context) error {
	return serial(d, "module_graph_build_end", func(h ModuleGraphBuildEndHook) error {
		return h.ModuleGraphBuildEnd(graph, ctx)
	})
}

func (d *Driver) OptimizeModuleGraph(graph *module.Graph, ctx *Context) error {
	return serial(d, "optimize_module_graph", func(h OptimizeModuleGraphHook) error {
		return h.OptimizeModuleGraph(graph, ctx)
	})
}

func (d *Driver) AnalyzeModuleGraph(graph *module.Graph, ctx *Context, hc *HookContext) (*module.GroupGraph, error) {
	return firstMatch(d, "analyze_module_graph", func(h AnalyzeModuleGraphHook) (*module.GroupGraph, error) {
		return h.AnalyzeModuleGraph(graph, ctx, hc)
	})
}

// PartialBundling returns the pots of the first plugin that handles
// modules; handled is false when none did.
func (d *Driver) PartialBundling(modules []module.ID, ctx *Context, hc *HookContext) (pots []*resource.ResourcePot, handled bool, err error) {
	res, err := firstMatch(d, "partial_bundling", func(h PartialBundlingHook) (*[]*resource.ResourcePot, error) {
		pots, err := h.PartialBundling(modules, ctx, hc)
		if err != nil || pots == nil {
			return nil, err
		}
		return &pots, nil
	})
	if err != nil || res == nil {
		return nil, false, err
	}
	return *res, true, nil
}

func (d *Driver) ProcessResourcePots(pots []*resource.ResourcePot, ctx *Context) error {
	return serial(d, "process_resource_pots", func(h ProcessResourcePotsHook) error {
		return h.ProcessResourcePots(pots, ctx)
	})
}

func (d *Driver) RenderResourcePot(pot *resource.ResourcePot, ctx *Context, hc *HookContext) (*RenderedPot, error) {
	return firstMatch(d, "render_resource_pot", func(h RenderResourcePotHook) (*RenderedPot, error) {
		return h.RenderResourcePot(pot, ctx, hc)
	})
}

func (d *Driver) OptimizeResourcePot(pot *resource.ResourcePot, ctx *Context) error {
	return serial(d, "optimize_resource_pot", func(h OptimizeResourcePotHook) error {
		return h.OptimizeResourcePot(pot, ctx)
	})
}

func (d *Driver) GenerateResources(pot *resource.ResourcePot, ctx *Context, hc *HookContext) (*GeneratedResources, error) {
	return firstMatch(d, "generate_resources", func(h GenerateResourcesHook) (*GeneratedResources, error) {
		return h.GenerateResources(pot, ctx, hc)
	})
}

func (d *Driver) ProcessGeneratedResources(res *GeneratedResources, pot *resource.ResourcePot, ctx *Context) error {
	return serial(d, "process_generated_resources", func(h ProcessGeneratedResourcesHook) error {
		return h.ProcessGeneratedResources(res, pot, ctx)
	})
}

func (d *Driver) HandleEntryResource(p *EntryResourceParam, ctx *Context) error {
	return serial(d, "handle_entry_resource", func(h HandleEntryResourceHook) error {
		return h.HandleEntryResource(p, ctx)
	})
}

func (d *Driver) FinalizeResources(resources map[string]*resource.Resource, ctx *Context) error {
	return serial(d, "finalize_resources", func(h FinalizeResourcesHook) error {
		return h.FinalizeResources(resources, ctx)
	})
}

func (d *Driver) UpdateModules(p *UpdateModulesParam, ctx *Context) error {
	return serial(d, "update_modules", func(h UpdateModulesHook) error {
		return h.UpdateModules(p, ctx)
	})
}

func (d *Driver) ModuleGraphUpdated(p *ModuleGraphUpdatedParam, ctx *Context) error {
	return serial(d, "module_graph_updated", func(h ModuleGraphUpdatedHook) error {
		return h.ModuleGraphUpdated(p, ctx)
	})
}

// HandlePersistentCachedModule reports whether any plugin vetoes the
// cached module.
func (d *Driver) HandlePersistentCachedModule(m *module.Module, ctx *Context) (bool, error) {
	veto, err := firstMatch(d, "handle_persistent_cached_module", func(h HandlePersistentCachedModuleHook) (*bool, error) {
		discard, err := h.HandlePersistentCachedModule(m, ctx)
		if err != nil || !discard {
			return nil, err
		}
		return &discard, nil
	})
	return veto != nil, err
}

func (d *Driver) BuildStart(ctx *Context) error {
	return serial(d, "build_start", func(h BuildStartHook) error { return h.BuildStart(ctx) })
}

func (d *Driver) BuildEnd(ctx *Context) error {
	return serial(d, "build_end", func(h BuildEndHook) error { return h.BuildEnd(ctx) })
}

func (d *Driver) GenerateStart(ctx *Context) error {
	return serial(d, "generate_start", func(h GenerateStartHook) error { return h.GenerateStart(ctx) })
}

func (d *Driver) GenerateEnd(ctx *Context) error {
	return serial(d, "generate_end", func(h GenerateEndHook) error { return h.GenerateEnd(ctx) })
}

func (d *Driver) RenderStart(ctx *Context) error {
	return serial(d, "render_start", func(h RenderStartHook) error { return h.RenderStart(ctx) })
}

func (d *Driver) Finish(ctx *Context) error {
	return serial(d, "finish", func(h FinishHook) error { return h.Finish(ctx) })
}

func (d *Driver) UpdateFinished(ctx *Context) error {
	return serial(d, "update_finished", func(h UpdateFinishedHook) error { return h.UpdateFinished(ctx) })
}

// PluginCacheLoaded hands every plugin the bytes stored under its name.
func (d *Driver) PluginCacheLoaded(caches map[string][]byte, ctx *Context) error {
	return serial(d, "plugin_cache_loaded", func(h PluginCacheLoadedHook) error {
		data, ok := caches[h.Name()]
		if !ok {
			return nil
		}
		return h.PluginCacheLoaded(data, ctx)
	})
}

// WritePluginCache collects the bytes each plugin wants persisted, keyed
// by plugin name.
func (d *Driver) WritePluginCache(ctx *Context) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := serial(d, "write_plugin_cache", func(h WritePluginCacheHook) error {
		data, err := h.WritePluginCache(ctx)
		if err != nil {
			return err
		}
		if data != nil {
			out[h.Name()] = data
		}
		return nil
	})
	return out, err
}

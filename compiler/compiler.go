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

// Package compiler is the public face of the bundler. A Compiler owns one
// compilation context: Compile builds the entries into resources, Update
// applies file changes incrementally and returns the hot update payload.
package compiler

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/farm-fe/farm-sub001/build"
	"github.com/farm-fe/farm-sub001/cache"
	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/entry"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/plugins"
	"github.com/farm-fe/farm-sub001/resource"
)

const pluginCachePrefix = "plugin/"

// Compiler drives compilations over one context. Compile and Update are
// serialized; the read accessors may be called at any time.
type Compiler struct {
	ctx *core.Context

	mu    sync.Mutex
	store cache.Store
}

// New creates a compiler over a normalized cfg. The built-in plugins are
// always installed; extra plugins run before them unless they ask for a
// larger priority.
func New(cfg *config.Config, fsys fs.FileSystem, logger core.Logger, extra ...core.Plugin) *Compiler {
	all := append(plugins.Defaults(), extra...)
	return &Compiler{ctx: core.NewContext(cfg, fsys, logger, all...)}
}

// Context returns the compilation context.
func (c *Compiler) Context() *core.Context {
	return c.ctx
}

// Close releases the persistent cache store.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	c.ctx.Store = nil
	return err
}

func (c *Compiler) entries() []build.Entry {
	names := slices.Sorted(maps.Keys(c.ctx.Config.Input))
	out := make([]build.Entry, len(names))
	for i, name := range names {
		out[i] = build.Entry{Name: name, Source: c.ctx.Config.Input[name]}
	}
	return out
}

// Compile builds every configured entry and generates the resources. It
// starts from scratch each time, reusing only the persistent cache.
func (c *Compiler) Compile(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cc := c.ctx
	d := cc.Driver()
	start := time.Now()

	cc.SetModuleGraph(module.NewGraph())
	cc.SetModuleGroupGraph(module.NewGroupGraph())
	cc.SetResourcePots(resource.NewPotMap())
	cc.ClearResources()

	if err := c.loadCache(ctx); err != nil {
		return err
	}

	if err := d.BuildStart(cc); err != nil {
		return err
	}
	res, err := build.Build(ctx, cc, c.entries(), build.Options{})
	if err != nil {
		return err
	}
	if err := d.BuildEnd(cc); err != nil {
		return err
	}
	graph := cc.ModuleGraph()
	if err := d.ModuleGraphBuildEnd(graph, cc); err != nil {
		return err
	}

	if err := c.generate(ctx); err != nil {
		return err
	}
	if err := d.Finish(cc); err != nil {
		return err
	}
	if err := c.writeCache(ctx, res.Built); err != nil {
		return err
	}

	cc.Logger.Info("compiled %d modules (%d from cache) into %d resources in %s",
		graph.Len(), len(res.Cached), len(cc.Resources()), time.Since(start).Round(time.Millisecond))
	return nil
}

// generate runs the generate stage over the whole graph: optimize, group,
// bundle, render every pot, then weave the entries.
func (c *Compiler) generate(ctx context.Context) error {
	cc := c.ctx
	d := cc.Driver()
	graph := cc.ModuleGraph()

	if err := d.GenerateStart(cc); err != nil {
		return err
	}
	if err := d.OptimizeModuleGraph(graph, cc); err != nil {
		return err
	}
	groups, err := d.AnalyzeModuleGraph(graph, cc, nil)
	if err != nil {
		return err
	}
	if groups == nil {
		groups = module.BuildGroupGraph(graph)
	}
	cc.SetModuleGroupGraph(groups)

	pots, handled, err := d.PartialBundling(graph.ModuleIDs(), cc, nil)
	if err != nil {
		return err
	}
	if !handled {
		return core.Errorf("no plugin handles partial bundling")
	}
	if err := d.ProcessResourcePots(pots, cc); err != nil {
		return err
	}
	potMap := resource.NewPotMap()
	for _, pot := range pots {
		potMap.Add(pot)
	}
	cc.SetResourcePots(potMap)

	if err := d.RenderStart(cc); err != nil {
		return err
	}
	if err := c.renderPots(ctx, pots); err != nil {
		return err
	}
	for _, pot := range pots {
		if err := c.generatePot(pot); err != nil {
			return err
		}
	}
	if err := c.handleEntries(); err != nil {
		return err
	}
	if err := c.finalizeResources(); err != nil {
		return err
	}
	return d.GenerateEnd(cc)
}

// renderPots renders pots on a worker pool. Rendering only reads the
// module graph and writes the pot it renders.
func (c *Compiler) renderPots(ctx context.Context, pots []*resource.ResourcePot) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, pot := range pots {
		g.Go(func() error {
			return c.renderPot(pot)
		})
	}
	return g.Wait()
}

func (c *Compiler) renderPot(pot *resource.ResourcePot) error {
	cc := c.ctx
	d := cc.Driver()
	rendered, err := d.RenderResourcePot(pot, cc, nil)
	if err != nil {
		return err
	}
	if rendered == nil {
		return &core.RenderResourcePotError{
			Name:    pot.Name,
			Modules: pot.ModuleIDs(),
			Msg:     fmt.Sprintf("no plugin renders %s resource pots", pot.Type),
		}
	}
	pot.Meta.Content = rendered.Content
	pot.Meta.SourceMap = rendered.SourceMap
	return d.OptimizeResourcePot(pot, cc)
}

// generatePot turns a rendered pot into resources, replacing the ones it
// produced before.
func (c *Compiler) generatePot(pot *resource.ResourcePot) error {
	cc := c.ctx
	d := cc.Driver()
	out, err := d.GenerateResources(pot, cc, nil)
	if err != nil {
		return err
	}
	if out == nil || out.Resource == nil {
		return &core.RenderResourcePotError{
			Name:    pot.Name,
			Modules: pot.ModuleIDs(),
			Msg:     fmt.Sprintf("no plugin generates resources for %s resource pots", pot.Type),
		}
	}
	if err := d.ProcessGeneratedResources(out, pot, cc); err != nil {
		return err
	}
	for name := range pot.Resources {
		cc.RemoveResource(name)
	}
	pot.Resources = set.New(out.Resource.Name)
	cc.EmitResource(out.Resource)
	if out.SourceMap != nil {
		pot.Resources.Add(out.SourceMap.Name)
		cc.EmitResource(out.SourceMap)
	}
	return nil
}

// mainResource returns the resource a pot produced for its own type.
func (c *Compiler) mainResource(pot *resource.ResourcePot) *resource.Resource {
	for _, name := range pot.Resources.SortedFunc(strings.Compare) {
		if r, ok := c.ctx.Resource(name); ok && r.Type == pot.Type {
			return r
		}
	}
	return nil
}

func (c *Compiler) handleEntries() error {
	for _, pot := range c.ctx.ResourcePots().Pots() {
		if err := c.handleEntry(pot); err != nil {
			return err
		}
	}
	return nil
}

// handleEntry weaves the runtime and the initial resources into the
// freshly generated resource of an entry pot.
func (c *Compiler) handleEntry(pot *resource.ResourcePot) error {
	if !pot.IsEntry() {
		return nil
	}
	r := c.mainResource(pot)
	if r == nil {
		return nil
	}
	cc := c.ctx
	return cc.Driver().HandleEntryResource(&core.EntryResourceParam{
		Resource:         r,
		EntryModule:      pot.EntryModule,
		InitialResources: entry.InitialResources(cc, pot.EntryModule, r.Name),
	}, cc)
}

// finalizeResources lets plugins edit the resource map as a whole and
// mirrors their edits back into the context.
func (c *Compiler) finalizeResources() error {
	cc := c.ctx
	resources := cc.ResourcesMap()
	if err := cc.Driver().FinalizeResources(resources, cc); err != nil {
		return err
	}
	for name := range cc.ResourcesMap() {
		if _, ok := resources[name]; !ok {
			cc.RemoveResource(name)
		}
	}
	for _, r := range resources {
		cc.EmitResource(r)
	}
	return nil
}

// Resources returns every resource of the last compilation, ordered by
// name.
func (c *Compiler) Resources() []*resource.Resource {
	return c.ctx.Resources()
}

// Resource returns the resource named name.
func (c *Compiler) Resource(name string) (*resource.Resource, bool) {
	return c.ctx.Resource(name)
}

// ResourcesMap returns a copy of the name -> resource map.
func (c *Compiler) ResourcesMap() map[string]*resource.Resource {
	return c.ctx.ResourcesMap()
}

// WriteResources writes every emitted resource under the output path and
// returns the paths written.
func (c *Compiler) WriteResources() ([]string, error) {
	cc := c.ctx
	dir := cc.Config.Output.Path
	var written []string
	for _, r := range cc.Resources() {
		if !r.Emitted {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(r.Name))
		if err := cc.FS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("creating %s: %w", filepath.Dir(target), err)
		}
		if err := cc.FS.WriteFile(target, r.Bytes, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", r.Name, err)
		}
		written = append(written, target)
	}
	return written, nil
}

// InvalidateModule drops the cache entry of id so the next build loads it
// from source.
func (c *Compiler) InvalidateModule(id module.ID) {
	c.ctx.Cache.Invalidate(id)
}

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
	"context"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/farm-fe/farm-sub001/build"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/update"
)

// UpdateOptions tune an update.
type UpdateOptions struct {
	// GenerateResources regenerates the entry resources and finalizes the
	// resource map after the changed pots were rendered, so that a full
	// reload serves the updated output.
	GenerateResources bool
	// Sync runs that regeneration before Update returns. Otherwise it runs
	// in the background and the next Compile or Update waits for it.
	Sync bool
	// OnFinish is called once the update, including any regeneration, is
	// complete.
	OnFinish func()
}

// startPoints sorts the changed paths into modules to rebuild and modules
// whose file is gone. A path that is no module but a watched file maps to
// the modules watching it.
func (c *Compiler) startPoints(paths []core.UpdatePath) (rebuild, removed []module.ID) {
	cc := c.ctx
	graph := cc.ModuleGraph()
	seen := set.New[module.ID]()
	add := func(list *[]module.ID, ids ...module.ID) {
		for _, id := range ids {
			if seen.Add(id) {
				*list = append(*list, id)
			}
		}
	}

	for _, p := range paths {
		abs := p.Path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cc.Root(), abs)
		}
		rel := cc.ModuleID(abs, "").RelativePath()
		ids := graph.ModuleIDsByFile(rel)
		if p.Type == core.UpdateRemoved {
			add(&removed, ids...)
		} else {
			add(&rebuild, ids...)
		}
		watchers := cc.WatchGraph.RelatedModules(abs)
		if rel != abs {
			watchers = append(watchers, cc.WatchGraph.RelatedModules(rel)...)
		}
		for _, id := range watchers {
			if graph.HasModule(id) {
				add(&rebuild, id)
			}
		}
	}
	return rebuild, removed
}

// Update applies changed paths to the live compilation: the changed
// modules are rebuilt into an update graph, diffed against the live graph
// and patched in, the affected module groups and resource pots are
// regenerated and the changed pots rendered again. The returned payload
// carries what a hot update needs.
func (c *Compiler) Update(ctx context.Context, paths []core.UpdatePath, opts UpdateOptions) (*update.Result, error) {
	c.mu.Lock()
	unlock := true
	defer func() {
		if unlock {
			c.mu.Unlock()
		}
	}()

	cc := c.ctx
	d := cc.Driver()
	start := time.Now()

	p := &core.UpdateModulesParam{Paths: slices.Clone(paths)}
	if err := d.UpdateModules(p, cc); err != nil {
		return nil, err
	}
	rebuild, deleted := c.startPoints(p.Paths)
	watchedBefore := set.New(cc.WatchGraph.Files()...)

	live := cc.ModuleGraph()
	entries := make([]build.Entry, len(rebuild))
	for i, id := range rebuild {
		cc.Cache.Invalidate(id)
		cc.WatchGraph.RemoveModule(id)
		kind := module.KindImport
		if live.IsEntry(id) {
			kind = module.KindEntry
		}
		entries[i] = build.Entry{Source: id.ResolvedPath(cc.Root()) + id.Query(), Kind: kind}
	}
	for _, id := range deleted {
		cc.Cache.Invalidate(id)
	}

	ug := module.NewGraph()
	built := &build.Result{}
	if len(entries) > 0 {
		var err error
		built, err = build.Build(ctx, cc, entries, build.Options{Graph: ug, Existing: live.HasModule})
		if err != nil {
			return nil, err
		}
	}

	starts := slices.Concat(rebuild, deleted)
	diff := update.DiffModuleGraph(starts, live, ug)
	var removed map[module.ID]*module.Module
	_ = cc.WriteModuleGraph(func(g *module.Graph) error {
		removed = update.PatchModuleGraph(starts, diff, g, ug)
		g.UpdateExecutionOrder()
		return nil
	})
	for id := range removed {
		cc.WatchGraph.RemoveModule(id)
		cc.Cache.Invalidate(id)
	}

	added := diff.AddedModules.SortedFunc(module.ID.Compare)
	var updated []module.ID
	for _, id := range rebuild {
		if !diff.AddedModules.Has(id) && live.HasModule(id) {
			updated = append(updated, id)
		}
	}
	removedIDs := slices.SortedFunc(maps.Keys(removed), module.ID.Compare)

	affected := update.PatchModuleGroupGraph(diff, live, cc.ModuleGroupGraph(), removed)
	if err := d.ModuleGraphUpdated(&core.ModuleGraphUpdatedParam{Added: added, Updated: updated, Removed: removedIDs}, cc); err != nil {
		return nil, err
	}

	changes, err := update.RegenerateResourcePots(cc, affected, updated, removed)
	if err != nil {
		return nil, err
	}
	var pots []*resource.ResourcePot
	for _, id := range changes.Render() {
		if pot := cc.ResourcePots().Get(id); pot != nil {
			pots = append(pots, pot)
		}
	}
	if err := c.renderPots(ctx, pots); err != nil {
		return nil, err
	}
	for _, pot := range pots {
		if err := c.generatePot(pot); err != nil {
			return nil, err
		}
	}
	for _, pot := range pots {
		if err := c.handleEntry(pot); err != nil {
			return nil, err
		}
	}

	result, err := update.Package(cc, added, updated, removedIDs)
	if err != nil {
		return nil, err
	}
	watchedAfter := set.New(cc.WatchGraph.Files()...)
	for _, f := range watchedAfter.SortedFunc(strings.Compare) {
		if !watchedBefore.Has(f) {
			result.ExtraWatchResult.Add = append(result.ExtraWatchResult.Add, f)
		}
	}
	for _, f := range watchedBefore.SortedFunc(strings.Compare) {
		if !watchedAfter.Has(f) {
			result.ExtraWatchResult.Remove = append(result.ExtraWatchResult.Remove, f)
		}
	}

	cc.Logger.Info("updated %d modules (%d added, %d removed) in %s",
		len(updated), len(added), len(removedIDs), time.Since(start).Round(time.Millisecond))

	finish := func(ctx context.Context) error {
		if opts.GenerateResources {
			if err := c.regenerateEntries(); err != nil {
				return err
			}
		}
		if err := c.writeCache(ctx, built.Built); err != nil {
			return err
		}
		if err := d.UpdateFinished(cc); err != nil {
			return err
		}
		if opts.OnFinish != nil {
			opts.OnFinish()
		}
		return nil
	}
	if opts.Sync || !opts.GenerateResources {
		if err := finish(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}

	unlock = false
	go func() {
		defer c.mu.Unlock()
		if err := finish(context.WithoutCancel(ctx)); err != nil {
			cc.Logger.Warning("regenerating resources failed: %v", err)
		}
	}()
	return result, nil
}

// regenerateEntries generates the entry pots again so their resources
// point at the current resource names, then finalizes the resource map.
func (c *Compiler) regenerateEntries() error {
	for _, pot := range c.ctx.ResourcePots().Pots() {
		if !pot.IsEntry() {
			continue
		}
		if err := c.generatePot(pot); err != nil {
			return err
		}
	}
	if err := c.handleEntries(); err != nil {
		return err
	}
	return c.finalizeResources()
}

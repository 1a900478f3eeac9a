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

package build

import (
	"cmp"
	"slices"

	"github.com/farm-fe/farm-sub001/cache"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/script"
)

// restore puts a cached module back into the graph. It reports false when
// the entry turns out to be stale, in which case the caller builds the
// module from source.
func (b *Builder) restore(cm *cache.CachedModule, fresh *module.Module) (bool, []core.DepItem, error) {
	c := b.ctx
	m, ok, err := HandleCachedModule(c, cm)
	if err != nil || !ok {
		return false, nil, err
	}
	m.LastUpdateTimestamp = fresh.LastUpdateTimestamp
	if fresh.ContentHash != "" {
		m.ContentHash = fresh.ContentHash
	}
	for _, w := range cm.WatchDependencies {
		c.WatchGraph.AddWatch(m.ID, w.File)
		c.WatchGraph.SetStamp(w.File, w.Timestamp, w.Hash)
	}
	c.Logger.Debug("restored %s from cache", m.ID)
	b.insert(m)
	return true, CachedDeps(cm), nil
}

// HandleCachedModule prepares a module restored from the persistent cache
// for the current compilation: script marks are recomputed against the
// compilation's globals, per-compilation state is cleared, plugins get a
// chance to veto it, and its watch dependencies are re-checked unless it is
// immutable. It returns false when the module must be rebuilt, after
// dropping the stale entry.
func HandleCachedModule(c *core.Context, cm *cache.CachedModule) (*module.Module, bool, error) {
	m := cm.Module

	if m.Meta.Script != nil {
		jsx := m.Type == module.TypeJsx || m.Type == module.TypeTsx
		ast, err := script.Parse([]byte(m.Content), script.Options{JSX: jsx, Globals: c.Globals})
		if err != nil {
			c.Cache.Invalidate(m.ID)
			return nil, false, nil
		}
		m.Meta.Script = module.NewScriptMeta(ast)
	}

	m.Reset()

	veto, err := c.Driver().HandlePersistentCachedModule(m, c)
	if err != nil {
		return nil, false, err
	}
	if veto {
		c.Cache.Invalidate(m.ID)
		return nil, false, nil
	}

	if !m.Immutable && watchDependenciesChanged(c, cm.WatchDependencies) {
		c.Cache.Invalidate(m.ID)
		return nil, false, nil
	}
	return m, true, nil
}

// watchDependenciesChanged compares each watched file with the state it had
// when the module was cached, by timestamp when enabled, else by hash.
func watchDependenciesChanged(c *core.Context, deps []cache.CachedWatchDependency) bool {
	opts := c.Cache.Options()
	for _, w := range deps {
		if opts.TimestampEnabled {
			ts, err := fs.ModTime(c.FS, w.File)
			if err != nil {
				return true
			}
			if ts == w.Timestamp {
				continue
			}
		}
		if opts.HashEnabled {
			hash, err := fs.FileHash(c.FS, w.File)
			if err != nil {
				return true
			}
			if hash == w.Hash {
				continue
			}
		}
		return true
	}
	return false
}

// CachedDeps turns the edges of a cached module back into references, in
// their original order.
func CachedDeps(cm *cache.CachedModule) []core.DepItem {
	var items []module.EdgeItem
	for _, dep := range cm.Dependencies {
		items = append(items, dep.Edge...)
	}
	slices.SortStableFunc(items, func(a, b module.EdgeItem) int {
		return cmp.Compare(a.Order, b.Order)
	})
	deps := make([]core.DepItem, len(items))
	for i, item := range items {
		deps[i] = core.DepItem{Source: item.Source, Kind: item.Kind}
	}
	return deps
}

// CacheModules stores the modules ids of graph in the persistent cache,
// together with their edges and watch dependencies. External modules are
// never cached.
func CacheModules(c *core.Context, graph *module.Graph, ids []module.ID) {
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.External {
			continue
		}
		cm := &cache.CachedModule{Module: m}
		for _, dep := range graph.Dependencies(id) {
			cm.Dependencies = append(cm.Dependencies, cache.CachedDependency{ID: dep.ID, Edge: dep.Edge})
		}
		for _, file := range c.WatchGraph.Watched(id) {
			ts, hash, _ := c.WatchGraph.Stamp(file)
			cm.WatchDependencies = append(cm.WatchDependencies, cache.CachedWatchDependency{
				File:      file,
				Timestamp: ts,
				Hash:      hash,
			})
		}
		c.Cache.SetCache(cm)
	}
}

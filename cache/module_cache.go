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

package cache

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

const modulePrefix = "module/"

// CachedDependency is an outgoing edge of a cached module.
type CachedDependency struct {
	ID   module.ID   `json:"id"`
	Edge module.Edge `json:"edge"`
}

// CachedWatchDependency is a non-module file the cached module was built
// against, with the state it had at the time.
type CachedWatchDependency struct {
	File      string `json:"file"`
	Timestamp int64  `json:"timestamp"`
	Hash      string `json:"hash"`
}

// CachedModule is a frozen module with everything needed to put it back
// into a graph without building it.
type CachedModule struct {
	Module            *module.Module          `json:"module"`
	Dependencies      []CachedDependency      `json:"dependencies"`
	WatchDependencies []CachedWatchDependency `json:"watchDependencies,omitempty"`
}

// Options select the invalidation modes of a ModuleCache.
type Options struct {
	TimestampEnabled bool
	HashEnabled      bool
}

// ModuleCache maps module ids to cached modules. It is safe for
// concurrent use.
type ModuleCache struct {
	opts Options

	mu      sync.RWMutex
	modules map[module.ID]*CachedModule
	// dirty holds ids set since the last Load or Write; removed holds ids
	// invalidated since then.
	dirty   set.Set[module.ID]
	removed set.Set[module.ID]
}

// NewModuleCache creates an empty cache.
func NewModuleCache(opts Options) *ModuleCache {
	return &ModuleCache{
		opts:    opts,
		modules: make(map[module.ID]*CachedModule),
		dirty:   set.New[module.ID](),
		removed: set.New[module.ID](),
	}
}

// Options returns the invalidation modes.
func (c *ModuleCache) Options() Options {
	return c.opts
}

// HasCache reports whether id has an entry.
func (c *ModuleCache) HasCache(id module.ID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.modules[id]
	return ok
}

// Len returns the number of entries.
func (c *ModuleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

// IsCacheChanged reports whether m differs in content from its cached
// version, or has none.
func (c *ModuleCache) IsCacheChanged(m *module.Module) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.modules[m.ID]
	return !ok || cached.Module.ContentHash != m.ContentHash
}

// GetModuleCacheByTimestamp returns a copy of the entry for id if
// timestamp checking is enabled and the stored timestamp equals ts.
func (c *ModuleCache) GetModuleCacheByTimestamp(id module.ID, ts int64) (*CachedModule, bool) {
	if !c.opts.TimestampEnabled {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.modules[id]
	if !ok || cached.Module.LastUpdateTimestamp != ts {
		return nil, false
	}
	return cached.clone(), true
}

// GetModuleCacheByHash returns a copy of the entry for id if hash checking
// is enabled and the stored content hash equals hash.
func (c *ModuleCache) GetModuleCacheByHash(id module.ID, hash string) (*CachedModule, bool) {
	if !c.opts.HashEnabled || hash == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.modules[id]
	if !ok || cached.Module.ContentHash != hash {
		return nil, false
	}
	return cached.clone(), true
}

// Lookup applies the hit protocol: a matching timestamp hits, otherwise a
// matching content hash hits, otherwise the entry is invalidated. Pass an
// empty hash when the content has not been read yet; a miss then leaves the
// entry in place so a later hash lookup can still hit.
func (c *ModuleCache) Lookup(id module.ID, ts int64, hash string) (*CachedModule, bool) {
	if cached, ok := c.GetModuleCacheByTimestamp(id, ts); ok {
		return cached, true
	}
	if hash == "" {
		return nil, false
	}
	if cached, ok := c.GetModuleCacheByHash(id, hash); ok {
		return cached, true
	}
	// The read lock is released before invalidating.
	c.Invalidate(id)
	return nil, false
}

// SetCache stores cm under its module id.
func (c *ModuleCache) SetCache(cm *CachedModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := cm.Module.ID
	c.modules[id] = cm.clone()
	c.dirty.Add(id)
	c.removed.Remove(id)
}

// Invalidate drops the entry for id.
func (c *ModuleCache) Invalidate(id module.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.modules[id]; !ok {
		return
	}
	delete(c.modules, id)
	c.dirty.Remove(id)
	c.removed.Add(id)
}

// IDs returns every cached id, sorted.
func (c *ModuleCache) IDs() []module.ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := set.New[module.ID]()
	for id := range c.modules {
		ids.Add(id)
	}
	return ids.SortedFunc(module.ID.Compare)
}

func moduleKey(id module.ID) string {
	return modulePrefix + id.String()
}

// Load reads every module entry from store, replacing the cache contents.
func (c *ModuleCache) Load(ctx context.Context, store Store) error {
	keys, err := store.Keys(ctx, modulePrefix)
	if err != nil {
		return fmt.Errorf("listing cached modules: %w", err)
	}

	loaded := make([]*CachedModule, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, key := range keys {
		g.Go(func() error {
			data, ok, err := store.Get(gctx, key)
			if err != nil || !ok {
				return err
			}
			var cm CachedModule
			if err := Decode(data, &cm); err != nil {
				// Entries written by another version are skipped.
				return nil
			}
			if cm.Module == nil || moduleKey(cm.Module.ID) != key {
				return nil
			}
			loaded[i] = &cm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reading module cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = make(map[module.ID]*CachedModule, len(loaded))
	for _, cm := range loaded {
		if cm != nil {
			cm.Module.Reset()
			c.modules[cm.Module.ID] = cm
		}
	}
	c.dirty = set.New[module.ID]()
	c.removed = set.New[module.ID]()
	return nil
}

// Write persists the entries set or invalidated since the last Load or
// Write.
func (c *ModuleCache) Write(ctx context.Context, store Store) error {
	c.mu.Lock()
	var toWrite []*CachedModule
	for id := range c.dirty {
		toWrite = append(toWrite, c.modules[id])
	}
	toRemove := c.removed.SortedFunc(module.ID.Compare)
	c.dirty = set.New[module.ID]()
	c.removed = set.New[module.ID]()
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, cm := range toWrite {
		g.Go(func() error {
			data, err := Encode(cm)
			if err != nil {
				return err
			}
			return store.Set(gctx, moduleKey(cm.Module.ID), data)
		})
	}
	for _, id := range toRemove {
		g.Go(func() error {
			return store.Delete(gctx, moduleKey(id))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("writing module cache: %w", err)
	}
	return nil
}

func (cm *CachedModule) clone() *CachedModule {
	out := &CachedModule{
		Module:            cm.Module.Clone(),
		Dependencies:      make([]CachedDependency, len(cm.Dependencies)),
		WatchDependencies: append([]CachedWatchDependency(nil), cm.WatchDependencies...),
	}
	for i, dep := range cm.Dependencies {
		out.Dependencies[i] = CachedDependency{ID: dep.ID, Edge: dep.Edge.Clone()}
	}
	return out
}

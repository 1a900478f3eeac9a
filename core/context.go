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
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/farm-fe/farm-sub001/cache"
	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/script"
)

// Context is the state of one compilation, shared by every hook call.
//
// The module graph, group graph and resource pot map each sit behind their
// own reader-writer lock. Code running on the build worker pool must go
// through ReadModuleGraph/WriteModuleGraph; single-threaded phases may use
// the plain accessors.
type Context struct {
	Config *config.Config
	FS     fs.FileSystem
	Logger Logger

	// Cache holds modules restored from, and written to, the persistent
	// cache. ScopeStore is the plugin-facing side of the same cache.
	Cache      *cache.ModuleCache
	ScopeStore *cache.ScopeStore
	Store      cache.Store

	// Globals allocates scope marks for every script parsed in this
	// compilation.
	Globals *script.Globals

	WatchGraph *module.WatchGraph

	graphMu     sync.RWMutex
	moduleGraph *module.Graph

	groupMu    sync.RWMutex
	groupGraph *module.GroupGraph

	potMu sync.RWMutex
	pots  *resource.PotMap

	resourceMu sync.RWMutex
	resources  map[string]*resource.Resource

	warnMu   sync.Mutex
	warnings []string

	meta   sync.Map
	driver *Driver
}

// NewContext creates a compilation context over cfg. cfg must already be
// normalized.
func NewContext(cfg *config.Config, fsys fs.FileSystem, logger Logger, plugins ...Plugin) *Context {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Context{
		Config: cfg,
		FS:     fsys,
		Logger: logger,
		Cache: cache.NewModuleCache(cache.Options{
			TimestampEnabled: cfg.PersistentCache.TimestampEnabled,
			HashEnabled:      cfg.PersistentCache.HashEnabled,
		}),
		ScopeStore:  cache.NewScopeStore(),
		Globals:     script.NewGlobals(),
		WatchGraph:  module.NewWatchGraph(),
		moduleGraph: module.NewGraph(),
		groupGraph:  module.NewGroupGraph(),
		pots:        resource.NewPotMap(),
		resources:   make(map[string]*resource.Resource),
		driver:      NewDriver(plugins...),
	}
}

// Driver returns the plugin driver. Plugins may use it to call other
// hooks from inside their own.
func (c *Context) Driver() *Driver {
	return c.driver
}

// Root returns the project root.
func (c *Context) Root() string {
	return c.Config.Root
}

// Mode returns the compilation mode.
func (c *Context) Mode() module.Mode {
	return c.Config.Mode
}

// ModuleGraph returns the live module graph.
func (c *Context) ModuleGraph() *module.Graph {
	c.graphMu.RLock()
	defer c.graphMu.RUnlock()
	return c.moduleGraph
}

// SetModuleGraph replaces the live module graph.
func (c *Context) SetModuleGraph(g *module.Graph) {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	c.moduleGraph = g
}

// ReadModuleGraph runs fn holding the graph read lock. fn must not mutate
// the graph.
func (c *Context) ReadModuleGraph(fn func(*module.Graph)) {
	c.graphMu.RLock()
	defer c.graphMu.RUnlock()
	fn(c.moduleGraph)
}

// WriteModuleGraph runs fn holding the graph write lock.
func (c *Context) WriteModuleGraph(fn func(*module.Graph) error) error {
	c.graphMu.Lock()
	defer c.graphMu.Unlock()
	return fn(c.moduleGraph)
}

// ModuleGroupGraph returns the live module group graph.
func (c *Context) ModuleGroupGraph() *module.GroupGraph {
	c.groupMu.RLock()
	defer c.groupMu.RUnlock()
	return c.groupGraph
}

// SetModuleGroupGraph replaces the live module group graph.
func (c *Context) SetModuleGroupGraph(g *module.GroupGraph) {
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	c.groupGraph = g
}

// ResourcePots returns the live resource pot map.
func (c *Context) ResourcePots() *resource.PotMap {
	c.potMu.RLock()
	defer c.potMu.RUnlock()
	return c.pots
}

// SetResourcePots replaces the live resource pot map.
func (c *Context) SetResourcePots(pots *resource.PotMap) {
	c.potMu.Lock()
	defer c.potMu.Unlock()
	c.pots = pots
}

// EmitResource adds or replaces a resource.
func (c *Context) EmitResource(r *resource.Resource) {
	c.resourceMu.Lock()
	defer c.resourceMu.Unlock()
	c.resources[r.Name] = r
}

// RemoveResource deletes the resource named name.
func (c *Context) RemoveResource(name string) {
	c.resourceMu.Lock()
	defer c.resourceMu.Unlock()
	delete(c.resources, name)
}

// Resource returns the resource named name.
func (c *Context) Resource(name string) (*resource.Resource, bool) {
	c.resourceMu.RLock()
	defer c.resourceMu.RUnlock()
	r, ok := c.resources[name]
	return r, ok
}

// Resources returns every resource ordered by name.
func (c *Context) Resources() []*resource.Resource {
	c.resourceMu.RLock()
	defer c.resourceMu.RUnlock()
	names := slices.Sorted(maps.Keys(c.resources))
	out := make([]*resource.Resource, len(names))
	for i, name := range names {
		out[i] = c.resources[name]
	}
	return out
}

// ResourcesMap returns a copy of the name -> resource map.
func (c *Context) ResourcesMap() map[string]*resource.Resource {
	c.resourceMu.RLock()
	defer c.resourceMu.RUnlock()
	return maps.Clone(c.resources)
}

// ClearResources drops every resource.
func (c *Context) ClearResources() {
	c.resourceMu.Lock()
	defer c.resourceMu.Unlock()
	c.resources = make(map[string]*resource.Resource)
}

// Warn records and logs a non-fatal problem.
func (c *Context) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.warnMu.Lock()
	c.warnings = append(c.warnings, msg)
	c.warnMu.Unlock()
	c.Logger.Warning("%s", msg)
}

// Warnings returns every warning recorded so far.
func (c *Context) Warnings() []string {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	return slices.Clone(c.warnings)
}

// SetMeta stores plugin-defined state under key.
func (c *Context) SetMeta(key string, value any) {
	c.meta.Store(key, value)
}

// Meta returns plugin-defined state stored under key.
func (c *Context) Meta(key string) (any, bool) {
	return c.meta.Load(key)
}

// AddWatchFile records that from depends on a file that is not a module,
// with the file's current timestamp and hash.
func (c *Context) AddWatchFile(from module.ID, file string) {
	c.WatchGraph.AddWatch(from, file)
	ts, err := fs.ModTime(c.FS, file)
	if err != nil {
		return
	}
	hash, err := fs.FileHash(c.FS, file)
	if err != nil {
		return
	}
	c.WatchGraph.SetStamp(file, ts, hash)
}

// ModuleID builds a module id from a resolved path relative to the root.
func (c *Context) ModuleID(resolvedPath, query string) module.ID {
	return module.NewID(resolvedPath, query, c.Config.Root)
}

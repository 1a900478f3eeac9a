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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/farm-fe/farm-sub001/build"
	"github.com/farm-fe/farm-sub001/cache"
	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/module"
)

// openStore opens the persistent cache store, namespaced by the entry
// format version and the config fingerprint. It returns nil when the persistent cache is off.
func (c *Compiler) openStore() (cache.Store, error) {
	cc := c.ctx
	cfg := cc.Config.PersistentCache
	if !cfg.Enabled {
		return nil, nil
	}
	if c.store != nil {
		return c.store, nil
	}
	if cc.Store != nil {
		c.store = cc.Store
		return c.store, nil
	}

	dir := filepath.Join(cfg.CacheDir, fmt.Sprintf("v%d-%s", cache.FormatVersion, cc.Config.Fingerprint()))
	var (
		store cache.Store
		err   error
	)
	switch cfg.Store {
	case config.StoreSQLite:
		if err = cc.FS.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
		store, err = cache.NewSQLiteStore(dir + ".sqlite")
	default:
		store, err = cache.NewDiskStore(cc.FS, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening persistent cache: %w", err)
	}
	c.store = store
	cc.Store = store
	return store, nil
}

// loadCache restores the module cache, the scope store and the plugin
// caches.
func (c *Compiler) loadCache(ctx context.Context) error {
	store, err := c.openStore()
	if err != nil || store == nil {
		return err
	}
	cc := c.ctx
	if err := cc.Cache.Load(ctx, store); err != nil {
		return err
	}
	if err := cc.ScopeStore.Restore(ctx, store); err != nil {
		return err
	}

	keys, err := store.Keys(ctx, pluginCachePrefix)
	if err != nil {
		return fmt.Errorf("listing plugin caches: %w", err)
	}
	caches := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, ok, err := store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading plugin cache %s: %w", key, err)
		}
		if ok {
			caches[strings.TrimPrefix(key, pluginCachePrefix)] = data
		}
	}
	cc.Logger.Debug("loaded %d cached modules", cc.Cache.Len())
	return cc.Driver().PluginCacheLoaded(caches, cc)
}

// writeCache stores the modules built from source and everything plugins
// want persisted. It runs once all hooks succeeded.
func (c *Compiler) writeCache(ctx context.Context, built []module.ID) error {
	store, err := c.openStore()
	if err != nil || store == nil {
		return err
	}
	cc := c.ctx
	build.CacheModules(cc, cc.ModuleGraph(), built)
	if err := cc.Cache.Write(ctx, store); err != nil {
		return err
	}
	if err := cc.ScopeStore.Persist(ctx, store); err != nil {
		return err
	}
	caches, err := cc.Driver().WritePluginCache(cc)
	if err != nil {
		return err
	}
	for name, data := range caches {
		if err := store.Set(ctx, pluginCachePrefix+name, data); err != nil {
			return fmt.Errorf("writing plugin cache %s: %w", name, err)
		}
	}
	return nil
}

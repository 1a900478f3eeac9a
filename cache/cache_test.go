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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/internal/mapfs"
	"github.com/farm-fe/farm-sub001/module"
)

func cachedModule(path, content string, ts int64) *CachedModule {
	m := module.New(module.ParseID(path))
	m.Type = module.TypeFromPath(path)
	m.Content = content
	m.ContentHash = content + "-hash"
	m.LastUpdateTimestamp = ts
	return &CachedModule{
		Module: m,
		Dependencies: []CachedDependency{
			{ID: module.ParseID("dep.js"), Edge: module.Edge{{Kind: module.KindImport, Source: "./dep", Order: 0}}},
		},
		WatchDependencies: []CachedWatchDependency{{File: "/p/_vars.scss", Timestamp: 7, Hash: "h"}},
	}
}

func TestHitByTimestamp(t *testing.T) {
	c := NewModuleCache(Options{TimestampEnabled: true, HashEnabled: true})
	c.SetCache(cachedModule("a.js", "a", 100))

	got, ok := c.GetModuleCacheByTimestamp(module.ParseID("a.js"), 100)
	require.True(t, ok)
	assert.Equal(t, "a", got.Module.Content)
	assert.Len(t, got.Dependencies, 1)

	_, ok = c.GetModuleCacheByTimestamp(module.ParseID("a.js"), 101)
	assert.False(t, ok)
}

func TestHitByHashWhenTimestampDiffers(t *testing.T) {
	c := NewModuleCache(Options{TimestampEnabled: true, HashEnabled: true})
	c.SetCache(cachedModule("a.js", "a", 100))

	got, ok := c.Lookup(module.ParseID("a.js"), 200, "a-hash")
	require.True(t, ok)
	assert.Equal(t, "a", got.Module.Content)
	assert.True(t, c.HasCache(module.ParseID("a.js")))
}

func TestLookupMissInvalidates(t *testing.T) {
	c := NewModuleCache(Options{TimestampEnabled: true, HashEnabled: true})
	c.SetCache(cachedModule("a.js", "a", 100))

	_, ok := c.Lookup(module.ParseID("a.js"), 200, "")
	assert.False(t, ok)
	assert.True(t, c.HasCache(module.ParseID("a.js")), "no hash yet, entry must survive")

	_, ok = c.Lookup(module.ParseID("a.js"), 200, "other")
	assert.False(t, ok)
	assert.False(t, c.HasCache(module.ParseID("a.js")))
}

func TestDisabledModesNeverHit(t *testing.T) {
	c := NewModuleCache(Options{})
	c.SetCache(cachedModule("a.js", "a", 100))
	_, ok := c.Lookup(module.ParseID("a.js"), 100, "a-hash")
	assert.False(t, ok)
}

func TestReturnedModulesAreCopies(t *testing.T) {
	c := NewModuleCache(Options{TimestampEnabled: true})
	c.SetCache(cachedModule("a.js", "a", 1))

	got, _ := c.GetModuleCacheByTimestamp(module.ParseID("a.js"), 1)
	got.Module.Content = "mutated"
	got.Dependencies[0].Edge[0].Source = "mutated"

	again, _ := c.GetModuleCacheByTimestamp(module.ParseID("a.js"), 1)
	assert.Equal(t, "a", again.Module.Content)
	assert.Equal(t, "./dep", again.Dependencies[0].Edge[0].Source)
}

func TestIsCacheChanged(t *testing.T) {
	c := NewModuleCache(Options{HashEnabled: true})
	cm := cachedModule("a.js", "a", 1)
	assert.True(t, c.IsCacheChanged(cm.Module))
	c.SetCache(cm)
	assert.False(t, c.IsCacheChanged(cm.Module))
	changed := cm.Module.Clone()
	changed.ContentHash = "x"
	assert.True(t, c.IsCacheChanged(changed))
}

func roundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	c := NewModuleCache(Options{TimestampEnabled: true, HashEnabled: true})
	c.SetCache(cachedModule("a.js", "a", 1))
	c.SetCache(cachedModule("b.css?inline", "b", 2))
	require.NoError(t, c.Write(ctx, store))

	loaded := NewModuleCache(Options{TimestampEnabled: true, HashEnabled: true})
	require.NoError(t, loaded.Load(ctx, store))
	assert.Equal(t, []module.ID{module.ParseID("a.js"), module.ParseID("b.css?inline")}, loaded.IDs())

	got, ok := loaded.GetModuleCacheByTimestamp(module.ParseID("b.css?inline"), 2)
	require.True(t, ok)
	assert.Equal(t, "b", got.Module.Content)
	assert.Equal(t, module.TypeCss, got.Module.Type)
	assert.NotNil(t, got.Module.ModuleGroups)
	assert.Equal(t, []CachedWatchDependency{{File: "/p/_vars.scss", Timestamp: 7, Hash: "h"}}, got.WatchDependencies)

	loaded.Invalidate(module.ParseID("a.js"))
	require.NoError(t, loaded.Write(ctx, store))

	again := NewModuleCache(Options{TimestampEnabled: true})
	require.NoError(t, again.Load(ctx, store))
	assert.Equal(t, []module.ID{module.ParseID("b.css?inline")}, again.IDs())
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	roundTrip(t, NewMemoryStore())
}

func TestDiskStoreRoundTrip(t *testing.T) {
	fsys := mapfs.New()
	store, err := NewDiskStore(fsys, "/project/node_modules/.farm/cache")
	require.NoError(t, err)
	roundTrip(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewDiskStore(fsys, "/project/node_modules/.farm/cache")
	require.NoError(t, err)
	keys, err := reopened.Keys(context.Background(), modulePrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"module/b.css?inline"}, keys)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()
	roundTrip(t, store)
}

func TestCodec(t *testing.T) {
	in := map[string][]int{"a": {1, 2}}
	data, err := Encode(in)
	require.NoError(t, err)

	var out map[string][]int
	require.NoError(t, Decode(data, &out))
	assert.Equal(t, in, out)

	assert.Error(t, Decode([]byte("not zstd"), &out))
}

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

package packagejson_test

import (
	"sync"
	"testing"

	"github.com/farm-fe/farm-sub001/packagejson"
	"github.com/farm-fe/farm-sub001/testutil"
)

func TestCacheNearest(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"package.json":                         `{"name":"app","version":"0.0.1"}`,
		"node_modules/lit/package.json":        `{"name":"lit","version":"3.1.0"}`,
		"node_modules/lit/lib/decorators/a.js": ``,
	})
	cache := packagejson.NewCache(mfs)

	pkg := cache.Nearest("/project/node_modules/lit/lib/decorators")
	if pkg == nil || pkg.Name != "lit" {
		t.Fatalf("expected lit, got %+v", pkg)
	}
	if pkg := cache.Nearest("/project/src"); pkg == nil || pkg.Name != "app" {
		t.Fatalf("expected app, got %+v", pkg)
	}
	if pkg := packagejson.NewCache(testutil.NewProject(t, nil)).Nearest("/project/src"); pkg != nil {
		t.Errorf("expected no package, got %+v", pkg)
	}
}

func TestCacheInvalidateAllowsReload(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"package.json": `{"name":"app","version":"1.0.0"}`,
	})
	cache := packagejson.NewCache(mfs)

	pkg, err := cache.Load("/project/package.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pkg.Version != "1.0.0" {
		t.Fatalf("Version = %q", pkg.Version)
	}

	mfs.UpdateFile("/project/package.json", `{"name":"app","version":"2.0.0"}`)
	if pkg, _ := cache.Load("/project/package.json"); pkg.Version != "1.0.0" {
		t.Errorf("expected cached version, got %q", pkg.Version)
	}

	cache.Invalidate("/project/package.json")
	if pkg, _ := cache.Load("/project/package.json"); pkg.Version != "2.0.0" {
		t.Errorf("expected reloaded version, got %q", pkg.Version)
	}
}

func TestCacheConcurrentLoad(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"package.json": `{"name":"app"}`,
	})
	cache := packagejson.NewCache(mfs)

	var wg sync.WaitGroup
	results := make([]*packagejson.PackageJSON, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Load("/project/package.json")
		}(i)
	}
	wg.Wait()

	for i, pkg := range results {
		if pkg != results[0] {
			t.Errorf("result %d is a different instance", i)
		}
	}
}

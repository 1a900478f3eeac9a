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

package packagejson

import (
	"path"
	"sync"

	"github.com/farm-fe/farm-sub001/fs"
)

// cacheEntry holds a cached value and coordinates concurrent loading.
type cacheEntry struct {
	pkg  *PackageJSON
	err  error
	once sync.Once
}

// Cache memoizes parsed package.json files by path. Misses are cached too,
// so walking up from many files in one package reads each candidate once.
// It is safe for concurrent use.
type Cache struct {
	fsys    fs.FileSystem
	entries sync.Map // path -> *cacheEntry
}

// NewCache creates a cache reading through fsys.
func NewCache(fsys fs.FileSystem) *Cache {
	return &Cache{fsys: fsys}
}

// Load returns the package.json at file. Only one goroutine parses a given
// file; others wait for its result.
func (c *Cache) Load(file string) (*PackageJSON, error) {
	actual, _ := c.entries.LoadOrStore(file, &cacheEntry{})
	entry := actual.(*cacheEntry)
	entry.once.Do(func() {
		if !fs.IsFile(c.fsys, file) {
			entry.err = errNoPackage
			return
		}
		entry.pkg, entry.err = ParseFile(c.fsys, file)
	})
	return entry.pkg, entry.err
}

// Nearest returns the closest package.json at or above dir, or nil when
// there is none. Files that fail to parse are skipped.
func (c *Cache) Nearest(dir string) *PackageJSON {
	for {
		if pkg, err := c.Load(path.Join(dir, "package.json")); err == nil {
			return pkg
		}
		parent := path.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// Invalidate forgets file, typically because it changed on disk.
func (c *Cache) Invalidate(file string) {
	c.entries.Delete(file)
}

// Clear forgets every file.
func (c *Cache) Clear() {
	c.entries.Clear()
}

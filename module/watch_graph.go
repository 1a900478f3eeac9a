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

package module

import (
	"maps"
	"slices"
	"sync"
)

// WatchGraph tracks files that are not modules but still affect how a
// module compiles, such as partials pulled in by a preprocessor. It is
// filled from plugin hooks while modules build and consulted when a watched
// file changes.
type WatchGraph struct {
	mu sync.RWMutex

	// watching maps module id -> set of watched file paths
	// e.g., "src/app.scss" -> {"/abs/src/_vars.scss": true}
	watching map[ID]map[string]bool

	// watchers maps watched file path -> set of modules watching it
	watchers map[string]map[ID]bool

	// timestamps maps watched file path -> modification time in
	// nanoseconds recorded when it was added
	timestamps map[string]int64

	// hashes maps watched file path -> content hash recorded when it was
	// added
	hashes map[string]string
}

// NewWatchGraph creates an empty watch graph.
func NewWatchGraph() *WatchGraph {
	return &WatchGraph{
		watching:   make(map[ID]map[string]bool),
		watchers:   make(map[string]map[ID]bool),
		timestamps: make(map[string]int64),
		hashes:     make(map[string]string),
	}
}

// AddWatch records that module watches file.
// Updates both directions of the relation.
func (g *WatchGraph) AddWatch(module ID, file string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.watching[module] == nil {
		g.watching[module] = make(map[string]bool)
	}
	g.watching[module][file] = true

	if g.watchers[file] == nil {
		g.watchers[file] = make(map[ID]bool)
	}
	g.watchers[file][module] = true
}

// SetStamp records the timestamp and hash a watched file had when the
// watching modules were built.
func (g *WatchGraph) SetStamp(file string, timestamp int64, hash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.timestamps[file] = timestamp
	g.hashes[file] = hash
}

// Stamp returns the recorded timestamp and hash of file.
func (g *WatchGraph) Stamp(file string) (int64, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ts, ok := g.timestamps[file]
	return ts, g.hashes[file], ok
}

// IsWatched reports whether any module watches file.
func (g *WatchGraph) IsWatched(file string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.watchers[file]) > 0
}

// Watched returns the files module watches, sorted.
func (g *WatchGraph) Watched(module ID) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	files := make([]string, 0, len(g.watching[module]))
	for file := range g.watching[module] {
		files = append(files, file)
	}
	slices.Sort(files)
	return files
}

// Watchers returns the modules that directly watch file.
func (g *WatchGraph) Watchers(file string) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]ID, 0, len(g.watchers[file]))
	for id := range g.watchers[file] {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ID.Compare)
	return ids
}

// Files returns every watched file, sorted.
func (g *WatchGraph) Files() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	files := make([]string, 0, len(g.watchers))
	for file, ids := range g.watchers {
		if len(ids) > 0 {
			files = append(files, file)
		}
	}
	slices.Sort(files)
	return files
}

// RelatedModules returns every module that must be rebuilt when file
// changes. A watched file may itself be watched through another module, so
// the lookup follows watchers of watchers breadth-first.
func (g *WatchGraph) RelatedModules(file string) []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[ID]bool)
	queue := []string{file}
	seenFiles := map[string]bool{file: true}
	var result []ID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for id := range g.watchers[current] {
			if visited[id] {
				continue
			}
			visited[id] = true
			result = append(result, id)
			// A module watched by path is also reachable as a file.
			if p := id.RelativePath(); !seenFiles[p] {
				seenFiles[p] = true
				queue = append(queue, p)
			}
		}
	}

	slices.SortFunc(result, ID.Compare)
	return result
}

// Clone creates a deep copy of the watch graph.
func (g *WatchGraph) Clone() *WatchGraph {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clone := NewWatchGraph()

	for id, files := range g.watching {
		clone.watching[id] = make(map[string]bool, len(files))
		maps.Copy(clone.watching[id], files)
	}

	for file, ids := range g.watchers {
		clone.watchers[file] = make(map[ID]bool, len(ids))
		maps.Copy(clone.watchers[file], ids)
	}

	maps.Copy(clone.timestamps, g.timestamps)
	maps.Copy(clone.hashes, g.hashes)

	return clone
}

// RemoveModule removes a module and all its watch relations.
// Returns the files no module watches any more.
func (g *WatchGraph) RemoveModule(module ID) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var orphaned []string
	for file := range g.watching[module] {
		delete(g.watchers[file], module)
		if len(g.watchers[file]) == 0 {
			delete(g.watchers, file)
			delete(g.timestamps, file)
			delete(g.hashes, file)
			orphaned = append(orphaned, file)
		}
	}
	delete(g.watching, module)

	slices.Sort(orphaned)
	return orphaned
}

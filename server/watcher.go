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

package server

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/farm-fe/farm-sub001/core"
)

// DefaultIgnore lists the globs a watcher never reports.
var DefaultIgnore = []string{"**/node_modules/**", "**/.git/**", "**/.farm/**"}

// Watcher observes the directories of a set of files and reports their
// changes in debounced batches. fsnotify watches directories, so sibling
// files are reported as well; the compiler ignores paths it does not know.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
	logger   core.Logger

	mu   sync.Mutex
	dirs map[string]int
}

// NewWatcher starts an fsnotify watcher. ignore defaults to DefaultIgnore.
func NewWatcher(debounce time.Duration, ignore []string, logger core.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	if ignore == nil {
		ignore = DefaultIgnore
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		ignore:   ignore,
		logger:   logger,
		dirs:     make(map[string]int),
	}, nil
}

func (w *Watcher) ignored(path string) bool {
	p := filepath.ToSlash(path)
	for _, pattern := range w.ignore {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Add watches the directories of files. Directories are reference counted
// so Remove only stops watching a directory once no file in it is left.
func (w *Watcher) Add(files ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range files {
		if w.ignored(f) {
			continue
		}
		dir := filepath.Dir(f)
		w.dirs[dir]++
		if w.dirs[dir] > 1 {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			delete(w.dirs, dir)
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return nil
}

// Remove releases the directories of files added before.
func (w *Watcher) Remove(files ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range files {
		dir := filepath.Dir(f)
		n, ok := w.dirs[dir]
		if !ok {
			continue
		}
		if n > 1 {
			w.dirs[dir] = n - 1
			continue
		}
		delete(w.dirs, dir)
		_ = w.fsw.Remove(dir)
	}
}

// Dirs lists the watched directories.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		out = append(out, dir)
	}
	slices.Sort(out)
	return out
}

// updateType maps an fsnotify op to the compiler's change kind.
func updateType(op fsnotify.Op) (core.UpdateType, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return core.UpdateRemoved, true
	case op.Has(fsnotify.Create):
		return core.UpdateAdded, true
	case op.Has(fsnotify.Write):
		return core.UpdateUpdated, true
	}
	return "", false
}

// merge folds a new event into the pending kind of a path. A file created
// and written within one batch stays added; one removed and created again
// was updated.
func merge(prev, next core.UpdateType) core.UpdateType {
	switch {
	case prev == core.UpdateAdded && next == core.UpdateUpdated:
		return core.UpdateAdded
	case prev == core.UpdateRemoved && next == core.UpdateAdded:
		return core.UpdateUpdated
	}
	return next
}

// Run reports batches of changes to fn until ctx is done or the watcher is
// closed. fn runs on the watcher goroutine; events arriving meanwhile are
// collected into the next batch.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, []core.UpdatePath)) error {
	pending := make(map[string]core.UpdateType)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			typ, ok := updateType(ev.Op)
			if !ok {
				continue
			}
			if prev, seen := pending[ev.Name]; seen {
				typ = merge(prev, typ)
			}
			pending[ev.Name] = typ
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("file watcher: %v", err)
		case <-fire:
			fire = nil
			batch := make([]core.UpdatePath, 0, len(pending))
			for path, typ := range pending {
				batch = append(batch, core.UpdatePath{Path: path, Type: typ})
			}
			slices.SortFunc(batch, func(a, b core.UpdatePath) int {
				return strings.Compare(a.Path, b.Path)
			})
			clear(pending)
			fn(ctx, batch)
		}
	}
}

// Close stops the watcher; Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

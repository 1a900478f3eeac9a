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

// Package build drives the per-module pipeline that fills a module graph:
// resolve, load, transform, parse, process, analyze deps, finalize and
// freeze, with modules restored from the persistent cache where possible.
package build

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

// Entry is a module the build starts from.
type Entry struct {
	// Name registers the module as a named entry. An empty name builds the
	// module without registering it, as update sub-builds do.
	Name   string
	Source string
	// Kind defaults to module.KindEntry.
	Kind module.ResolveKind
}

// Options tune a build.
type Options struct {
	// Graph receives the built modules. Nil means the context's live graph.
	Graph *module.Graph
	// Existing reports modules that already live in the compilation. A
	// dependency for which it returns true becomes a placeholder node and is
	// not built. Entries are always built.
	Existing func(module.ID) bool
}

// Result summarizes a build.
type Result struct {
	Graph *module.Graph
	// Entries holds the id of each entry, in the order they were given.
	Entries []module.ID
	// Built lists the modules that went through the pipeline; Cached the
	// ones restored from the persistent cache.
	Built  []module.ID
	Cached []module.ID
}

// task is one reference waiting to be resolved and, if new, built.
type task struct {
	source   string
	importer module.ID
	kind     module.ResolveKind
	order    int
	// entry is the index into the entry list, or -1.
	entry int
	name  string
}

// Builder builds modules into a graph. A Builder runs one build.
type Builder struct {
	ctx  *core.Context
	opts Options
	live bool

	mu      sync.Mutex // guards graph when it is not the live graph
	graph   *module.Graph
	visited set.Set[module.ID]

	resMu   sync.Mutex
	entries []module.ID
	built   []module.ID
	cached  []module.ID
}

// New returns a builder over c.
func New(c *core.Context, opts Options) *Builder {
	b := &Builder{ctx: c, opts: opts, visited: set.New[module.ID]()}
	if opts.Graph == nil {
		b.graph = c.ModuleGraph()
		b.live = true
	} else {
		b.graph = opts.Graph
	}
	return b
}

// Build resolves and builds entries and everything they depend on. Modules
// are processed breadth-first, one level at a time, each level on a worker
// pool bounded by GOMAXPROCS. The first error aborts the build.
func Build(ctx context.Context, c *core.Context, entries []Entry, opts Options) (*Result, error) {
	return New(c, opts).Build(ctx, entries)
}

// Build runs the pipeline; see the package-level Build.
func (b *Builder) Build(ctx context.Context, entries []Entry) (*Result, error) {
	b.entries = make([]module.ID, len(entries))

	level := make([]task, len(entries))
	for i, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = module.KindEntry
		}
		level[i] = task{source: e.Source, kind: kind, entry: i, name: e.Name}
	}

	for len(level) > 0 {
		resolved := make([]*core.ResolveResult, len(level))
		if err := b.each(ctx, len(level), func(i int) error {
			res, err := b.resolve(level[i])
			resolved[i] = res
			return err
		}); err != nil {
			return nil, err
		}

		// Graph mutations happen here, in task order, so that entries,
		// insertion order and edges do not depend on scheduling.
		ids := make([]module.ID, len(level))
		fresh := make([]bool, len(level))
		for i, t := range level {
			ids[i] = b.ctx.ModuleID(resolved[i].ResolvedPath, resolved[i].Query)
			if t.entry >= 0 {
				b.entries[t.entry] = ids[i]
			}
			fresh[i] = b.claim(t, ids[i])
		}

		next := make([][]task, len(level))
		if err := b.each(ctx, len(level), func(i int) error {
			if !fresh[i] {
				return nil
			}
			children, err := b.run(level[i], ids[i], resolved[i])
			next[i] = children
			return err
		}); err != nil {
			return nil, err
		}
		level = slices.Concat(next...)
	}

	b.write(func(g *module.Graph) {
		g.UpdateExecutionOrder()
	})

	return &Result{
		Graph:   b.graph,
		Entries: b.entries,
		Built:   b.built,
		Cached:  b.cached,
	}, nil
}

// write runs fn holding the lock that guards the target graph.
func (b *Builder) write(fn func(*module.Graph)) {
	if b.live {
		_ = b.ctx.WriteModuleGraph(func(g *module.Graph) error {
			fn(g)
			return nil
		})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.graph)
}

// each runs fn for 0..n-1 on a worker pool bounded by GOMAXPROCS.
func (b *Builder) each(ctx context.Context, n int, fn func(int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}

func (b *Builder) resolve(t task) (*core.ResolveResult, error) {
	res, err := b.ctx.Driver().Resolve(&core.ResolveParam{
		Source:   t.source,
		Importer: t.importer,
		Kind:     t.kind,
	}, b.ctx, nil)
	if err != nil {
		return nil, &core.ResolveError{Source: t.source, Importer: t.importer, Err: err}
	}
	if res == nil {
		return nil, &core.ResolveError{Source: t.source, Importer: t.importer}
	}
	return res, nil
}

// run builds the module t claimed first and returns the references of the
// module, if any.
func (b *Builder) run(t task, id module.ID, res *core.ResolveResult) ([]task, error) {
	if t.entry < 0 && b.opts.Existing != nil && b.opts.Existing(id) {
		return nil, nil
	}

	m := module.New(id)
	m.ResolvedPath = res.ResolvedPath
	m.External = res.External
	m.SideEffects = res.SideEffects
	m.PackageName = res.PackageName
	m.PackageVersion = res.PackageVersion
	m.Immutable = isImmutable(res.ResolvedPath)

	if m.External {
		b.insert(m)
		return nil, nil
	}

	deps, cached, err := b.buildModule(m, res)
	if err != nil {
		return nil, err
	}

	b.resMu.Lock()
	if cached {
		b.cached = append(b.cached, id)
	} else {
		b.built = append(b.built, id)
	}
	b.resMu.Unlock()

	children := make([]task, len(deps))
	for i, dep := range deps {
		children[i] = task{source: dep.Source, importer: id, kind: dep.Kind, order: i, entry: -1}
	}
	return children, nil
}

// claim records the edge for t and reports whether id is seen for the first
// time, in which case a placeholder now stands for it in the graph.
func (b *Builder) claim(t task, id module.ID) bool {
	var fresh bool
	b.write(func(g *module.Graph) {
		fresh = b.visited.Add(id) && !g.HasModule(id)
		if fresh {
			g.AddModule(module.NewPlaceholder(id))
		}
		if t.entry >= 0 && t.name != "" {
			g.SetEntry(id, t.name)
		}
		if t.kind == module.KindDynamicEntry {
			g.SetDynamicEntry(id, dynamicEntryName(id))
		}
		if !t.importer.IsZero() {
			_ = g.AddEdgeItem(t.importer, id, module.EdgeItem{Kind: t.kind, Source: t.source, Order: t.order})
		}
	})
	return fresh
}

// insert swaps the built module in for its placeholder.
func (b *Builder) insert(m *module.Module) {
	b.write(func(g *module.Graph) {
		if prev := g.Module(m.ID); prev != nil {
			m.IsEntry = prev.IsEntry
			m.IsDynamicEntry = prev.IsDynamicEntry
		}
		g.AddModule(m)
	})
}

// buildModule runs the pipeline for m, or restores m from the cache, and
// returns its dependencies.
func (b *Builder) buildModule(m *module.Module, res *core.ResolveResult) ([]core.DepItem, bool, error) {
	c := b.ctx
	useCache := c.Config.PersistentCache.Enabled && c.Cache.HasCache(m.ID)

	if ts, err := fs.ModTime(c.FS, m.ResolvedPath); err == nil {
		m.LastUpdateTimestamp = ts
	}
	if useCache {
		if cm, ok := c.Cache.Lookup(m.ID, m.LastUpdateTimestamp, ""); ok {
			restored, deps, err := b.restore(cm, m)
			if err != nil || restored {
				return deps, restored, err
			}
		}
	}

	loaded, err := c.Driver().Load(&core.LoadParam{
		ModuleID:     m.ID,
		ResolvedPath: m.ResolvedPath,
		Query:        m.ID.Query(),
		Meta:         res.Meta,
	}, c, nil)
	if err != nil {
		return nil, false, &core.LoadError{ResolvedPath: m.ResolvedPath, Err: err}
	}
	if loaded == nil {
		return nil, false, &core.LoadError{ResolvedPath: m.ResolvedPath}
	}
	m.ContentHash = fs.ContentHash([]byte(loaded.Content))

	if useCache && c.Cache.HasCache(m.ID) {
		if cm, ok := c.Cache.Lookup(m.ID, m.LastUpdateTimestamp, m.ContentHash); ok {
			restored, deps, err := b.restore(cm, m)
			if err != nil || restored {
				return deps, restored, err
			}
		}
	}

	moduleType := loaded.ModuleType
	if moduleType == "" {
		moduleType = module.TypeFromPath(m.ResolvedPath)
	}
	tp := &core.TransformParam{
		ModuleID:     m.ID,
		ResolvedPath: m.ResolvedPath,
		Query:        m.ID.Query(),
		Content:      loaded.Content,
		ModuleType:   moduleType,
		Meta:         res.Meta,
	}
	if loaded.SourceMap != "" {
		tp.SourceMapChain = []string{loaded.SourceMap}
	}
	if err := c.Driver().Transform(tp, c); err != nil {
		return nil, false, &core.TransformError{ResolvedPath: m.ResolvedPath, Msg: err.Error(), Err: err}
	}
	m.Type = tp.ModuleType
	m.Content = tp.Content
	m.Size = len(tp.Content)
	m.SourceMapChain = tp.SourceMapChain

	meta, err := c.Driver().Parse(&core.ParseParam{
		ModuleID:     m.ID,
		ResolvedPath: m.ResolvedPath,
		Query:        m.ID.Query(),
		ModuleType:   m.Type,
		Content:      m.Content,
	}, c, nil)
	if err != nil {
		return nil, false, &core.ParseError{ResolvedPath: m.ResolvedPath, Msg: err.Error(), Err: err}
	}
	if meta == nil {
		return nil, false, &core.ParseError{ResolvedPath: m.ResolvedPath, Msg: fmt.Sprintf("no plugin parses module type %q", m.Type)}
	}
	m.Meta = *meta

	if err := c.Driver().ProcessModule(m, c); err != nil {
		return nil, false, err
	}
	param := &core.ModuleDepsParam{Module: m}
	if err := c.Driver().AnalyzeDeps(param, c); err != nil {
		return nil, false, err
	}
	if err := c.Driver().FinalizeModule(param, c); err != nil {
		return nil, false, err
	}
	if err := c.Driver().FreezeModule(m, c); err != nil {
		return nil, false, err
	}

	b.insert(m)
	return param.Deps, false, nil
}

// isImmutable reports whether a resolved path belongs to an installed
// package.
func isImmutable(resolvedPath string) bool {
	return strings.Contains(filepath.ToSlash(resolvedPath), "/node_modules/")
}

// dynamicEntryName derives the registration name of a dynamic entry from
// its file name.
func dynamicEntryName(id module.ID) string {
	base := path.Base(id.RelativePath())
	return strings.TrimSuffix(base, path.Ext(base))
}

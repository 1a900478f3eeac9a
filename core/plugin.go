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

// Package core holds the compilation context, the plugin contract and the
// driver that dispatches plugin hooks.
package core

import (
	"slices"

	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// DefaultPriority is the priority of plugins that do not declare one.
const DefaultPriority = 100

// Plugin is the only method every plugin must have. A plugin takes part
// in a hook by also implementing that hook's interface.
type Plugin interface {
	Name() string
}

// Prioritized plugins run before (lower) or after (higher) the default.
type Prioritized interface {
	Priority() int
}

// PriorityOf returns the priority of p.
func PriorityOf(p Plugin) int {
	if pp, ok := p.(Prioritized); ok {
		return pp.Priority()
	}
	return DefaultPriority
}

// HookContext travels with a hook call so that a plugin invoking the driver
// from inside a hook can tell it is being called back.
type HookContext struct {
	Callers []string
	Meta    map[string]string
}

// ContainCaller reports whether name is somewhere up the call chain.
func (hc *HookContext) ContainCaller(name string) bool {
	return hc != nil && slices.Contains(hc.Callers, name)
}

// WithCaller returns a copy of hc with name appended to the call chain.
func (hc *HookContext) WithCaller(name string) *HookContext {
	next := &HookContext{Meta: map[string]string{}}
	if hc != nil {
		next.Callers = append(slices.Clone(hc.Callers), name)
		for k, v := range hc.Meta {
			next.Meta[k] = v
		}
	} else {
		next.Callers = []string{name}
	}
	return next
}

// ResolveParam is the input of the resolve hook.
type ResolveParam struct {
	Source string
	// Importer is zero for entries.
	Importer module.ID
	Kind     module.ResolveKind
}

// ResolveResult is the output of the resolve hook.
type ResolveResult struct {
	ResolvedPath string
	External     bool
	SideEffects  bool
	// Query is the query string including "?", or "".
	Query string
	Meta  map[string]string
	// PackageName and PackageVersion come from the nearest package.json.
	PackageName    string
	PackageVersion string
}

// LoadParam is the input of the load hook.
type LoadParam struct {
	ModuleID     module.ID
	ResolvedPath string
	Query        string
	Meta         map[string]string
}

// LoadResult is the output of the load hook.
type LoadResult struct {
	Content    string
	ModuleType module.Type
	SourceMap  string
}

// TransformParam is threaded through every transform hook.
type TransformParam struct {
	ModuleID       module.ID
	ResolvedPath   string
	Query          string
	Content        string
	ModuleType     module.Type
	Meta           map[string]string
	SourceMapChain []string
}

// TransformResult is what one transform hook changed.
type TransformResult struct {
	Content string
	// ModuleType replaces the module type when set.
	ModuleType module.Type
	SourceMap  string
	// IgnorePreviousSourceMap drops the chain collected so far.
	IgnorePreviousSourceMap bool
}

// ParseParam is the input of the parse hook.
type ParseParam struct {
	ModuleID     module.ID
	ResolvedPath string
	Query        string
	ModuleType   module.Type
	Content      string
}

// DepItem is one dependency found by analyze_deps.
type DepItem struct {
	Source string
	Kind   module.ResolveKind
}

// ModuleDepsParam is threaded through analyze_deps and finalize_module.
type ModuleDepsParam struct {
	Module *module.Module
	Deps   []DepItem
}

// RenderedPot is the output of render_resource_pot.
type RenderedPot struct {
	Content   string
	SourceMap string
}

// GeneratedResources is the output of generate_resources.
type GeneratedResources struct {
	Resource  *resource.Resource
	SourceMap *resource.Resource
}

// EntryResourceParam is threaded through handle_entry_resource.
type EntryResourceParam struct {
	Resource    *resource.Resource
	EntryModule module.ID
	// InitialResources are the resources the entry loads before it runs.
	InitialResources []string
}

// UpdateType says how a watched path changed.
type UpdateType string

const (
	UpdateAdded   UpdateType = "added"
	UpdateUpdated UpdateType = "updated"
	UpdateRemoved UpdateType = "removed"
)

// UpdatePath is one changed path.
type UpdatePath struct {
	Path string
	Type UpdateType
}

// UpdateModulesParam is threaded through update_modules. Plugins may add
// or rewrite paths, e.g. to map a changed partial to its importers.
type UpdateModulesParam struct {
	Paths []UpdatePath
}

// ModuleGraphUpdatedParam reports what an update changed.
type ModuleGraphUpdatedParam struct {
	Added   []module.ID
	Updated []module.ID
	Removed []module.ID
}

// First-match hooks. A nil result with a nil error means "not handled".

type ResolveHook interface {
	Plugin
	Resolve(p *ResolveParam, ctx *Context, hc *HookContext) (*ResolveResult, error)
}

type LoadHook interface {
	Plugin
	Load(p *LoadParam, ctx *Context, hc *HookContext) (*LoadResult, error)
}

type ParseHook interface {
	Plugin
	Parse(p *ParseParam, ctx *Context, hc *HookContext) (*module.Meta, error)
}

type AnalyzeModuleGraphHook interface {
	Plugin
	AnalyzeModuleGraph(graph *module.Graph, ctx *Context, hc *HookContext) (*module.GroupGraph, error)
}

type PartialBundlingHook interface {
	Plugin
	PartialBundling(modules []module.ID, ctx *Context, hc *HookContext) ([]*resource.ResourcePot, error)
}

type RenderResourcePotHook interface {
	Plugin
	RenderResourcePot(pot *resource.ResourcePot, ctx *Context, hc *HookContext) (*RenderedPot, error)
}

type GenerateResourcesHook interface {
	Plugin
	GenerateResources(pot *resource.ResourcePot, ctx *Context, hc *HookContext) (*GeneratedResources, error)
}

// Serial hooks. Each plugin sees the parameter as the previous one left it.

type TransformHook interface {
	Plugin
	Transform(p *TransformParam, ctx *Context) (*TransformResult, error)
}

type ProcessModuleHook interface {
	Plugin
	ProcessModule(m *module.Module, ctx *Context) error
}

type AnalyzeDepsHook interface {
	Plugin
	AnalyzeDeps(p *ModuleDepsParam, ctx *Context) error
}

type FinalizeModuleHook interface {
	Plugin
	FinalizeModule(p *ModuleDepsParam, ctx *Context) error
}

type FreezeModuleHook interface {
	Plugin
	FreezeModule(m *module.Module, ctx *Context) error
}

type ModuleGraphBuildEndHook interface {
	Plugin
	ModuleGraphBuildEnd(graph *module.Graph, ctx *Context) error
}

type OptimizeModuleGraphHook interface {
	Plugin
	OptimizeModuleGraph(graph *module.Graph, ctx *Context) error
}

type ProcessResourcePotsHook interface {
	Plugin
	ProcessResourcePots(pots []*resource.ResourcePot, ctx *Context) error
}

type OptimizeResourcePotHook interface {
	Plugin
	OptimizeResourcePot(pot *resource.ResourcePot, ctx *Context) error
}

type ProcessGeneratedResourcesHook interface {
	Plugin
	ProcessGeneratedResources(res *GeneratedResources, pot *resource.ResourcePot, ctx *Context) error
}

type HandleEntryResourceHook interface {
	Plugin
	HandleEntryResource(p *EntryResourceParam, ctx *Context) error
}

type FinalizeResourcesHook interface {
	Plugin
	FinalizeResources(resources map[string]*resource.Resource, ctx *Context) error
}

type UpdateModulesHook interface {
	Plugin
	UpdateModules(p *UpdateModulesParam, ctx *Context) error
}

type ModuleGraphUpdatedHook interface {
	Plugin
	ModuleGraphUpdated(p *ModuleGraphUpdatedParam, ctx *Context) error
}

// HandlePersistentCachedModuleHook may veto a module restored from the
// persistent cache by returning true.
type HandlePersistentCachedModuleHook interface {
	Plugin
	HandlePersistentCachedModule(m *module.Module, ctx *Context) (bool, error)
}

// Notify hooks.

type BuildStartHook interface {
	Plugin
	BuildStart(ctx *Context) error
}

type BuildEndHook interface {
	Plugin
	BuildEnd(ctx *Context) error
}

type GenerateStartHook interface {
	Plugin
	GenerateStart(ctx *Context) error
}

type GenerateEndHook interface {
	Plugin
	GenerateEnd(ctx *Context) error
}

type RenderStartHook interface {
	Plugin
	RenderStart(ctx *Context) error
}

type FinishHook interface {
	Plugin
	Finish(ctx *Context) error
}

type UpdateFinishedHook interface {
	Plugin
	UpdateFinished(ctx *Context) error
}

// PluginCacheLoadedHook receives the bytes the plugin wrote to the
// persistent cache in a previous run.
type PluginCacheLoadedHook interface {
	Plugin
	PluginCacheLoaded(data []byte, ctx *Context) error
}

// WritePluginCacheHook returns bytes to persist for the next run; nil
// writes nothing.
type WritePluginCacheHook interface {
	Plugin
	WritePluginCache(ctx *Context) ([]byte, error)
}

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
	"math"

	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/script"
)

// Module is one node of the module graph.
type Module struct {
	ID   ID   `json:"id"`
	Type Type `json:"moduleType"`
	// ResolvedPath is the absolute path the module was loaded from; it may
	// be a virtual path.
	ResolvedPath   string   `json:"resolvedPath"`
	Meta           Meta     `json:"meta"`
	SideEffects    bool     `json:"sideEffects"`
	SourceMapChain []string `json:"sourceMapChain,omitempty"`
	External       bool     `json:"external"`
	Immutable      bool     `json:"immutable"`
	IsEntry        bool     `json:"isEntry"`
	IsDynamicEntry bool     `json:"isDynamicEntry"`
	// ExecutionOrder is assigned by UpdateExecutionOrder; math.MaxInt until
	// then.
	ExecutionOrder int    `json:"executionOrder"`
	Size           int    `json:"size"`
	Content        string `json:"content"`
	// ContentHash is the hash of the loaded content and keys the cache.
	ContentHash string `json:"contentHash"`
	// LastUpdateTimestamp is the source file modification time, in
	// nanoseconds, when the module was built.
	LastUpdateTimestamp int64  `json:"lastUpdateTimestamp"`
	PackageName         string `json:"packageName,omitempty"`
	PackageVersion      string `json:"packageVersion,omitempty"`

	// UsedExports is cleared on every build and filled by tree shaking.
	UsedExports []string `json:"-"`
	// ModuleGroups and ResourcePots are rebuilt from the graph and never
	// persisted.
	ModuleGroups set.Set[GroupID] `json:"-"`
	ResourcePots set.Set[string]  `json:"-"`
}

// New returns an empty module with the defaults a freshly resolved module
// starts with.
func New(id ID) *Module {
	return &Module{
		ID:             id,
		ExecutionOrder: math.MaxInt,
		ModuleGroups:   set.New[GroupID](),
		ResourcePots:   set.New[string](),
	}
}

// NewPlaceholder returns the empty stand-in inserted into a graph for a
// dependency that is not built yet.
func NewPlaceholder(id ID) *Module {
	return New(id)
}

// Reset clears the derived state a module carries over from a previous
// build, as done when it is restored from the cache.
func (m *Module) Reset() {
	m.ExecutionOrder = math.MaxInt
	m.UsedExports = nil
	m.ModuleGroups = set.New[GroupID]()
	m.ResourcePots = set.New[string]()
}

// Clone returns a copy sharing the immutable metadata but with independent
// group and pot membership.
func (m *Module) Clone() *Module {
	c := *m
	c.ModuleGroups = m.ModuleGroups.Clone()
	c.ResourcePots = m.ResourcePots.Clone()
	c.UsedExports = append([]string(nil), m.UsedExports...)
	c.SourceMapChain = append([]string(nil), m.SourceMapChain...)
	return &c
}

// IsScript reports whether the module carries script metadata.
func (m *Module) IsScript() bool {
	return m.Meta.Script != nil
}

// Meta is the type-specific payload of a module. Exactly one field is set
// once the module has been parsed; Custom holds plugin-defined payloads.
type Meta struct {
	Script *ScriptMeta       `json:"script,omitempty"`
	Css    *CssMeta          `json:"css,omitempty"`
	Html   *HtmlMeta         `json:"html,omitempty"`
	Custom map[string]string `json:"custom,omitempty"`
}

// ScriptMeta is the metadata of script modules.
type ScriptMeta struct {
	// AST is not persisted. It is rebuilt from Module.Content when a
	// module is restored from the cache.
	AST            *script.AST         `json:"-"`
	TopLevelMark   script.Mark         `json:"topLevelMark"`
	UnresolvedMark script.Mark         `json:"unresolvedMark"`
	System         script.ModuleSystem `json:"moduleSystem"`
	HotAccept      bool                `json:"hotSelfAccepted"`
	TopLevelAwait  bool                `json:"topLevelAwait"`
	Statements     []script.Statement  `json:"statements,omitempty"`
	// DefinedIdents is the set of top-level bindings.
	DefinedIdents []script.Ident `json:"definedIdents,omitempty"`
}

// NewScriptMeta derives script metadata from an analyzed AST.
func NewScriptMeta(ast *script.AST) *ScriptMeta {
	meta := &ScriptMeta{
		AST:            ast,
		TopLevelMark:   ast.TopLevelMark,
		UnresolvedMark: ast.UnresolvedMark,
		System:         ast.System,
		HotAccept:      ast.HotAccept,
		TopLevelAwait:  ast.TopLevelAwait,
		Statements:     ast.Statements,
	}
	for _, st := range ast.Statements {
		meta.DefinedIdents = append(meta.DefinedIdents, st.Defined...)
	}
	return meta
}

// CssMeta is the metadata of stylesheet modules.
type CssMeta struct {
	// Imports lists @import targets in source order.
	Imports []string `json:"imports,omitempty"`
	// URLs lists url() targets in source order.
	URLs []string `json:"urls,omitempty"`
}

// HtmlMeta is the metadata of HTML modules.
type HtmlMeta struct {
	Scripts []string `json:"scripts,omitempty"`
	Links   []string `json:"links,omitempty"`
	// Inline maps the query id of each inline module script to its source.
	Inline map[string]string `json:"inline,omitempty"`
}

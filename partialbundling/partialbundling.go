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

// Package partialbundling splits the modules of a compilation into resource
// pots. Modules are first collected into module pots (all modules of one
// package version, or a single module), and module pots are then assembled
// into resource pots by the set of module groups they serve.
package partialbundling

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// modulePot is the unit partial bundling moves around: modules that always
// end up in the same resource pot.
type modulePot struct {
	key       string
	forced    string // resource pot name fixed by a rule
	typ       resource.Type
	immutable bool
	modules   []*module.Module
	groups    set.Set[module.GroupID]
	size      int
	order     int
}

type bucket struct {
	name      string
	typ       resource.Type
	immutable bool
	pots      []*modulePot
}

// Bundle assigns the modules ids of graph to resource pots and returns the
// pots sorted by id. Each bundled module's ResourcePots is reset to the pot
// it lands in. External modules and unbuilt placeholders are skipped.
func Bundle(cfg *config.Config, graph *module.Graph, ids []module.ID) []*resource.ResourcePot {
	mpots := modulePots(cfg, graph, ids)

	buckets := make(map[string]*bucket)
	var keys []string
	for _, mp := range mpots {
		name := mp.forced
		if name == "" {
			name = groupSetName(graph, mp.groups)
			if mp.immutable {
				name += "_vendor"
			}
		}
		key := resource.PotID(name, mp.typ)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{name: name, typ: mp.typ, immutable: mp.immutable}
			buckets[key] = b
			keys = append(keys, key)
		}
		b.pots = append(b.pots, mp)
	}

	var pots []*resource.ResourcePot
	for _, key := range keys {
		pots = append(pots, assemble(graph, buckets[key], cfg.PartialBundling.TargetMaxSize)...)
	}
	slices.SortFunc(pots, func(a, b *resource.ResourcePot) int {
		return strings.Compare(a.ID, b.ID)
	})
	return pots
}

// modulePots buckets modules by (name, type, immutable). Rule matches name
// the bucket after the rule; immutable package modules share a bucket per
// package version; everything else gets one bucket per module.
func modulePots(cfg *config.Config, graph *module.Graph, ids []module.ID) []*modulePot {
	byKey := make(map[string]*modulePot)
	var out []*modulePot

	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.External || m.Type == "" {
			continue
		}

		var key, forced string
		switch {
		case enforcedName(cfg, m) != "":
			forced = enforcedName(cfg, m)
			key = "enforce:" + forced
		case groupRuleName(cfg, m) != "":
			forced = groupRuleName(cfg, m)
			key = "rule:" + forced
		case m.Immutable && m.PackageName != "":
			key = m.PackageName + "@" + m.PackageVersion
		default:
			key = m.ID.String()
		}
		typ := resource.TypeForModule(m.Type)
		key = fmt.Sprintf("%s|%s|%t", key, typ, m.Immutable)

		mp, ok := byKey[key]
		if !ok {
			mp = &modulePot{
				key:       key,
				forced:    forced,
				typ:       typ,
				immutable: m.Immutable,
				groups:    set.New[module.GroupID](),
				order:     m.ExecutionOrder,
			}
			byKey[key] = mp
			out = append(out, mp)
		}
		mp.modules = append(mp.modules, m)
		mp.groups.Extend(m.ModuleGroups)
		mp.size += m.Size
		mp.order = min(mp.order, m.ExecutionOrder)
	}

	slices.SortStableFunc(out, func(a, b *modulePot) int {
		if c := cmp.Compare(a.order, b.order); c != 0 {
			return c
		}
		return strings.Compare(a.key, b.key)
	})
	return out
}

// assemble turns a bucket into one resource pot, or several when the bucket
// exceeds maxSize bytes. Module pots are never split.
func assemble(graph *module.Graph, b *bucket, maxSize int) []*resource.ResourcePot {
	var chunks [][]*modulePot
	var current []*modulePot
	size := 0
	for _, mp := range b.pots {
		if maxSize > 0 && len(current) > 0 && size+mp.size > maxSize {
			chunks = append(chunks, current)
			current, size = nil, 0
		}
		current = append(current, mp)
		size += mp.size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	pots := make([]*resource.ResourcePot, 0, len(chunks))
	for i, chunk := range chunks {
		name := b.name
		if i > 0 {
			name = fmt.Sprintf("%s_%d", b.name, i)
		}
		pot := resource.NewResourcePot(name, b.typ)
		for _, mp := range chunk {
			for _, m := range mp.modules {
				pot.AddModule(m)
				pot.ModuleGroups.Extend(m.ModuleGroups)
				m.ResourcePots = set.New(pot.ID)
				if pot.EntryModule.IsZero() && graph.IsEntry(m.ID) {
					pot.EntryModule = m.ID
				}
			}
		}
		pots = append(pots, pot)
	}
	return pots
}

func enforcedName(cfg *config.Config, m *module.Module) string {
	for _, rule := range cfg.EnforceResourceRules() {
		if matchAny(rule.Tests, m.ID.String()) {
			return rule.Name
		}
	}
	return ""
}

func groupRuleName(cfg *config.Config, m *module.Module) string {
	for _, rule := range cfg.GroupRules() {
		switch rule.GroupType {
		case config.GroupTypeMutable:
			if m.Immutable {
				continue
			}
		case config.GroupTypeImmutable:
			if !m.Immutable {
				continue
			}
		}
		switch rule.ResourceType {
		case config.ResourceTypeInitial:
			if !isInitial(m) {
				continue
			}
		case config.ResourceTypeAsync:
			if isInitial(m) {
				continue
			}
		}
		if matchAny(rule.Tests, m.ID.String()) {
			return rule.Name
		}
	}
	return ""
}

// isInitial reports whether m is loaded with an entry rather than on
// demand.
func isInitial(m *module.Module) bool {
	for gid := range m.ModuleGroups {
		if gid.Type == module.GroupEntry {
			return true
		}
	}
	return false
}

func matchAny(tests []*regexp.Regexp, s string) bool {
	for _, re := range tests {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// groupSetName names the pot of modules shared by exactly groups.
func groupSetName(graph *module.Graph, groups set.Set[module.GroupID]) string {
	ids := groups.SortedFunc(module.GroupID.Compare)
	switch len(ids) {
	case 0:
		return "orphan"
	case 1:
		return GroupName(graph, ids[0])
	}
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(id.String())
		b.WriteByte('\n')
	}
	return "shared_" + fs.ContentHash([]byte(b.String()))[:8]
}

// GroupName returns the name resources of a single group are emitted
// under: the entry name for entries, the registered name for dynamic
// entries and the safe name of the root for dynamic imports.
func GroupName(graph *module.Graph, id module.GroupID) string {
	switch id.Type {
	case module.GroupEntry:
		if name, ok := graph.EntryName(id.ModuleID); ok {
			return name
		}
	case module.GroupDynamicEntry:
		for _, e := range graph.DynamicEntries() {
			if e.ID == id.ModuleID {
				return e.Name
			}
		}
	}
	return module.SafeName(id.ModuleID)
}

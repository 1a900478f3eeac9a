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

package update

import (
	"slices"
	"strings"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/set"
	"github.com/farm-fe/farm-sub001/module"
)

// PotChanges lists the resource pots an update touched, by id.
type PotChanges struct {
	Added   []string
	Updated []string
	Removed []string
}

// Render returns the pots that must be rendered again: added and updated.
func (p *PotChanges) Render() []string {
	return slices.Concat(p.Added, p.Updated)
}

// RegenerateResourcePots re-bundles the modules of the affected groups.
// Every pot holding a module of an affected group, or a removed module, is
// dissolved and its modules are bundled again together with the affected
// groups' members. Pots of updated modules that were not dissolved are
// reported as updated so they get rendered again.
func RegenerateResourcePots(c *core.Context, affected set.Set[module.GroupID], updated []module.ID, removed map[module.ID]*module.Module) (*PotChanges, error) {
	graph := c.ModuleGraph()
	groups := c.ModuleGroupGraph()
	pots := c.ResourcePots()

	dissolve := set.New[string]()
	rebundle := set.New[module.ID]()
	for gid := range affected {
		group := groups.Group(gid)
		if group == nil {
			continue
		}
		for _, mid := range group.Modules() {
			rebundle.Add(mid)
			if m := graph.Module(mid); m != nil {
				dissolve.Extend(m.ResourcePots)
			}
		}
	}
	for _, pot := range pots.Pots() {
		for gid := range pot.ModuleGroups {
			if affected.Has(gid) {
				dissolve.Add(pot.ID)
			}
		}
	}
	for _, m := range removed {
		dissolve.Extend(m.ResourcePots)
	}
	for id := range dissolve {
		if pot := pots.Get(id); pot != nil {
			for _, mid := range pot.ModuleIDs() {
				if graph.HasModule(mid) {
					rebundle.Add(mid)
				}
			}
		}
	}

	old := set.New[string]()
	for _, id := range dissolve.SortedFunc(strings.Compare) {
		pot := pots.Remove(id)
		if pot == nil {
			continue
		}
		old.Add(id)
		for name := range pot.Resources {
			c.RemoveResource(name)
		}
	}

	changes := &PotChanges{}
	if rebundle.Len() > 0 {
		ids := rebundle.SortedFunc(module.ID.Compare)
		fresh, handled, err := c.Driver().PartialBundling(ids, c, nil)
		if err != nil {
			return nil, err
		}
		if !handled {
			return nil, core.Errorf("no plugin handles partial bundling")
		}
		for _, pot := range fresh {
			pots.Add(pot)
			if old.Has(pot.ID) {
				changes.Updated = append(changes.Updated, pot.ID)
				old.Remove(pot.ID)
			} else {
				changes.Added = append(changes.Added, pot.ID)
			}
		}
	}
	changes.Removed = old.SortedFunc(strings.Compare)

	seen := set.New(changes.Render()...)
	for _, id := range updated {
		m := graph.Module(id)
		if m == nil {
			continue
		}
		for _, potID := range m.ResourcePots.SortedFunc(strings.Compare) {
			if pots.Has(potID) && seen.Add(potID) {
				changes.Updated = append(changes.Updated, potID)
			}
		}
	}
	return changes, nil
}

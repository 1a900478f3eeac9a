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

package plugins

import (
	"path/filepath"
	"sync"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/resolve"
)

// Resolve maps specifiers to files with the configured aliases,
// extensions, main fields, package exports and externals.
type Resolve struct {
	once     sync.Once
	resolver *resolve.Resolver
}

func (*Resolve) Name() string  { return "farm:resolve" }
func (*Resolve) Priority() int { return BuiltinPriority }

func (p *Resolve) resolverFor(c *core.Context) *resolve.Resolver {
	p.once.Do(func() {
		p.resolver = resolve.New(c.FS, c.Config, c.Logger)
	})
	return p.resolver
}

func (p *Resolve) Resolve(rp *core.ResolveParam, c *core.Context, _ *core.HookContext) (*core.ResolveResult, error) {
	importer := ""
	if !rp.Importer.IsZero() {
		importer = rp.Importer.ResolvedPath(c.Root())
	}
	res := p.resolverFor(c).Resolve(rp.Source, importer, rp.Kind)
	if res == nil {
		return nil, nil
	}
	return &core.ResolveResult{
		ResolvedPath:   res.ResolvedPath,
		Query:          res.Query,
		External:       res.External,
		SideEffects:    res.SideEffects,
		PackageName:    res.PackageName,
		PackageVersion: res.PackageVersion,
	}, nil
}

// UpdateModules forgets memoized resolutions once files come or go or a
// package.json changes.
func (p *Resolve) UpdateModules(up *core.UpdateModulesParam, c *core.Context) error {
	for _, changed := range up.Paths {
		if changed.Type != core.UpdateUpdated || filepath.Base(changed.Path) == "package.json" {
			p.resolverFor(c).Invalidate()
			return nil
		}
	}
	return nil
}

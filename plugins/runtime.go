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
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/entry"
	"github.com/farm-fe/farm-sub001/resource"
)

// Runtime wires the module system into entry resources.
type Runtime struct{}

func (*Runtime) Name() string  { return "farm:runtime" }
func (*Runtime) Priority() int { return BuiltinPriority }

func (*Runtime) HandleEntryResource(p *core.EntryResourceParam, c *core.Context) error {
	switch p.Resource.Type {
	case resource.TypeHtml:
		return entry.HTML(c, p)
	case resource.TypeJs:
		return entry.JS(c, p)
	}
	return nil
}

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
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/partialbundling"
	"github.com/farm-fe/farm-sub001/resource"
)

// Bundling computes module groups and splits modules into resource pots.
type Bundling struct{}

func (*Bundling) Name() string  { return "farm:partial-bundling" }
func (*Bundling) Priority() int { return BuiltinPriority }

func (*Bundling) AnalyzeModuleGraph(graph *module.Graph, _ *core.Context, _ *core.HookContext) (*module.GroupGraph, error) {
	return module.BuildGroupGraph(graph), nil
}

func (*Bundling) PartialBundling(ids []module.ID, c *core.Context, _ *core.HookContext) ([]*resource.ResourcePot, error) {
	return partialbundling.Bundle(c.Config, c.ModuleGraph(), ids), nil
}

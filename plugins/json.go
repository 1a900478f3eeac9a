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
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/module"
)

// JSON loads .json files as scripts whose default export is the document.
type JSON struct{}

func (*JSON) Name() string  { return "farm:json" }
func (*JSON) Priority() int { return BuiltinPriority }

func (*JSON) Load(p *core.LoadParam, c *core.Context, _ *core.HookContext) (*core.LoadResult, error) {
	if !strings.EqualFold(filepath.Ext(p.ResolvedPath), ".json") {
		return nil, nil
	}
	data, err := c.FS.ReadFile(p.ResolvedPath)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON in %s", p.ResolvedPath)
	}
	return &core.LoadResult{
		Content:    "export default " + string(bytes.TrimSpace(data)) + ";\n",
		ModuleType: module.TypeJs,
	}, nil
}

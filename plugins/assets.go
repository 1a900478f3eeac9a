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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/script"
)

const assetMeta = "asset"

// Assets turns static files into scripts exporting their public URL and
// emits the files as resources.
type Assets struct{}

func (*Assets) Name() string  { return "farm:assets" }
func (*Assets) Priority() int { return BuiltinPriority }

func assetName(cfg *config.Config, resolvedPath string, data []byte) string {
	base := filepath.Base(resolvedPath)
	ext := filepath.Ext(base)
	return cfg.AssetsFilenameTemplate().Expand(resource.Values{
		ResourceName: strings.TrimSuffix(base, ext),
		ContentHash:  fs.ContentHash(data)[:8],
		Ext:          strings.TrimPrefix(ext, "."),
	})
}

// AssetResource returns the resource name of a static asset module, or ""
// for other modules.
func AssetResource(m *module.Module) string {
	if m == nil {
		return ""
	}
	return m.Meta.Custom[assetMeta]
}

func (*Assets) Load(p *core.LoadParam, c *core.Context, _ *core.HookContext) (*core.LoadResult, error) {
	if module.TypeFromPath(p.ResolvedPath) != module.TypeAsset {
		return nil, nil
	}
	data, err := c.FS.ReadFile(p.ResolvedPath)
	if err != nil {
		return nil, err
	}
	url := publicURL(c.Config, assetName(c.Config, p.ResolvedPath, data))
	return &core.LoadResult{
		Content:    fmt.Sprintf("export default %s;\n", script.Quote(url)),
		ModuleType: module.TypeJs,
	}, nil
}

// ProcessModule records the resource name on the module, where it
// survives the persistent cache.
func (*Assets) ProcessModule(m *module.Module, c *core.Context) error {
	if module.TypeFromPath(m.ResolvedPath) != module.TypeAsset {
		return nil
	}
	data, err := c.FS.ReadFile(m.ResolvedPath)
	if err != nil {
		return err
	}
	if m.Meta.Custom == nil {
		m.Meta.Custom = make(map[string]string)
	}
	m.Meta.Custom[assetMeta] = assetName(c.Config, m.ResolvedPath, data)
	return nil
}

// FinalizeResources emits the file of every asset module in the graph
// that is not emitted yet.
func (*Assets) FinalizeResources(resources map[string]*resource.Resource, c *core.Context) error {
	for _, m := range c.ModuleGraph().Modules() {
		name := AssetResource(m)
		if name == "" {
			continue
		}
		if _, ok := resources[name]; ok {
			continue
		}
		data, err := c.FS.ReadFile(m.ResolvedPath)
		if err != nil {
			return fmt.Errorf("failed to emit asset %s: %w", m.ID, err)
		}
		r := &resource.Resource{
			Name:         name,
			Bytes:        data,
			Type:         resource.TypeAsset,
			Origin:       resource.Origin{Module: m.ID},
			PreserveName: true,
			Emitted:      true,
		}
		resources[name] = r
		c.EmitResource(r)
	}
	return nil
}

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

// Package plugins holds the built-in plugins: resolution, the script, CSS,
// HTML, JSON and asset languages, partial bundling, entry resource wiring
// and minification. A compilation without them can still run, but every
// hook they cover must then be provided by other plugins.
package plugins

import (
	"net/url"
	"path"
	"strings"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/resource"
)

// BuiltinPriority runs built-in plugins after plugins with the default
// priority, so user plugins can take over any hook.
const BuiltinPriority = 200

// Defaults returns a fresh set of the built-in plugins.
func Defaults() []core.Plugin {
	return []core.Plugin{
		&Resolve{},
		&Script{},
		&Css{},
		&Html{},
		&Assets{},
		&JSON{},
		&Bundling{},
		&Runtime{},
		&Minify{},
	}
}

// queryValue returns the value of key in a query string that may start
// with "?".
func queryValue(query, key string) (string, bool) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return "", false
	}
	v, ok := values[key]
	if !ok {
		return "", false
	}
	if len(v) == 0 {
		return "", true
	}
	return v[0], true
}

func publicURL(cfg *config.Config, name string) string {
	base := cfg.Output.PublicPath
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + name
}

// generate names the rendered content of pot and wraps it in a resource,
// plus a source map resource when the pot carries one.
func generate(c *core.Context, pot *resource.ResourcePot) *core.GeneratedResources {
	r := &resource.Resource{
		Bytes:   []byte(pot.Meta.Content),
		Type:    pot.Type,
		Origin:  resource.Origin{ResourcePot: pot.ID},
		Emitted: true,
	}
	values := resource.Values{
		ResourceName: pot.Name,
		ContentHash:  r.ContentHash(),
		Ext:          pot.Type.Ext(),
	}
	tmpl := c.Config.FilenameTemplate()
	if !pot.EntryModule.IsZero() {
		if name, ok := c.ModuleGraph().EntryName(pot.EntryModule); ok {
			tmpl = c.Config.EntryFilenameTemplate()
			values.EntryName = name
			r.PreserveName = true
		}
	}
	r.Name = tmpl.Expand(values)

	out := &core.GeneratedResources{Resource: r}
	sm := c.Config.Sourcemap
	if pot.Meta.SourceMap != "" && sm.Enabled && (sm.All || !pot.Immutable) {
		out.SourceMap = &resource.Resource{
			Name:    r.Name + ".map",
			Bytes:   []byte(pot.Meta.SourceMap),
			Type:    resource.TypeSourceMap,
			Origin:  r.Origin,
			Emitted: true,
		}
		ref := path.Base(out.SourceMap.Name)
		switch pot.Type {
		case resource.TypeCss:
			r.Bytes = append(r.Bytes, "\n/*# sourceMappingURL="+ref+" */\n"...)
		default:
			r.Bytes = append(r.Bytes, "\n//# sourceMappingURL="+ref+"\n"...)
		}
	}
	return out
}

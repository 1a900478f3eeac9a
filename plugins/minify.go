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

	"github.com/bmatcuk/doublestar/v4"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/resource"
)

// Minify minifies rendered script and stylesheet pots with esbuild.
type Minify struct{}

func (*Minify) Name() string  { return "farm:minify" }
func (*Minify) Priority() int { return BuiltinPriority }

// Minifiable reports whether the include and exclude globs let a pot with
// the given module paths through. A pot is minified when include is empty
// or one of its modules matches it, and none of its modules is excluded.
func Minifiable(cfg config.MinifyConfig, paths []string) bool {
	included := len(cfg.Include) == 0
	for _, p := range paths {
		for _, pattern := range cfg.Exclude {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return false
			}
		}
		for _, pattern := range cfg.Include {
			if ok, _ := doublestar.Match(pattern, p); ok {
				included = true
			}
		}
	}
	return included
}

func (*Minify) OptimizeResourcePot(pot *resource.ResourcePot, c *core.Context) error {
	if !c.Config.MinifyEnabled() {
		return nil
	}
	var loader api.Loader
	switch pot.Type {
	case resource.TypeJs:
		loader = api.LoaderJS
	case resource.TypeCss:
		loader = api.LoaderCSS
	default:
		return nil
	}
	paths := make([]string, 0, pot.Len())
	for _, id := range pot.ModuleIDs() {
		paths = append(paths, id.RelativePath())
	}
	if !Minifiable(c.Config.Minify, paths) {
		return nil
	}

	opts := api.TransformOptions{
		Loader:            loader,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
		Sourcefile:        pot.Name + "." + pot.Type.Ext(),
	}
	if c.Config.Sourcemap.Enabled {
		opts.Sourcemap = api.SourceMapExternal
	}
	res := api.Transform(pot.Meta.Content, opts)
	if len(res.Errors) > 0 {
		return fmt.Errorf("failed to minify %s: %w", pot.Name, esbuildError(res.Errors))
	}
	pot.Meta.Content = string(res.Code)
	if len(res.Map) > 0 {
		pot.Meta.SourceMap = string(res.Map)
	}
	return nil
}

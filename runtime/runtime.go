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

// Package runtime embeds the JavaScript module system that emitted resources
// register their modules with, the helpers rendered modules may call, and the
// hot update client used by the dev server.
package runtime

import (
	"embed"
	"regexp"
	"strconv"
	"strings"
)

//go:embed module_system.js hmr_client.js polyfills/*.js
var files embed.FS

const (
	namespacePlaceholder = "'__FARM_NAMESPACE__'"
	hmrURLPlaceholder    = "'__FARM_HMR_URL__'"
)

// Polyfill names, in the order they are emitted.
const (
	InteropRequireDefault  = "interopRequireDefault"
	ExportStar             = "_export_star"
	MergeNamespaces        = "_mergeNamespaces"
	InteropRequireWildcard = "_interop_require_wildcard"
)

var polyfillNames = []string{InteropRequireDefault, ExportStar, MergeNamespaces, InteropRequireWildcard}

var polyfillUse = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(polyfillNames))
	for _, name := range polyfillNames {
		m[name] = regexp.MustCompile(`(^|[^A-Za-z0-9_$.])` + regexp.QuoteMeta(name) + `\s*\(`)
	}
	return m
}()

func mustRead(name string) string {
	data, err := files.ReadFile(name)
	if err != nil {
		panic("runtime: missing embedded file " + name)
	}
	return string(data)
}

// Source returns the module system registering itself under
// globalThis[namespace].__farm_module_system__.
func Source(namespace string) string {
	return strings.Replace(mustRead("module_system.js"), namespacePlaceholder, strconv.Quote(namespace), 1)
}

// HMRClient returns the script connecting to the dev server websocket at
// url and applying the updates it pushes.
func HMRClient(namespace, url string) string {
	src := strings.Replace(mustRead("hmr_client.js"), namespacePlaceholder, strconv.Quote(namespace), 1)
	return strings.Replace(src, hmrURLPlaceholder, strconv.Quote(url), 1)
}

// Polyfill returns the definition of the named helper, or "" if there is no
// such helper.
func Polyfill(name string) string {
	if _, ok := polyfillUse[name]; !ok {
		return ""
	}
	return mustRead("polyfills/" + name + ".js")
}

// PolyfillsFor returns the definitions of the helpers code calls, so each
// rendered resource only carries what it uses.
func PolyfillsFor(code string) string {
	var b strings.Builder
	for _, name := range polyfillNames {
		if polyfillUse[name].MatchString(code) {
			b.WriteString(Polyfill(name))
		}
	}
	return b.String()
}

// ModuleSystem is the expression reading the module system inside
// generated code.
func ModuleSystem(namespace string) string {
	return "globalThis[" + strconv.Quote(namespace) + "].__farm_module_system__"
}

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

// Package packagejson parses package.json files and answers the questions
// module resolution asks of them: entry fields, conditional exports,
// browser replacements and side effects.
package packagejson

import (
	"errors"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"

	"github.com/farm-fe/farm-sub001/fs"
)

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

var errNoPackage = errors.New("no package.json")

// DefaultConditions is the default export condition priority for browser environments.
var DefaultConditions = []string{"browser", "import", "default"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON represents the subset of package.json the resolver reads.
type PackageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type,omitempty"`
	Main    string `json:"main,omitempty"`
	Module  string `json:"module,omitempty"`
	// Browser is either a string replacing main or a map of path
	// replacements, where false means "empty module".
	Browser any `json:"browser,omitempty"`
	Exports any `json:"exports,omitempty"`
	// SideEffects is a bool or a list of globs.
	SideEffects any `json:"sideEffects,omitempty"`

	Dependencies  map[string]string `json:"dependencies,omitempty"`
	RawWorkspaces json.RawMessage   `json:"workspaces,omitempty"`

	// Dir is the directory holding the file. It is not part of the JSON.
	Dir string `json:"-"`
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fsys fs.FileSystem, file string) (*PackageJSON, error) {
	data, err := fsys.ReadFile(file)
	if err != nil {
		return nil, err
	}
	pkg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	pkg.Dir = path.Dir(file)
	return pkg, nil
}

// workspacesObjectFormat represents the object format for workspaces field.
// Used by yarn classic with nohoist: {"packages": [...], "nohoist": [...]}
type workspacesObjectFormat struct {
	Packages []string `json:"packages"`
}

// WorkspacePatterns returns the workspace glob patterns from the workspaces field.
// Handles both array format ["packages/*"] and object format {"packages": ["libs/*"]}.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}
	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}
	var obj workspacesObjectFormat
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

// MainField returns the value of the first field in fields the package
// sets. Recognized fields are "browser" (string form only), "module" and
// "main".
func (pkg *PackageJSON) MainField(fields []string) (string, bool) {
	for _, field := range fields {
		var value string
		switch field {
		case "browser":
			value, _ = pkg.Browser.(string)
		case "module":
			value = pkg.Module
		case "main":
			value = pkg.Main
		}
		if value != "" {
			return value, true
		}
	}
	return "", false
}

// BrowserReplacement looks up key (a package-relative path like "./lib/a.js"
// or a bare specifier) in the object form of the browser field. A false
// mapping is returned as replacement "" with ok true.
func (pkg *PackageJSON) BrowserReplacement(key string) (replacement string, ok bool) {
	m, isMap := pkg.Browser.(map[string]any)
	if !isMap {
		return "", false
	}
	candidates := []string{key}
	if strings.HasPrefix(key, "./") {
		bare := strings.TrimPrefix(key, "./")
		candidates = append(candidates, bare, key+".js", strings.TrimSuffix(key, ".js"))
	}
	for _, c := range candidates {
		v, found := m[c]
		if !found {
			continue
		}
		switch r := v.(type) {
		case string:
			return r, true
		case bool:
			if !r {
				return "", true
			}
		}
	}
	return "", false
}

// HasSideEffects reports whether the file at rel (relative to the package
// directory, with or without "./") has side effects. A package without the
// field has side effects everywhere.
func (pkg *PackageJSON) HasSideEffects(rel string) bool {
	switch v := pkg.SideEffects.(type) {
	case nil:
		return true
	case bool:
		return v
	case []any:
		rel = trimDotSlash(rel)
		for _, item := range v {
			pattern, ok := item.(string)
			if !ok {
				continue
			}
			pattern = trimDotSlash(pattern)
			if !strings.Contains(pattern, "/") {
				pattern = "**/" + pattern
			}
			if match, _ := doublestar.Match(pattern, rel); match {
				return true
			}
		}
		return false
	}
	return true
}

// ResolveExport resolves a subpath export to its target file path.
// The subpath should be "." for the main export or "./subpath" for subpath exports.
// Returns the resolved path without leading "./".
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	if pkg.Exports == nil {
		if pkg.Main != "" && subpath == "." {
			return trimDotSlash(pkg.Main), nil
		}
		return "", ErrNotExported
	}

	if exportStr, ok := pkg.Exports.(string); ok {
		if subpath == "." {
			return trimDotSlash(exportStr), nil
		}
		return "", ErrNotExported
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}

	if !hasSubpaths(exportsMap) {
		if subpath == "." {
			return resolveConditions(exportsMap, opts)
		}
		return "", ErrNotExported
	}

	if exportValue, ok := exportsMap[subpath]; ok {
		return resolveExportValue(exportValue, opts)
	}

	// Pattern exports: "./*" or "./lib/*.js". The longest matching prefix wins.
	best, bestKey, bestLen := "", "", -1
	for key := range exportsMap {
		star := strings.IndexByte(key, '*')
		if star < 0 {
			continue
		}
		prefix, suffix := key[:star], key[star+1:]
		if !strings.HasPrefix(subpath, prefix) || !strings.HasSuffix(subpath, suffix) || len(subpath) < len(prefix)+len(suffix) {
			continue
		}
		if len(prefix) > bestLen {
			bestKey, bestLen = key, len(prefix)
			best = subpath[len(prefix) : len(subpath)-len(suffix)]
		}
	}
	if bestKey == "" {
		return "", ErrNotExported
	}
	target, err := resolveExportValue(exportsMap[bestKey], opts)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(target, "*", best), nil
}

func hasSubpaths(exportsMap map[string]any) bool {
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

// resolveExportValue resolves an export value, trying fallback arrays in order.
func resolveExportValue(value any, opts *ResolveOptions) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditions(v, opts)
	case []any:
		for _, item := range v {
			if result, err := resolveExportValue(item, opts); err == nil {
				return result, nil
			}
		}
	}
	return "", ErrNotExported
}

// resolveConditions resolves a conditional export map to a path.
// Tries each condition in opts.Conditions order, recursing into nested maps.
func resolveConditions(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		value, ok := conditions[cond]
		if !ok {
			continue
		}
		if result, err := resolveExportValue(value, opts); err == nil {
			return result, nil
		}
	}

	return "", ErrNotExported
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(p string) string {
	return strings.TrimPrefix(p, "./")
}

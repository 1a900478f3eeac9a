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

package module

import (
	"path"
	"strings"
)

// Type is the kind of source a module holds. Values outside the predefined
// constants are custom types contributed by plugins.
type Type string

const (
	TypeJs      Type = "js"
	TypeJsx     Type = "jsx"
	TypeTs      Type = "ts"
	TypeTsx     Type = "tsx"
	TypeCss     Type = "css"
	TypeHtml    Type = "html"
	TypeAsset   Type = "asset"
	TypeRuntime Type = "runtime"
)

// Custom returns a plugin-defined module type.
func Custom(tag string) Type {
	return Type(tag)
}

// IsScript reports whether the module is JavaScript or a dialect of it.
func (t Type) IsScript() bool {
	switch t {
	case TypeJs, TypeJsx, TypeTs, TypeTsx, TypeRuntime:
		return true
	}
	return false
}

// IsTypescript reports whether the module needs type stripping.
func (t Type) IsTypescript() bool {
	return t == TypeTs || t == TypeTsx
}

// IsCustom reports whether t is not one of the predefined types.
func (t Type) IsCustom() bool {
	switch t {
	case TypeJs, TypeJsx, TypeTs, TypeTsx, TypeCss, TypeHtml, TypeAsset, TypeRuntime:
		return false
	}
	return true
}

// TypeFromExt maps a file extension (with or without the dot) to a module
// type, falling back to a custom type named after the extension.
func TypeFromExt(ext string) Type {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	switch ext {
	case "js", "mjs", "cjs":
		return TypeJs
	case "jsx":
		return TypeJsx
	case "ts", "mts", "cts":
		return TypeTs
	case "tsx":
		return TypeTsx
	case "css":
		return TypeCss
	case "html", "htm":
		return TypeHtml
	case "png", "jpg", "jpeg", "gif", "svg", "webp", "ico", "woff", "woff2", "ttf", "eot", "mp4", "webm", "mp3", "wav":
		return TypeAsset
	}
	return Custom(ext)
}

// TypeFromPath maps a path to a module type by its extension.
func TypeFromPath(p string) Type {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return TypeFromExt(path.Ext(p))
}

// ResolveKind discriminates how one module refers to another.
type ResolveKind string

const (
	KindEntry         ResolveKind = "entry"
	KindImport        ResolveKind = "import"
	KindExportFrom    ResolveKind = "exportFrom"
	KindDynamicImport ResolveKind = "dynamicImport"
	KindRequire       ResolveKind = "require"
	KindCssAtImport   ResolveKind = "cssAtImport"
	KindCssURL        ResolveKind = "cssUrl"
	KindScriptSrc     ResolveKind = "scriptSrc"
	KindLinkHref      ResolveKind = "linkHref"
	KindHmrUpdate     ResolveKind = "hmrUpdate"
	KindDynamicEntry  ResolveKind = "dynamicEntry"
)

// IsDynamic reports whether the kind does not pull its target into the
// importer's module group.
func (k ResolveKind) IsDynamic() bool {
	return k == KindDynamicImport || k == KindDynamicEntry
}

// IsESM reports whether the kind comes from ESM syntax.
func (k ResolveKind) IsESM() bool {
	return k == KindImport || k == KindExportFrom || k == KindDynamicImport
}

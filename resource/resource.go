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

// Package resource defines emitted resources, the resource pots that
// produce them and the filename templates they are named with.
package resource

import (
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/module"
)

// Type is the kind of an emitted resource or of the pot producing it.
type Type string

const (
	TypeJs        Type = "js"
	TypeCss       Type = "css"
	TypeHtml      Type = "html"
	TypeRuntime   Type = "runtime"
	TypeSourceMap Type = "sourcemap"
	TypeAsset     Type = "asset"
)

// Ext returns the file extension used for the type, without the dot.
func (t Type) Ext() string {
	switch t {
	case TypeJs, TypeRuntime:
		return "js"
	case TypeCss:
		return "css"
	case TypeHtml:
		return "html"
	case TypeSourceMap:
		return "map"
	case TypeAsset:
		return ""
	}
	return string(t)
}

// TypeForModule maps a module type to the type of pot that renders it.
func TypeForModule(t module.Type) Type {
	switch {
	case t == module.TypeRuntime:
		return TypeRuntime
	case t.IsScript():
		return TypeJs
	case t == module.TypeCss:
		return TypeCss
	case t == module.TypeHtml:
		return TypeHtml
	case t == module.TypeAsset:
		return TypeAsset
	}
	return Type(t)
}

// Origin says what produced a resource.
type Origin struct {
	// ResourcePot is the id of the producing pot, if any.
	ResourcePot string `json:"resourcePot,omitempty"`
	// Module is set for resources emitted directly by a module, such as
	// static assets.
	Module module.ID `json:"module,omitempty"`
}

// Resource is one emitted file.
type Resource struct {
	Name  string `json:"name"`
	Bytes []byte `json:"-"`
	Type  Type   `json:"type"`
	// Origin is the pot or module that produced the resource.
	Origin Origin `json:"origin"`
	// PreserveName blocks content-hash renaming.
	PreserveName bool `json:"preserveName"`
	// Emitted is false for resources kept in memory only, like the
	// rendered HMR update.
	Emitted bool `json:"emitted"`
}

// ContentHash returns the short hash used by the [contentHash] placeholder.
func (r *Resource) ContentHash() string {
	return fs.ContentHash(r.Bytes)[:8]
}

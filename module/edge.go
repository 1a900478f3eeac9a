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

import "slices"

// EdgeItem is one reference from an importer to a dependency.
type EdgeItem struct {
	Kind   ResolveKind `json:"kind"`
	Source string      `json:"source"`
	// Order is the position of the reference among the importer's
	// dependencies.
	Order int `json:"order"`
}

// Edge is the ordered list of references connecting two modules. A file can
// reach the same dependency several times (import and require, say).
type Edge []EdgeItem

// Equal reports whether both edges hold the same items in the same order.
func (e Edge) Equal(other Edge) bool {
	return slices.Equal(e, other)
}

// ContainsKind reports whether any item has kind.
func (e Edge) ContainsKind(kind ResolveKind) bool {
	return slices.ContainsFunc(e, func(item EdgeItem) bool {
		return item.Kind == kind
	})
}

// IsDynamic reports whether the edge carries a dynamic import or dynamic
// entry reference.
func (e Edge) IsDynamic() bool {
	return slices.ContainsFunc(e, func(item EdgeItem) bool {
		return item.Kind.IsDynamic()
	})
}

// IsStatic reports whether any item pulls the target into the importer's
// module group.
func (e Edge) IsStatic() bool {
	return slices.ContainsFunc(e, func(item EdgeItem) bool {
		return !item.Kind.IsDynamic()
	})
}

// IsDynamicOnly reports whether every item is dynamic.
func (e Edge) IsDynamicOnly() bool {
	return len(e) > 0 && !e.IsStatic()
}

// MinOrder returns the smallest item order, used to sort dependencies.
func (e Edge) MinOrder() int {
	if len(e) == 0 {
		return 0
	}
	lowest := e[0].Order
	for _, item := range e[1:] {
		lowest = min(lowest, item.Order)
	}
	return lowest
}

// Clone returns an independent copy.
func (e Edge) Clone() Edge {
	return slices.Clone(e)
}

// Dependency pairs a dependency id with its edge.
type Dependency struct {
	ID   ID   `json:"id"`
	Edge Edge `json:"edge"`
}

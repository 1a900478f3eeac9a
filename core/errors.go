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

package core

import (
	"fmt"
	"strings"

	"github.com/farm-fe/farm-sub001/module"
)

// ResolveError reports a source no resolve plugin could find.
type ResolveError struct {
	Source   string
	Importer module.ID
	Err      error
}

func (e *ResolveError) Error() string {
	importer := "<entry>"
	if !e.Importer.IsZero() {
		importer = e.Importer.String()
	}
	msg := fmt.Sprintf("can not resolve %q from %s", e.Source, importer)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error { return e.Err }

// LoadError reports a module that could not be read or loaded.
type LoadError struct {
	ResolvedPath string
	Err          error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("can not load %s: no plugin handled it", e.ResolvedPath)
	}
	return fmt.Sprintf("can not load %s: %v", e.ResolvedPath, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// TransformError reports a failing transform hook.
type TransformError struct {
	ResolvedPath string
	Msg          string
	Err          error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s failed: %s", e.ResolvedPath, e.Msg)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ParseError reports a module no parser could turn into metadata.
type ParseError struct {
	ResolvedPath string
	Msg          string
	Err          error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s failed: %s", e.ResolvedPath, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RenderResourcePotError reports a broken invariant while rendering a pot.
type RenderResourcePotError struct {
	Name    string
	Modules []module.ID
	Msg     string
}

func (e *RenderResourcePotError) Error() string {
	ids := make([]string, len(e.Modules))
	for i, id := range e.Modules {
		ids[i] = id.String()
	}
	return fmt.Sprintf("render resource pot %s [%s]: %s", e.Name, strings.Join(ids, ", "), e.Msg)
}

// GenericError is an internal invariant failure.
type GenericError struct {
	Msg string
}

func (e *GenericError) Error() string { return e.Msg }

// Errorf returns a GenericError.
func Errorf(format string, args ...any) error {
	return &GenericError{Msg: fmt.Sprintf(format, args...)}
}

// CompilationErrors aggregates errors raised by independent modules of one
// build.
type CompilationErrors []error

func (e CompilationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:", len(e))
	for _, err := range e {
		b.WriteString("\n  * ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e CompilationErrors) Unwrap() []error { return e }

// PluginError attributes an error to the plugin and hook that returned it.
type PluginError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s %s: %v", e.Plugin, e.Hook, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }

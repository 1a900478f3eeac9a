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

package css

import (
	"strings"

	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/script"
)

// URLRewriter returns what a url() target of m must point at in the output,
// or "" to keep it.
type URLRewriter func(m *module.Module, source string) string

// Concat joins the stylesheets ids of graph in the given order. @import
// rules of stylesheets bundled alongside are dropped; the remaining ones
// are hoisted to the top, since @import must precede every other rule.
func Concat(graph *module.Graph, ids []module.ID, rewrite URLRewriter) string {
	var head, body strings.Builder
	hoisted := make(map[string]bool)
	for _, id := range ids {
		m := graph.Module(id)
		if m == nil || m.Type != module.TypeCss {
			continue
		}
		targets := make(map[string]*module.Module)
		for _, dep := range graph.Dependencies(id) {
			for _, item := range dep.Edge {
				targets[item.Source] = graph.Module(dep.ID)
			}
		}

		ed := script.NewEditor(m.Content)
		for _, dep := range Deps(m.Content) {
			switch dep.Kind {
			case DepImport:
				ed.ReplaceRange(dep.Range, "")
				if t := targets[dep.Source]; t != nil && !t.External {
					continue
				}
				rule := ed.Slice(dep.Range)
				if !hoisted[rule] {
					hoisted[rule] = true
					head.WriteString(rule + "\n")
				}
			case DepURL:
				if rewrite == nil {
					continue
				}
				if to := rewrite(m, dep.Source); to != "" {
					ed.ReplaceRange(dep.Range, "url("+script.Quote(to)+")")
				}
			}
		}
		out := strings.TrimSpace(ed.String())
		if out == "" {
			continue
		}
		body.WriteString(out)
		body.WriteString("\n")
	}
	return head.String() + body.String()
}

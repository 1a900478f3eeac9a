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

package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farm-fe/farm-sub001/compiler"
)

func TestFilter(t *testing.T) {
	full := &compiler.ModuleGraphTrace{
		Root: "/project",
		Modules: []compiler.TracedModule{
			{ID: "index.html"},
			{ID: "src/a.ts"},
			{ID: "src/b.ts"},
		},
		Edges: map[string][]string{
			"index.html": {"src/a.ts"},
			"src/a.ts":   {"src/b.ts"},
			"src/b.ts":   {},
		},
		ReverseEdges: map[string][]string{
			"index.html": {},
			"src/a.ts":   {"index.html"},
			"src/b.ts":   {"src/a.ts"},
		},
	}

	assert.Same(t, full, Filter(full, ""))

	got := Filter(full, "src/**")
	assert.Equal(t, "/project", got.Root)
	assert.Equal(t, []compiler.TracedModule{{ID: "src/a.ts"}, {ID: "src/b.ts"}}, got.Modules)
	assert.Equal(t, map[string][]string{"src/a.ts": {"src/b.ts"}, "src/b.ts": {}}, got.Edges)
	assert.Equal(t, map[string][]string{"src/a.ts": {}, "src/b.ts": {"src/a.ts"}}, got.ReverseEdges)
}

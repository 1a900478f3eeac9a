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

package css_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/css"
	"github.com/farm-fe/farm-sub001/module"
)

func TestDeps(t *testing.T) {
	src := `@import "./base.css";
@import url('theme.css') screen and (min-width: 600px);
/* @import "commented.css"; */
.a { background: url(./img/bg.png); content: "url(not-a-dep)"; }
.b { mask: URL( "icon.svg#frag" ); }
`
	deps := css.Deps(src)
	require.Len(t, deps, 4)

	assert.Equal(t, "./base.css", deps[0].Source)
	assert.Equal(t, css.DepImport, deps[0].Kind)
	assert.Equal(t, `@import "./base.css";`, src[deps[0].Range.Start:deps[0].Range.End])

	assert.Equal(t, "theme.css", deps[1].Source)
	assert.Equal(t, "screen and (min-width: 600px)", deps[1].Media)

	assert.Equal(t, "./img/bg.png", deps[2].Source)
	assert.Equal(t, css.DepURL, deps[2].Kind)
	assert.Equal(t, "url(./img/bg.png)", src[deps[2].Range.Start:deps[2].Range.End])

	assert.Equal(t, "icon.svg#frag", deps[3].Source)
}

func TestIsLocalURL(t *testing.T) {
	tests := []struct {
		source string
		local  bool
	}{
		{"./a.png", true},
		{"img/a.png", true},
		{"/abs/a.png", true},
		{"data:image/png;base64,AAAA", false},
		{"https://cdn.example.com/a.png", false},
		{"//cdn.example.com/a.png", false},
		{"#filter", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.local, css.IsLocalURL(tt.source))
		})
	}
}

func TestRenameClasses(t *testing.T) {
	out, classes := css.RenameClasses(".foo { color: red }", "[name]__[hash]", "abcd1234")
	assert.Equal(t, ".foo__abcd1234 { color: red }", out)
	assert.Equal(t, map[string]string{"foo": "foo__abcd1234"}, classes.Names)

	assert.Equal(t, "import \"./index.module.css?farm_css_modules\";\nexport default { foo: \"foo__abcd1234\" };\n",
		css.Proxy("./index.module.css?farm_css_modules", classes))
}

func TestRenameClassesSelectors(t *testing.T) {
	src := `.a.b > .c:hover, :global(.keep) .a { width: 1.5em; }
@media (min-width: 1.5em) {
  .my-class { margin: .5em; }
}
:local(.d) {}
a[href$=".pdf"] {}
`
	out, classes := css.RenameClasses(src, "[name]-[hash]", "h")
	assert.Equal(t, `.a-h.b-h > .c-h:hover, .keep .a-h { width: 1.5em; }
@media (min-width: 1.5em) {
  .my-class-h { margin: .5em; }
}
.d-h {}
a[href$=".pdf"] {}
`, out)
	assert.Equal(t, []string{"a", "b", "c", "my-class", "d"}, classes.Order)
	assert.Equal(t, "import \"x\";\nexport default { a: \"a-h\", b: \"b-h\", c: \"c-h\", \"my-class\": \"my-class-h\", d: \"d-h\" };\n",
		css.Proxy("x", classes))
}

func TestConcat(t *testing.T) {
	g := module.NewGraph()
	add := func(id, content string) {
		m := module.New(module.ParseID(id))
		m.Type = module.TypeCss
		m.Content = content
		g.AddModule(m)
	}
	add("base.css", ".base { color: red; }")
	add("main.css", "@import \"./base.css\";\n@import \"https://fonts.example.com/a.css\";\n.main { background: url(./bg.png); }")
	require.NoError(t, g.AddEdgeItem(module.ParseID("main.css"), module.ParseID("base.css"), module.EdgeItem{Kind: module.KindCssAtImport, Source: "./base.css"}))

	out := css.Concat(g, []module.ID{module.ParseID("base.css"), module.ParseID("main.css")}, func(m *module.Module, source string) string {
		if source == "./bg.png" {
			return "/assets/bg.1234.png"
		}
		return ""
	})
	assert.Equal(t, "@import \"https://fonts.example.com/a.css\";\n.base { color: red; }\n.main { background: url(\"/assets/bg.1234.png\"); }\n", out)
}

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

package html_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/html"
)

const page = `<!doctype html>
<html>
<head>
  <title>app</title>
  <link rel="stylesheet" href="./style.css">
  <link rel="stylesheet" href="https://cdn.example.com/reset.css">
  <script src="https://cdn.example.com/analytics.js"></script>
</head>
<body>
  <div id="app"></div>
  <script type="module" src="./main.ts"></script>
  <script type="module">
    import "./inline-dep";
  </script>
</body>
</html>
`

func TestAnalyze(t *testing.T) {
	a, err := html.Analyze([]byte(page))
	require.NoError(t, err)
	assert.Equal(t, []string{"./main.ts"}, a.Scripts)
	assert.Equal(t, []string{"./style.css"}, a.Links)
	require.Len(t, a.Inline, 1)
	assert.Contains(t, a.Inline[0], `import "./inline-dep";`)
}

func TestInject(t *testing.T) {
	out, err := html.Inject([]byte(page), html.Injection{
		Bundled: func(ref string) bool { return ref == "./main.ts" || ref == "./style.css" },
		Head:    []string{html.StylesheetTag("/index.css")},
		Body:    []string{html.InlineScript("boot()"), html.ScriptTag("/index.js")},
	})
	require.NoError(t, err)
	got := string(out)

	assert.NotContains(t, got, "./main.ts")
	assert.NotContains(t, got, "./style.css")
	assert.NotContains(t, got, "inline-dep")
	assert.Contains(t, got, `<link rel="stylesheet" href="https://cdn.example.com/reset.css">`)
	assert.Contains(t, got, `<script src="https://cdn.example.com/analytics.js"></script>`)
	assert.Contains(t, got, `<link rel="stylesheet" href="/index.css"></head>`)
	assert.Contains(t, got, `<script>boot()</script><script src="/index.js"></script></body>`)
	assert.Contains(t, got, `<div id="app"></div>`)
}

func TestInjectWithoutHeadOrBody(t *testing.T) {
	out, err := html.Inject([]byte(`<div></div>`), html.Injection{
		Head: []string{"<h>"},
		Body: []string{"<b>"},
	})
	require.NoError(t, err)
	assert.Equal(t, `<div></div><h><b>`, string(out))
}

func TestInlineScriptEscapesClosingTag(t *testing.T) {
	assert.Equal(t, `<script>var s = "<\/script>";</script>`, html.InlineScript(`var s = "</script>";`))
}

func TestInlineQuery(t *testing.T) {
	assert.Equal(t, "farm_inline_script=2", html.InlineQuery(2))
}

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

package resolve_test

import (
	"testing"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resolve"
	"github.com/farm-fe/farm-sub001/testutil"
)

const importer = "/project/src/main.ts"

func TestResolveRelative(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"src/main.ts":                  ``,
		"src/util.ts":                  ``,
		"src/components/index.ts":      ``,
		"src/styles/app.css":           ``,
		"src/widgets/package.json":     `{"main":"./widget.js"}`,
		"src/widgets/widget.js":        ``,
		"public/logo.svg":              ``,
		"src/nested/deep/file.tsx":     ``,
		"src/nested/deep/file.spec.ts": ``,
	})
	r := resolve.New(mfs, testutil.NewConfig(t, nil), nil)

	tests := []struct {
		name      string
		source    string
		wantPath  string
		wantQuery string
	}{
		{"extension probing", "./util", "/project/src/util.ts", ""},
		{"explicit extension", "./util.ts", "/project/src/util.ts", ""},
		{"directory index", "./components", "/project/src/components/index.ts", ""},
		{"directory main field", "./widgets", "/project/src/widgets/widget.js", ""},
		{"query preserved", "./styles/app.css?inline", "/project/src/styles/app.css", "?inline"},
		{"parent directory", "../public/logo.svg", "/project/public/logo.svg", ""},
		{"root relative", "/public/logo.svg", "/project/public/logo.svg", ""},
		{"tsx preferred", "./nested/deep/file", "/project/src/nested/deep/file.tsx", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.source, importer, module.KindImport)
			if res == nil {
				t.Fatalf("Resolve(%q) returned nil", tt.source)
			}
			if res.ResolvedPath != tt.wantPath {
				t.Errorf("ResolvedPath = %q, want %q", res.ResolvedPath, tt.wantPath)
			}
			if res.Query != tt.wantQuery {
				t.Errorf("Query = %q, want %q", res.Query, tt.wantQuery)
			}
			if res.External {
				t.Error("unexpected external")
			}
		})
	}

	if res := r.Resolve("./missing", importer, module.KindImport); res != nil {
		t.Errorf("expected nil for missing file, got %+v", res)
	}
}

func TestResolveAlias(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"src/main.ts":                          ``,
		"src/lib/util.ts":                      ``,
		"src/lib/deep/util.ts":                 ``,
		"node_modules/vue/package.json":        `{"name":"vue","main":"index.js"}`,
		"node_modules/vue/index.js":            ``,
		"node_modules/vue/dist/vue.esm.js":     ``,
		"node_modules/vue-router/package.json": `{"name":"vue-router","main":"index.js"}`,
		"node_modules/vue-router/index.js":     ``,
	})
	cfg := testutil.NewConfig(t, func(c *config.Config) {
		c.Resolve.Alias = map[string]string{
			"@":                               "/project/src",
			"@/deep":                          "/project/src/lib/deep",
			config.RegexAliasPrefix + "^vue$": "vue/dist/vue.esm.js",
		}
	})
	r := resolve.New(mfs, cfg, nil)

	tests := []struct {
		source string
		want   string
	}{
		{"@/lib/util", "/project/src/lib/util.ts"},
		{"@/deep/util", "/project/src/lib/deep/util.ts"},
		{"vue", "/project/node_modules/vue/dist/vue.esm.js"},
		{"vue-router", "/project/node_modules/vue-router/index.js"},
	}
	for _, tt := range tests {
		res := r.Resolve(tt.source, importer, module.KindImport)
		if res == nil {
			t.Errorf("Resolve(%q) returned nil", tt.source)
			continue
		}
		if res.ResolvedPath != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.source, res.ResolvedPath, tt.want)
		}
	}
}

func TestResolvePackageExports(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"src/main.ts": ``,
		"node_modules/lit/package.json": `{
			"name": "lit",
			"version": "3.1.0",
			"sideEffects": false,
			"exports": {
				".": {"import": "./index.js", "require": "./index.cjs"},
				"./decorators/*": "./decorators/*.js"
			}
		}`,
		"node_modules/lit/index.js":             ``,
		"node_modules/lit/index.cjs":            ``,
		"node_modules/lit/decorators/custom.js": ``,
	})
	r := resolve.New(mfs, testutil.NewConfig(t, nil), nil)

	res := r.Resolve("lit", importer, module.KindImport)
	if res == nil || res.ResolvedPath != "/project/node_modules/lit/index.js" {
		t.Fatalf("import lit = %+v", res)
	}
	if res.PackageName != "lit" || res.PackageVersion != "3.1.0" {
		t.Errorf("package = %s@%s", res.PackageName, res.PackageVersion)
	}
	if res.SideEffects {
		t.Error("expected lit to be side effect free")
	}

	if res := r.Resolve("lit", importer, module.KindRequire); res == nil || res.ResolvedPath != "/project/node_modules/lit/index.cjs" {
		t.Errorf("require lit = %+v", res)
	}
	if res := r.Resolve("lit/decorators/custom", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/node_modules/lit/decorators/custom.js" {
		t.Errorf("lit/decorators/custom = %+v", res)
	}
	if res := r.Resolve("lit/internal", importer, module.KindImport); res != nil {
		t.Errorf("expected unexported subpath to fail, got %+v", res)
	}
}

func TestResolveMainFields(t *testing.T) {
	files := map[string]string{
		"src/main.ts":                   ``,
		"node_modules/pkg/package.json": `{"name":"pkg","main":"main.js","module":"module.js","browser":"browser.js"}`,
		"node_modules/pkg/main.js":      ``,
		"node_modules/pkg/module.js":    ``,
		"node_modules/pkg/browser.js":   ``,
	}

	tests := []struct {
		name   string
		target config.TargetEnv
		fields []string
		kind   module.ResolveKind
		want   string
	}{
		{"browser target", config.TargetBrowser, nil, module.KindImport, "browser.js"},
		{"node import", config.TargetNode, nil, module.KindImport, "module.js"},
		{"node require", config.TargetNode, nil, module.KindRequire, "main.js"},
		{"configured order", config.TargetBrowser, []string{"main"}, module.KindImport, "main.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutil.NewConfig(t, func(c *config.Config) {
				c.Output.TargetEnv = tt.target
				c.Resolve.MainFields = tt.fields
			})
			r := resolve.New(testutil.NewProject(t, files), cfg, nil)
			res := r.Resolve("pkg", importer, tt.kind)
			if res == nil {
				t.Fatal("Resolve returned nil")
			}
			if want := "/project/node_modules/pkg/" + tt.want; res.ResolvedPath != want {
				t.Errorf("ResolvedPath = %q, want %q", res.ResolvedPath, want)
			}
		})
	}
}

func TestResolveBrowserField(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"package.json":   `{"name":"app","browser":{"./src/node.js":"./src/browser.js","fs":false,"path":"path-browserify"}}`,
		"src/main.ts":    ``,
		"src/node.js":    ``,
		"src/browser.js": ``,

		"node_modules/path-browserify/package.json": `{"name":"path-browserify","main":"index.js"}`,
		"node_modules/path-browserify/index.js":     ``,
	})
	r := resolve.New(mfs, testutil.NewConfig(t, nil), nil)

	if res := r.Resolve("./node.js", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/src/browser.js" {
		t.Errorf("./node.js = %+v", res)
	}
	if res := r.Resolve("fs", importer, module.KindImport); res != nil {
		t.Errorf("expected fs to be ignored, got %+v", res)
	}
	if res := r.Resolve("path", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/node_modules/path-browserify/index.js" {
		t.Errorf("path = %+v", res)
	}
}

func TestResolveExternal(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{"src/main.ts": ``})

	browser := resolve.New(mfs, testutil.NewConfig(t, func(c *config.Config) {
		c.External = []string{"^react$"}
	}), nil)
	for _, source := range []string{"react", "https://cdn.example.com/x.js", "//cdn.example.com/x.js", "data:text/javascript,1"} {
		res := browser.Resolve(source, importer, module.KindImport)
		if res == nil || !res.External || res.ResolvedPath != source {
			t.Errorf("Resolve(%q) = %+v, want external", source, res)
		}
	}
	if res := browser.Resolve("react-dom", importer, module.KindImport); res != nil {
		t.Errorf("react-dom should not match ^react$, got %+v", res)
	}
	if res := browser.Resolve("node:fs", importer, module.KindImport); res != nil {
		t.Errorf("builtins are not external for browser targets, got %+v", res)
	}

	node := resolve.New(mfs, testutil.NewConfig(t, func(c *config.Config) {
		c.Output.TargetEnv = config.TargetNode
	}), nil)
	for _, source := range []string{"fs", "node:fs", "path", "fs/promises"} {
		if res := node.Resolve(source, importer, module.KindImport); res == nil || !res.External {
			t.Errorf("Resolve(%q) = %+v, want external builtin", source, res)
		}
	}
}

func TestResolveWorkspaceFallback(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"package.json":             `{"name":"root","workspaces":["packages/*"]}`,
		"src/main.ts":              ``,
		"packages/ui/package.json": `{"name":"@org/ui","version":"0.1.0","main":"index.js"}`,
		"packages/ui/index.js":     ``,
		"packages/ui/button.js":    ``,
	})
	r := resolve.New(mfs, testutil.NewConfig(t, nil), nil)

	res := r.Resolve("@org/ui", importer, module.KindImport)
	if res == nil || res.ResolvedPath != "/project/packages/ui/index.js" {
		t.Fatalf("@org/ui = %+v", res)
	}
	if res.PackageName != "@org/ui" {
		t.Errorf("PackageName = %q", res.PackageName)
	}
	if res := r.Resolve("@org/ui/button", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/packages/ui/button.js" {
		t.Errorf("@org/ui/button = %+v", res)
	}
}

func TestResolverInvalidate(t *testing.T) {
	mfs := testutil.NewProject(t, map[string]string{
		"src/main.ts": ``,
		"src/a.ts":    ``,
	})
	r := resolve.New(mfs, testutil.NewConfig(t, nil), nil)

	if res := r.Resolve("./a", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/src/a.ts" {
		t.Fatalf("./a = %+v", res)
	}

	mfs.AddFile("/project/src/a.tsx", "", 0644)
	if res := r.Resolve("./a", importer, module.KindImport); res.ResolvedPath != "/project/src/a.ts" {
		t.Errorf("expected memoized result, got %q", res.ResolvedPath)
	}

	r.Invalidate()
	if res := r.Resolve("./a", importer, module.KindImport); res == nil || res.ResolvedPath != "/project/src/a.tsx" {
		t.Errorf("after Invalidate ./a = %+v", res)
	}
}

func TestSplitPackage(t *testing.T) {
	tests := []struct {
		spec, name, subpath string
	}{
		{"lit", "lit", "."},
		{"lit/decorators.js", "lit", "./decorators.js"},
		{"@lit/reactive-element", "@lit/reactive-element", "."},
		{"@lit/reactive-element/css-tag.js", "@lit/reactive-element", "./css-tag.js"},
		{"@scope", "", ""},
	}
	for _, tt := range tests {
		name, subpath := resolve.SplitPackage(tt.spec)
		if name != tt.name || subpath != tt.subpath {
			t.Errorf("SplitPackage(%q) = %q, %q; want %q, %q", tt.spec, name, subpath, tt.name, tt.subpath)
		}
	}
}

func TestIsBuiltin(t *testing.T) {
	for spec, want := range map[string]bool{
		"fs":          true,
		"fs/promises": true,
		"node:test":   true,
		"node:":       false,
		"lit":         false,
		"./fs":        false,
	} {
		if got := resolve.IsBuiltin(spec); got != want {
			t.Errorf("IsBuiltin(%q) = %v, want %v", spec, got, want)
		}
	}
}

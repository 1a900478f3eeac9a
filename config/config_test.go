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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/module"
)

func TestDefaultNormalizes(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, module.ModeDevelopment, cfg.Mode)
	assert.Equal(t, filepath.Join(cfg.Root, "dist"), cfg.Output.Path)
	assert.False(t, cfg.Concatenate())
	assert.False(t, cfg.MinifyEnabled())
	assert.True(t, cfg.FilenameTemplate().HasContentHash())
	assert.True(t, cfg.IsCssModule("src/app.module.css"))
	assert.False(t, cfg.IsCssModule("src/app.css"))
}

func TestPublicPathDefaultsByTarget(t *testing.T) {
	browser := config.Default()
	browser.Root = t.TempDir()
	require.NoError(t, browser.Normalize())
	assert.Equal(t, "/", browser.Output.PublicPath)

	node := config.Default()
	node.Root = t.TempDir()
	node.Output.TargetEnv = config.TargetNode
	require.NoError(t, node.Normalize())
	assert.Equal(t, "./", node.Output.PublicPath)

	explicit := config.Default()
	explicit.Root = t.TempDir()
	explicit.Output.TargetEnv = config.TargetNode
	explicit.Output.PublicPath = "/assets"
	require.NoError(t, explicit.Normalize())
	assert.Equal(t, "/assets/", explicit.Output.PublicPath)
}

func TestProductionDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.Mode = module.ModeProduction
	require.NoError(t, cfg.Normalize())
	assert.True(t, cfg.Concatenate())
	assert.True(t, cfg.MinifyEnabled())
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"filename without hash", func(c *config.Config) { c.Output.Filename = "[resourceName].[ext]" }, "[contentHash]"},
		{"unknown placeholder", func(c *config.Config) { c.Output.Filename = "[nope].[contentHash]" }, "output.filename"},
		{"bad mode", func(c *config.Config) { c.Mode = "staging" }, "invalid mode"},
		{"bad format", func(c *config.Config) { c.Output.Format = "umd" }, "output.format"},
		{"bad external", func(c *config.Config) { c.External = []string{"("} }, "external"},
		{"bad alias regex", func(c *config.Config) {
			c.Resolve.Alias = map[string]string{config.RegexAliasPrefix + "(": "x"}
		}, "alias"},
		{"bad group test", func(c *config.Config) {
			c.PartialBundling.Groups = []config.GroupRule{{Name: "g", Test: []string{"["}}}
		}, "partialBundling.groups[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Root = t.TempDir()
			tt.mutate(cfg)
			err := cfg.Normalize()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompiledRules(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.External = []string{"^react$"}
	cfg.Resolve.Alias = map[string]string{
		"@/":                               "./src/",
		config.RegexAliasPrefix + "^~(.*)": "./lib/$1",
	}
	cfg.PartialBundling.Groups = []config.GroupRule{{Name: "vendor", Test: []string{"node_modules"}}}
	require.NoError(t, cfg.Normalize())

	assert.True(t, cfg.IsExternal("react"))
	assert.False(t, cfg.IsExternal("react-dom"))
	assert.Len(t, cfg.AliasRules(), 2)

	rules := cfg.GroupRules()
	require.Len(t, rules, 1)
	assert.Equal(t, config.GroupTypeAny, rules[0].GroupType)
	assert.Equal(t, config.ResourceTypeAny, rules[0].ResourceType)
	assert.True(t, rules[0].Tests[0].MatchString("node_modules/a/index.js"))
}

func TestLoadFile(t *testing.T) {
	root := t.TempDir()
	yaml := `mode: production
input:
  main: ./src/main.ts
output:
  publicPath: /static
define:
  app.version: '"1.0.0"'
persistentCache:
  enabled: true
  store: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "farm.config.yaml"), []byte(yaml), 0o644))

	cfg, err := config.Load("", root)
	require.NoError(t, err)

	assert.Equal(t, module.ModeProduction, cfg.Mode)
	assert.Equal(t, map[string]string{"main": "./src/main.ts"}, cfg.Input)
	assert.Equal(t, "/static/", cfg.Output.PublicPath)
	assert.Equal(t, `"1.0.0"`, cfg.Define["app.version"])
	assert.Equal(t, config.StoreSQLite, cfg.PersistentCache.Store)
	assert.Equal(t, filepath.Join(root, "node_modules/.farm/cache"), cfg.PersistentCache.CacheDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	require.Error(t, err)
}

func TestLoadWithoutFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := config.Load("", root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
}

func TestLoadViperOverridesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "farm.config.yaml"), []byte("mode: development\n"), 0o644))

	v := config.NewViper()
	v.Set("mode", "production")
	cfg, err := config.LoadViper(v, "", root)
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FARM_MODE", "production")
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestFingerprint(t *testing.T) {
	a := config.Default()
	b := config.Default()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Define["x"] = "1"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

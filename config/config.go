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

// Package config holds the compiler configuration: its defaults, loading
// from files and environment through viper, and validation.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"

	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/resource"
)

// Format is the module format of emitted entry resources.
type Format string

const (
	FormatEsModule Format = "esm"
	FormatCommonJs Format = "cjs"
)

// TargetEnv is the environment the output runs in.
type TargetEnv string

const (
	TargetBrowser TargetEnv = "browser"
	TargetNode    TargetEnv = "node"
)

// GroupType filters partial bundling rules by module mutability.
type GroupType string

const (
	GroupTypeAny       GroupType = "any"
	GroupTypeMutable   GroupType = "mutable"
	GroupTypeImmutable GroupType = "immutable"
)

// ResourceType filters partial bundling rules by how a group loads.
type ResourceType string

const (
	ResourceTypeAny     ResourceType = "any"
	ResourceTypeInitial ResourceType = "initial"
	ResourceTypeAsync   ResourceType = "async"
)

// StoreKind selects the persistent cache backend.
type StoreKind string

const (
	StoreDisk   StoreKind = "disk"
	StoreSQLite StoreKind = "sqlite"
)

// RegexAliasPrefix marks an alias key as a regular expression.
const RegexAliasPrefix = "$__farm_regex:"

// DefaultRuntimeNamespace is the global the runtime registers under.
const DefaultRuntimeNamespace = "__farm_default_namespace__"

// Config is the complete compiler configuration.
type Config struct {
	Root  string            `mapstructure:"root" json:"root"`
	Mode  module.Mode       `mapstructure:"mode" json:"mode"`
	Input map[string]string `mapstructure:"input" json:"input"`

	Output  OutputConfig  `mapstructure:"output" json:"output"`
	Resolve ResolveConfig `mapstructure:"resolve" json:"resolve"`
	// External lists regexes of sources left unbundled.
	External []string `mapstructure:"external" json:"external"`
	// Define replaces global identifiers at compile time.
	Define map[string]string `mapstructure:"define" json:"define"`

	PersistentCache CacheConfig           `mapstructure:"persistentCache" json:"persistentCache"`
	PartialBundling PartialBundlingConfig `mapstructure:"partialBundling" json:"partialBundling"`
	Sourcemap       SourcemapConfig       `mapstructure:"sourcemap" json:"sourcemap"`
	Minify          MinifyConfig          `mapstructure:"minify" json:"minify"`
	Runtime         RuntimeConfig         `mapstructure:"runtime" json:"runtime"`
	Css             CssConfig             `mapstructure:"css" json:"css"`
	HMR             HMRConfig             `mapstructure:"hmr" json:"hmr"`
	// ConcatenateModules enables scope hoisting. Unset means on in
	// production only.
	ConcatenateModules *bool `mapstructure:"concatenateModules" json:"concatenateModules"`

	compiled compiled
}

// OutputConfig controls emitted resources.
type OutputConfig struct {
	Path           string    `mapstructure:"path" json:"path"`
	PublicPath     string    `mapstructure:"publicPath" json:"publicPath"`
	Filename       string    `mapstructure:"filename" json:"filename"`
	EntryFilename  string    `mapstructure:"entryFilename" json:"entryFilename"`
	AssetsFilename string    `mapstructure:"assetsFilename" json:"assetsFilename"`
	Format         Format    `mapstructure:"format" json:"format"`
	TargetEnv      TargetEnv `mapstructure:"targetEnv" json:"targetEnv"`
}

// ResolveConfig controls module resolution.
type ResolveConfig struct {
	// Alias maps a prefix (or a RegexAliasPrefix-marked regex) to a
	// replacement. The longest matching prefix wins.
	Alias      map[string]string `mapstructure:"alias" json:"alias"`
	Extensions []string          `mapstructure:"extensions" json:"extensions"`
	// MainFields overrides the package.json field order. Empty means the
	// order depends on the target environment and the reference kind.
	MainFields []string `mapstructure:"mainFields" json:"mainFields"`
	Conditions []string `mapstructure:"conditions" json:"conditions"`
	Symlinks   bool     `mapstructure:"symlinks" json:"symlinks"`
}

// CacheConfig controls the persistent module cache.
type CacheConfig struct {
	Enabled          bool      `mapstructure:"enabled" json:"enabled"`
	CacheDir         string    `mapstructure:"cacheDir" json:"cacheDir"`
	Store            StoreKind `mapstructure:"store" json:"store"`
	Namespace        string    `mapstructure:"namespace" json:"namespace"`
	TimestampEnabled bool      `mapstructure:"timestampEnabled" json:"timestampEnabled"`
	HashEnabled      bool      `mapstructure:"hashEnabled" json:"hashEnabled"`
}

// PartialBundlingConfig controls how modules are split into resource pots.
type PartialBundlingConfig struct {
	Groups           []GroupRule       `mapstructure:"groups" json:"groups"`
	EnforceResources []EnforceResource `mapstructure:"enforceResources" json:"enforceResources"`
	// TargetMaxSize splits pots whose modules exceed this many bytes. Zero
	// disables splitting.
	TargetMaxSize int `mapstructure:"targetMaxSize" json:"targetMaxSize"`
}

// GroupRule names the module pot of modules whose id matches Test.
type GroupRule struct {
	Name         string       `mapstructure:"name" json:"name"`
	Test         []string     `mapstructure:"test" json:"test"`
	GroupType    GroupType    `mapstructure:"groupType" json:"groupType"`
	ResourceType ResourceType `mapstructure:"resourceType" json:"resourceType"`
}

// EnforceResource forces matching modules into one named pot.
type EnforceResource struct {
	Name string   `mapstructure:"name" json:"name"`
	Test []string `mapstructure:"test" json:"test"`
}

// SourcemapConfig controls source map emission.
type SourcemapConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// All includes immutable modules.
	All bool `mapstructure:"all" json:"all"`
}

// MinifyConfig controls minification. Unset Enabled means on in
// production only.
type MinifyConfig struct {
	Enabled *bool    `mapstructure:"enabled" json:"enabled"`
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
}

// RuntimeConfig controls the module runtime.
type RuntimeConfig struct {
	Namespace string `mapstructure:"namespace" json:"namespace"`
}

// CssConfig controls stylesheet handling.
type CssConfig struct {
	Modules CssModulesConfig `mapstructure:"modules" json:"modules"`
}

// CssModulesConfig selects CSS modules and their class naming.
type CssModulesConfig struct {
	Paths []string `mapstructure:"paths" json:"paths"`
	// IndentName is the class name template; [name] is the original class
	// and [hash] the module hash.
	IndentName string `mapstructure:"indentName" json:"indentName"`
}

// HMRConfig controls the dev server hot update channel.
type HMRConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Host    string `mapstructure:"host" json:"host"`
	Port    int    `mapstructure:"port" json:"port"`
	Path    string `mapstructure:"path" json:"path"`
}

// AliasRule is a compiled alias.
type AliasRule struct {
	Prefix      string
	Regex       *regexp.Regexp
	Replacement string
}

// CompiledGroupRule is a GroupRule with compiled tests.
type CompiledGroupRule struct {
	GroupRule
	Tests []*regexp.Regexp
}

// CompiledEnforceResource is an EnforceResource with compiled tests.
type CompiledEnforceResource struct {
	EnforceResource
	Tests []*regexp.Regexp
}

type compiled struct {
	external         []*regexp.Regexp
	alias            []AliasRule
	groups           []CompiledGroupRule
	enforceResources []CompiledEnforceResource
	cssModules       []*regexp.Regexp
	filename         *resource.Template
	entryFilename    *resource.Template
	assetsFilename   *resource.Template
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Root:  ".",
		Mode:  module.ModeDevelopment,
		Input: map[string]string{"index": "./index.html"},
		Output: OutputConfig{
			Path:           "dist",
			Filename:       resource.DefaultFilename,
			EntryFilename:  resource.DefaultEntryFilename,
			AssetsFilename: resource.DefaultAssetFilename,
			Format:         FormatEsModule,
			TargetEnv:      TargetBrowser,
		},
		Resolve: ResolveConfig{
			Alias:      map[string]string{},
			Extensions: []string{"tsx", "ts", "jsx", "mjs", "js", "json", "html", "css"},
			Conditions: []string{"development", "import", "require", "browser", "default"},
		},
		Define: map[string]string{},
		PersistentCache: CacheConfig{
			CacheDir:         "node_modules/.farm/cache",
			Store:            StoreDisk,
			TimestampEnabled: true,
			HashEnabled:      true,
		},
		Runtime: RuntimeConfig{Namespace: DefaultRuntimeNamespace},
		Css: CssConfig{Modules: CssModulesConfig{
			Paths:      []string{`\.module\.(css|scss|sass|less)`},
			IndentName: "[name]-[hash]",
		}},
		HMR: HMRConfig{Enabled: true, Host: "localhost", Port: 9801, Path: "/__hmr"},
	}
}

// Normalize makes paths absolute against the working directory, fills
// mode-dependent defaults and compiles every pattern. It must be called
// before the config is used.
func (c *Config) Normalize() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("invalid root %q: %w", c.Root, err)
	}
	c.Root = root

	switch c.Mode {
	case module.ModeDevelopment, module.ModeProduction:
	case "":
		c.Mode = module.ModeDevelopment
	default:
		return fmt.Errorf("invalid mode %q: must be development or production", c.Mode)
	}
	switch c.Output.Format {
	case FormatEsModule, FormatCommonJs:
	default:
		return fmt.Errorf("invalid output.format %q: must be esm or cjs", c.Output.Format)
	}
	switch c.Output.TargetEnv {
	case TargetBrowser, TargetNode:
	default:
		return fmt.Errorf("invalid output.targetEnv %q: must be browser or node", c.Output.TargetEnv)
	}
	switch c.PersistentCache.Store {
	case StoreDisk, StoreSQLite:
	case "":
		c.PersistentCache.Store = StoreDisk
	default:
		return fmt.Errorf("invalid persistentCache.store %q: must be disk or sqlite", c.PersistentCache.Store)
	}

	if !filepath.IsAbs(c.Output.Path) {
		c.Output.Path = filepath.Join(root, c.Output.Path)
	}
	if c.PersistentCache.CacheDir != "" && !filepath.IsAbs(c.PersistentCache.CacheDir) {
		c.PersistentCache.CacheDir = filepath.Join(root, c.PersistentCache.CacheDir)
	}
	if c.Output.PublicPath == "" {
		c.Output.PublicPath = "/"
		// Node imports dynamic resources relative to the entry file.
		if c.Output.TargetEnv == TargetNode {
			c.Output.PublicPath = "./"
		}
	}
	if !strings.HasSuffix(c.Output.PublicPath, "/") {
		c.Output.PublicPath += "/"
	}
	if c.Runtime.Namespace == "" {
		c.Runtime.Namespace = DefaultRuntimeNamespace
	}

	production := c.Mode == module.ModeProduction
	if c.ConcatenateModules == nil {
		c.ConcatenateModules = &production
	}
	if c.Minify.Enabled == nil {
		c.Minify.Enabled = &production
	}

	return c.compile()
}

func (c *Config) compile() error {
	var err error
	var out compiled

	if out.filename, err = resource.ParseTemplate(c.Output.Filename); err != nil {
		return fmt.Errorf("invalid output.filename: %w", err)
	}
	if !out.filename.HasContentHash() {
		return fmt.Errorf("invalid output.filename %q: must contain [contentHash]", c.Output.Filename)
	}
	if out.entryFilename, err = resource.ParseTemplate(c.Output.EntryFilename); err != nil {
		return fmt.Errorf("invalid output.entryFilename: %w", err)
	}
	if out.assetsFilename, err = resource.ParseTemplate(c.Output.AssetsFilename); err != nil {
		return fmt.Errorf("invalid output.assetsFilename: %w", err)
	}

	if out.external, err = compileAll("external", c.External); err != nil {
		return err
	}
	if out.cssModules, err = compileAll("css.modules.paths", c.Css.Modules.Paths); err != nil {
		return err
	}

	for key, replacement := range c.Resolve.Alias {
		rule := AliasRule{Prefix: key, Replacement: replacement}
		if pattern, ok := strings.CutPrefix(key, RegexAliasPrefix); ok {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid alias %q: %w", key, err)
			}
			rule.Regex = re
		}
		out.alias = append(out.alias, rule)
	}

	for i, rule := range c.PartialBundling.Groups {
		if rule.GroupType == "" {
			rule.GroupType = GroupTypeAny
		}
		if rule.ResourceType == "" {
			rule.ResourceType = ResourceTypeAny
		}
		tests, err := compileAll(fmt.Sprintf("partialBundling.groups[%d].test", i), rule.Test)
		if err != nil {
			return err
		}
		out.groups = append(out.groups, CompiledGroupRule{GroupRule: rule, Tests: tests})
	}
	for i, rule := range c.PartialBundling.EnforceResources {
		tests, err := compileAll(fmt.Sprintf("partialBundling.enforceResources[%d].test", i), rule.Test)
		if err != nil {
			return err
		}
		out.enforceResources = append(out.enforceResources, CompiledEnforceResource{EnforceResource: rule, Tests: tests})
	}

	c.compiled = out
	return nil
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", field, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// IsExternal reports whether source matches an external pattern.
func (c *Config) IsExternal(source string) bool {
	for _, re := range c.compiled.external {
		if re.MatchString(source) {
			return true
		}
	}
	return false
}

// IsCssModule reports whether a module path is a CSS module.
func (c *Config) IsCssModule(path string) bool {
	for _, re := range c.compiled.cssModules {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// AliasRules returns the compiled aliases.
func (c *Config) AliasRules() []AliasRule {
	return c.compiled.alias
}

// GroupRules returns the compiled partial bundling group rules.
func (c *Config) GroupRules() []CompiledGroupRule {
	return c.compiled.groups
}

// EnforceResourceRules returns the compiled enforce-resource rules.
func (c *Config) EnforceResourceRules() []CompiledEnforceResource {
	return c.compiled.enforceResources
}

// FilenameTemplate returns the template for non-entry resources.
func (c *Config) FilenameTemplate() *resource.Template {
	if c.compiled.filename == nil {
		return resource.MustParseTemplate(resource.DefaultFilename)
	}
	return c.compiled.filename
}

// EntryFilenameTemplate returns the template for entry resources.
func (c *Config) EntryFilenameTemplate() *resource.Template {
	if c.compiled.entryFilename == nil {
		return resource.MustParseTemplate(resource.DefaultEntryFilename)
	}
	return c.compiled.entryFilename
}

// AssetsFilenameTemplate returns the template for static assets.
func (c *Config) AssetsFilenameTemplate() *resource.Template {
	if c.compiled.assetsFilename == nil {
		return resource.MustParseTemplate(resource.DefaultAssetFilename)
	}
	return c.compiled.assetsFilename
}

// Concatenate reports whether scope hoisting is enabled.
func (c *Config) Concatenate() bool {
	return c.ConcatenateModules != nil && *c.ConcatenateModules
}

// MinifyEnabled reports whether minification is enabled.
func (c *Config) MinifyEnabled() bool {
	return c.Minify.Enabled != nil && *c.Minify.Enabled
}

// Production reports whether the mode is production.
func (c *Config) Production() bool {
	return c.Mode == module.ModeProduction
}

// Fingerprint hashes every option that changes compiled modules. It
// namespaces the persistent cache so that a config change never reads
// stale entries.
func (c *Config) Fingerprint() string {
	relevant := struct {
		Mode       module.Mode       `json:"mode"`
		Namespace  string            `json:"namespace"`
		Resolve    ResolveConfig     `json:"resolve"`
		External   []string          `json:"external"`
		Define     map[string]string `json:"define"`
		Css        CssConfig         `json:"css"`
		Format     Format            `json:"format"`
		TargetEnv  TargetEnv         `json:"targetEnv"`
		Sourcemaps SourcemapConfig   `json:"sourcemap"`
	}{
		Mode:       c.Mode,
		Namespace:  c.PersistentCache.Namespace,
		Resolve:    c.Resolve,
		External:   c.External,
		Define:     c.Define,
		Css:        c.Css,
		Format:     c.Output.Format,
		TargetEnv:  c.Output.TargetEnv,
		Sourcemaps: c.Sourcemap,
	}
	data, err := json.Marshal(relevant)
	if err != nil {
		return "default"
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

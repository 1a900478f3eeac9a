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

// Package resolve maps import specifiers to files: aliases, relative and
// absolute paths with extension probing, node_modules packages with their
// exports, main fields and browser replacements, and externals.
package resolve

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/module"
	"github.com/farm-fe/farm-sub001/packagejson"
)

// Logger is an interface for logging messages during resolution.
type Logger interface {
	Warning(format string, args ...any)
	Debug(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warning(string, ...any) {}
func (nopLogger) Debug(string, ...any)   {}

// cacheSize bounds the number of memoized resolutions.
const cacheSize = 8192

// Result is a resolved specifier.
type Result struct {
	// ResolvedPath is the absolute file path, or the specifier itself for
	// externals.
	ResolvedPath string
	// Query is the query string including "?", or "".
	Query       string
	External    bool
	SideEffects bool
	// PackageName and PackageVersion describe the package owning the file,
	// if any.
	PackageName    string
	PackageVersion string
}

// Resolver resolves specifiers against a configuration. It is safe for
// concurrent use.
type Resolver struct {
	fs       fs.FileSystem
	cfg      *config.Config
	logger   Logger
	packages *packagejson.Cache
	cache    *lru.Cache[string, *Result]
	alias    []config.AliasRule

	// workspaces maps workspace package names to their directories.
	workspaces map[string]string
}

// New creates a resolver for cfg, which must be normalized.
func New(fsys fs.FileSystem, cfg *config.Config, logger Logger) *Resolver {
	if logger == nil {
		logger = nopLogger{}
	}
	cache, _ := lru.New[string, *Result](cacheSize)
	r := &Resolver{
		fs:         fsys,
		cfg:        cfg,
		logger:     logger,
		packages:   packagejson.NewCache(fsys),
		cache:      cache,
		alias:      sortAlias(cfg.AliasRules()),
		workspaces: make(map[string]string),
	}
	root := FindWorkspaceRoot(fsys, cfg.Root)
	if pkgs, err := DiscoverWorkspacePackages(fsys, root); err == nil {
		for _, p := range pkgs {
			r.workspaces[p.Name] = p.Path
		}
	}
	return r
}

// sortAlias orders regex aliases first, in key order, then prefixes from
// longest to shortest.
func sortAlias(rules []config.AliasRule) []config.AliasRule {
	out := slices.Clone(rules)
	slices.SortFunc(out, func(a, b config.AliasRule) int {
		if (a.Regex != nil) != (b.Regex != nil) {
			if a.Regex != nil {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(len(b.Prefix), len(a.Prefix)); c != 0 {
			return c
		}
		return strings.Compare(a.Prefix, b.Prefix)
	})
	return out
}

// Packages returns the package.json cache shared with other components.
func (r *Resolver) Packages() *packagejson.Cache {
	return r.packages
}

// Invalidate drops memoized resolutions, typically after files were added
// or removed.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
	r.packages.Clear()
}

// Resolve resolves source referenced from importer (an absolute path; empty
// for entries, which resolve against the root). It returns nil when the
// specifier cannot be resolved.
func (r *Resolver) Resolve(source, importer string, kind module.ResolveKind) *Result {
	key := importer + "\x00" + string(kind) + "\x00" + source
	if res, ok := r.cache.Get(key); ok {
		return res
	}
	res := r.resolve(source, importer, kind)
	if res != nil {
		r.cache.Add(key, res)
	}
	return res
}

func (r *Resolver) resolve(source, importer string, kind module.ResolveKind) *Result {
	spec, query := splitQuery(source)

	if r.cfg.IsExternal(spec) || isURL(spec) {
		return &Result{ResolvedPath: spec, External: true}
	}
	if r.cfg.Output.TargetEnv == config.TargetNode && IsBuiltin(spec) {
		return &Result{ResolvedPath: spec, External: true}
	}

	spec = r.applyAlias(spec)

	dir := r.cfg.Root
	if importer != "" {
		dir = filepath.Dir(importer)
	}

	var resolved string
	switch {
	case filepath.IsAbs(spec):
		resolved = r.resolveFile(spec)
		if resolved == "" && strings.HasPrefix(spec, "/") {
			// Root-relative URLs in HTML and CSS.
			resolved = r.resolveFile(filepath.Join(r.cfg.Root, spec))
		}
	case isRelative(spec):
		resolved = r.resolveRelative(dir, spec)
	default:
		if replaced, ok := r.browserReplacement(dir, spec); ok {
			if replaced == "" {
				return nil
			}
			spec = replaced
			if isRelative(spec) {
				resolved = r.resolveRelative(dir, spec)
				break
			}
		}
		resolved = r.resolvePackage(dir, spec, kind)
	}
	if resolved == "" {
		r.logger.Debug("cannot resolve %q from %q", source, importer)
		return nil
	}
	return r.result(resolved, query)
}

func (r *Resolver) resolveRelative(dir, spec string) string {
	target := filepath.Join(dir, spec)
	if replaced, ok := r.browserReplacement(dir, spec); ok && replaced != "" {
		if pkg := r.packages.Nearest(dir); pkg != nil {
			target = filepath.Join(pkg.Dir, replaced)
		}
	}
	return r.resolveFile(target)
}

func (r *Resolver) result(resolved, query string) *Result {
	res := &Result{ResolvedPath: r.realPath(resolved), Query: query, SideEffects: true}
	if pkg := r.packages.Nearest(filepath.Dir(resolved)); pkg != nil && pkg.Name != "" {
		rel, err := filepath.Rel(pkg.Dir, resolved)
		if err == nil {
			res.SideEffects = pkg.HasSideEffects(filepath.ToSlash(rel))
		}
		res.PackageName = pkg.Name
		res.PackageVersion = pkg.Version
	}
	return res
}

// realPath follows symlinks when the configuration asks for it and the
// file system can.
func (r *Resolver) realPath(p string) string {
	if !r.cfg.Resolve.Symlinks {
		return p
	}
	if ev, ok := r.fs.(interface{ EvalSymlinks(string) (string, error) }); ok {
		if real, err := ev.EvalSymlinks(p); err == nil {
			return real
		}
	}
	return p
}

func (r *Resolver) applyAlias(spec string) string {
	for _, rule := range r.alias {
		if rule.Regex != nil {
			if rule.Regex.MatchString(spec) {
				return rule.Regex.ReplaceAllString(spec, rule.Replacement)
			}
			continue
		}
		if spec == rule.Prefix {
			return rule.Replacement
		}
		if rest, ok := strings.CutPrefix(spec, rule.Prefix); ok && (strings.HasSuffix(rule.Prefix, "/") || strings.HasPrefix(rest, "/")) {
			return rule.Replacement + rest
		}
	}
	return spec
}

// browserReplacement consults the object form of the browser field of the
// package owning dir.
func (r *Resolver) browserReplacement(dir, spec string) (string, bool) {
	if r.cfg.Output.TargetEnv != config.TargetBrowser {
		return "", false
	}
	pkg := r.packages.Nearest(dir)
	if pkg == nil {
		return "", false
	}
	key := spec
	if isRelative(spec) {
		rel, err := filepath.Rel(pkg.Dir, filepath.Join(dir, spec))
		if err != nil {
			return "", false
		}
		key = "./" + filepath.ToSlash(rel)
	}
	return pkg.BrowserReplacement(key)
}

// resolveFile probes p as a file, with each configured extension, and as a
// directory.
func (r *Resolver) resolveFile(p string) string {
	if fs.IsFile(r.fs, p) {
		return p
	}
	for _, ext := range r.cfg.Resolve.Extensions {
		if candidate := p + "." + strings.TrimPrefix(ext, "."); fs.IsFile(r.fs, candidate) {
			return candidate
		}
	}
	if fs.IsDir(r.fs, p) {
		return r.resolveDir(p, module.KindImport)
	}
	return ""
}

func (r *Resolver) resolveDir(dir string, kind module.ResolveKind) string {
	if pkg, err := r.packages.Load(filepath.Join(dir, "package.json")); err == nil {
		if main, ok := pkg.MainField(r.mainFields(kind)); ok {
			if found := r.resolveFile(filepath.Join(dir, main)); found != "" {
				return found
			}
		}
	}
	index := filepath.Join(dir, "index")
	for _, ext := range r.cfg.Resolve.Extensions {
		if candidate := index + "." + strings.TrimPrefix(ext, "."); fs.IsFile(r.fs, candidate) {
			return candidate
		}
	}
	return ""
}

// resolvePackage resolves a bare specifier by walking node_modules upward
// from dir, then falling back to workspace packages.
func (r *Resolver) resolvePackage(dir, spec string, kind module.ResolveKind) string {
	name, subpath := SplitPackage(spec)
	if name == "" {
		return ""
	}
	for cur := dir; ; {
		pkgDir := filepath.Join(cur, "node_modules", name)
		if fs.IsDir(r.fs, pkgDir) {
			if found := r.resolveInPackage(pkgDir, subpath, kind); found != "" {
				return found
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	if pkgDir, ok := r.workspaces[name]; ok {
		return r.resolveInPackage(pkgDir, subpath, kind)
	}
	return ""
}

func (r *Resolver) resolveInPackage(pkgDir, subpath string, kind module.ResolveKind) string {
	pkg, err := r.packages.Load(filepath.Join(pkgDir, "package.json"))
	if err != nil {
		return r.resolveFile(filepath.Join(pkgDir, subpath))
	}
	if pkg.Exports != nil {
		target, err := pkg.ResolveExport(subpath, &packagejson.ResolveOptions{Conditions: r.conditions(kind)})
		if err != nil {
			r.logger.Warning("%s: %q %v", pkg.Name, subpath, err)
			return ""
		}
		p := filepath.Join(pkgDir, target)
		if fs.IsFile(r.fs, p) {
			return p
		}
		return ""
	}
	if subpath == "." {
		return r.resolveDir(pkgDir, kind)
	}
	return r.resolveFile(filepath.Join(pkgDir, subpath))
}

// mainFields returns the package.json field order for kind.
func (r *Resolver) mainFields(kind module.ResolveKind) []string {
	if len(r.cfg.Resolve.MainFields) > 0 {
		return r.cfg.Resolve.MainFields
	}
	if r.cfg.Output.TargetEnv == config.TargetNode {
		if kind == module.KindRequire {
			return []string{"main", "module"}
		}
		return []string{"module", "main"}
	}
	return []string{"browser", "module", "main"}
}

// conditions returns the export conditions for kind: "import" and
// "require" are mutually exclusive, "browser" only applies to browser
// targets and "development" turns into "production" in production mode.
func (r *Resolver) conditions(kind module.ResolveKind) []string {
	var out []string
	for _, c := range r.cfg.Resolve.Conditions {
		switch c {
		case "import":
			if kind == module.KindRequire {
				continue
			}
		case "require":
			if kind != module.KindRequire {
				continue
			}
		case "browser":
			if r.cfg.Output.TargetEnv != config.TargetBrowser {
				continue
			}
		case "development":
			if r.cfg.Production() {
				c = "production"
			}
		}
		out = append(out, c)
	}
	if r.cfg.Output.TargetEnv == config.TargetNode && !slices.Contains(out, "node") {
		out = append([]string{"node"}, out...)
	}
	return out
}

// SplitPackage splits a bare specifier into its package name and the
// "./"-prefixed subpath ("." for the package root).
func SplitPackage(spec string) (name, subpath string) {
	parts := strings.SplitN(spec, "/", 3)
	n := 1
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 {
			return "", ""
		}
		n = 2
	}
	name = strings.Join(parts[:min(n, len(parts))], "/")
	rest := strings.TrimPrefix(spec, name)
	if rest == "" {
		return name, "."
	}
	return name, "." + rest
}

func splitQuery(source string) (spec, query string) {
	if i := strings.IndexByte(source, '?'); i >= 0 {
		return source[:i], source[i:]
	}
	return source, ""
}

func isRelative(spec string) bool {
	return spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../")
}

func isURL(spec string) bool {
	return strings.HasPrefix(spec, "http://") ||
		strings.HasPrefix(spec, "https://") ||
		strings.HasPrefix(spec, "//") ||
		strings.HasPrefix(spec, "data:")
}

var builtins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "crypto": true,
	"events": true, "fs": true, "http": true, "https": true, "module": true,
	"net": true, "os": true, "path": true, "process": true, "stream": true,
	"string_decoder": true, "timers": true, "tty": true, "url": true,
	"util": true, "worker_threads": true, "zlib": true,
}

// IsBuiltin reports whether spec names a Node.js builtin module.
func IsBuiltin(spec string) bool {
	if rest, ok := strings.CutPrefix(spec, "node:"); ok {
		return rest != ""
	}
	name, _, _ := strings.Cut(spec, "/")
	return builtins[name]
}

// FindWorkspaceRoot walks up the directory tree to find the workspace root.
// Returns the directory containing node_modules, workspace configuration, or .git.
func FindWorkspaceRoot(fsys fs.FileSystem, startDir string) string {
	dir := startDir
	for {
		if fs.IsDir(fsys, filepath.Join(dir, "node_modules")) {
			return dir
		}
		if pkg, err := packagejson.ParseFile(fsys, filepath.Join(dir, "package.json")); err == nil && len(pkg.WorkspacePatterns()) > 0 {
			return dir
		}
		if fs.IsDir(fsys, filepath.Join(dir, ".git")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

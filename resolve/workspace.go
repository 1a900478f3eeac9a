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

package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/packagejson"
)

// WorkspacePackage represents a package in a monorepo workspace.
type WorkspacePackage struct {
	Name string // Package name from package.json
	Path string // Absolute path to package directory
}

// DiscoverWorkspacePackages finds all workspace packages based on the
// workspaces field in the root package.json. Bare specifiers naming one of
// them resolve to its directory when no node_modules link exists.
// Returns nil if no workspaces are defined.
func DiscoverWorkspacePackages(fsys fs.FileSystem, rootDir string) ([]WorkspacePackage, error) {
	rootPkg, err := packagejson.ParseFile(fsys, filepath.Join(rootDir, "package.json"))
	if err != nil {
		return nil, err
	}

	patterns := rootPkg.WorkspacePatterns()
	if len(patterns) == 0 {
		return nil, nil
	}

	var packages []WorkspacePackage
	for _, pattern := range patterns {
		dirs, err := expandWorkspacePattern(fsys, rootDir, pattern)
		if err != nil {
			continue // skip patterns that can't be expanded
		}
		for _, dir := range dirs {
			pkg, err := parseWorkspacePackage(fsys, dir)
			if err != nil {
				continue // skip directories without valid package.json
			}
			packages = append(packages, pkg)
		}
	}
	return packages, nil
}

// expandWorkspacePattern expands a workspace glob pattern to matching
// directories. Literal directories are returned as is; anything with a
// wildcard is matched with doublestar against the directory tree.
func expandWorkspacePattern(fsys fs.FileSystem, rootDir, pattern string) ([]string, error) {
	pattern = strings.TrimPrefix(strings.TrimSuffix(pattern, "/"), "./")

	if !strings.Contains(pattern, "*") {
		fullPath := filepath.Join(rootDir, pattern)
		if fsys.Exists(fullPath) {
			return []string{fullPath}, nil
		}
		return nil, nil
	}

	var dirs []string
	err := walkDirs(fsys, rootDir, "", func(rel string) bool {
		if strings.HasPrefix(filepath.Base(rel), ".") || filepath.Base(rel) == "node_modules" {
			return false
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			dirs = append(dirs, filepath.Join(rootDir, rel))
		}
		return true
	})
	return dirs, err
}

// walkDirs visits every directory below root depth-first. visit returns
// false to skip a directory's children.
func walkDirs(fsys fs.FileSystem, root, rel string, visit func(rel string) bool) error {
	entries, err := fsys.ReadDir(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		child := filepath.Join(rel, entry.Name())
		if visit(child) {
			if err := walkDirs(fsys, root, child, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseWorkspacePackage reads a package.json from a directory and returns
// a WorkspacePackage with its name and path.
func parseWorkspacePackage(fsys fs.FileSystem, dir string) (WorkspacePackage, error) {
	pkg, err := packagejson.ParseFile(fsys, filepath.Join(dir, "package.json"))
	if err != nil {
		return WorkspacePackage{}, err
	}
	if pkg.Name == "" {
		return WorkspacePackage{}, fmt.Errorf("package at %s has no name", dir)
	}
	return WorkspacePackage{Name: pkg.Name, Path: dir}, nil
}

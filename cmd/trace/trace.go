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

// Package trace provides the trace command for farm.
package trace

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/farm-fe/farm-sub001/compiler"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/internal/output"
	"github.com/farm-fe/farm-sub001/internal/project"
)

// Cmd is the trace cobra command that compiles the project and prints its
// module graph or the files the build depends on.
var Cmd = &cobra.Command{
	Use:   "trace",
	Short: "Print the module graph of the project",
	Long: `Compile the project and print a JSON snapshot of its module graph:
every module with its content hash and package, plus the dependency edges
in both directions.

Use --format dependencies to list the files the build depends on instead.
--glob keeps only the modules (or files) whose id matches the pattern.`,
	Example: `  # Trace the module graph
  farm trace

  # Only modules under src/components
  farm trace --glob "src/components/**"

  # Files a watcher would need to observe
  farm trace --format dependencies`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "graph", "Output format (graph, dependencies)")
	Cmd.Flags().String("glob", "", "Glob pattern over module ids (e.g. \"src/**/*.ts\")")
	Cmd.Flags().StringP("mode", "m", "development", "Compilation mode (development, production)")
}

func run(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "graph", "dependencies":
		// valid
	default:
		return fmt.Errorf("invalid format %q: must be one of graph, dependencies", format)
	}
	pattern, _ := cmd.Flags().GetString("glob")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern %q", pattern)
	}

	mode, _ := cmd.Flags().GetString("mode")
	c, logger, err := project.Open(mode)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warning("closing cache: %v", err)
		}
	}()
	if err := c.Compile(cmd.Context()); err != nil {
		logger.Error(err, "compilation failed")
		return err
	}

	osfs := fs.NewOSFileSystem()
	if format == "dependencies" {
		deps := c.TraceDependencies()
		if pattern != "" {
			root := c.Context().Root()
			deps = slices.DeleteFunc(deps, func(path string) bool {
				rel, err := filepath.Rel(root, path)
				return err != nil || !matches(pattern, filepath.ToSlash(rel))
			})
		}
		return output.JSON(osfs, deps)
	}
	return output.JSON(osfs, Filter(c.TraceModuleGraph(), pattern))
}

func matches(pattern, id string) bool {
	ok, _ := doublestar.Match(pattern, id)
	return ok
}

// Filter keeps the modules whose id matches pattern and the edges between
// them. An empty pattern keeps everything.
func Filter(trace *compiler.ModuleGraphTrace, pattern string) *compiler.ModuleGraphTrace {
	if pattern == "" {
		return trace
	}
	keep := make(map[string]bool)
	out := &compiler.ModuleGraphTrace{
		Root:         trace.Root,
		Modules:      []compiler.TracedModule{},
		Edges:        make(map[string][]string),
		ReverseEdges: make(map[string][]string),
	}
	for _, m := range trace.Modules {
		if matches(pattern, m.ID) {
			keep[m.ID] = true
			out.Modules = append(out.Modules, m)
		}
	}
	prune := func(edges map[string][]string, into map[string][]string) {
		for from, tos := range edges {
			if !keep[from] {
				continue
			}
			kept := []string{}
			for _, to := range tos {
				if keep[to] {
					kept = append(kept, to)
				}
			}
			into[from] = kept
		}
	}
	prune(trace.Edges, out.Edges)
	prune(trace.ReverseEdges, out.ReverseEdges)
	return out
}

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

// Package build provides the build command for farm.
package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/farm-fe/farm-sub001/internal/project"
)

// Cmd is the build cobra command that compiles the project entries and
// writes the resources to the output directory.
var Cmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project and write the output",
	Long: `Compile every configured entry into resources and write them to the
output directory (default: dist).

Configuration is read from farm.config.{yaml,yml,json,toml} in the root
directory, or from the file given with --config.`,
	Example: `  # Production build of the current directory
  farm build

  # Development build of another project
  farm build --root ./site --mode development

  # Print the written files
  farm build --list`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("mode", "m", "production", "Compilation mode (development, production)")
	Cmd.Flags().Bool("list", false, "Print the paths of the written files to stdout")
}

func run(cmd *cobra.Command, args []string) error {
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
	written, err := c.WriteResources()
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	out := c.Context().Config.Output.Path
	logger.Info("wrote %d files to %s (%d warnings)", len(written), out, len(c.Context().Warnings()))
	if list, _ := cmd.Flags().GetBool("list"); list {
		for _, path := range written {
			rel, err := filepath.Rel(out, path)
			if err != nil {
				rel = path
			}
			fmt.Fprintln(os.Stdout, filepath.ToSlash(rel))
		}
	}
	return nil
}

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

// Package dev provides the dev command for farm.
package dev

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/farm-fe/farm-sub001/internal/project"
	"github.com/farm-fe/farm-sub001/server"
)

// Cmd is the dev cobra command that serves the project from memory and
// pushes hot updates as files change.
var Cmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"start"},
	Short:   "Start the development server",
	Long: `Compile the project, serve the resources from memory and watch the
files behind them. Changes are compiled incrementally and pushed to the
browser over the HMR websocket.

Prometheus metrics are served at /__farm/metrics.`,
	Example: `  # Serve the current directory on the configured HMR port
  farm dev

  # Serve on another address
  farm dev --addr 127.0.0.1:3000`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("mode", "m", "development", "Compilation mode (development, production)")
	Cmd.Flags().String("addr", "", "Listen address (default: HMR host and port)")
	Cmd.Flags().Duration("debounce", 0, "Wait this long for file events to settle (default: 50ms)")
	Cmd.Flags().StringSlice("ignore", nil, "Globs the watcher ignores (default: node_modules, .git, .farm)")
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

	addr, _ := cmd.Flags().GetString("addr")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	ignore, _ := cmd.Flags().GetStringSlice("ignore")
	opts := server.Options{Addr: addr, Debounce: debounce}
	if len(ignore) > 0 {
		opts.Ignore = ignore
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(c, opts).Run(ctx)
}

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

// Package project opens the project a CLI command works on: it loads the
// config named by the root flags, builds the logger and creates the
// compiler over the OS file system.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/farm-fe/farm-sub001/compiler"
	"github.com/farm-fe/farm-sub001/config"
	"github.com/farm-fe/farm-sub001/fs"
	"github.com/farm-fe/farm-sub001/internal/logging"
)

// Logger returns a logger writing to stderr at the --log-level level.
func Logger() (*logging.Logger, error) {
	return logging.New(os.Stderr, viper.GetString("log-level"))
}

// Config loads the configuration from --config, or from a default config
// file in --root. A non-empty mode overrides the configured one.
func Config(mode string) (*config.Config, error) {
	root, err := filepath.Abs(viper.GetString("root"))
	if err != nil {
		return nil, fmt.Errorf("invalid root directory: %w", err)
	}
	v := config.NewViper()
	if mode != "" {
		v.Set("mode", mode)
	}
	return config.LoadViper(v, viper.GetString("config"), root)
}

// Open loads the project and returns a compiler for it. Callers close the
// compiler when done.
func Open(mode string) (*compiler.Compiler, *logging.Logger, error) {
	logger, err := Logger()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := Config(mode)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("project root %s, mode %s", cfg.Root, cfg.Mode)
	return compiler.New(cfg, fs.NewOSFileSystem(), logger), logger, nil
}

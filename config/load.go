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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultFiles are the config file names looked up in the project root
// when no explicit path is given.
var DefaultFiles = []string{"farm.config.yaml", "farm.config.yml", "farm.config.json", "farm.config.toml"}

// EnvPrefix prefixes environment overrides, e.g. FARM_MODE=production or
// FARM_OUTPUT__PUBLICPATH=/static/.
const EnvPrefix = "FARM"

// keyDelimiter separates nested keys. Dotted keys are common in `define`
// ("process.env.NODE_ENV"), so "." cannot be used.
const keyDelimiter = "::"

// NewViper returns a viper instance set up for config files and
// FARM_-prefixed environment overrides.
func NewViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "__"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path on top of Default and normalizes the
// result. An empty path looks for one of DefaultFiles in root; a missing
// file is not an error in that case.
func Load(path, root string) (*Config, error) {
	return LoadViper(NewViper(), path, root)
}

// LoadViper is Load over a caller-provided viper instance, so that values
// set on v (command line flags, say) take precedence over the file.
func LoadViper(v *viper.Viper, path, root string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = findDefault(root)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicit || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, err
	}
	if root != "" && (cfg.Root == "" || cfg.Root == ".") {
		cfg.Root = root
	} else if root != "" && !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(root, cfg.Root)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper decodes the settings held by v on top of Default. Environment
// variables only override keys viper already knows, so each default key is
// registered first.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	for _, key := range []string{
		"mode", "root",
		"output" + keyDelimiter + "path",
		"output" + keyDelimiter + "publicPath",
		"output" + keyDelimiter + "format",
		"output" + keyDelimiter + "targetEnv",
		"persistentCache" + keyDelimiter + "enabled",
		"persistentCache" + keyDelimiter + "store",
		"persistentCache" + keyDelimiter + "cacheDir",
		"hmr" + keyDelimiter + "port",
	} {
		_ = v.BindEnv(key)
	}
	// Maps decode by merging, so a configured input replaces the default
	// one instead of extending it.
	if v.IsSet("input") {
		cfg.Input = nil
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func findDefault(root string) string {
	for _, name := range DefaultFiles {
		candidate := filepath.Join(root, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

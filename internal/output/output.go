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

// Package output provides shared output utilities for farm CLI commands.
package output

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/farm-fe/farm-sub001/fs"
)

// JSON formats v as indented JSON and outputs it to stdout or a file.
// If viper's "output" flag is set, writes to that file; otherwise prints to stdout.
func JSON(osfs fs.FileSystem, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return Text(osfs, string(out))
}

// Text outputs s followed by a newline to stdout or the "output" file.
func Text(osfs fs.FileSystem, s string) error {
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(s+"\n"), 0644)
	}
	fmt.Println(s)
	return nil
}

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

// Package version reports how the farm binary was built.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/farm-fe/farm-sub001/cache"
)

// Set at build time via -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

const esbuildModule = "github.com/evanw/esbuild"

// Info describes a farm binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	Go        string `json:"go"`
	// Esbuild is the version of the transformer linked in, which decides
	// the output of script transforms and minification.
	Esbuild string `json:"esbuild"`
	// CacheFormat is the persistent cache entry format this binary reads
	// and writes.
	CacheFormat int `json:"cacheFormat"`
}

// Get collects the version of the running binary. Values missing from
// ldflags fall back to the module build info.
func Get() Info {
	info := Info{
		Version:     Version,
		GitCommit:   GitCommit,
		BuildTime:   BuildTime,
		Go:          runtime.Version(),
		Esbuild:     "unknown",
		CacheFormat: cache.FormatVersion,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if dep.Path == esbuildModule {
			info.Esbuild = dep.Version
		}
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// String renders the one-line form printed by `farm version`.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("farm " + i.Version)
	if i.GitCommit != "unknown" {
		commit := i.GitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		b.WriteString(" (" + commit + ")")
	}
	b.WriteString(" esbuild " + i.Esbuild)
	b.WriteString(" " + i.Go)
	return b.String()
}

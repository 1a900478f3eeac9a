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

package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farm-fe/farm-sub001/cache"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, cache.FormatVersion, info.CacheFormat)
	assert.Equal(t, runtime.Version(), info.Go)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Esbuild)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.2.0", GitCommit: "0123456789abcdef", Go: "go1.25.5", Esbuild: "v0.27.2"}
	assert.Equal(t, "farm v1.2.0 (0123456) esbuild v0.27.2 go1.25.5", info.String())

	info.GitCommit = "unknown"
	assert.Equal(t, "farm v1.2.0 esbuild v0.27.2 go1.25.5", info.String())
}

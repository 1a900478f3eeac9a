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

package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/compiler"
	"github.com/farm-fe/farm-sub001/core"
	"github.com/farm-fe/farm-sub001/internal/mapfs"
	"github.com/farm-fe/farm-sub001/resource"
	"github.com/farm-fe/farm-sub001/server"
	"github.com/farm-fe/farm-sub001/testutil"
)

var app = map[string]string{
	"index.html": `<html><head></head><body><script type="module" src="./main.js"></script></body></html>`,
	"main.js":    "import { dep } from \"./dep.js\";\nconsole.log(dep);\n",
	"dep.js":     "export const dep = 1;\n",
}

func newServer(t *testing.T) (*server.Server, *compiler.Compiler, *mapfs.MapFileSystem, *httptest.Server) {
	t.Helper()
	fsys := testutil.NewProject(t, app)
	cfg := testutil.NewConfig(t, nil)
	c := compiler.New(cfg, fsys, nil)
	t.Cleanup(func() { _ = c.Close() })

	s := server.New(c, server.Options{})
	require.NoError(t, s.Compile(context.Background()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Hub().Close()
		ts.Close()
	})
	return s, c, fsys, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func dial(t *testing.T, s *server.Server, ts *httptest.Server, c *compiler.Compiler) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + c.Context().Config.HMR.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return s.Hub().Len() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestServeResources(t *testing.T) {
	_, c, _, ts := newServer(t)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "__farm_ms__.bootstrap();")
	assert.Contains(t, body, c.Context().Config.HMR.Path, "hmr client injected")

	var script string
	for _, r := range c.Resources() {
		if r.Type == resource.TypeJs {
			script = r.Name
		}
	}
	require.NotEmpty(t, script)
	resp, body = get(t, ts.URL+"/"+script)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"dep.js": function(`)

	resp, _ = get(t, ts.URL+"/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get(t, ts.URL+"/some/route")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "__farm_ms__.bootstrap();")

	resp, err := http.Post(ts.URL+"/", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServeCompressed(t *testing.T) {
	_, _, _, ts := newServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, _, ts := newServer(t)

	resp, body := get(t, ts.URL+server.MetricsPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `farm_compiles_total{status="success"} 1`)
	assert.Contains(t, body, "farm_plugin_hook_duration_seconds_bucket")
	assert.Contains(t, body, "farm_modules 3")
}

func TestHMRBroadcastsUpdate(t *testing.T) {
	s, c, fsys, ts := newServer(t)
	conn := dial(t, s, ts, c)

	fsys.UpdateFile(filepath.Join(testutil.ProjectRoot, "dep.js"), "export const dep = 2;\n")
	res := s.HandleChanges(context.Background(), []core.UpdatePath{
		{Path: filepath.Join(testutil.ProjectRoot, "dep.js"), Type: core.UpdateUpdated},
	})
	require.NotNil(t, res)

	var msg struct {
		Type   string         `json:"type"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, server.MessageUpdate, msg.Type)
	assert.Equal(t, []any{"dep.js"}, msg.Result["changed"])
	assert.Contains(t, msg.Result["mutableModules"], "dep = 2")
}

func TestHMRBroadcastsError(t *testing.T) {
	s, c, fsys, ts := newServer(t)
	conn := dial(t, s, ts, c)

	fsys.UpdateFile(filepath.Join(testutil.ProjectRoot, "main.js"), "import \"./missing.js\";\n")
	res := s.HandleChanges(context.Background(), []core.UpdatePath{
		{Path: "main.js", Type: core.UpdateUpdated},
	})
	assert.Nil(t, res)

	var msg server.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, server.MessageError, msg.Type)
	assert.Contains(t, msg.Message, "./missing.js")
}

func TestUnchangedBatchIsNotBroadcast(t *testing.T) {
	s, c, _, ts := newServer(t)
	conn := dial(t, s, ts, c)

	res := s.HandleChanges(context.Background(), []core.UpdatePath{
		{Path: "README.md", Type: core.UpdateUpdated},
	})
	require.NotNil(t, res)
	assert.Empty(t, res.Updated)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHubCloseDisconnects(t *testing.T) {
	s, c, _, ts := newServer(t)
	conn := dial(t, s, ts, c)

	s.Hub().Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, s.Hub().Len())
}

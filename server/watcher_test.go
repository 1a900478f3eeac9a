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

package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farm-fe/farm-sub001/core"
)

func TestUpdateType(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want core.UpdateType
		ok   bool
	}{
		{fsnotify.Create, core.UpdateAdded, true},
		{fsnotify.Write, core.UpdateUpdated, true},
		{fsnotify.Remove, core.UpdateRemoved, true},
		{fsnotify.Rename, core.UpdateRemoved, true},
		{fsnotify.Chmod, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got, ok := updateType(tt.op)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge(t *testing.T) {
	assert.Equal(t, core.UpdateAdded, merge(core.UpdateAdded, core.UpdateUpdated))
	assert.Equal(t, core.UpdateUpdated, merge(core.UpdateRemoved, core.UpdateAdded))
	assert.Equal(t, core.UpdateRemoved, merge(core.UpdateAdded, core.UpdateRemoved))
	assert.Equal(t, core.UpdateUpdated, merge(core.UpdateUpdated, core.UpdateUpdated))
}

func TestWatcherReferenceCountsDirs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	ignored := filepath.Join(dir, "node_modules", "lib", "index.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(ignored), 0o755))

	w, err := NewWatcher(10*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Add(a, b, ignored))
	assert.Equal(t, []string{dir}, w.Dirs())
	w.Remove(a)
	assert.Equal(t, []string{dir}, w.Dirs())
	w.Remove(b)
	assert.Empty(t, w.Dirs())
}

func TestWatcherBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o644))

	w, err := NewWatcher(50*time.Millisecond, nil, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Add(file))

	batches := make(chan []core.UpdatePath, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Run(ctx, func(_ context.Context, batch []core.UpdatePath) {
			batches <- batch
		})
	}()

	require.NoError(t, os.WriteFile(file, []byte("2"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("3"), 0o644))

	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		assert.Equal(t, file, batch[0].Path)
		assert.Equal(t, core.UpdateUpdated, batch[0].Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch reported")
	}

	added := filepath.Join(dir, "new.js")
	require.NoError(t, os.WriteFile(added, []byte("x"), 0o644))
	select {
	case batch := <-batches:
		require.Len(t, batch, 1)
		assert.Equal(t, added, batch[0].Path)
		assert.Equal(t, core.UpdateAdded, batch[0].Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch reported")
	}
}

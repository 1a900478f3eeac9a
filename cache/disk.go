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

package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"

	"github.com/farm-fe/farm-sub001/fs"
)

const indexFile = "index.json"

type diskIndex struct {
	Entries map[string]string `json:"entries"`
}

// DiskStore writes each payload to its own file under dir/data and keeps
// a key -> file index in dir/index.json.
type DiskStore struct {
	mu sync.Mutex

	fsys      fs.FileSystem
	dataDir   string
	indexPath string
	entries   map[string]string
}

// NewDiskStore opens or creates a store rooted at dir.
func NewDiskStore(fsys fs.FileSystem, dir string) (*DiskStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	s := &DiskStore{
		fsys:      fsys,
		dataDir:   filepath.Join(dir, "data"),
		indexPath: filepath.Join(dir, indexFile),
		entries:   map[string]string{},
	}
	if err := fsys.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) loadIndex() error {
	raw, err := s.fsys.ReadFile(s.indexPath)
	if err != nil {
		// A missing index is an empty cache.
		return nil
	}
	var idx diskIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		// A corrupt index only costs a cold build.
		return nil
	}
	if idx.Entries != nil {
		s.entries = idx.Entries
	}
	return nil
}

func (s *DiskStore) persistIndexLocked() error {
	raw, err := json.Marshal(diskIndex{Entries: s.entries})
	if err != nil {
		return err
	}
	return s.fsys.WriteFile(s.indexPath, raw, 0o644)
}

func hashedName(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

func (s *DiskStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	file, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	raw, err := s.fsys.ReadFile(filepath.Join(s.dataDir, file))
	if err != nil {
		return nil, false, nil
	}
	return raw, true, nil
}

func (s *DiskStore) Set(_ context.Context, key string, value []byte) error {
	file := hashedName(key)
	if err := s.fsys.WriteFile(filepath.Join(s.dataDir, file), value, 0o644); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = file
	return s.persistIndexLocked()
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.entries[key]
	if !ok {
		return nil
	}
	_ = s.fsys.Remove(filepath.Join(s.dataDir, file))
	delete(s.entries, key)
	return s.persistIndexLocked()
}

func (s *DiskStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistIndexLocked()
}

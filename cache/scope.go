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
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/farm-fe/farm-sub001/internal/set"
)

const (
	scopeManifestKey = "scope/manifest"
	scopeDataPrefix  = "scope/data/"
)

// IDKind discriminates the ids a scope entry is tagged with.
type IDKind int

const (
	// IDReference tags an entry with a thing it was derived from, such as
	// a module id; RemoveByReference drops every entry tagged with it.
	IDReference IDKind = iota
	// IDScope groups entries for GetScopeRef.
	IDScope
)

// IDType is one tag of a scope entry.
type IDType struct {
	Kind  IDKind
	Value string
}

// Reference returns a reference tag.
func Reference(v string) IDType { return IDType{Kind: IDReference, Value: v} }

// Scope returns a scope tag.
func Scope(v string) IDType { return IDType{Kind: IDScope, Value: v} }

func (t IDType) String() string {
	if t.Kind == IDScope {
		return "s:" + t.Value
	}
	return "r:" + t.Value
}

func parseIDType(s string) (IDType, error) {
	switch {
	case strings.HasPrefix(s, "s:"):
		return Scope(s[2:]), nil
	case strings.HasPrefix(s, "r:"):
		return Reference(s[2:]), nil
	}
	return IDType{}, fmt.Errorf("invalid scope id %q", s)
}

// ScopeKey names a scope entry and tags it.
type ScopeKey struct {
	Name string
	IDs  []IDType
}

// ScopeEntry is a stored value with its key.
type ScopeEntry struct {
	Key   ScopeKey
	Value []byte
}

type scopeManifest struct {
	// NameMap maps entry name -> reference id.
	NameMap map[string]string `json:"nameMap"`
	// ScopeMap maps encoded IDType -> reference ids.
	ScopeMap map[string][]string `json:"scopeMap"`
	// Tags maps reference id -> encoded IDTypes of the entry.
	Tags map[string][]string `json:"tags"`
	// Payloads maps reference id -> content-hashed payload key.
	Payloads map[string]string `json:"payloads"`
}

// ScopeStore is a keyed store plugins use to persist state grouped by
// scope and invalidated by reference.
type ScopeStore struct {
	mu       sync.RWMutex
	nameMap  map[string]string
	scopeMap map[IDType]set.Set[string]
	entries  map[string]ScopeEntry
}

// NewScopeStore creates an empty store.
func NewScopeStore() *ScopeStore {
	return &ScopeStore{
		nameMap:  make(map[string]string),
		scopeMap: make(map[IDType]set.Set[string]),
		entries:  make(map[string]ScopeEntry),
	}
}

func referenceID(name string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(name))
}

// Set stores value under key, replacing any entry with the same name.
func (s *ScopeStore) Set(key ScopeKey, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := referenceID(key.Name)
	s.removeLocked(ref)
	s.nameMap[key.Name] = ref
	for _, id := range key.IDs {
		if s.scopeMap[id] == nil {
			s.scopeMap[id] = set.New[string]()
		}
		s.scopeMap[id].Add(ref)
	}
	s.entries[ref] = ScopeEntry{
		Key:   ScopeKey{Name: key.Name, IDs: slices.Clone(key.IDs)},
		Value: slices.Clone(value),
	}
}

// Get returns the value stored under name.
func (s *ScopeStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.nameMap[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(s.entries[ref].Value), true
}

// GetScopeRef returns every entry tagged Scope(scope), ordered by name.
func (s *ScopeStore) GetScopeRef(scope string) []ScopeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ScopeEntry
	for ref := range s.scopeMap[Scope(scope)] {
		out = append(out, s.entries[ref])
	}
	slices.SortFunc(out, func(a, b ScopeEntry) int { return strings.Compare(a.Key.Name, b.Key.Name) })
	return out
}

// RemoveByReference deletes every entry tagged Reference(ref).
func (s *ScopeStore) RemoveByReference(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range set.Sorted(s.scopeMap[Reference(ref)]) {
		s.removeLocked(r)
	}
}

// Len returns the number of entries.
func (s *ScopeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *ScopeStore) removeLocked(ref string) {
	entry, ok := s.entries[ref]
	if !ok {
		return
	}
	for _, id := range entry.Key.IDs {
		if refs := s.scopeMap[id]; refs != nil {
			refs.Remove(ref)
			if refs.Len() == 0 {
				delete(s.scopeMap, id)
			}
		}
	}
	delete(s.nameMap, entry.Key.Name)
	delete(s.entries, ref)
}

// Persist writes the manifest once and every payload under a key derived
// from its content, then drops payloads the manifest no longer refers to.
func (s *ScopeStore) Persist(ctx context.Context, store Store) error {
	s.mu.RLock()
	manifest := scopeManifest{
		NameMap:  make(map[string]string, len(s.nameMap)),
		ScopeMap: make(map[string][]string, len(s.scopeMap)),
		Tags:     make(map[string][]string, len(s.entries)),
		Payloads: make(map[string]string, len(s.entries)),
	}
	payloads := make(map[string][]byte, len(s.entries))
	for name, ref := range s.nameMap {
		manifest.NameMap[name] = ref
	}
	for id, refs := range s.scopeMap {
		manifest.ScopeMap[id.String()] = set.Sorted(refs)
	}
	for ref, entry := range s.entries {
		tags := make([]string, len(entry.Key.IDs))
		for i, id := range entry.Key.IDs {
			tags[i] = id.String()
		}
		manifest.Tags[ref] = tags
		key := scopeDataPrefix + fmt.Sprintf("%016x", xxhash.Sum64(entry.Value))
		manifest.Payloads[ref] = key
		payloads[key] = entry.Value
	}
	s.mu.RUnlock()

	for key, value := range payloads {
		if err := store.Set(ctx, key, value); err != nil {
			return fmt.Errorf("writing scope entry: %w", err)
		}
	}
	data, err := Encode(manifest)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, scopeManifestKey, data); err != nil {
		return err
	}

	// Payloads of replaced or removed entries are no longer referenced.
	keys, err := store.Keys(ctx, scopeDataPrefix)
	if err != nil {
		return fmt.Errorf("listing scope entries: %w", err)
	}
	for _, key := range keys {
		if _, live := payloads[key]; live {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			return fmt.Errorf("deleting scope entry: %w", err)
		}
	}
	return nil
}

// Restore replaces the contents with what Persist wrote to store. A store
// without a manifest restores an empty scope store.
func (s *ScopeStore) Restore(ctx context.Context, store Store) error {
	data, ok, err := store.Get(ctx, scopeManifestKey)
	if err != nil {
		return fmt.Errorf("reading scope manifest: %w", err)
	}
	fresh := NewScopeStore()
	if ok {
		var manifest scopeManifest
		if err := Decode(data, &manifest); err != nil {
			return err
		}
		for name, ref := range manifest.NameMap {
			value, found, err := store.Get(ctx, manifest.Payloads[ref])
			if err != nil {
				return fmt.Errorf("reading scope entry %s: %w", name, err)
			}
			if !found {
				continue
			}
			key := ScopeKey{Name: name}
			for _, tag := range manifest.Tags[ref] {
				id, err := parseIDType(tag)
				if err != nil {
					return err
				}
				key.IDs = append(key.IDs, id)
			}
			fresh.Set(key, value)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nameMap = fresh.nameMap
	s.scopeMap = fresh.scopeMap
	s.entries = fresh.entries
	return nil
}

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

package script

import (
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

// Languages holds pre-initialized tree-sitter language grammars. Plain
// JavaScript parses with the TypeScript grammar, which is a superset.
var languages = struct {
	typescript *ts.Language
	tsx        *ts.Language
}{
	ts.NewLanguage(tsTypescript.LanguageTypescript()),
	ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// Parser pools for reuse.
var (
	tsParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.typescript); err != nil {
				panic("failed to set TypeScript language: " + err.Error())
			}
			return parser
		},
	}

	tsxParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.tsx); err != nil {
				panic("failed to set TSX language: " + err.Error())
			}
			return parser
		},
	}
)

func getParser(jsx bool) *ts.Parser {
	if jsx {
		return tsxParserPool.Get().(*ts.Parser)
	}
	return tsParserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser, jsx bool) {
	p.Reset()
	if jsx {
		tsxParserPool.Put(p)
		return
	}
	tsParserPool.Put(p)
}

// QueryManager manages the tree-sitter queries used to extract dependencies.
// Queries are compiled once per grammar.
type QueryManager struct {
	mu     sync.Mutex
	closed bool
	// queries maps grammar name to query name to compiled query.
	queries map[string]map[string]*ts.Query
}

// NewQueryManager creates a QueryManager with the named queries compiled for
// every grammar.
func NewQueryManager(names []string) (*QueryManager, error) {
	qm := &QueryManager{
		queries: map[string]map[string]*ts.Query{
			"typescript": {},
			"tsx":        {},
		},
	}
	for _, name := range names {
		if err := qm.loadQuery(name); err != nil {
			qm.Close()
			return nil, err
		}
	}
	return qm, nil
}

func (qm *QueryManager) loadQuery(name string) error {
	queryPath := path.Join("queries", "typescript", name+".scm")
	data, err := queryFiles.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query %s: %w", queryPath, err)
	}

	for grammar, lang := range map[string]*ts.Language{
		"typescript": languages.typescript,
		"tsx":        languages.tsx,
	} {
		query, qerr := ts.NewQuery(lang, string(data))
		if qerr != nil {
			return fmt.Errorf("failed to parse query %s for %s: %w", name, grammar, qerr)
		}
		qm.queries[grammar][name] = query
	}
	return nil
}

// Close releases all query resources. Safe to call multiple times.
func (qm *QueryManager) Close() {
	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return
	}
	qm.closed = true
	queries := qm.queries
	qm.queries = nil
	qm.mu.Unlock()

	for _, byName := range queries {
		for _, q := range byName {
			q.Close()
		}
	}
}

// Query returns a compiled query.
func (qm *QueryManager) Query(jsx bool, name string) (*ts.Query, error) {
	grammar := "typescript"
	if jsx {
		grammar = "tsx"
	}
	q, ok := qm.queries[grammar][name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s/%s", grammar, name)
	}
	return q, nil
}

// Global query manager singleton
var (
	globalQM     *QueryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

// GetQueryManager returns the global query manager instance.
func GetQueryManager() (*QueryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = NewQueryManager([]string{"deps"})
	})
	return globalQM, globalQMErr
}

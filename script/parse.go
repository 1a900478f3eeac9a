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
	"fmt"
	"sort"
	"strconv"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/farm-fe/farm-sub001/internal/set"
)

// AST is the analyzed form of a script. It holds no tree-sitter memory: the
// syntax tree is closed before Parse returns, so an AST may be cached,
// shared across goroutines and discarded freely.
type AST struct {
	Source     string      `json:"-"`
	Statements []Statement `json:"statements"`
	Idents     []IdentRef  `json:"-"`
	Deps       []Dep       `json:"deps"`

	TopLevelMark   Mark `json:"topLevelMark"`
	UnresolvedMark Mark `json:"unresolvedMark"`

	System ModuleSystem `json:"system"`
	// HotAccept is set when the module calls import.meta.hot.accept.
	HotAccept     bool `json:"hotAccept,omitempty"`
	TopLevelAwait bool `json:"topLevelAwait,omitempty"`
	// ImportMeta holds the ranges of every import.meta expression.
	ImportMeta []Range `json:"-"`

	// Names holds every identifier text appearing in the module.
	Names set.Set[string] `json:"-"`
	// Unresolved holds the free variables of the module.
	Unresolved set.Set[string] `json:"-"`
	// DefaultName is the binding synthesized for anonymous default exports.
	DefaultName string `json:"defaultName,omitempty"`
}

// Options tune Parse.
type Options struct {
	// JSX selects the TSX grammar.
	JSX bool
	// Globals allocates the top-level and unresolved marks. A fresh
	// allocator is used when nil.
	Globals *Globals
}

// SyntaxError reports the first syntax error in a source.
type SyntaxError struct {
	Line   int
	Column int
	Near   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d near %q", e.Line, e.Column, e.Near)
}

// Parse parses and analyzes a script.
func Parse(source []byte, opts Options) (*AST, error) {
	g := opts.Globals
	if g == nil {
		g = NewGlobals()
	}

	parser := getParser(opts.JSX)
	defer putParser(parser, opts.JSX)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, source)
	}

	ast := &AST{
		Source:         string(source),
		TopLevelMark:   g.NewMark(),
		UnresolvedMark: g.NewMark(),
		Names:          set.New[string](),
		Unresolved:     set.New[string](),
	}

	a := &analyzer{src: source, g: g, ast: ast}
	a.run(root)

	deps, err := extractDeps(root, source, opts.JSX, ast.Unresolved.Has("require"))
	if err != nil {
		return nil, err
	}
	ast.Deps = deps
	ast.System = detectSystem(ast)

	return ast, nil
}

// ResolveModuleMark recomputes the marks of a previously analyzed script
// against fresh globals. It is used when a module is restored from the
// persistent cache, where marks from another process are meaningless.
func ResolveModuleMark(ast *AST, jsx bool, g *Globals) (*AST, error) {
	return Parse([]byte(ast.Source), Options{JSX: jsx, Globals: g})
}

func syntaxError(root *ts.Node, source []byte) error {
	n := firstErrorNode(root)
	if n == nil {
		n = root
	}
	pos := n.StartPosition()
	near := n.Utf8Text(source)
	if len(near) > 40 {
		near = near[:40]
	}
	return &SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1, Near: near}
}

func firstErrorNode(n *ts.Node) *ts.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil || !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

func extractDeps(root *ts.Node, source []byte, jsx bool, requireIsFree bool) ([]Dep, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}
	query, err := qm.Query(jsx, "deps")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var deps []Dep
	captureNames := query.CaptureNames()
	matches := cursor.Matches(query, root, source)

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var (
			dep    Dep
			kind   string
			callee string
			ok     = true
		)
		for _, capture := range match.Captures {
			node := capture.Node
			name := captureNames[capture.Index]
			switch name {
			case "import.statement", "export.statement", "dynamicImport.call", "require.call":
				dep.Range = nodeRange(&node)
			case "import.source", "export.source", "dynamicImport.source", "require.source":
				kind = name
				dep.Arg = nodeRange(&node)
				if node.Kind() == "template_string" && node.NamedChildCount() > 0 {
					for i := uint(0); i < node.NamedChildCount(); i++ {
						if node.NamedChild(i).Kind() == "template_substitution" {
							ok = false
						}
					}
				}
				dep.Source = unquote(node.Utf8Text(source))
			case "require.callee":
				callee = node.Utf8Text(source)
			}
		}
		if !ok {
			continue
		}

		switch kind {
		case "import.source":
			dep.Kind = DepImport
		case "export.source":
			dep.Kind = DepExportFrom
		case "dynamicImport.source":
			dep.Kind = DepDynamicImport
		case "require.source":
			if callee != "require" || !requireIsFree {
				continue
			}
			dep.Kind = DepRequire
		default:
			continue
		}
		deps = append(deps, dep)
	}

	sort.SliceStable(deps, func(i, j int) bool {
		return deps[i].Range.Start < deps[j].Range.Start
	})
	return deps, nil
}

func detectSystem(ast *AST) ModuleSystem {
	esm := false
	for i := range ast.Statements {
		if ast.Statements[i].Import != nil || ast.Statements[i].Export != nil {
			esm = true
			break
		}
	}
	cjs := ast.Unresolved.Has("module") || ast.Unresolved.Has("exports")
	if !cjs {
		for _, d := range ast.Deps {
			if d.Kind == DepRequire {
				cjs = true
				break
			}
		}
	}
	switch {
	case esm && cjs:
		return SystemHybrid
	case cjs:
		return SystemCommonJs
	}
	return SystemEsModule
}

func nodeRange(n *ts.Node) Range {
	return Range{Start: uint32(n.StartByte()), End: uint32(n.EndByte())}
}

// unquote returns the value of a JavaScript string literal.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '"' && q != '\'' && q != '`') || s[len(s)-1] != q {
		return s
	}
	body := s[1 : len(s)-1]
	if !strings.Contains(body, "\\") {
		return body
	}
	if q != '"' {
		body = strings.ReplaceAll(body, `\`+string(q), string(q))
		body = strings.ReplaceAll(body, `"`, `\"`)
	}
	if u, err := strconv.Unquote(`"` + body + `"`); err == nil {
		return u
	}
	return body
}

// Quote renders s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	return strconv.Quote(s)
}

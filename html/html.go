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

// Package html analyzes HTML entries and weaves bundled resources into
// them. Documents are processed as token streams so everything the
// bundler does not touch is written back byte for byte.
package html

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
)

// InlineKey is the query parameter carrying the index of an inline module
// script.
const InlineKey = "farm_inline_script"

// InlineQuery is the query marking the module built from the index-th
// inline module script of an HTML file.
func InlineQuery(index int) string {
	return fmt.Sprintf("%s=%d", InlineKey, index)
}

// Analysis lists what an HTML document loads.
type Analysis struct {
	// Scripts holds the src of each local <script>.
	Scripts []string
	// Links holds the href of each local stylesheet <link>.
	Links []string
	// Inline holds the bodies of inline module scripts in document order.
	Inline []string
}

// IsLocal reports whether a src or href points into the project.
func IsLocal(ref string) bool {
	switch {
	case ref == "",
		strings.HasPrefix(ref, "//"),
		strings.HasPrefix(ref, "data:"),
		strings.Contains(ref, "://"):
		return false
	}
	return true
}

type tag struct {
	name  string
	attrs map[string]string
}

func readTag(z *xhtml.Tokenizer) tag {
	name, more := z.TagName()
	t := tag{name: string(name), attrs: make(map[string]string)}
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		t.attrs[string(key)] = string(val)
	}
	return t
}

func (t tag) stylesheet() bool {
	return t.name == "link" && strings.EqualFold(t.attrs["rel"], "stylesheet")
}

func (t tag) moduleScript() bool {
	return t.name == "script" && t.attrs["type"] == "module"
}

// Analyze scans an HTML document for the resources it loads.
func Analyze(src []byte) (*Analysis, error) {
	a := &Analysis{}
	z := xhtml.NewTokenizer(bytes.NewReader(src))
	inline := false
	var body strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return a, nil
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := readTag(z)
			switch {
			case t.name == "script":
				if src, ok := t.attrs["src"]; ok {
					if IsLocal(src) {
						a.Scripts = append(a.Scripts, src)
					}
				} else if t.moduleScript() && tt == xhtml.StartTagToken {
					inline = true
					body.Reset()
				}
			case t.stylesheet():
				if href := t.attrs["href"]; IsLocal(href) {
					a.Links = append(a.Links, href)
				}
			}
		case xhtml.TextToken:
			if inline {
				body.Write(z.Raw())
			}
		case xhtml.EndTagToken:
			if name, _ := z.TagName(); inline && string(name) == "script" {
				inline = false
				a.Inline = append(a.Inline, body.String())
			}
		}
	}
}

// Injection describes how an HTML entry is rewritten once its resources
// are bundled.
type Injection struct {
	// Bundled reports whether the local script src or stylesheet href now
	// lives in a bundled resource; such tags are removed. Inline module
	// scripts are always removed.
	Bundled func(ref string) bool
	// Head snippets go before </head>, Body snippets before </body>.
	Head []string
	Body []string
}

// Inject applies inj to src.
func Inject(src []byte, inj Injection) ([]byte, error) {
	var out bytes.Buffer
	z := xhtml.NewTokenizer(bytes.NewReader(src))
	skipScript := false
	headDone, bodyDone := false, false

	head := strings.Join(inj.Head, "")
	body := strings.Join(inj.Body, "")
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			break
		}
		raw := z.Raw()
		switch tt {
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			t := readTag(z)
			switch {
			case t.name == "script":
				src, hasSrc := t.attrs["src"]
				if (hasSrc && IsLocal(src) && inj.Bundled != nil && inj.Bundled(src)) || (!hasSrc && t.moduleScript()) {
					skipScript = tt == xhtml.StartTagToken
					continue
				}
			case t.stylesheet():
				if href := t.attrs["href"]; IsLocal(href) && inj.Bundled != nil && inj.Bundled(href) {
					continue
				}
			case t.name == "body" && !headDone:
				out.WriteString(head)
				headDone = true
			}
		case xhtml.TextToken:
			if skipScript {
				continue
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script":
				if skipScript {
					skipScript = false
					continue
				}
			case "head":
				if !headDone {
					out.WriteString(head)
					headDone = true
				}
			case "body":
				out.WriteString(body)
				bodyDone = true
			case "html":
				if !headDone {
					out.WriteString(head)
					headDone = true
				}
				if !bodyDone {
					out.WriteString(body)
					bodyDone = true
				}
			}
		}
		out.Write(raw)
	}
	if !headDone {
		out.WriteString(head)
	}
	if !bodyDone {
		out.WriteString(body)
	}
	return out.Bytes(), nil
}

// ScriptTag returns a <script> loading src.
func ScriptTag(src string) string {
	return `<script src="` + html.EscapeString(src) + `"></script>`
}

// InlineScript returns a <script> running code.
func InlineScript(code string) string {
	return "<script>" + strings.ReplaceAll(code, "</script", `<\/script`) + "</script>"
}

// StylesheetTag returns a <link> loading the stylesheet href.
func StylesheetTag(href string) string {
	return `<link rel="stylesheet" href="` + html.EscapeString(href) + `">`
}

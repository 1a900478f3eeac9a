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

package resource

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Template represents an output filename template with placeholders.
// Supported placeholders:
//   - [resourceName] - Name of the resource pot or asset
//   - [entryName] - Entry name for entry resources, resource name otherwise
//   - [name] - Alias of [entryName]
//   - [contentHash] - Short hash of the emitted bytes
//   - [ext] - Extension without the dot (e.g., "js", "css")
type Template struct {
	pattern   string
	variables []string
}

var variablePattern = regexp.MustCompile(`\[(\w+)\]`)

// ParseTemplate parses a filename template pattern.
func ParseTemplate(pattern string) (*Template, error) {
	if pattern == "" {
		return nil, fmt.Errorf("template pattern cannot be empty")
	}

	matches := variablePattern.FindAllStringSubmatch(pattern, -1)
	var variables []string
	for _, match := range matches {
		variables = append(variables, match[1])
	}

	validVars := map[string]bool{
		"resourceName": true,
		"entryName":    true,
		"name":         true,
		"contentHash":  true,
		"ext":          true,
	}
	for _, v := range variables {
		if !validVars[v] {
			return nil, fmt.Errorf("unknown template variable: [%s]", v)
		}
	}

	return &Template{
		pattern:   pattern,
		variables: variables,
	}, nil
}

// MustParseTemplate is ParseTemplate for patterns known to be valid.
func MustParseTemplate(pattern string) *Template {
	t, err := ParseTemplate(pattern)
	if err != nil {
		panic(err)
	}
	return t
}

// Values are the substitutions for a template.
type Values struct {
	ResourceName string
	EntryName    string
	ContentHash  string
	Ext          string
}

// Expand substitutes placeholders with values.
func (t *Template) Expand(v Values) string {
	entryName := v.EntryName
	if entryName == "" {
		entryName = v.ResourceName
	}

	result := t.pattern
	result = strings.ReplaceAll(result, "[resourceName]", v.ResourceName)
	result = strings.ReplaceAll(result, "[entryName]", entryName)
	result = strings.ReplaceAll(result, "[name]", entryName)
	result = strings.ReplaceAll(result, "[contentHash]", v.ContentHash)
	result = strings.ReplaceAll(result, "[ext]", v.Ext)

	return result
}

// Pattern returns the original template pattern.
func (t *Template) Pattern() string {
	return t.pattern
}

// Variables returns the list of placeholders used in the template.
func (t *Template) Variables() []string {
	return t.variables
}

// HasContentHash returns true if the template contains a [contentHash]
// placeholder. Emitted filenames must, or long-term caching breaks.
func (t *Template) HasContentHash() bool {
	return slices.Contains(t.variables, "contentHash")
}

const (
	// DefaultFilename is the template for non-entry resources.
	DefaultFilename = "[resourceName].[contentHash].[ext]"
	// DefaultEntryFilename is the template for entry resources.
	DefaultEntryFilename = "[entryName].[ext]"
	// DefaultAssetFilename is the template for static assets.
	DefaultAssetFilename = "[resourceName].[contentHash].[ext]"
)

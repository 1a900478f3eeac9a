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

package resource_test

import (
	"reflect"
	"testing"

	"github.com/farm-fe/farm-sub001/resource"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		wantErr  bool
		wantVars []string
	}{
		{
			name:     "default filename",
			pattern:  resource.DefaultFilename,
			wantVars: []string{"resourceName", "contentHash", "ext"},
		},
		{
			name:     "entry filename",
			pattern:  "assets/[entryName]-[contentHash].[ext]",
			wantVars: []string{"entryName", "contentHash", "ext"},
		},
		{
			name:    "invalid variable",
			pattern: "[resourceName].[hash].[ext]",
			wantErr: true,
		},
		{
			name:    "empty pattern",
			pattern: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := resource.ParseTemplate(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTemplate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr {
				if tmpl.Pattern() != tt.pattern {
					t.Errorf("Pattern() = %v, want %v", tmpl.Pattern(), tt.pattern)
				}
				if !reflect.DeepEqual(tmpl.Variables(), tt.wantVars) {
					t.Errorf("Variables() = %v, want %v", tmpl.Variables(), tt.wantVars)
				}
			}
		})
	}
}

func TestTemplate_Expand(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		values   resource.Values
		expected string
	}{
		{
			name:     "resource with hash",
			pattern:  resource.DefaultFilename,
			values:   resource.Values{ResourceName: "index", ContentHash: "1a2b3c4d", Ext: "js"},
			expected: "index.1a2b3c4d.js",
		},
		{
			name:     "entry name falls back to resource name",
			pattern:  "[entryName].[ext]",
			values:   resource.Values{ResourceName: "shared_9f", Ext: "css"},
			expected: "shared_9f.css",
		},
		{
			name:     "entry name alias",
			pattern:  "[name]/[resourceName].[ext]",
			values:   resource.Values{ResourceName: "main_js", EntryName: "main", Ext: "js"},
			expected: "main/main_js.js",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := resource.ParseTemplate(tt.pattern)
			if err != nil {
				t.Fatalf("ParseTemplate failed: %v", err)
			}

			result := tmpl.Expand(tt.values)
			if result != tt.expected {
				t.Errorf("Expand() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTemplate_HasContentHash(t *testing.T) {
	tests := []struct {
		pattern  string
		expected bool
	}{
		{resource.DefaultFilename, true},
		{resource.DefaultEntryFilename, false},
	}

	for _, tt := range tests {
		tmpl, err := resource.ParseTemplate(tt.pattern)
		if err != nil {
			t.Fatalf("ParseTemplate(%q) failed: %v", tt.pattern, err)
		}
		if tmpl.HasContentHash() != tt.expected {
			t.Errorf("HasContentHash() = %v, want %v", tmpl.HasContentHash(), tt.expected)
		}
	}
}

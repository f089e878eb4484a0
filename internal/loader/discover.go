// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern matches every Go source file below the root.
const DefaultPattern = "**/*.go"

// Discover evaluates every file below root matching one of patterns that
// declares a Tasks function and returns the declared task configs, sorted by
// file and slug. Files without a Tasks function are not evaluated.
func Discover(root string, patterns ...string) ([]Descriptor, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultPattern}
	}

	seen := make(map[string]bool)
	var files []string
	fsys := os.DirFS(root)
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("discover: invalid pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("discover: glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || filepath.Ext(m) != ".go" || strings.HasSuffix(m, "_test.go") {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)

	var out []Descriptor
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if !declaresDescriptors([]string{path}) {
			continue
		}
		m, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, d := range m.Descriptors() {
			d.File = filepath.ToSlash(rel)
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Slug < out[j].Slug
	})
	return out, nil
}

// declaresDescriptors reports whether any of files declares a top-level
// Tasks function. Unparseable files report false; evaluation surfaces their
// errors.
func declaresDescriptors(files []string) bool {
	fset := token.NewFileSet()
	for _, f := range files {
		file, err := parser.ParseFile(fset, f, nil, parser.SkipObjectResolution)
		if err != nil {
			continue
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if ok && fn.Recv == nil && fn.Name.Name == DescriptorFunc {
				return true
			}
		}
	}
	return false
}

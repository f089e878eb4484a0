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

package outputs

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePath converts a JavaScript-style accessor such as `rows[0].name` or
// `meta["content-type"]` into jq path components. The empty path is the root.
func ParsePath(path string) ([]any, error) {
	comps := []any{}
	i := 0
	for i < len(path) {
		switch c := path[i]; {
		case c == '.':
			if i == 0 || i == len(path)-1 {
				return nil, fmt.Errorf("invalid output path %q: misplaced '.'", path)
			}
			i++
			ident, n := scanIdent(path[i:])
			if n == 0 {
				return nil, fmt.Errorf("invalid output path %q: expected identifier at %d", path, i)
			}
			comps = append(comps, ident)
			i += n

		case c == '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("invalid output path %q: unclosed '['", path)
			}
			inner := path[i+1 : i+end]
			comp, err := bracketComponent(inner)
			if err != nil {
				return nil, fmt.Errorf("invalid output path %q: %w", path, err)
			}
			comps = append(comps, comp)
			i += end + 1

		default:
			if i != 0 {
				return nil, fmt.Errorf("invalid output path %q: unexpected %q at %d", path, c, i)
			}
			ident, n := scanIdent(path)
			if n == 0 {
				return nil, fmt.Errorf("invalid output path %q: expected identifier", path)
			}
			comps = append(comps, ident)
			i += n
		}
	}
	return comps, nil
}

func scanIdent(s string) (string, int) {
	n := 0
	for n < len(s) {
		c := s[n]
		isAlpha := c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isAlpha && (n == 0 || c < '0' || c > '9') {
			break
		}
		n++
	}
	return s[:n], n
}

func bracketComponent(inner string) (any, error) {
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		return inner[1 : len(inner)-1], nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("index %q must be a non-negative integer or quoted key", inner)
	}
	return idx, nil
}

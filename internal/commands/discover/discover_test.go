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

package discover

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tasksSource = `package main

func Tasks() []map[string]interface{} {
	return []map[string]interface{}{
		{"slug": "b_task", "entrypointFunc": "B"},
		{"slug": "a_task", "parameters": []interface{}{map[string]interface{}{"slug": "name"}}},
	}
}

func Main(name string) string { return name }

func B() {}
`

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tasks"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tasks", "tasks.go"), []byte(tasksSource), 0o644))

	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", root})
	require.NoError(t, cmd.Execute())

	var got []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a_task", got[0]["slug"])
	assert.Equal(t, "Main", got[0]["entrypointFunc"])
	assert.Equal(t, "tasks/tasks.go", got[0]["file"])
	assert.Equal(t, "standard", got[0]["runtime"])
	assert.Equal(t, "b_task", got[1]["slug"])
	assert.Equal(t, []any{}, got[1]["parameters"])
}

func TestDiscover_Empty(t *testing.T) {
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--root", t.TempDir()})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "[]\n", out.String())
}

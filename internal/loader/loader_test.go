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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/taskshim/internal/invoke"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

const directSource = `package main

func Main(params map[string]interface{}) (interface{}, error) {
	return "Hello, " + params["name"].(string) + "!", nil
}
`

const descriptorSource = `package main

import "strings"

func Tasks() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"slug":           "greet",
			"name":           "Greet",
			"entrypointFunc": "Greet",
			"parameters": []interface{}{
				map[string]interface{}{"slug": "name", "type": "shorttext"},
				map[string]interface{}{"slug": "shout", "type": "boolean"},
			},
		},
	}
}

func Greet(name string, shout bool) string {
	msg := "Hello, " + name + "!"
	if shout {
		return strings.ToUpper(msg)
	}
	return msg
}

func Helper(params map[string]interface{}) int {
	return len(params)
}
`

func writeFile(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoad_DirectEntrypoint(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.go", directSource)

	m, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, m.Descriptors())

	ep, err := m.Resolve("", false)
	require.NoError(t, err)
	require.IsType(t, task.Direct{}, ep)

	out, err := invoke.Call(context.Background(), ep, task.Values{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)
}

func TestLoad_DescriptorEntrypoint(t *testing.T) {
	path := writeFile(t, t.TempDir(), "greet.go", descriptorSource)

	m, err := Load(path)
	require.NoError(t, err)

	descs := m.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "greet", descs[0].Slug)
	assert.Equal(t, "Greet", descs[0].EntrypointFunc)
	assert.Equal(t, task.RuntimeStandard, descs[0].Runtime)
	assert.Equal(t, []string{"name", "shout"}, descs[0].ParamSlugs())

	ep, err := m.Resolve("Greet", true)
	require.NoError(t, err)
	s, ok := ep.(task.Structured)
	require.True(t, ok)
	assert.True(t, s.Positional)
	assert.Equal(t, []string{"name", "shout"}, s.ParamSlugs)

	out, err := invoke.Call(context.Background(), ep, task.Values{"name": "Ada", "shout": true})
	require.NoError(t, err)
	assert.Equal(t, "HELLO, ADA!", out)

	ep, err = m.Resolve("Helper", false)
	require.NoError(t, err)
	assert.IsType(t, task.Direct{}, ep)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package main\n\nfunc suffix() string { return \"!\" }\n")
	writeFile(t, dir, "b.go", "package main\n\nfunc Main() string { return \"done\" + suffix() }\n")
	writeFile(t, dir, "b_test.go", "package main\n\nthis is not go\n")

	m, err := Load(dir)
	require.NoError(t, err)
	ep, err := m.Resolve("Main", false)
	require.NoError(t, err)

	out, err := invoke.Call(context.Background(), ep, nil)
	require.NoError(t, err)
	assert.Equal(t, "done!", out)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.go"))
	var nf *shimerrors.NotFoundError
	assert.True(t, errors.As(err, &nf))

	txt := writeFile(t, dir, "notes.txt", "hello")
	_, err = Load(txt)
	var verr *shimerrors.ValidationError
	assert.True(t, errors.As(err, &verr))

	bad := writeFile(t, dir, "bad.go", "package main\n\nfunc Main( {\n")
	_, err = Load(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	_, err = Load(empty)
	assert.True(t, errors.As(err, &nf))
}

func TestResolve_MissingFunction(t *testing.T) {
	path := writeFile(t, t.TempDir(), "main.go", directSource)
	m, err := Load(path)
	require.NoError(t, err)

	_, err = m.Resolve("Nope", false)
	var nf *shimerrors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Nope", nf.ID)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tasks/greet.go", descriptorSource)
	writeFile(t, root, "tasks/plain.go", directSource)
	writeFile(t, root, "other/broken.go", "package main\n\nfunc Main( {\n")

	descs, err := Discover(root, "tasks/**/*.go")
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "greet", descs[0].Slug)
	assert.Equal(t, "tasks/greet.go", descs[0].File)

	_, err = Discover(root, "[")
	assert.Error(t, err)
}

func TestDeclaresDescriptors(t *testing.T) {
	dir := t.TempDir()
	with := writeFile(t, dir, "with.go", descriptorSource)
	without := writeFile(t, dir, "without.go", directSource)
	method := writeFile(t, dir, "method.go", "package main\n\ntype T struct{}\n\nfunc (T) Tasks() {}\n")

	assert.True(t, declaresDescriptors([]string{with}))
	assert.False(t, declaresDescriptors([]string{without}))
	assert.False(t, declaresDescriptors([]string{method}))
}

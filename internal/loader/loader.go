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

// Package loader evaluates task source files with an embedded Go
// interpreter and resolves the entrypoint the invocation adapter calls.
//
// A task file is a `package main` Go file. It either exports a plain
// function (resolved as task.Direct), or declares its tasks through a
// descriptor function:
//
//	func Tasks() []map[string]any
//
// whose entries name their base function with "entrypointFunc". A function
// named by a descriptor resolves as task.Structured.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

// DescriptorFunc is the name of the optional task descriptor function.
const DescriptorFunc = "Tasks"

// DefaultEntrypointFunc is used when a descriptor names no base function.
const DefaultEntrypointFunc = "Main"

// Descriptor is a task configuration record declared by a task file.
type Descriptor struct {
	task.Config
	EntrypointFunc string `json:"entrypointFunc"`
	File           string `json:"file,omitempty"`
}

// Module is an evaluated task file or directory.
type Module struct {
	path        string
	interp      *interp.Interpreter
	descriptors []Descriptor
}

// Load evaluates path, a .go file or a directory of .go files sharing one
// package. Test files are skipped.
func Load(path string) (*Module, error) {
	files, err := sourceFiles(path)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loader: stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("loader: task symbols: %w", err)
	}
	for _, f := range files {
		if _, err := i.EvalPath(f); err != nil {
			return nil, fmt.Errorf("loader: interpret %s: %w", f, err)
		}
	}

	m := &Module{path: path, interp: i}
	if declaresDescriptors(files) {
		if m.descriptors, err = m.loadDescriptors(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func sourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &shimerrors.NotFoundError{Resource: "entrypoint", ID: path}
		}
		return nil, fmt.Errorf("loader: stat %s: %w", path, err)
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".go" {
			return nil, &shimerrors.ValidationError{
				Field:   "entrypoint",
				Message: fmt.Sprintf("%s is not a .go file", path),
			}
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(path, name))
	}
	if len(files) == 0 {
		return nil, &shimerrors.NotFoundError{Resource: "go source", ID: path}
	}
	sort.Strings(files)
	return files, nil
}

// Path returns the file or directory the module was loaded from.
func (m *Module) Path() string { return m.path }

// Descriptors returns the task configs declared by the module's Tasks
// function, if any.
func (m *Module) Descriptors() []Descriptor {
	return append([]Descriptor(nil), m.descriptors...)
}

// Resolve returns the entrypoint for the function named fn. A function named
// by a descriptor resolves as task.Structured; with positional set its
// parameters are passed one per declared slug. Any other exported function
// resolves as task.Direct.
func (m *Module) Resolve(fn string, positional bool) (task.Entrypoint, error) {
	if fn == "" {
		fn = DefaultEntrypointFunc
	}
	v, err := m.lookup(fn)
	if err != nil {
		return nil, err
	}

	for _, d := range m.descriptors {
		if d.EntrypointFunc != fn {
			continue
		}
		def := task.Define(d.Config, v)
		if err := def.Validate(); err != nil {
			return nil, err
		}
		return def.Entrypoint(positional), nil
	}
	return task.Direct{Func: v}, nil
}

func (m *Module) lookup(name string) (reflect.Value, error) {
	v, err := m.interp.Eval(name)
	if err != nil {
		return reflect.Value{}, &shimerrors.NotFoundError{Resource: "function", ID: name}
	}
	if !v.IsValid() || v.Kind() != reflect.Func {
		return reflect.Value{}, &shimerrors.ValidationError{
			Field:   "entrypointFunc",
			Message: fmt.Sprintf("%s is not a function", name),
		}
	}
	return v, nil
}

func (m *Module) loadDescriptors() ([]Descriptor, error) {
	fn, err := m.lookup(DescriptorFunc)
	if err != nil {
		return nil, err
	}
	raw, err := callDescriptorFunc(fn)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", m.path, err)
	}

	descs := make([]Descriptor, 0, len(raw))
	for idx, entry := range raw {
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("loader: %s task[%d]: %w", m.path, idx, err)
		}
		var d Descriptor
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("loader: %s task[%d]: %w", m.path, idx, err)
		}
		if d.EntrypointFunc == "" {
			d.EntrypointFunc = DefaultEntrypointFunc
		}
		if d.Runtime == "" {
			d.Runtime = task.RuntimeStandard
		}
		if d.Parameters == nil {
			d.Parameters = []task.Parameter{}
		}
		if err := d.Config.Validate(); err != nil {
			return nil, fmt.Errorf("loader: %s task[%d]: %w", m.path, idx, err)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

func callDescriptorFunc(fn reflect.Value) ([]map[string]any, error) {
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must take no arguments", DescriptorFunc)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", DescriptorFunc)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", DescriptorFunc)
	}

	out := results[0]
	if defs, ok := out.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if out.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", DescriptorFunc)
	}
	defs := make([]map[string]any, out.Len())
	for i := 0; i < out.Len(); i++ {
		m, ok := out.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", DescriptorFunc, i)
		}
		defs[i] = m
	}
	return defs, nil
}

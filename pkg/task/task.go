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

// Package task defines the contract between task authors and the shim:
// task definitions, the resolved entrypoint union and streamed outputs.
package task

import (
	"fmt"
	"reflect"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
)

// Values holds task parameter values keyed by parameter slug.
//
// An alias is used because the type should be `map[string]any`
// and not a custom one, so task functions can declare either.
type Values = map[string]any

// Runtime selects how a task is executed.
type Runtime string

const (
	// RuntimeStandard runs the task once in a single-shot process.
	RuntimeStandard Runtime = "standard"
	// RuntimeWorkflow runs the task under the durable-execution engine.
	RuntimeWorkflow Runtime = "workflow"
)

// Parameter describes a single task parameter.
type Parameter struct {
	Slug     string `json:"slug" yaml:"slug"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Default  any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Config is the metadata attached to a task definition.
type Config struct {
	Slug        string      `json:"slug" yaml:"slug"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []Parameter `json:"parameters" yaml:"parameters"`
	Runtime     Runtime     `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// ParamSlugs returns the parameter slugs in declared order.
func (c Config) ParamSlugs() []string {
	slugs := make([]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		slugs = append(slugs, p.Slug)
	}
	return slugs
}

// Validate checks that the config has a slug and unique parameter slugs.
func (c Config) Validate() error {
	if c.Slug == "" {
		return &shimerrors.ValidationError{
			Field:   "slug",
			Message: "task slug is required",
			Hint:    "Set a slug such as \"hello_world\" in the task config",
		}
	}
	seen := make(map[string]bool, len(c.Parameters))
	for i, p := range c.Parameters {
		if p.Slug == "" {
			return &shimerrors.ValidationError{
				Field:   fmt.Sprintf("parameters[%d].slug", i),
				Message: "parameter slug is required",
			}
		}
		if seen[p.Slug] {
			return &shimerrors.ValidationError{
				Field:   fmt.Sprintf("parameters[%d].slug", i),
				Message: fmt.Sprintf("duplicate parameter slug %q", p.Slug),
			}
		}
		seen[p.Slug] = true
	}
	switch c.Runtime {
	case "", RuntimeStandard, RuntimeWorkflow:
	default:
		return &shimerrors.ValidationError{
			Field:   "runtime",
			Message: fmt.Sprintf("unknown runtime %q", c.Runtime),
		}
	}
	return nil
}

// Definition pairs task metadata with the task's base function.
type Definition struct {
	Config Config
	Func   any
}

// Define creates a task definition. fn is any Go function; see
// the invoke package for the accepted signatures.
func Define(cfg Config, fn any) *Definition {
	return &Definition{Config: cfg, Func: fn}
}

// Validate checks the config and that Func is a function.
func (d *Definition) Validate() error {
	if err := d.Config.Validate(); err != nil {
		return err
	}
	if !isFunc(d.Func) {
		return &shimerrors.ValidationError{
			Field:   "func",
			Message: fmt.Sprintf("task %s: base function must be a func, got %T", d.Config.Slug, d.Func),
		}
	}
	return nil
}

// ParamSlugs returns the parameter slugs of the definition in declared order.
func (d *Definition) ParamSlugs() []string {
	return d.Config.ParamSlugs()
}

// Entrypoint resolves the definition into a Structured entrypoint.
// With positional set, the base function receives one argument per
// parameter slug; otherwise it receives the whole params object.
func (d *Definition) Entrypoint(positional bool) Entrypoint {
	s := Structured{Func: d.Func, Positional: positional}
	if positional {
		s.ParamSlugs = d.ParamSlugs()
	}
	return s
}

// Entrypoint is the resolved shape of a task function. It is produced once,
// when the task is loaded, and is either Direct or Structured.
type Entrypoint interface {
	entrypoint()
}

// Direct is a plain exported function invoked with the invocation request as
// its only argument.
type Direct struct {
	Func any
}

// Structured is the base function of a task definition.
type Structured struct {
	Func any

	// ParamSlugs is the declared parameter order used when Positional is set.
	ParamSlugs []string

	// Positional passes each request field as its own argument instead of
	// passing the request object.
	Positional bool
}

func (Direct) entrypoint()     {}
func (Structured) entrypoint() {}

func isFunc(fn any) bool {
	if v, ok := fn.(reflect.Value); ok {
		return v.IsValid() && v.Kind() == reflect.Func
	}
	return fn != nil && reflect.TypeOf(fn).Kind() == reflect.Func
}

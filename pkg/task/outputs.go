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

package task

import (
	"context"
	"errors"
)

// ErrNoOutputs is returned when output helpers are used outside an invocation.
var ErrNoOutputs = errors.New("task outputs are not available in this context")

// Outputs receives values streamed by a running task.
type Outputs interface {
	// SetOutput replaces the output at path; "" is the root.
	SetOutput(path string, value any) error
	// AppendOutput appends to the array at path; "" is the root.
	AppendOutput(path string, value any) error
}

type outputsKey struct{}

// WithOutputs returns a context carrying o for the duration of an invocation.
func WithOutputs(ctx context.Context, o Outputs) context.Context {
	return context.WithValue(ctx, outputsKey{}, o)
}

// OutputsFrom returns the Outputs carried by ctx, if any.
func OutputsFrom(ctx context.Context) (Outputs, bool) {
	o, ok := ctx.Value(outputsKey{}).(Outputs)
	return o, ok
}

// SetOutput sets the task output. An optional path selects a nested location,
// e.g. "rows[0].name".
func SetOutput(ctx context.Context, value any, path ...string) error {
	o, ok := OutputsFrom(ctx)
	if !ok {
		return ErrNoOutputs
	}
	return o.SetOutput(firstPath(path), value)
}

// AppendOutput appends value to the array output at the optional path.
func AppendOutput(ctx context.Context, value any, path ...string) error {
	o, ok := OutputsFrom(ctx)
	if !ok {
		return ErrNoOutputs
	}
	return o.AppendOutput(firstPath(path), value)
}

func firstPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[0]
}

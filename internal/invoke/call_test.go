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

package invoke

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		ep      task.Entrypoint
		wantErr bool
	}{
		{name: "no args", ep: task.Direct{Func: func() {}}},
		{name: "ctx and request", ep: task.Direct{Func: func(context.Context, task.Values) (any, error) { return nil, nil }}},
		{name: "error only", ep: task.Direct{Func: func(task.Values) error { return nil }}},
		{name: "reflect value", ep: task.Direct{Func: reflect.ValueOf(func(task.Values) string { return "" })}},
		{name: "positional", ep: task.Structured{Func: func(string, int) {}, ParamSlugs: []string{"a", "b"}, Positional: true}},
		{name: "nil entrypoint", ep: nil, wantErr: true},
		{name: "not a func", ep: task.Direct{Func: "main"}, wantErr: true},
		{name: "too many params", ep: task.Direct{Func: func(task.Values, string) {}}, wantErr: true},
		{name: "positional count mismatch", ep: task.Structured{Func: func(string) {}, ParamSlugs: []string{"a", "b"}, Positional: true}, wantErr: true},
		{name: "variadic", ep: task.Direct{Func: func(...string) {}}, wantErr: true},
		{name: "second return not error", ep: task.Direct{Func: func() (string, string) { return "", "" }}, wantErr: true},
		{name: "three returns", ep: task.Direct{Func: func() (int, int, error) { return 0, 0, nil }}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.ep)
			if tt.wantErr {
				var verr *shimerrors.ValidationError
				assert.ErrorAs(t, err, &verr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCall_ReturnsUserErrorUnwrapped(t *testing.T) {
	sentinel := errors.New("user failure")
	ep := task.Direct{Func: func(task.Values) (int, error) { return 0, sentinel }}

	_, err := Call(context.Background(), ep, task.Values{})

	assert.Same(t, sentinel, err)
}

func TestCall_PanicWithError(t *testing.T) {
	sentinel := errors.New("bad state")
	ep := task.Direct{Func: func() { panic(sentinel) }}

	_, err := Call(context.Background(), ep, task.Values{})

	var panicErr *shimerrors.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.ErrorIs(t, err, sentinel)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestCall_InterfaceResult(t *testing.T) {
	ep := task.Direct{Func: func() any { return []int{1, 2} }}

	got, err := Call(context.Background(), ep, nil)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

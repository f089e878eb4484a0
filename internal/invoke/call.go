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
	"encoding/json"
	"fmt"
	"reflect"
	"runtime/debug"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// signature is the checked shape of a task function.
type signature struct {
	fn         reflect.Value
	takesCtx   bool
	params     []reflect.Type
	returnsVal bool
	returnsErr bool
}

// Validate checks that the entrypoint's function has a supported signature:
//
//	func([ctx context.Context,] [req R]) [T | error | (T, error)]
//
// or, for positional structured entrypoints, one parameter per slug after the
// optional context.
func Validate(ep task.Entrypoint) error {
	_, err := inspect(ep)
	return err
}

func inspect(ep task.Entrypoint) (*signature, error) {
	var (
		fn       any
		maxArgs  = 1
		exactArg = -1
		label    string
	)
	switch e := ep.(type) {
	case task.Direct:
		fn, label = e.Func, "entrypoint"
	case task.Structured:
		fn, label = e.Func, "task base function"
		if e.Positional {
			exactArg = len(e.ParamSlugs)
			maxArgs = exactArg
		}
	case nil:
		return nil, &shimerrors.ValidationError{Field: "entrypoint", Message: "no entrypoint resolved"}
	default:
		return nil, &shimerrors.ValidationError{Field: "entrypoint", Message: fmt.Sprintf("unsupported entrypoint %T", ep)}
	}

	v := funcValue(fn)
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, &shimerrors.ValidationError{
			Field:   "entrypoint",
			Message: fmt.Sprintf("%s must be a function, got %T", label, fn),
		}
	}
	t := v.Type()
	if t.IsVariadic() {
		return nil, &shimerrors.ValidationError{Field: "entrypoint", Message: fmt.Sprintf("%s must not be variadic", label)}
	}

	sig := &signature{fn: v}
	in := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		sig.takesCtx = true
		in = 1
	}
	for ; in < t.NumIn(); in++ {
		sig.params = append(sig.params, t.In(in))
	}
	if len(sig.params) > maxArgs || (exactArg >= 0 && len(sig.params) != exactArg) {
		want := fmt.Sprintf("at most %d", maxArgs)
		if exactArg >= 0 {
			want = fmt.Sprintf("%d", exactArg)
		}
		return nil, &shimerrors.ValidationError{
			Field:   "entrypoint",
			Message: fmt.Sprintf("%s takes %d parameters, want %s after the optional context", label, len(sig.params), want),
		}
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) == errorType {
			sig.returnsErr = true
		} else {
			sig.returnsVal = true
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, &shimerrors.ValidationError{
				Field:   "entrypoint",
				Message: fmt.Sprintf("%s second return value must be error, got %s", label, t.Out(1)),
			}
		}
		sig.returnsVal, sig.returnsErr = true, true
	default:
		return nil, &shimerrors.ValidationError{
			Field:   "entrypoint",
			Message: fmt.Sprintf("%s returns %d values, want at most 2", label, t.NumOut()),
		}
	}

	return sig, nil
}

func funcValue(fn any) reflect.Value {
	if v, ok := fn.(reflect.Value); ok {
		return v
	}
	return reflect.ValueOf(fn)
}

// Call invokes the entrypoint with params and returns the task result.
// Panics in user code are returned as *errors.PanicError.
func Call(ctx context.Context, ep task.Entrypoint, params task.Values) (any, error) {
	sig, err := inspect(ep)
	if err != nil {
		return nil, err
	}

	args, err := buildArgs(ctx, sig, ep, params)
	if err != nil {
		return nil, err
	}
	return sig.call(args)
}

func buildArgs(ctx context.Context, sig *signature, ep task.Entrypoint, params task.Values) ([]reflect.Value, error) {
	var args []reflect.Value
	if sig.takesCtx {
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}

	if s, ok := ep.(task.Structured); ok && s.Positional {
		for i, slug := range s.ParamSlugs {
			arg, err := convert(params[slug], sig.params[i], slug)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return args, nil
	}

	if len(sig.params) == 1 {
		arg, err := convert(params, sig.params[0], "")
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// convert adapts a decoded JSON value to t, going through JSON when the value
// is not directly assignable. A nil value becomes the zero value of t.
// Untyped targets see numbers as float64; typed targets are decoded from the
// original digits.
func convert(v any, t reflect.Type, name string) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	if _, isNumber := v.(json.Number); !isNumber || t.Kind() == reflect.Interface {
		if rv := reflect.ValueOf(floatNumbers(v)); rv.Type().AssignableTo(t) {
			out := reflect.New(t).Elem()
			out.Set(rv)
			return out, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return reflect.Value{}, &shimerrors.InputParseError{Cause: err}
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		if name != "" {
			err = fmt.Errorf("parameter %q: %w", name, err)
		}
		return reflect.Value{}, &shimerrors.InputParseError{Cause: err}
	}
	return ptr.Elem(), nil
}

// floatNumbers replaces every json.Number in v with its float64 value.
func floatNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = floatNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = floatNumbers(e)
		}
		return out
	}
	return v
}

func (s *signature) call(args []reflect.Value) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &shimerrors.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	out := s.fn.Call(args)

	if s.returnsErr {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}
	if s.returnsVal {
		return resultValue(out[0]), nil
	}
	return nil, nil
}

// resultValue unwraps a returned value, mapping typed nils to nil.
func resultValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	if v.Kind() == reflect.Interface {
		return resultValue(v.Elem())
	}
	return v.Interface()
}

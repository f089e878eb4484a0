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

package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
)

func TestArgumentError(t *testing.T) {
	err := &shimerrors.ArgumentError{Got: 2}

	assert.Equal(t, shimerrors.ArgumentMessage, err.Error())
	assert.Equal(t, "configuration", shimerrors.Classify(err))
	assert.False(t, shimerrors.IsRetryable(err))
}

func TestInputParseError(t *testing.T) {
	var target any
	cause := json.Unmarshal([]byte("{"), &target)

	tests := []struct {
		name    string
		err     *shimerrors.InputParseError
		wantMsg string
	}{
		{
			name:    "decoder error",
			err:     &shimerrors.InputParseError{Cause: cause},
			wantMsg: "parsing task parameters: unexpected end of JSON input",
		},
		{
			name:    "reason only",
			err:     &shimerrors.InputParseError{Reason: "expected a JSON object, got array"},
			wantMsg: "parsing task parameters: expected a JSON object, got array",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, "input", shimerrors.Classify(tt.err))
		})
	}
}

func TestPanicError(t *testing.T) {
	inner := errors.New("boom")

	withErr := &shimerrors.PanicError{Value: inner}
	assert.Equal(t, "panic: boom", withErr.Error())
	assert.True(t, errors.Is(withErr, inner))

	withString := &shimerrors.PanicError{Value: "index out of range"}
	assert.Equal(t, "panic: index out of range", withString.Error())
	assert.Nil(t, withString.Unwrap())
}

func TestConfigError(t *testing.T) {
	cause := errors.New("no such file")
	err := &shimerrors.ConfigError{Key: "config_file", Reason: "failed to load", Cause: cause}

	assert.Equal(t, "config error at config_file: failed to load: no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := &shimerrors.ConfigError{Reason: "task queue is empty"}
	assert.Equal(t, "config error: task queue is empty", bare.Error())
}

func TestEngineError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &shimerrors.EngineError{Address: "localhost:7233", Namespace: "default", Cause: cause}

	assert.Equal(t, "connecting to temporal at localhost:7233 (namespace default): connection refused", err.Error())
	assert.True(t, shimerrors.IsRetryable(err))

	var s shimerrors.Suggester
	assert.True(t, errors.As(err, &s))
	assert.NotEmpty(t, s.Suggestion())
	assert.Equal(t, shimerrors.TypeEngine, shimerrors.Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain user error", err: errors.New("nope"), want: shimerrors.TypeUser},
		{name: "wrapped classified", err: fmt.Errorf("loading: %w", &shimerrors.NotFoundError{Resource: "entrypoint", ID: "Main"}), want: "not_found"},
		{name: "encoding", err: &shimerrors.EncodingError{Type: "chan int", Cause: errors.New("unsupported type")}, want: "encoding"},
		{name: "validation", err: &shimerrors.ValidationError{Field: "entrypoint", Message: "not a function"}, want: "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shimerrors.Classify(tt.err))
		})
	}
}

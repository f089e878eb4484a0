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

package shared

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/tombee/taskshim/pkg/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitTaskFailed},
		{"exit error", &ExitError{Code: 7}, 7},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewInvalidTaskError("bad", nil)), ExitInvalidTask},
		{"validation", &pkgerrors.ValidationError{Message: "x"}, ExitInvalidTask},
		{"config", &pkgerrors.ConfigError{Reason: "x"}, ExitInvalidTask},
		{"bad request", &pkgerrors.InputParseError{Reason: "x"}, ExitInvalidTask},
		{"engine", &pkgerrors.EngineError{Address: "a", Cause: errors.New("x")}, ExitEngineError},
		{"not found", &pkgerrors.NotFoundError{Resource: "run", ID: "1"}, ExitNotFound},
		{"user", &pkgerrors.PanicError{Value: "x"}, ExitTaskFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Error(t *testing.T) {
	cause := errors.New("cause")
	if got := (&ExitError{Message: "msg", Cause: cause}).Error(); got != "msg: cause" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&ExitError{Cause: cause}).Error(); got != "cause" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(&ExitError{Cause: cause}, cause) {
		t.Error("expected ExitError to unwrap to its cause")
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	if code := Report(&buf, Silent(1)); code != 1 {
		t.Errorf("expected code 1, got %d", code)
	}
	if buf.Len() != 0 {
		t.Errorf("silent error printed %q", buf.String())
	}

	buf.Reset()
	err := &pkgerrors.ValidationError{Field: "slug", Message: "task slug is required", Hint: "Set a slug"}
	if code := Report(&buf, err); code != ExitInvalidTask {
		t.Errorf("expected code %d, got %d", ExitInvalidTask, code)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("task slug is required")) {
		t.Errorf("expected message in output, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("Set a slug")) {
		t.Errorf("expected suggestion in output, got %q", out)
	}
}

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
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/taskshim/pkg/errors"
)

// Exit codes for taskshim commands. The run command exits 0 or 1 only.
const (
	ExitSuccess     = 0
	ExitTaskFailed  = 1
	ExitInvalidTask = 2
	ExitEngineError = 3
	ExitNotFound    = 4
)

// ExitError is an error that carries an exit code. An empty Message exits
// without printing; the command has already reported the failure.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewTaskFailedError creates an error for a task run that failed.
func NewTaskFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitTaskFailed, Message: msg, Cause: cause}
}

// NewInvalidTaskError creates an error for a task that cannot be loaded.
func NewInvalidTaskError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitInvalidTask, Message: msg, Cause: cause}
}

// Silent exits with code without printing anything.
func Silent(code int) *ExitError {
	return &ExitError{Code: code}
}

// ExitCodeFor maps an error to an exit code. ExitErrors keep their own
// code; classified errors map by type; anything else is a task failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch pkgerrors.Classify(err) {
	case pkgerrors.TypeValidation, pkgerrors.TypeConfiguration, pkgerrors.TypeInput:
		return ExitInvalidTask
	case pkgerrors.TypeEngine:
		return ExitEngineError
	case pkgerrors.TypeNotFound:
		return ExitNotFound
	}
	return ExitTaskFailed
}

// Report prints err and any suggestion to w and returns the exit code.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Message != "" || exitErr.Cause != nil {
		fmt.Fprintln(w, RenderError("Error: "+err.Error()))
		printSuggestion(w, err)
	}
	return ExitCodeFor(err)
}

// HandleExitError reports err on stderr and exits with its exit code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err))
}

// printSuggestion prints the suggestion of the first Suggester in err's
// chain.
func printSuggestion(w io.Writer, err error) {
	var s pkgerrors.Suggester
	if !errors.As(err, &s) {
		return
	}
	if suggestion := s.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\n%s %s\n", Muted.Render("Suggestion:"), suggestion)
	}
}

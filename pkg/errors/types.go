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

package errors

import (
	"fmt"
	"strings"
)

// ArgumentMessage is the configuration error reported when the shim does not
// receive exactly one JSON argument.
const ArgumentMessage = "Expected to receive a single argument (via {{JSON}}). Task CLI arguments may be misconfigured."

// ArgumentError reports a wrong number of invocation arguments.
// It is a configuration problem of the task runner, never retried.
type ArgumentError struct {
	// Got is the number of arguments that were supplied.
	Got int
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return ArgumentMessage
}

func (e *ArgumentError) ErrorType() string { return TypeConfiguration }
func (e *ArgumentError) IsRetryable() bool { return false }

// InputParseError represents a malformed invocation request.
type InputParseError struct {
	// Reason describes what was wrong with the input when there is no
	// underlying decoder error.
	Reason string

	// Cause is the JSON decoder error, if any.
	Cause error
}

// Error implements the error interface.
func (e *InputParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parsing task parameters: %v", e.Cause)
	}
	return fmt.Sprintf("parsing task parameters: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InputParseError) Unwrap() error {
	return e.Cause
}

func (e *InputParseError) ErrorType() string { return TypeInput }
func (e *InputParseError) IsRetryable() bool { return false }

// PanicError is produced when task code panics instead of returning an error.
type PanicError struct {
	// Value is the value passed to panic.
	Value any

	// Stack is the goroutine stack captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func (e *PanicError) ErrorType() string { return TypeUser }
func (e *PanicError) IsRetryable() bool { return false }

// EncodingError records that a value could not be serialized as JSON and was
// coerced to its string form instead. It is informational: the output is
// still written.
type EncodingError struct {
	// Type is the Go type of the value that failed to encode.
	Type string

	// Cause is the encoder error.
	Cause error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding %s as JSON: %v", e.Type, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *EncodingError) Unwrap() error {
	return e.Cause
}

func (e *EncodingError) ErrorType() string { return TypeEncoding }
func (e *EncodingError) IsRetryable() bool { return false }

// ValidationError represents an invalid task definition or entrypoint.
type ValidationError struct {
	// Field identifies what failed validation (e.g. "entrypoint", "parameters[0].slug")
	Field string

	// Message is the human-readable error description
	Message string

	// Hint provides actionable guidance for fixing the error
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) ErrorType() string { return TypeValidation }
func (e *ValidationError) IsRetryable() bool { return false }

// Suggestion implements Suggester.
func (e *ValidationError) Suggestion() string { return e.Hint }

// NotFoundError represents a missing resource, such as an entrypoint export.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "entrypoint", "run")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorType() string { return TypeNotFound }
func (e *NotFoundError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "temporal.address")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) ErrorType() string { return TypeConfiguration }
func (e *ConfigError) IsRetryable() bool { return false }

// EngineError represents a failure talking to the durable-execution engine.
type EngineError struct {
	// Address is the engine frontend that was dialed.
	Address string

	// Namespace is the engine namespace.
	Namespace string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	parts := []string{fmt.Sprintf("connecting to temporal at %s", e.Address)}
	if e.Namespace != "" {
		parts = append(parts, fmt.Sprintf("(namespace %s)", e.Namespace))
	}
	return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

func (e *EngineError) ErrorType() string { return TypeEngine }
func (e *EngineError) IsRetryable() bool { return true }

// Suggestion implements Suggester.
func (e *EngineError) Suggestion() string {
	return "Check that the Temporal frontend is reachable and AP_TEMPORAL_ADDR / AP_NAMESPACE are set correctly."
}

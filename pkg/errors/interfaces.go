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

// Error categories reported by ErrorType. They label the invocation metrics
// and select CLI exit codes.
const (
	TypeConfiguration = "configuration"
	TypeInput         = "input"
	TypeEncoding      = "encoding"
	TypeValidation    = "validation"
	TypeNotFound      = "not_found"
	TypeEngine        = "engine"
)

// ErrorClassifier is implemented by every harness error. Errors returned by
// task code do not implement it and are reported as TypeUser.
type ErrorClassifier interface {
	error
	ErrorType() string

	// IsRetryable is true only when running the same invocation again can
	// succeed without a change to the task, its request or its config.
	IsRetryable() bool
}

// Suggester is implemented by errors that know how the operator can fix
// them. The CLI prints the suggestion under the error line; protocol
// envelopes never carry it.
type Suggester interface {
	error
	Suggestion() string
}

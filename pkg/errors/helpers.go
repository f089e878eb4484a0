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
	"errors"
)

// TypeUser is the category reported for errors that carry no classification.
// Anything returned by task code falls here.
const TypeUser = "user"

// Classify returns the ErrorType of the first classified error in err's
// chain, or TypeUser when none is found. A nil error yields "".
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.ErrorType()
	}
	return TypeUser
}

// IsRetryable reports whether err is classified as retryable.
// Unclassified errors are left to the caller's retry policy and report false.
func IsRetryable(err error) bool {
	var c ErrorClassifier
	if errors.As(err, &c) {
		return c.IsRetryable()
	}
	return false
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

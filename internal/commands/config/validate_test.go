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

package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tombee/taskshim/internal/commands/shared"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		config       string
		env          map[string]string
		strict       bool
		wantValid    bool
		wantErrors   int
		wantWarnings int
	}{
		{
			name:      "defaults are valid",
			wantValid: true,
		},
		{
			name:       "bad chunk size",
			env:        map[string]string{"AP_CHUNK_SIZE": "two"},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name:         "placeholder task queue",
			env:          map[string]string{"AP_RUNTIME": "workflow"},
			wantValid:    true,
			wantWarnings: 1,
		},
		{
			name:       "strict turns warnings into errors",
			config:     "protocol:\n  chunk_size: 16\n",
			strict:     true,
			wantValid:  false,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.config != "" {
				path = writeConfig(t, tt.config)
			}

			args := []string{"validate"}
			if tt.strict {
				args = append(args, "--strict")
			}
			out, err := execute(t, NewConfigCommand(), path, true, args...)

			var result ValidationResult
			if jerr := json.Unmarshal([]byte(out), &result); jerr != nil {
				t.Fatalf("invalid JSON: %v\n%s", jerr, out)
			}
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (%+v)", result.Valid, tt.wantValid, result)
			}
			if len(result.Errors) != tt.wantErrors {
				t.Errorf("Errors = %v, want %d", result.Errors, tt.wantErrors)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("Warnings = %v, want %d", result.Warnings, tt.wantWarnings)
			}

			var exitErr *shared.ExitError
			if tt.wantValid {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			} else if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitInvalidTask {
				t.Errorf("expected exit code %d, got %v", shared.ExitInvalidTask, err)
			}
		})
	}
}

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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/config"
)

// minChunkSize is the smallest chunk size that leaves room for a chunk
// marker and a useful slice.
const minChunkSize = 64

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Load the configuration and check it for errors and likely mistakes.

Checks performed:
  - YAML syntax and environment variable formats
  - Required Temporal settings
  - Runtime, log and tracing values
  - Settings that are legal but probably unintended (warnings)

With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  taskshim config validate

  # Validate with warnings as errors
  taskshim config validate --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}

func runValidate(cmd *cobra.Command, strict bool) error {
	result := validate(config.ResolvePath(shared.GetConfigPath()))
	if strict && len(result.Warnings) > 0 {
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
		result.Valid = false
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		if err := shared.EmitJSON(out, result); err != nil {
			return err
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintln(out, shared.RenderError(e))
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "%s %s\n", shared.StatusInfo.Render(shared.SymbolInfo), w)
		}
		if result.Valid {
			fmt.Fprintln(out, shared.RenderOK("Configuration is valid"))
		}
	}

	if !result.Valid {
		return shared.Silent(shared.ExitInvalidTask)
	}
	return nil
}

func validate(path string) ValidationResult {
	cfg, err := config.Load(path)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}
	return ValidationResult{Valid: true, Warnings: warnings(cfg)}
}

// warnings reports legal settings that are probably unintended.
func warnings(cfg *config.Config) []string {
	var w []string
	if cfg.IsWorkflow() && cfg.Temporal.TaskQueue == config.DefaultTaskQueue {
		w = append(w, fmt.Sprintf("workflow runtime is using the placeholder task queue %q; set AP_TASK_QUEUE", config.DefaultTaskQueue))
	}
	if cfg.Protocol.ChunkSize > 0 && cfg.Protocol.ChunkSize < minChunkSize {
		w = append(w, fmt.Sprintf("protocol.chunk_size %d is below %d; most lines will be chunked", cfg.Protocol.ChunkSize, minChunkSize))
	}
	if cfg.Tracing.Endpoint != "" && cfg.Tracing.Stdout {
		w = append(w, "tracing.stdout is ignored when tracing.endpoint is set")
	}
	if cfg.Metrics.Addr != "" && !cfg.IsWorkflow() {
		w = append(w, "metrics.addr only takes effect for the workflow runtime")
	}
	return w
}

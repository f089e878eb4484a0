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

// Package discover implements `taskshim discover`.
package discover

import (
	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/loader"
)

// NewCommand creates the discover command.
func NewCommand() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "discover [patterns...]",
		Short: "List the tasks declared under a directory",
		Long: `Evaluate every Go file matching the glob patterns that declares a Tasks
function and print the declared task configurations as a JSON array.

Patterns use doublestar syntax and are relative to --root. The default
pattern is **/*.go.`,
		Example: `  # Discover every task below the current directory
  taskshim discover

  # Only look in ./tasks
  taskshim discover 'tasks/**/*.go'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := loader.Discover(root, args...)
			if err != nil {
				return shared.NewInvalidTaskError("discovery failed", err)
			}
			if descs == nil {
				descs = []loader.Descriptor{}
			}
			return shared.EmitJSON(cmd.OutOrStdout(), descs)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Directory the patterns are relative to")
	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitInvalidTask},
	})

	return cmd
}

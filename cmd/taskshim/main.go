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

package main

import (
	"github.com/tombee/taskshim/internal/cli"
	"github.com/tombee/taskshim/internal/commands/completion"
	"github.com/tombee/taskshim/internal/commands/config"
	"github.com/tombee/taskshim/internal/commands/diagnostics"
	"github.com/tombee/taskshim/internal/commands/discover"
	"github.com/tombee/taskshim/internal/commands/exec"
	"github.com/tombee/taskshim/internal/commands/history"
	"github.com/tombee/taskshim/internal/commands/run"
	"github.com/tombee/taskshim/internal/commands/scaffold"
	versioncmd "github.com/tombee/taskshim/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Task invocation
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(exec.NewCommand())
	rootCmd.AddCommand(discover.NewCommand())
	rootCmd.AddCommand(scaffold.NewCommand())

	// Run history
	rootCmd.AddCommand(history.NewCommand())

	// Configuration and diagnostics
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(diagnostics.NewPingCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}

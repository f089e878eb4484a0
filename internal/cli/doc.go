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

/*
Package cli provides the root command and shared configuration for taskshim's CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	taskshim
	├── run        Invoke a task once (single-shot shim)
	├── exec       Run a task locally under supervision
	├── discover   List declared tasks as JSON
	├── init       Create a task file from a template
	├── history    Show recorded runs
	├── config     Show and validate configuration
	├── ping       Check the Temporal frontend
	├── completion Generate shell completion scripts
	├── version    Show version
	└── help       Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v   Enable debug logging
	--json          Output in JSON format
	--config        Path to config file (default: $AP_CONFIG)
*/
package cli

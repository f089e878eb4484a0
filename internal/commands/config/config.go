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

// Package config implements `taskshim config`.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check configuration",
		Long: `View and check taskshim configuration.

Configuration is read from the file named by --config or AP_CONFIG, then
overridden by environment variables.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file and history database locations
  validate - Check the configuration`,
	}

	show := newConfigShowCommand()
	cmd.AddCommand(show)
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(NewValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = show.RunE

	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitInvalidTask},
		Env: []string{
			"AP_RUNTIME", "AP_TEMPORAL_ADDR", "AP_NAMESPACE", "AP_TASK_QUEUE", "AP_CHUNK_SIZE",
			"AP_METRICS_ADDR", "TASKSHIM_STORE",
		},
	})

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults, the config file and the
environment have been applied.

Credentials in the tracing endpoint are masked.
Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file and history database locations",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfgPath := config.ResolvePath(shared.GetConfigPath())
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return shared.NewInvalidTaskError("failed to load config", err)
	}
	masked := maskSensitiveConfig(cfg)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		doc, err := toMap(masked)
		if err != nil {
			return err
		}
		return shared.EmitJSON(out, doc)
	}

	source := cfgPath
	if source == "" {
		source = "(environment only)"
	}
	fmt.Fprintf(out, "%s %s\n", shared.Header.Render("Configuration:"), source)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

type pathResponse struct {
	shared.JSONResponse
	Config string `json:"config"`
	Store  string `json:"store"`
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath := config.ResolvePath(shared.GetConfigPath())
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return shared.NewInvalidTaskError("failed to load config", err)
	}
	store, err := cfg.StorePath()
	if err != nil {
		return fmt.Errorf("failed to determine history database path: %w", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, pathResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "config path", Success: true},
			Config:       cfgPath,
			Store:        store,
		})
	}

	if cfgPath == "" {
		cfgPath = shared.Muted.Render("(none)")
	}
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("config:"), cfgPath)
	fmt.Fprintf(out, "%s  %s\n", shared.RenderLabel("store:"), store)
	return nil
}

// maskSensitiveConfig returns a copy of cfg with credentials masked.
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Tracing.Endpoint = maskEndpoint(cfg.Tracing.Endpoint)
	return &masked
}

// maskEndpoint hides the password of an endpoint URL's user info.
func maskEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.User == nil {
		return endpoint
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// toMap re-reads cfg through its YAML tags so JSON output uses the same
// keys as the config file.
func toMap(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return doc, nil
}

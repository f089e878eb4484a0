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

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/taskshim/internal/commands/shared"
)

// CommandHelp describes a command, including its process contract, for
// machine consumers such as platform agents that launch taskshim.
type CommandHelp struct {
	Name        string         `json:"name"`
	Path        string         `json:"path"`
	Short       string         `json:"short"`
	Long        string         `json:"long,omitempty"`
	Usage       string         `json:"usage"`
	Examples    string         `json:"examples,omitempty"`
	Group       string         `json:"group,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Subcommands []string       `json:"subcommands,omitempty"`
	Flags       []FlagHelp     `json:"flags,omitempty"`
	ExitCodes   []ExitCodeHelp `json:"exit_codes,omitempty"`
	Env         []EnvHelp      `json:"env,omitempty"`

	// Protocol is set when stdout carries airplane_* protocol lines.
	Protocol bool `json:"protocol"`
}

// FlagHelp describes a flag.
type FlagHelp struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// ExitCodeHelp is one exit code a command can return.
type ExitCodeHelp struct {
	Code    int    `json:"code"`
	Meaning string `json:"meaning"`
}

// EnvHelp is one environment variable a command reads.
type EnvHelp struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// HelpResponse is the JSON output of the help command.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandHelp `json:"commands,omitempty"`
	Command     *CommandHelp  `json:"command,omitempty"`
	GlobalFlags []FlagHelp    `json:"global_flags,omitempty"`
	Environment []EnvHelp     `json:"environment,omitempty"`
}

// NewHelpCommand creates the help command. Besides cobra's usage text it
// reports each command's exit codes and the environment it reads.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help shows usage, exit codes and environment variables for a command.

Run 'taskshim help' to see all available commands.
Run 'taskshim help <command>' to see detailed help for a specific command.
Use --json to get machine-readable output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			useJSON := shared.GetJSON() || jsonOutput

			if len(args) == 0 {
				if useJSON {
					return shared.EmitJSON(out, allCommandsHelp(rootCmd))
				}
				if err := rootCmd.Help(); err != nil {
					return err
				}
				return writeEnv(out, "Environment", shared.GlobalEnv)
			}

			target, _, err := rootCmd.Find(args)
			if err != nil || target == rootCmd {
				return fmt.Errorf("command %q not found", args[0])
			}
			if useJSON {
				h := commandHelp(target)
				return shared.EmitJSON(out, HelpResponse{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "help " + target.Name(), Success: true},
					Command:      &h,
					GlobalFlags:  globalFlags(rootCmd),
					Environment:  envHelp(shared.GlobalEnv),
				})
			}
			if err := target.Help(); err != nil {
				return err
			}
			return writeContract(out, target)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func allCommandsHelp(rootCmd *cobra.Command) HelpResponse {
	commands := []CommandHelp{}
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			commands = append(commands, commandHelp(c))
		}
	}
	return HelpResponse{
		JSONResponse: shared.JSONResponse{Version: "1.0", Command: "help", Success: true},
		Commands:     commands,
		GlobalFlags:  globalFlags(rootCmd),
		Environment:  envHelp(shared.GlobalEnv),
	}
}

func commandHelp(cmd *cobra.Command) CommandHelp {
	h := CommandHelp{
		Name:     cmd.Name(),
		Path:     cmd.CommandPath(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Examples: cmd.Example,
		Group:    cmd.Annotations["group"],
		Aliases:  cmd.Aliases,
	}

	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden {
			return
		}
		fh := flagHelp(flag)
		if ann := flag.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) > 0 && ann[0] == "true" {
			fh.Required = true
		}
		h.Flags = append(h.Flags, fh)
	})

	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			h.Subcommands = append(h.Subcommands, sub.Name())
		}
	}

	if contract, ok := shared.ContractOf(cmd); ok {
		for _, code := range contract.ExitCodes {
			h.ExitCodes = append(h.ExitCodes, ExitCodeHelp{Code: code, Meaning: shared.ExitCodeMeaning(code)})
		}
		h.Env = envHelp(contract.Env)
		h.Protocol = contract.Protocol
	}
	return h
}

func flagHelp(flag *pflag.Flag) FlagHelp {
	return FlagHelp{
		Name:      flag.Name,
		Shorthand: flag.Shorthand,
		Usage:     flag.Usage,
		Default:   flag.DefValue,
	}
}

func globalFlags(rootCmd *cobra.Command) []FlagHelp {
	var flags []FlagHelp
	rootCmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Hidden {
			flags = append(flags, flagHelp(flag))
		}
	})
	return flags
}

func envHelp(names []string) []EnvHelp {
	var env []EnvHelp
	for _, name := range names {
		env = append(env, EnvHelp{Name: name, Description: shared.EnvDescription(name)})
	}
	return env
}

// writeContract appends the exit code and environment sections to the text
// help of cmd.
func writeContract(w io.Writer, cmd *cobra.Command) error {
	contract, ok := shared.ContractOf(cmd)
	if !ok {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nExit Codes:")
	for _, code := range contract.ExitCodes {
		fmt.Fprintf(tw, "  %d\t%s\n", code, shared.ExitCodeMeaning(code))
	}
	if contract.Protocol {
		fmt.Fprintln(tw, "\nstdout carries airplane_* protocol lines; diagnostics go to stderr.")
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writeEnv(w, "Environment", contract.Env)
}

func writeEnv(w io.Writer, title string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\n%s:\n", title)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, shared.EnvDescription(name))
	}
	return tw.Flush()
}

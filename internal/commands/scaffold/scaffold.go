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

// Package scaffold implements `taskshim init`.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/completion"
	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/templates"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

type options struct {
	template string
	dir      string
	list     bool
	force    bool
}

type initResponse struct {
	shared.JSONResponse
	Slug     string `json:"slug"`
	Template string `json:"template"`
	Path     string `json:"path"`
}

// NewCommand creates the init command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "init <slug>",
		Short: "Create a task source file from a template",
		Long: `Create <slug>.go from a template. The file can be run directly with
'taskshim exec' and is picked up by 'taskshim discover'.`,
		Example: `  taskshim init send_report
  taskshim init --template stream export_rows --dir tasks
  taskshim init --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				return listTemplates(cmd)
			}
			return runInit(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", templates.DefaultTemplate, "Template to use")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to write the task file to")
	cmd.Flags().BoolVar(&opts.list, "list", false, "List available templates")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file")
	_ = cmd.RegisterFlagCompletionFunc("template", completion.CompleteTemplates)
	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitInvalidTask, shared.ExitNotFound},
	})

	return cmd
}

func runInit(cmd *cobra.Command, opts options, slug string) error {
	if err := (task.Config{Slug: slug}).Validate(); err != nil {
		return shared.NewInvalidTaskError("", err)
	}
	if !templates.Exists(opts.template) {
		return &shimerrors.NotFoundError{Resource: "template", ID: opts.template}
	}

	content, err := templates.Render(opts.template, slug)
	if err != nil {
		return err
	}

	path := filepath.Join(opts.dir, slug+".go")
	if _, err := os.Stat(path); err == nil && !opts.force {
		return shared.NewInvalidTaskError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.dir, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, initResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "init", Success: true},
			Slug:         slug,
			Template:     opts.template,
			Path:         path,
		})
	}

	fmt.Fprintln(out, shared.RenderOK("Created "+path))
	run := "taskshim exec " + path
	if opts.template != "direct" {
		run = fmt.Sprintf("taskshim exec --func %s %s", templates.DataFor(slug).Func, path)
	}
	fmt.Fprintf(out, "\nRun it with:\n  %s '{}'\n", run)
	return nil
}

func listTemplates(cmd *cobra.Command) error {
	list, err := templates.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, list)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, shared.Header.Render("TEMPLATE")+"\t"+shared.Header.Render("DESCRIPTION"))
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
	}
	return w.Flush()
}

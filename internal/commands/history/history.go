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

// Package history implements `taskshim history`.
package history

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/completion"
	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/runstore"
)

// NewCommand creates the history command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "View recorded task runs",
		Long: `Commands for listing and inspecting runs recorded by 'taskshim exec'.

Use 'taskshim exec' to run a task. Use 'taskshim history' to view past runs.`,
	}

	list := newListCommand()
	cmd.RunE = list.RunE
	cmd.Flags().AddFlagSet(list.Flags())

	cmd.AddCommand(list)
	cmd.AddCommand(newShowCommand())
	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitTaskFailed, shared.ExitInvalidTask, shared.ExitNotFound},
		Env:       []string{"TASKSHIM_STORE"},
	})

	return cmd
}

func newListCommand() *cobra.Command {
	var filter runstore.Filter
	var failed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Example: `  # List the last 20 runs
  taskshim history list

  # Failed runs of one task as JSON
  taskshim history list --task greet --failed --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed {
				filter.Status = runstore.StatusFailed
			}
			return listRuns(cmd, filter)
		},
	}

	cmd.Flags().StringVar(&filter.Task, "task", "", "Filter by task slug")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (running, succeeded, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of runs (0 for all)")
	cmd.Flags().BoolVar(&failed, "failed", false, "Show only failed runs (shorthand for --status failed)")
	_ = cmd.RegisterFlagCompletionFunc("status", completion.CompleteRunStatus)
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteRunIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd, args[0])
		},
	}
}

func openStore(cmd *cobra.Command) (*runstore.Store, func(), error) {
	rt, err := shared.Bootstrap(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	path, err := rt.Config.StorePath()
	if err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("resolving history database: %w", err)
	}
	store, err := runstore.Open(path)
	if err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	return store, func() {
		store.Close()
		rt.Close()
	}, nil
}

func listRuns(cmd *cobra.Command, filter runstore.Filter) error {
	store, closeFn, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	runs, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		if runs == nil {
			runs = []*runstore.Run{}
		}
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Runs []*runstore.Run `json:"runs"`
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "history list", Success: true},
			Runs:         runs,
		})
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, shared.Header.Render("ID")+"\t"+shared.Header.Render("TASK")+"\t"+
		shared.Header.Render("STATUS")+"\t"+shared.Header.Render("STARTED")+"\t"+shared.Header.Render("DURATION"))
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.Task, shared.RenderStatus(r.Status),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"), formatDuration(r))
	}
	return tw.Flush()
}

func showRun(cmd *cobra.Command, id string) error {
	store, closeFn, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, run)
	}
	return printRun(out, run)
}

func printRun(w io.Writer, r *runstore.Run) error {
	fmt.Fprintf(w, "%s %s\n", shared.Bold.Render(r.Task), shared.RenderStatus(r.Status))
	fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("id:      "), r.ID)
	fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("started: "), r.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("duration:"), formatDuration(r))
	fmt.Fprintf(w, "  %s %d\n", shared.RenderLabel("exit:    "), r.ExitCode)
	if r.Error != "" {
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("error:   "), r.Error)
	}
	for _, field := range []struct {
		label string
		value any
	}{{"params:  ", r.Params}, {"output:  ", r.Output}} {
		if field.value == nil {
			continue
		}
		data, err := protocol.MarshalValue(field.value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", field.label, err)
		}
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel(field.label), data)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(r *runstore.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.Duration().Round(time.Millisecond).String()
}

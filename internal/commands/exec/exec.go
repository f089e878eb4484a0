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

// Package exec implements `taskshim exec`, a supervised local run.
package exec

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/completion"
	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/invoke"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/runstore"
	"github.com/tombee/taskshim/internal/supervisor"
	"github.com/tombee/taskshim/pkg/task"
)

type options struct {
	fn         string
	slug       string
	positional bool
	noStore    bool
	timeout    time.Duration
	shim       string
}

// NewCommand creates the exec command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "exec <entrypoint> [request-json]",
		Short: "Run a task locally under supervision",
		Long: `Spawn 'taskshim run' for the task, decode its protocol stream into the
run's output document, record the run in the local history database and
print a summary.`,
		Example: `  # Run a task and show its outputs
  taskshim exec tasks/greet.go '{"name":"Ada"}'

  # Machine-readable result without recording history
  taskshim exec tasks/greet.go '{"name":"Ada"}' --no-store --json`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completion.CompleteTaskFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.fn, "func", "", "Function to invoke (default Main)")
	cmd.Flags().StringVar(&opts.slug, "slug", "", "Task slug recorded in history")
	cmd.Flags().BoolVar(&opts.positional, "positional", false, "Pass each parameter as its own argument")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not record the run in history")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Kill the task after this long (0 disables)")
	cmd.Flags().StringVar(&opts.shim, "shim", "", "Shim executable (default: this binary)")
	_ = cmd.Flags().MarkHidden("shim")
	_ = cmd.RegisterFlagCompletionFunc("func", completion.CompleteTaskFuncs)

	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitTaskFailed, shared.ExitInvalidTask},
		Env:       []string{"AP_CHUNK_SIZE", "TASKSHIM_STORE"},
	})

	return cmd
}

// summary is the JSON form of an exec result.
type summary struct {
	shared.JSONResponse
	RunID      string   `json:"run_id,omitempty"`
	Task       string   `json:"task"`
	Status     string   `json:"status"`
	ExitCode   int      `json:"exit_code"`
	DurationMs int64    `json:"duration_ms"`
	Output     any      `json:"output"`
	Errors     []string `json:"errors,omitempty"`
	Logs       []string `json:"logs,omitempty"`
}

func runExec(cmd *cobra.Command, opts options, args []string) error {
	ctx := cmd.Context()
	rt, err := shared.Bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := log.WithComponent(rt.Logger, "exec")

	entrypoint := args[0]
	params := task.Values{}
	if len(args) == 2 {
		if params, err = invoke.DecodeParams(args[1]); err != nil {
			return shared.NewInvalidTaskError("invalid request", err)
		}
	}
	if opts.slug == "" {
		opts.slug = entrypoint
	}

	shim := opts.shim
	if shim == "" {
		if shim, err = os.Executable(); err != nil {
			return fmt.Errorf("locating taskshim binary: %w", err)
		}
	}
	shimArgs := []string{"run", "--entrypoint", entrypoint, "--slug", opts.slug}
	if opts.fn != "" {
		shimArgs = append(shimArgs, "--func", opts.fn)
	}
	if opts.positional {
		shimArgs = append(shimArgs, "--positional")
	}
	if path := shared.GetConfigPath(); path != "" {
		shimArgs = append(shimArgs, "--config", path)
	}

	var store *runstore.Store
	run := &runstore.Run{Task: opts.slug, Params: params}
	if !opts.noStore {
		path, err := rt.Config.StorePath()
		if err != nil {
			return fmt.Errorf("resolving history database: %w", err)
		}
		if store, err = runstore.Open(path); err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer store.Close()
		if err := store.Create(ctx, run); err != nil {
			return err
		}
		logger = log.WithRun(logger, "", run.ID)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	sup := supervisor.New(supervisor.Options{
		Binary: shim,
		Args:   shimArgs,
		Logger: rt.Logger,
		Stderr: cmd.ErrOrStderr(),
		OnEnvelope: func(env protocol.Envelope) {
			logger.Debug("envelope", slog.String("kind", env.Kind.String()), slog.String("path", env.Path))
		},
	})
	res, runErr := sup.Run(ctx, params)

	if res != nil {
		run.Status = runstore.StatusSucceeded
		if res.Status == protocol.StatusFailed || runErr != nil {
			run.Status = runstore.StatusFailed
		}
		run.Output = res.Output
		run.ExitCode = res.ExitCode
		run.Error = strings.Join(res.Errors, "; ")
	} else {
		run.Status = runstore.StatusFailed
		run.ExitCode = invoke.ExitFailure
	}
	if runErr != nil && run.Error == "" {
		run.Error = runErr.Error()
	}
	if store != nil {
		// The run context may have expired; completion must still be recorded.
		if err := store.Complete(context.WithoutCancel(ctx), run); err != nil {
			logger.Error("failed to record run", log.Error(err))
		}
	}
	if res == nil {
		return shared.NewTaskFailedError("running task", runErr)
	}

	if err := report(cmd.OutOrStdout(), run, res); err != nil {
		return err
	}
	if runErr != nil {
		return shared.NewTaskFailedError("reading task output", runErr)
	}
	if run.Status == runstore.StatusFailed {
		code := res.ExitCode
		if code <= 0 {
			code = shared.ExitTaskFailed
		}
		return shared.Silent(code)
	}
	return nil
}

func report(w io.Writer, run *runstore.Run, res *supervisor.Result) error {
	if shared.GetJSON() {
		return shared.EmitJSON(w, summary{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "exec", Success: run.Status == runstore.StatusSucceeded},
			RunID:        run.ID,
			Task:         run.Task,
			Status:       run.Status,
			ExitCode:     res.ExitCode,
			DurationMs:   res.Duration.Milliseconds(),
			Output:       res.Output,
			Errors:       res.Errors,
			Logs:         res.Logs,
		})
	}

	for _, line := range res.Logs {
		fmt.Fprintln(w, shared.Muted.Render("│ ")+line)
	}
	header := shared.RenderOK(shared.Bold.Render(run.Task))
	if run.Status != runstore.StatusSucceeded {
		header = shared.RenderError(shared.Bold.Render(run.Task))
	}
	fmt.Fprintf(w, "%s %s %s\n", header, shared.RenderStatus(run.Status),
		shared.Muted.Render(fmt.Sprintf("in %s", res.Duration.Round(time.Millisecond))))
	if run.ID != "" {
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("run:   "), run.ID)
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("error: "), msg)
	}
	if res.Output != nil {
		data, err := res.OutputJSON()
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("output:"), data)
	}
	return nil
}

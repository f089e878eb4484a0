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

// Package run implements the single-shot `taskshim run` command.
package run

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/taskshim/internal/commands/completion"
	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/invoke"
	"github.com/tombee/taskshim/internal/loader"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/tracing"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

// Options are the flags of the run command.
type Options struct {
	Entrypoint string
	Func       string
	Slug       string
	Positional bool
}

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "run [flags] <request-json>",
		Short: "Invoke a task once with a JSON request",
		Long: `Load a task from Go source and invoke it once.

The single argument is the JSON request object. Results, streamed outputs
and errors are written to stdout as protocol lines; diagnostics go to
stderr. The exit code is 0 on success and 1 on any failure.`,
		Example: `  # Invoke Main from ./tasks/greet.go
  taskshim run --entrypoint tasks/greet.go '{"name":"Ada"}'

  # Invoke a descriptor task with positional parameters
  taskshim run --entrypoint tasks --func Greet --positional '{"name":"Ada"}'`,
		// Argument count is checked by the adapter so it is reported
		// through the protocol.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, opts, cmd.Flags().Changed("positional"), args)
		},
	}

	cmd.Flags().StringVar(&opts.Entrypoint, "entrypoint", "", "Task source file or directory (env: AP_ENTRYPOINT)")
	cmd.Flags().StringVar(&opts.Func, "func", "", "Function to invoke (env: AP_ENTRYPOINT_FUNC, default Main)")
	cmd.Flags().StringVar(&opts.Slug, "slug", "", "Task slug for logs and traces")
	cmd.Flags().BoolVar(&opts.Positional, "positional", false, "Pass each parameter as its own argument (env: AP_PARAM_SLUGS_POSITIONAL)")
	_ = cmd.RegisterFlagCompletionFunc("func", completion.CompleteTaskFuncs)

	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitTaskFailed},
		Env:       []string{"AP_RUNTIME", "AP_ENTRYPOINT", "AP_ENTRYPOINT_FUNC", "AP_PARAM_SLUGS_POSITIONAL", "AP_CHUNK_SIZE"},
		Protocol:  true,
	})

	return cmd
}

// Run loads the task described by opts and the configuration, and invokes
// it with args. positionalSet reports whether opts.Positional overrides
// the configuration.
func Run(cmd *cobra.Command, opts Options, positionalSet bool, args []string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	rt, err := shared.Bootstrap(ctx)
	if err != nil {
		// Configuration is unusable, so report with protocol defaults.
		return fail(stdout, stderr, protocol.DefaultChunkSize, log.Discard(), err)
	}
	defer rt.Close()

	cfg := rt.Config
	if opts.Entrypoint == "" {
		opts.Entrypoint = cfg.Task.Entrypoint
	}
	if opts.Func == "" {
		opts.Func = cfg.Task.EntrypointFunc
	}
	if !positionalSet {
		opts.Positional = cfg.Task.ParamSlugsPositional
	}
	if opts.Slug == "" {
		opts.Slug = slugFor(opts.Entrypoint)
	}

	ep, err := resolve(opts, cfg.IsWorkflow())
	if err != nil {
		return fail(stdout, stderr, cfg.Protocol.ChunkSize, rt.Logger, err)
	}

	adapter := invoke.New(ep, invoke.Options{
		Stdout:    stdout,
		Stderr:    stderr,
		ChunkSize: cfg.Protocol.ChunkSize,
		Logger:    rt.Logger,
		Tracer:    rt.Telemetry.Tracer(tracing.InstrumentationName),
		Collector: rt.Telemetry.Collector(),
		TaskSlug:  opts.Slug,
	})
	if code := adapter.Run(ctx, args); code != invoke.ExitSuccess {
		return shared.Silent(code)
	}
	return nil
}

// fail reports a failure that happens before the adapter runs in the same
// order as task errors: the error on stderr, then the error envelope.
func fail(stdout, stderr io.Writer, chunkSize int, logger *slog.Logger, err error) error {
	fmt.Fprintln(stderr, err)
	enc := protocol.NewEncoder(stdout, protocol.WithChunkSize(chunkSize))
	if werr := enc.Error(err.Error()); werr != nil {
		logger.Error("failed to write error envelope", log.Error(werr))
	}
	return shared.Silent(invoke.ExitFailure)
}

func resolve(opts Options, workflow bool) (task.Entrypoint, error) {
	if workflow {
		return nil, &shimerrors.ValidationError{
			Field:   "runtime",
			Message: "workflow tasks cannot be interpreted",
			Hint:    "Build the task as a program that calls sdk.Main and run it with AP_RUNTIME=workflow",
		}
	}
	if opts.Entrypoint == "" {
		return nil, &shimerrors.ValidationError{
			Field:   "entrypoint",
			Message: "no entrypoint configured",
			Hint:    "Pass --entrypoint or set AP_ENTRYPOINT",
		}
	}
	m, err := loader.Load(opts.Entrypoint)
	if err != nil {
		return nil, err
	}
	ep, err := m.Resolve(opts.Func, opts.Positional)
	if err != nil {
		return nil, err
	}
	if err := invoke.Validate(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

func slugFor(entrypoint string) string {
	base := filepath.Base(entrypoint)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

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

package sdk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/durable"
	"github.com/tombee/taskshim/internal/invoke"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/tracing"
	"github.com/tombee/taskshim/internal/worker"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

// ReplayHistoryEnv names a JSON workflow history to replay instead of
// polling the task queue.
const ReplayHistoryEnv = "AP_REPLAY_HISTORY"

// Version is reported as the service version in traces.
var Version = "dev"

// WorkflowFunc is the user workflow hosted by the worker.
type WorkflowFunc = durable.WorkflowFunc

// Reporter is handed to a WorkflowFunc to write log and output lines
// through the replay-safe workflow sink.
type Reporter = durable.Reporter

// Activity is a function, or a struct whose methods are activities,
// registered alongside the workflow.
type Activity = worker.Activity

// Task is what a compiled task program exposes.
type Task struct {
	// Definition is the standard-runtime entrypoint with its metadata.
	Definition *task.Definition

	// Func is a plain function used when Definition is nil. It receives the
	// invocation request as its only argument.
	Func any

	// Workflow and Activities are hosted when the task runs under the
	// workflow runtime.
	Workflow   WorkflowFunc
	Activities []Activity
}

func (t Task) slug() string {
	if t.Definition != nil {
		return t.Definition.Config.Slug
	}
	return ""
}

func (t Task) isWorkflow(cfg *config.Config) bool {
	if cfg.IsWorkflow() {
		return true
	}
	return t.Definition != nil && t.Definition.Config.Runtime == task.RuntimeWorkflow
}

func (t Task) entrypoint(positional bool) (task.Entrypoint, error) {
	var ep task.Entrypoint
	switch {
	case t.Definition != nil:
		if err := t.Definition.Validate(); err != nil {
			return nil, err
		}
		ep = t.Definition.Entrypoint(positional)
	case t.Func != nil:
		ep = task.Direct{Func: t.Func}
	default:
		return nil, &shimerrors.ValidationError{
			Field:   "entrypoint",
			Message: "task has neither a definition nor a function",
			Hint:    "Set Task.Definition or Task.Func",
		}
	}
	if err := invoke.Validate(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Main runs t with the process arguments and exits with its exit code.
func Main(t Task, opts ...Option) {
	os.Exit(Run(context.Background(), t, os.Args[1:], opts...))
}

type runner struct {
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
	configPath string
	registerer prometheus.Registerer
	dial       worker.Dialer
	newWorker  worker.Factory
}

// Run executes t with args, the process arguments without the program
// name, and returns the process exit code.
func Run(ctx context.Context, t Task, args []string, opts ...Option) int {
	r := &runner{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			fmt.Fprintf(r.stderr, "invalid option: %v\n", err)
			return invoke.ExitFailure
		}
	}

	cfg, err := config.Load(config.ResolvePath(r.configPath))
	if err != nil {
		return r.fail(err)
	}
	if r.logger == nil {
		r.logger = log.New(log.FromEnv().Merge(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource))
	}
	workflowRuntime := t.isWorkflow(cfg)

	registerer := r.registerer
	if registerer == nil {
		if workflowRuntime && cfg.Metrics.Addr != "" {
			registerer = prometheus.DefaultRegisterer
		} else {
			registerer = prometheus.NewRegistry()
		}
	}
	tp, err := tracing.NewProvider(ctx, cfg.Tracing, Version, tracing.Options{Registerer: registerer, Stderr: r.stderr})
	if err != nil {
		return r.fail(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			r.logger.Debug("telemetry shutdown failed", log.Error(err))
		}
	}()

	if workflowRuntime {
		return r.runWorker(ctx, t, cfg, args, tp)
	}

	ep, err := t.entrypoint(cfg.Task.ParamSlugsPositional)
	if err != nil {
		return r.fail(err)
	}
	return invoke.New(ep, invoke.Options{
		Stdout:    r.stdout,
		Stderr:    r.stderr,
		ChunkSize: cfg.Protocol.ChunkSize,
		Logger:    r.logger,
		Tracer:    tp.Tracer(tracing.InstrumentationName),
		Collector: tp.Collector(),
		TaskSlug:  t.slug(),
	}).Run(ctx, args)
}

func (r *runner) runWorker(ctx context.Context, t Task, cfg *config.Config, args []string, tp *tracing.Provider) int {
	if len(args) != 1 {
		r.envelope(&shimerrors.ArgumentError{Got: len(args)})
		return invoke.ExitFailure
	}
	params, err := invoke.DecodeParams(args[0])
	if err != nil {
		return r.fail(err)
	}
	logger := log.WithComponent(r.logger, "sdk")
	if slug := t.slug(); slug != "" {
		logger = log.WithTask(logger, slug)
	}
	logger.Debug("starting workflow runtime", slog.Int("params", len(params)))

	reg := worker.Registration{
		TaskQueue:  cfg.Temporal.TaskQueue,
		Workflow:   t.Workflow,
		Activities: t.Activities,
	}

	if history := os.Getenv(ReplayHistoryEnv); history != "" {
		if err := worker.Replay(reg, history, logger); err != nil {
			return r.fail(err)
		}
		logger.Info("replay succeeded", slog.String("history", history))
		return invoke.ExitSuccess
	}

	w, err := worker.New(reg, worker.Options{
		Temporal:    cfg.Temporal,
		ChunkSize:   cfg.Protocol.ChunkSize,
		Stdout:      r.stdout,
		Logger:      r.logger,
		Collector:   tp.Collector(),
		MetricsAddr: cfg.Metrics.Addr,
		Dial:        r.dial,
		NewWorker:   r.newWorker,
	})
	if err != nil {
		return r.fail(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := w.Run(ctx); err != nil {
		return r.fail(err)
	}
	return invoke.ExitSuccess
}

// fail reports err on stderr and then as an error envelope.
func (r *runner) fail(err error) int {
	fmt.Fprintln(r.stderr, err)
	r.envelope(err)
	return invoke.ExitFailure
}

func (r *runner) envelope(err error) {
	if werr := protocol.NewEncoder(r.stdout).Error(err.Error()); werr != nil {
		fmt.Fprintln(r.stderr, werr)
	}
}

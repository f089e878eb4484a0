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

// Package worker hosts a task on a Temporal task queue: it dials the
// frontend, registers the workflow wrapper and the task's activities, and
// polls until its context is cancelled.
package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/grpc/status"

	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/durable"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/metrics"
	"github.com/tombee/taskshim/internal/tracing"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
)

// Activity is a function or struct of methods registered as activities.
type Activity struct {
	// Name overrides the registered name. Empty uses the function name, or
	// the method names for a struct.
	Name string
	Func any
}

// Registration is everything the worker registers on its task queue.
type Registration struct {
	TaskQueue  string
	Workflow   durable.WorkflowFunc
	Activities []Activity
}

// Dialer connects to the Temporal frontend.
type Dialer func(opts client.Options) (client.Client, error)

// Factory creates the SDK worker for a connected client.
type Factory func(c client.Client, taskQueue string, opts sdkworker.Options) sdkworker.Worker

// Options configure a Worker.
type Options struct {
	Temporal  config.TemporalConfig
	ChunkSize int

	// Stdout receives sink and activity lines. Defaults to os.Stdout.
	Stdout io.Writer

	Logger    *slog.Logger
	Collector *tracing.Collector

	// MetricsAddr enables a /metrics listener for the lifetime of Run.
	MetricsAddr string

	Dial      Dialer
	NewWorker Factory
}

// Worker is a configured, not yet running, Temporal worker.
type Worker struct {
	reg    Registration
	opts   Options
	logger *slog.Logger
}

// New validates reg and returns a worker. reg is copied; later changes by
// the caller are not observed.
func New(reg Registration, opts Options) (*Worker, error) {
	if reg.Workflow == nil {
		return nil, &shimerrors.ValidationError{
			Field:   "workflow",
			Message: "a workflow function is required",
		}
	}
	if reg.TaskQueue == "" {
		reg.TaskQueue = opts.Temporal.TaskQueue
	}
	if reg.TaskQueue == "" {
		reg.TaskQueue = config.DefaultTaskQueue
	}
	if opts.Temporal.Address == "" {
		opts.Temporal.Address = config.DefaultTemporalAddress
	}
	if opts.Temporal.Namespace == "" {
		opts.Temporal.Namespace = config.DefaultNamespace
	}
	for i, a := range reg.Activities {
		if a.Func == nil {
			return nil, &shimerrors.ValidationError{
				Field:   fmt.Sprintf("activities[%d]", i),
				Message: "activity function is nil",
			}
		}
	}
	reg.Activities = append([]Activity(nil), reg.Activities...)

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Collector == nil {
		opts.Collector = tracing.NoopCollector()
	}
	if opts.Dial == nil {
		opts.Dial = client.Dial
	}
	if opts.NewWorker == nil {
		opts.NewWorker = sdkworker.New
	}

	logger := log.WithComponent(opts.Logger, "worker").With(slog.String(log.TaskQueueKey, reg.TaskQueue))
	return &Worker{reg: reg, opts: opts, logger: logger}, nil
}

// Registration returns a copy of the worker's registration.
func (w *Worker) Registration() Registration {
	reg := w.reg
	reg.Activities = append([]Activity(nil), w.reg.Activities...)
	return reg
}

// Run dials Temporal, registers the task and polls until ctx is done. A
// dial failure is returned as *errors.EngineError before anything is
// registered.
func (w *Worker) Run(ctx context.Context) error {
	tc := w.opts.Temporal
	c, err := w.opts.Dial(client.Options{
		HostPort:  tc.Address,
		Namespace: tc.Namespace,
		Logger:    tlog.NewStructuredLogger(w.logger),
	})
	if err != nil {
		w.logger.Error("failed to connect to temporal",
			slog.String("address", tc.Address),
			slog.String("grpc_code", status.Code(err).String()),
			log.Error(err))
		return &shimerrors.EngineError{Address: tc.Address, Namespace: tc.Namespace, Cause: err}
	}
	defer c.Close()

	tw := w.opts.NewWorker(c, w.reg.TaskQueue, sdkworker.Options{
		Interceptors: []interceptor.WorkerInterceptor{
			durable.NewActivityInterceptor(w.opts.Stdout,
				durable.WithActivityLogger(w.logger),
				durable.WithActivityCollector(w.opts.Collector),
			),
		},
		WorkerStopTimeout: tc.ShutdownTimeout,
	})
	w.register(tw)

	if w.opts.MetricsAddr != "" {
		srv := metrics.NewServer(w.opts.MetricsAddr, w.logger)
		addr, err := srv.Start()
		if err != nil {
			return fmt.Errorf("starting metrics listener: %w", err)
		}
		w.logger.Info("serving metrics", slog.String("addr", addr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	interrupt := make(chan interface{})
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			close(interrupt)
		case <-done:
		}
	}()

	w.logger.Info("worker started",
		slog.String("address", tc.Address),
		slog.String("namespace", tc.Namespace),
		slog.Int("activities", len(w.reg.Activities)))
	if err := tw.Run(interrupt); err != nil {
		return fmt.Errorf("running worker on %s: %w", w.reg.TaskQueue, err)
	}
	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) register(r sdkworker.Registry) {
	sink := durable.NewWriterSink(w.opts.Stdout, w.logger)
	wf := durable.NewWorkflow(w.reg.Workflow, sink, w.opts.ChunkSize)
	r.RegisterWorkflowWithOptions(wf.Execute, workflow.RegisterOptions{Name: durable.WorkflowName})

	for _, a := range w.reg.Activities {
		if a.Name == "" {
			r.RegisterActivity(a.Func)
			continue
		}
		r.RegisterActivityWithOptions(a.Func, activity.RegisterOptions{Name: a.Name})
	}
}

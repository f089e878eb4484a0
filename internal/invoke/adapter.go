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

// Package invoke runs a task once: it decodes the single JSON argument,
// calls the resolved entrypoint, and reports the result or error through the
// output protocol.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/metrics"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/tracing"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

// Exit codes returned by Run.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Options configure an Adapter. Zero values use stdout, stderr, the default
// chunk size and the global tracer.
type Options struct {
	Stdout    io.Writer
	Stderr    io.Writer
	ChunkSize int
	Logger    *slog.Logger
	Tracer    trace.Tracer
	Collector *tracing.Collector

	// TaskSlug labels spans and logs.
	TaskSlug string

	// NewChunkID overrides the chunk id source.
	NewChunkID func() string
}

// Adapter is the single-shot invocation adapter.
type Adapter struct {
	entrypoint task.Entrypoint
	enc        *protocol.Encoder
	stderr     io.Writer
	logger     *slog.Logger
	tracer     trace.Tracer
	collector  *tracing.Collector
	slug       string
}

// New creates an adapter for ep.
func New(ep task.Entrypoint, opts Options) *Adapter {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracing.InstrumentationName)
	}
	if opts.Collector == nil {
		opts.Collector = tracing.NoopCollector()
	}

	logger := log.WithComponent(opts.Logger, "invoke")
	if opts.TaskSlug != "" {
		logger = log.WithTask(logger, opts.TaskSlug)
	}

	return &Adapter{
		entrypoint: ep,
		enc: protocol.NewEncoder(opts.Stdout,
			protocol.WithChunkSize(opts.ChunkSize),
			protocol.WithIDGenerator(opts.NewChunkID),
			protocol.WithLogger(logger),
			protocol.WithObserver(func(k protocol.Kind) { metrics.RecordEnvelope(k.String()) }),
		),
		stderr:    opts.Stderr,
		logger:    logger,
		tracer:    opts.Tracer,
		collector: opts.Collector,
		slug:      opts.TaskSlug,
	}
}

// Run performs one invocation with the process arguments (excluding the
// program name) and returns the process exit code.
func (a *Adapter) Run(ctx context.Context, args []string) int {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "task.invoke", trace.WithAttributes(attribute.String("task.slug", a.slug)))
	defer span.End()

	ctx = task.WithOutputs(ctx, a.enc)
	result, err := a.invoke(ctx, args)
	if err == nil && result != nil {
		if err = a.enc.SetOutput("", result); err != nil {
			// stdout is gone; nothing else can be reported on it.
			fmt.Fprintln(a.stderr, err)
			a.finish(ctx, span, start, err)
			return ExitFailure
		}
	}
	if err != nil {
		a.fail(err)
		a.finish(ctx, span, start, err)
		return ExitFailure
	}

	a.finish(ctx, span, start, nil)
	return ExitSuccess
}

func (a *Adapter) invoke(ctx context.Context, args []string) (any, error) {
	if len(args) != 1 {
		return nil, &shimerrors.ArgumentError{Got: len(args)}
	}

	params, err := DecodeParams(args[0])
	if err != nil {
		return nil, err
	}

	a.logger.Debug("invoking task", slog.Int("params", len(params)))
	return Call(ctx, a.entrypoint, params)
}

// fail reports err on stderr and then as an error envelope. Argument errors
// are only reported as an envelope.
func (a *Adapter) fail(err error) {
	var argErr *shimerrors.ArgumentError
	if !shimerrors.As(err, &argErr) {
		fmt.Fprintln(a.stderr, err)
		var panicErr *shimerrors.PanicError
		if shimerrors.As(err, &panicErr) {
			_, _ = a.stderr.Write(panicErr.Stack)
		}
	}
	if werr := a.enc.Error(err.Error()); werr != nil {
		a.logger.Error("failed to write error envelope", log.Error(werr))
	}
}

func (a *Adapter) finish(ctx context.Context, span trace.Span, start time.Time, err error) {
	errorType := shimerrors.Classify(err)
	metrics.RecordInvocation(errorType)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, errorType)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	a.collector.RecordInvoke(ctx, outcome, time.Since(start))
	a.logger.Debug("invocation finished", slog.String("outcome", outcome), log.Duration("duration", time.Since(start).Milliseconds()))
}

// DecodeParams parses the invocation request. JSON null yields an empty
// request; any other non-object value is an error. Numbers are kept as
// json.Number so typed parameters convert without float rounding.
func DecodeParams(arg string) (task.Values, error) {
	dec := json.NewDecoder(strings.NewReader(arg))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &shimerrors.InputParseError{Cause: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &shimerrors.InputParseError{Reason: "unexpected data after the request object"}
	}
	switch v := raw.(type) {
	case nil:
		return task.Values{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, &shimerrors.InputParseError{Reason: fmt.Sprintf("expected a JSON object, got %s", jsonKind(v))}
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

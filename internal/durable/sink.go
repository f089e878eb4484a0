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

// Package durable adapts task functions to the Temporal workflow and
// activity model: the workflow wrapper that reports status and outputs, the
// activity log interceptor, and the replay-safe log sink that carries
// protocol lines out of the deterministic workflow context.
package durable

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.temporal.io/sdk/workflow"

	"github.com/tombee/taskshim/internal/log"
)

// RunIdentity identifies one workflow run. It is attached to every sink
// line so output can be linked back to the run that produced it.
type RunIdentity struct {
	WorkflowID string
	RunID      string
}

// IdentityFrom reads the run identity of the current workflow.
func IdentityFrom(ctx workflow.Context) RunIdentity {
	info := workflow.GetInfo(ctx)
	return RunIdentity{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
	}
}

// Tag returns the line prefix for this run.
func (r RunIdentity) Tag() string {
	return fmt.Sprintf("[ap:workflow::%s:%s]", r.WorkflowID, r.RunID)
}

// Sink receives log lines emitted from workflow code. It runs outside the
// deterministic context and is never called during replay.
type Sink interface {
	Info(id RunIdentity, msg string)
}

// WriterSink writes each line to w prefixed with the run tag.
type WriterSink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewWriterSink creates a sink writing to w. logger receives a debug mirror
// of every line and write failures; nil discards them.
func NewWriterSink(w io.Writer, logger *slog.Logger) *WriterSink {
	if logger == nil {
		logger = log.Discard()
	}
	return &WriterSink{w: w, logger: log.WithComponent(logger, "sink")}
}

// Info implements Sink.
func (s *WriterSink) Info(id RunIdentity, msg string) {
	s.mu.Lock()
	_, err := fmt.Fprintf(s.w, "%s %s\n", id.Tag(), msg)
	s.mu.Unlock()

	logger := log.WithRun(s.logger, id.WorkflowID, id.RunID)
	if err != nil {
		logger.Error("failed to write sink line", log.Error(err))
		return
	}
	logger.Debug("sink", slog.String("line", msg))
}

// Logger is the replay-aware logging capability behind a Reporter.
type Logger interface {
	Info(msg string)
}

type boundLogger struct {
	ctx  workflow.Context
	sink Sink
	id   RunIdentity
}

// Bind returns a Logger that forwards to sink with the identity of the
// workflow run in ctx. Calls made while the workflow is replaying are
// dropped.
func Bind(ctx workflow.Context, sink Sink) Logger {
	return &boundLogger{ctx: ctx, sink: sink, id: IdentityFrom(ctx)}
}

func (l *boundLogger) Info(msg string) {
	if workflow.IsReplaying(l.ctx) {
		return
	}
	l.sink.Info(l.id, msg)
}

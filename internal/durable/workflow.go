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

package durable

import (
	"github.com/google/uuid"
	"go.temporal.io/sdk/workflow"

	"github.com/tombee/taskshim/internal/metrics"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/pkg/task"
)

// WorkflowName is the registered name of the workflow wrapper.
const WorkflowName = "apWorkflow"

// WorkflowFunc is a task implemented as a Temporal workflow. r is the only
// way the task reaches the run's sink.
type WorkflowFunc func(ctx workflow.Context, r *Reporter, params task.Values) (any, error)

// Workflow wraps a WorkflowFunc with status and output reporting.
type Workflow struct {
	fn        WorkflowFunc
	sink      Sink
	chunkSize int
}

// NewWorkflow creates the wrapper. chunkSize <= 0 uses the protocol default.
func NewWorkflow(fn WorkflowFunc, sink Sink, chunkSize int) *Workflow {
	if chunkSize <= 0 {
		chunkSize = protocol.DefaultChunkSize
	}
	return &Workflow{fn: fn, sink: sink, chunkSize: chunkSize}
}

// Execute runs the task workflow. It reports started before calling the
// task, then the output and succeeded on success. Task errors are returned
// unchanged and nothing further is reported.
func (w *Workflow) Execute(ctx workflow.Context, params task.Values) (any, error) {
	r := NewReporter(Bind(ctx, w.sink), w.chunkSize)

	r.Info(protocol.Envelope{Kind: protocol.KindStatus, Status: protocol.StatusStarted}.Render())

	if params == nil {
		params = task.Values{}
	}
	result, err := w.fn(ctx, r, params)
	if !workflow.IsReplaying(ctx) {
		metrics.RecordWorkflow(err)
	}
	if err != nil {
		return nil, err
	}

	r.emit(ctx, protocol.KindOutputSet, "", result)
	r.Info(protocol.Envelope{Kind: protocol.KindStatus, Status: protocol.StatusSucceeded}.Render())
	return result, nil
}

// Reporter writes log and output lines of one workflow run through its
// bound Logger. Outputs longer than the chunk size are framed as chunks.
type Reporter struct {
	log       Logger
	chunkSize int
}

// NewReporter creates a reporter over log. chunkSize <= 0 uses the protocol
// default.
func NewReporter(log Logger, chunkSize int) *Reporter {
	if chunkSize <= 0 {
		chunkSize = protocol.DefaultChunkSize
	}
	return &Reporter{log: log, chunkSize: chunkSize}
}

// Info writes msg through the sink unchanged.
func (r *Reporter) Info(msg string) {
	r.log.Info(msg)
}

// SetOutput emits an output set line.
func (r *Reporter) SetOutput(ctx workflow.Context, value any, path ...string) {
	r.emit(ctx, protocol.KindOutputSet, firstPath(path), value)
}

// AppendOutput emits an output append line.
func (r *Reporter) AppendOutput(ctx workflow.Context, value any, path ...string) {
	r.emit(ctx, protocol.KindOutputAppend, firstPath(path), value)
}

func (r *Reporter) emit(ctx workflow.Context, kind protocol.Kind, path string, value any) {
	payload, err := protocol.EncodeValue(value)
	if err != nil {
		workflow.GetLogger(ctx).Warn("output is not JSON-serializable, sending its string form", "error", err)
	}
	line := protocol.Envelope{Kind: kind, Path: path, Payload: payload}.Render()

	if !protocol.NeedsChunking(line, r.chunkSize) {
		r.log.Info(line)
		return
	}
	for _, l := range protocol.Frame(line, r.chunkSize, chunkID(ctx)) {
		r.log.Info(l)
	}
}

// chunkID draws a fresh id once and records it in history so replays see
// the same value.
func chunkID(ctx workflow.Context) string {
	var id string
	encoded := workflow.SideEffect(ctx, func(workflow.Context) any {
		return uuid.NewString()
	})
	if err := encoded.Get(&id); err != nil || id == "" {
		// Only reachable with a corrupt history; fall back to the run id.
		return workflow.GetInfo(ctx).WorkflowExecution.RunID
	}
	return id
}

func firstPath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[0]
}

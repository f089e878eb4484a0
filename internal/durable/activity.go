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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/interceptor"

	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/metrics"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/internal/tracing"
)

// ActivityInterceptor logs the start, result and failure of every activity
// attempt. Errors are passed through unchanged so the retry policy of the
// workflow decides what happens next.
type ActivityInterceptor struct {
	interceptor.WorkerInterceptorBase

	mu        sync.Mutex
	w         io.Writer
	logger    *slog.Logger
	collector *tracing.Collector
	info      func(context.Context) activity.Info
}

// ActivityInterceptorOption configures an ActivityInterceptor.
type ActivityInterceptorOption func(*ActivityInterceptor)

// WithActivityLogger mirrors every activity line to logger at debug level.
func WithActivityLogger(logger *slog.Logger) ActivityInterceptorOption {
	return func(i *ActivityInterceptor) {
		if logger != nil {
			i.logger = log.WithComponent(logger, "activity")
		}
	}
}

// WithActivityCollector records attempt latency.
func WithActivityCollector(c *tracing.Collector) ActivityInterceptorOption {
	return func(i *ActivityInterceptor) {
		if c != nil {
			i.collector = c
		}
	}
}

// WithActivityInfo overrides how activity info is read from the context.
func WithActivityInfo(fn func(context.Context) activity.Info) ActivityInterceptorOption {
	return func(i *ActivityInterceptor) {
		if fn != nil {
			i.info = fn
		}
	}
}

// NewActivityInterceptor creates an interceptor writing lines to w.
func NewActivityInterceptor(w io.Writer, opts ...ActivityInterceptorOption) *ActivityInterceptor {
	i := &ActivityInterceptor{
		w:         w,
		logger:    log.Discard(),
		collector: tracing.NoopCollector(),
		info:      activity.GetInfo,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// InterceptActivity implements interceptor.WorkerInterceptor.
func (i *ActivityInterceptor) InterceptActivity(
	ctx context.Context,
	next interceptor.ActivityInboundInterceptor,
) interceptor.ActivityInboundInterceptor {
	in := &activityInbound{root: i}
	in.Next = next
	return in
}

type activityInbound struct {
	interceptor.ActivityInboundInterceptorBase
	root *ActivityInterceptor
}

func (a *activityInbound) ExecuteActivity(ctx context.Context, in *interceptor.ExecuteActivityInput) (interface{}, error) {
	info := a.root.info(ctx)
	prefix := fmt.Sprintf("[ap:activity:%s:%s:%s]",
		info.ActivityType.Name, info.WorkflowExecution.ID, info.WorkflowExecution.RunID)
	logger := log.WithActivity(a.root.logger, info.ActivityType.Name, info.WorkflowExecution.ID, info.WorkflowExecution.RunID)

	input := renderArgs(in.Args)
	a.root.println(logger, prefix, "Starting activity with input: "+input)

	start := time.Now()
	result, err := a.Next.ExecuteActivity(ctx, in)
	metrics.RecordActivity(info.ActivityType.Name, err)
	a.root.collector.RecordActivity(ctx, info.ActivityType.Name, outcome(err), time.Since(start))

	if err != nil {
		a.root.println(logger, prefix, fmt.Sprintf("Caught error, retrying: %v", err))
		return result, err
	}
	// Logs the input again, not the result.
	a.root.println(logger, prefix, "Result from activity run: "+input)
	return result, nil
}

func (i *ActivityInterceptor) println(logger *slog.Logger, prefix, msg string) {
	i.mu.Lock()
	_, err := fmt.Fprintf(i.w, "%s %s\n", prefix, msg)
	i.mu.Unlock()
	if err != nil {
		logger.Error("failed to write activity line", log.Error(err))
		return
	}
	logger.Debug(msg)
}

func renderArgs(args []interface{}) string {
	if args == nil {
		args = []interface{}{}
	}
	data, _ := protocol.EncodeValue(args)
	return string(data)
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeSuccess
}

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

// Package diagnostics implements `taskshim ping`.
package diagnostics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/tombee/taskshim/internal/commands/shared"
	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/worker"
)

// Steps at which a ping can fail.
const (
	StepConnect   = "connect"
	StepHealth    = "health"
	StepTaskQueue = "task_queue"
)

// PingResult contains the ping health check result
type PingResult struct {
	Address   string `json:"address"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue"`
	Connected bool   `json:"connected"`
	Serving   bool   `json:"serving"`
	Pollers   int    `json:"pollers"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	ErrorStep string `json:"error_step,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// NewPingCommand creates the ping command
func NewPingCommand() *cobra.Command {
	return newPingCommand(client.Dial)
}

func newPingCommand(dial worker.Dialer) *cobra.Command {
	var (
		taskQueue string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the Temporal frontend",
		Long: `Connect to the configured Temporal frontend and check that a workflow
task can be served:
  1. Connected - the frontend accepted a connection
  2. Serving   - the health check reports SERVING
  3. Pollers   - workers polling the task queue (informational)

Exit codes:
  0 - Frontend is healthy
  3 - Frontend is unreachable or unhealthy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := shared.Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			tc := rt.Config.Temporal
			if taskQueue != "" {
				tc.TaskQueue = taskQueue
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			result := ping(ctx, dial, tc, log.WithComponent(rt.Logger, "ping"))

			if err := outputPing(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Healthy {
				return shared.Silent(shared.ExitEngineError)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskQueue, "task-queue", "", "Task queue to inspect (default: AP_TASK_QUEUE)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	shared.SetContract(cmd, shared.Contract{
		ExitCodes: []int{shared.ExitSuccess, shared.ExitInvalidTask, shared.ExitEngineError},
		Env:       []string{"AP_TEMPORAL_ADDR", "AP_NAMESPACE", "AP_TASK_QUEUE"},
	})

	return cmd
}

func ping(ctx context.Context, dial worker.Dialer, tc config.TemporalConfig, logger *slog.Logger) PingResult {
	start := time.Now()
	result := PingResult{Address: tc.Address, Namespace: tc.Namespace, TaskQueue: tc.TaskQueue}

	c, err := dial(client.Options{
		HostPort:  tc.Address,
		Namespace: tc.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		result.Error, result.ErrorStep = err.Error(), StepConnect
		return finish(result, start)
	}
	defer c.Close()
	result.Connected = true

	if _, err := c.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		result.Error, result.ErrorStep = err.Error(), StepHealth
		return finish(result, start)
	}
	result.Serving = true
	result.Healthy = true

	resp, err := c.DescribeTaskQueue(ctx, tc.TaskQueue, enumspb.TASK_QUEUE_TYPE_WORKFLOW)
	if err != nil {
		result.Error, result.ErrorStep = err.Error(), StepTaskQueue
		return finish(result, start)
	}
	result.Pollers = len(resp.GetPollers())
	return finish(result, start)
}

func finish(r PingResult, start time.Time) PingResult {
	r.LatencyMS = time.Since(start).Milliseconds()
	return r
}

func outputPing(w io.Writer, result PingResult) error {
	if shared.GetJSON() {
		return shared.EmitJSON(w, result)
	}

	fmt.Fprintf(w, "Temporal: %s (namespace %s)\n\n", result.Address, result.Namespace)
	fmt.Fprintf(w, "  Connected: %s\n", checkMark(result.Connected))
	fmt.Fprintf(w, "  Serving:   %s\n", checkMark(result.Serving))
	if result.ErrorStep != StepConnect && result.ErrorStep != StepHealth {
		fmt.Fprintf(w, "  Pollers:   %d on %s\n", result.Pollers, result.TaskQueue)
	}
	fmt.Fprintln(w)

	if result.Healthy {
		fmt.Fprintln(w, "Status: "+shared.StatusOK.Render("Healthy"))
	} else {
		fmt.Fprintln(w, "Status: "+shared.StatusError.Render("Failed"))
	}
	if result.Error != "" {
		fmt.Fprintf(w, "Error (%s): %s\n", result.ErrorStep, result.Error)
	}
	return nil
}

func checkMark(ok bool) string {
	if ok {
		return shared.StatusOK.Render(shared.SymbolOK)
	}
	return shared.StatusError.Render(shared.SymbolError)
}

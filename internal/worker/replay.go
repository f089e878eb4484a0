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

package worker

import (
	"fmt"
	"log/slog"

	tlog "go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/tombee/taskshim/internal/durable"
	"github.com/tombee/taskshim/internal/log"
)

type discardSink struct{}

func (discardSink) Info(durable.RunIdentity, string) {}

// Replay runs the workflow wrapper against a history exported as JSON. It
// fails when the task workflow is no longer deterministic with respect to
// that history.
func Replay(reg Registration, historyPath string, logger *slog.Logger) error {
	return replay(reg, historyPath, discardSink{}, logger)
}

func replay(reg Registration, historyPath string, sink durable.Sink, logger *slog.Logger) error {
	if reg.Workflow == nil {
		return fmt.Errorf("replay: a workflow function is required")
	}
	if logger == nil {
		logger = log.Discard()
	}

	replayer := sdkworker.NewWorkflowReplayer()
	wf := durable.NewWorkflow(reg.Workflow, sink, 0)
	replayer.RegisterWorkflowWithOptions(wf.Execute, workflow.RegisterOptions{Name: durable.WorkflowName})

	if err := replayer.ReplayWorkflowHistoryFromJSONFile(tlog.NewStructuredLogger(logger), historyPath); err != nil {
		return fmt.Errorf("replaying %s: %w", historyPath, err)
	}
	return nil
}

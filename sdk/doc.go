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

// Package sdk is the entry point for compiled Go tasks.
//
// A task program declares its task and hands control to Main:
//
//	func main() {
//		sdk.Main(sdk.Task{
//			Definition: task.Define(task.Config{
//				Slug:       "greet",
//				Parameters: []task.Parameter{{Slug: "name"}},
//			}, greet),
//		})
//	}
//
// The program is started with exactly one argument, the JSON invocation
// request. Under the standard runtime the task runs once and reports its
// result through the output protocol on stdout. When AP_RUNTIME is
// "workflow", or the definition declares the workflow runtime, the program
// instead becomes a long-lived Temporal worker that registers Task.Workflow
// and Task.Activities on AP_TASK_QUEUE.
//
// # Configuration
//
// Configuration is read from the YAML file named by AP_CONFIG, then from
// the environment:
//
//	AP_TEMPORAL_ADDR    Temporal frontend (default localhost:7233)
//	AP_NAMESPACE        Temporal namespace (default "default")
//	AP_TASK_QUEUE       task queue to poll
//	AP_RUNTIME          "standard" or "workflow"
//	AP_CHUNK_SIZE       largest protocol line before chunking (default 8192)
//	AP_METRICS_ADDR     serve /metrics while the worker runs
//	AP_REPLAY_HISTORY   replay a JSON workflow history instead of polling
//	LOG_LEVEL, LOG_FORMAT
//
// # Outputs
//
// Besides returning a value, a task can stream outputs with
// task.SetOutput and task.AppendOutput. Workflow functions receive a
// *Reporter whose SetOutput and AppendOutput write through the replay-safe
// workflow sink.
package sdk

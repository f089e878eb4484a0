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

package shared

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Annotation keys carrying a command's process contract.
const (
	annotationExitCodes = "taskshim.exit_codes"
	annotationEnv       = "taskshim.env"
	annotationProtocol  = "taskshim.protocol"
)

// Contract is what a command promises to the process that runs it: the exit
// codes it can return, the environment it reads, and whether stdout carries
// protocol lines.
type Contract struct {
	ExitCodes []int
	Env       []string
	Protocol  bool
}

// GlobalEnv is read by every command through configuration and logging.
var GlobalEnv = []string{
	"AP_CONFIG", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE", "TASKSHIM_DEBUG", "TASKSHIM_LOG_LEVEL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_INSECURE", "NO_COLOR",
}

var exitCodeMeanings = map[int]string{
	ExitSuccess:     "success",
	ExitTaskFailed:  "task failed, or any failure of the single-shot invocation",
	ExitInvalidTask: "invalid task, request or configuration",
	ExitEngineError: "Temporal is unreachable or unhealthy",
	ExitNotFound:    "run, task or template not found",
}

var envDescriptions = map[string]string{
	"AP_CONFIG":                   "YAML config file",
	"AP_RUNTIME":                  "standard or workflow",
	"AP_ENTRYPOINT":               "task source file or directory",
	"AP_ENTRYPOINT_FUNC":          "function to invoke",
	"AP_PARAM_SLUGS_POSITIONAL":   "pass parameters positionally",
	"AP_CHUNK_SIZE":               "longest protocol line before chunking",
	"AP_TEMPORAL_ADDR":            "Temporal frontend address",
	"AP_NAMESPACE":                "Temporal namespace",
	"AP_TASK_QUEUE":               "Temporal task queue",
	"AP_METRICS_ADDR":             "listen address for /metrics",
	"TASKSHIM_STORE":              "run history database",
	"LOG_LEVEL":                   "debug, info, warn or error",
	"LOG_FORMAT":                  "json or text",
	"LOG_SOURCE":                  "1 adds source locations to logs",
	"TASKSHIM_DEBUG":              "enable debug logging",
	"TASKSHIM_LOG_LEVEL":          "log level, overrides LOG_LEVEL",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "OTLP trace endpoint",
	"OTEL_EXPORTER_OTLP_PROTOCOL": "http/protobuf or grpc",
	"OTEL_EXPORTER_OTLP_INSECURE": "disable TLS for OTLP",
	"NO_COLOR":                    "disable styled output",
}

// ExitCodeMeaning describes an exit code.
func ExitCodeMeaning(code int) string {
	return exitCodeMeanings[code]
}

// EnvDescription describes an environment variable read by taskshim.
func EnvDescription(name string) string {
	return envDescriptions[name]
}

// SetContract records c on cmd.
func SetContract(cmd *cobra.Command, c Contract) {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	codes := make([]string, len(c.ExitCodes))
	for i, code := range c.ExitCodes {
		codes[i] = strconv.Itoa(code)
	}
	cmd.Annotations[annotationExitCodes] = strings.Join(codes, ",")
	cmd.Annotations[annotationEnv] = strings.Join(c.Env, ",")
	cmd.Annotations[annotationProtocol] = strconv.FormatBool(c.Protocol)
}

// ContractOf returns the contract of cmd or of its nearest ancestor that
// declares one.
func ContractOf(cmd *cobra.Command) (Contract, bool) {
	for c := cmd; c != nil; c = c.Parent() {
		raw, ok := c.Annotations[annotationExitCodes]
		if !ok {
			continue
		}
		var contract Contract
		for _, s := range splitList(raw) {
			if code, err := strconv.Atoi(s); err == nil {
				contract.ExitCodes = append(contract.ExitCodes, code)
			}
		}
		sort.Ints(contract.ExitCodes)
		contract.Env = splitList(c.Annotations[annotationEnv])
		contract.Protocol, _ = strconv.ParseBool(c.Annotations[annotationProtocol])
		return contract, true
	}
	return Contract{}, false
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

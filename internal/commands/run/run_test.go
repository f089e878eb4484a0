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

package run

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/taskshim/internal/commands/shared"
)

const greetSource = `package main

import "github.com/tombee/taskshim/pkg/task"

func Main(params map[string]interface{}) (interface{}, error) {
	return "Hello, " + params["name"].(string) + "!", nil
}

func Fail(params map[string]interface{}) (interface{}, error) {
	panic("boom")
}

var _ = task.RuntimeStandard
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AP_CONFIG", "AP_RUNTIME", "AP_ENTRYPOINT", "AP_ENTRYPOINT_FUNC", "AP_PARAM_SLUGS_POSITIONAL",
		"AP_CHUNK_SIZE", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeTask(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greet.go")
	require.NoError(t, os.WriteFile(path, []byte(greetSource), 0o644))
	return path
}

func TestRun_Greeting(t *testing.T) {
	clearEnv(t)
	path := writeTask(t)

	stdout, stderr, err := execute(t, "--entrypoint", path, `{"name":"Ada"}`)
	require.NoError(t, err)
	assert.Equal(t, "airplane_output_set \"Hello, Ada!\"\n", stdout)
	assert.Empty(t, stderr)
}

func TestRun_EntrypointFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("AP_ENTRYPOINT", writeTask(t))

	stdout, _, err := execute(t, `{"name":"Bob"}`)
	require.NoError(t, err)
	assert.Equal(t, "airplane_output_set \"Hello, Bob!\"\n", stdout)
}

func TestRun_ArgumentCount(t *testing.T) {
	clearEnv(t)
	path := writeTask(t)

	stdout, _, err := execute(t, "--entrypoint", path)
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.True(t, strings.HasPrefix(stdout, "airplane_output_append:error "))
}

func TestRun_TaskPanics(t *testing.T) {
	clearEnv(t)
	path := writeTask(t)

	stdout, stderr, err := execute(t, "--entrypoint", path, "--func", "Fail", `{}`)
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, stderr, "boom")
	assert.Contains(t, stdout, `airplane_output_append:error {"error":`)
}

func TestRun_MissingEntrypoint(t *testing.T) {
	clearEnv(t)

	stdout, stderr, err := execute(t, `{}`)
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, stderr, "no entrypoint configured")
	assert.Contains(t, stdout, "airplane_output_append:error")
}

func TestRun_InvalidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("AP_CHUNK_SIZE", "abc")

	stdout, stderr, err := execute(t, "--entrypoint", writeTask(t), `{"name":"Ada"}`)
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Equal(t, 1, shared.ExitCodeFor(err))
	assert.Contains(t, stderr, "AP_CHUNK_SIZE")
	assert.True(t, strings.HasPrefix(stdout, `airplane_output_append:error {"error":`))
	assert.Contains(t, stdout, "AP_CHUNK_SIZE")
	assert.NotContains(t, stdout, "Hello")
}

func TestRun_WorkflowRuntimeRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("AP_RUNTIME", "workflow")

	_, stderr, err := execute(t, "--entrypoint", writeTask(t), `{}`)
	require.Error(t, err)
	assert.Contains(t, stderr, "workflow tasks cannot be interpreted")
}

func TestSlugFor(t *testing.T) {
	assert.Equal(t, "greet", slugFor("tasks/greet.go"))
	assert.Equal(t, "tasks", slugFor("tasks"))
}

func TestRun_ContractIsZeroOrOne(t *testing.T) {
	contract, ok := shared.ContractOf(NewCommand())
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, contract.ExitCodes)
	assert.True(t, contract.Protocol)
}

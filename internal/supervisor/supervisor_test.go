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

package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/pkg/task"
)

const helperEnv = "TASKSHIM_SUPERVISOR_HELPER"

// TestHelperProcess is the fake shim spawned by the tests below.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		return
	}
	req := os.Args[len(os.Args)-1]

	switch mode {
	case "greet":
		fmt.Println("hello from the task")
		fmt.Println(`airplane_output_append:rows {"n":1}`)
		fmt.Println(`airplane_output_append:rows {"n":2}`)
		fmt.Printf("airplane_output_set:request %s\n", req)
	case "chunked":
		enc := protocol.NewEncoder(os.Stdout, protocol.WithChunkSize(16))
		_ = enc.SetOutput("", strings.Repeat("x", 100))
	case "fail":
		fmt.Fprintln(os.Stderr, "boom")
		fmt.Println(`airplane_output_append:error {"error":"boom"}`)
		os.Exit(1)
	case "truncated":
		fmt.Println("airplane_chunk:abc airplane_output_set \"par")
	}
	os.Exit(0)
}

func newSupervisor(mode string, stderr *bytes.Buffer) *Supervisor {
	return New(Options{
		Binary:  os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Spawner: NewSpawner().WithEnv(helperEnv + "=" + mode),
		Stderr:  stderr,
	})
}

func TestRun_Success(t *testing.T) {
	var kinds []protocol.Kind
	s := New(Options{
		Binary:     os.Args[0],
		Args:       []string{"-test.run=TestHelperProcess", "--"},
		Spawner:    NewSpawner().WithEnv(helperEnv + "=greet"),
		OnEnvelope: func(env protocol.Envelope) { kinds = append(kinds, env.Kind) },
	})

	res, err := s.Run(context.Background(), task.Values{"name": "Ada"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, protocol.StatusSucceeded, res.Status)
	assert.Equal(t, []string{"hello from the task"}, res.Logs)
	assert.Equal(t, map[string]any{
		"rows":    []any{map[string]any{"n": float64(1)}, map[string]any{"n": float64(2)}},
		"request": map[string]any{"name": "Ada"},
	}, res.Output)
	assert.Equal(t, []protocol.Kind{
		protocol.KindLog, protocol.KindOutputAppend, protocol.KindOutputAppend, protocol.KindOutputSet,
	}, kinds)

	data, err := res.OutputJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"request":{"name":"Ada"}`)
}

func TestRun_ChunkedOutput(t *testing.T) {
	res, err := newSupervisor("chunked", &bytes.Buffer{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 100), res.Output)
	assert.Empty(t, res.Logs)
}

func TestRun_Failure(t *testing.T) {
	var stderr bytes.Buffer
	res, err := newSupervisor("fail", &stderr).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, protocol.StatusFailed, res.Status)
	assert.Equal(t, []string{"boom"}, res.Errors)
	assert.Contains(t, res.Stderr, "boom")
	assert.Contains(t, stderr.String(), "boom")
}

func TestRun_UnterminatedChunk(t *testing.T) {
	res, err := newSupervisor("truncated", &bytes.Buffer{}).Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrUnterminatedChunk)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_MissingBinary(t *testing.T) {
	s := New(Options{Binary: "/nonexistent/taskshim"})
	_, err := s.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestSpawner_WithEnvCopies(t *testing.T) {
	base := &Spawner{Env: []string{"A=1"}}
	s := base.WithEnv("B=2")
	assert.Equal(t, []string{"A=1", "B=2"}, s.Env)
}

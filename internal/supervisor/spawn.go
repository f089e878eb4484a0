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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

// Spawner starts shim child processes.
type Spawner struct {
	// Env is the environment passed to the child process.
	Env []string
}

// NewSpawner creates a spawner that inherits the current environment.
func NewSpawner() *Spawner {
	return &Spawner{
		Env: os.Environ(),
	}
}

// WithEnv appends environment variables for the spawned process.
func (s *Spawner) WithEnv(env ...string) *Spawner {
	s.Env = append(append([]string(nil), s.Env...), env...)
	return s
}

// Child is a started shim process.
type Child struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
}

// Start spawns binary with args. The child runs in its own process group
// with stdin closed; stderr is copied to stderr. Cancelling ctx kills the
// child.
func (s *Spawner) Start(ctx context.Context, binary string, args []string, stderr io.Writer) (*Child, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = s.Env
	cmd.Stdin = nil
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	return &Child{cmd: cmd, Stdout: stdout}, nil
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	return c.cmd.Process.Pid
}

// Wait waits for the child to exit and returns its exit code. A non-zero
// exit is not an error; err is set only when the exit status is unknown.
func (c *Child) Wait() (int, error) {
	err := c.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
	}
	return -1, fmt.Errorf("waiting for process: %w", err)
}

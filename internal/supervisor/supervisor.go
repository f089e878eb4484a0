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

// Package supervisor runs a task in a single-shot shim child process and
// rebuilds the run's result from the protocol lines on its stdout.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/outputs"
	"github.com/tombee/taskshim/internal/protocol"
	"github.com/tombee/taskshim/pkg/task"
)

// Result is the outcome of a supervised run.
type Result struct {
	Status   protocol.Status
	Output   any
	Errors   []string
	Logs     []string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// OutputJSON returns the output document as JSON.
func (r *Result) OutputJSON() ([]byte, error) {
	return protocol.MarshalValue(r.Output)
}

// Options configure a Supervisor.
type Options struct {
	// Binary is the shim executable; Args precede the JSON request.
	Binary string
	Args   []string

	Spawner  *Spawner
	Executor *outputs.Executor
	Logger   *slog.Logger

	// Stderr receives a copy of the child's stderr.
	Stderr io.Writer

	// OnEnvelope is called for every decoded envelope, in stream order.
	OnEnvelope func(protocol.Envelope)
}

// Supervisor spawns and observes shim runs.
type Supervisor struct {
	opts   Options
	logger *slog.Logger
}

// New creates a supervisor.
func New(opts Options) *Supervisor {
	if opts.Spawner == nil {
		opts.Spawner = NewSpawner()
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	return &Supervisor{opts: opts, logger: log.WithComponent(opts.Logger, "supervisor")}
}

// Run invokes the shim once with params as its single argument. A task
// failure is reported in the Result; err is set only when the child could
// not be run or its stream could not be decoded.
func (s *Supervisor) Run(ctx context.Context, params task.Values) (*Result, error) {
	if params == nil {
		params = task.Values{}
	}
	req, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	start := time.Now()
	var stderr bytes.Buffer
	args := append(append([]string(nil), s.opts.Args...), string(req))
	child, err := s.opts.Spawner.Start(ctx, s.opts.Binary, args, io.MultiWriter(&stderr, s.opts.Stderr))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("spawned shim", slog.Int("pid", child.Pid()), slog.String("binary", s.opts.Binary))

	res := &Result{}
	doc := outputs.NewDocument(s.opts.Executor)
	scanErr := protocol.NewDecoder().Scan(child.Stdout, func(env protocol.Envelope) error {
		if s.opts.OnEnvelope != nil {
			s.opts.OnEnvelope(env)
		}
		switch env.Kind {
		case protocol.KindLog:
			res.Logs = append(res.Logs, string(env.Payload))
			return nil
		case protocol.KindStatus:
			res.Status = env.Status
			return nil
		}
		return doc.Apply(ctx, env)
	})
	if scanErr != nil {
		// Drain so the child is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, child.Stdout)
	}

	code, waitErr := child.Wait()
	res.ExitCode = code
	res.Stderr = stderr.String()
	res.Output = doc.Value()
	res.Errors = doc.Errors()
	res.Duration = time.Since(start)

	if waitErr != nil {
		return res, waitErr
	}
	if scanErr != nil {
		return res, fmt.Errorf("decoding shim output: %w", scanErr)
	}

	switch {
	case code != 0 || len(res.Errors) > 0:
		res.Status = protocol.StatusFailed
	case res.Status == "" || res.Status == protocol.StatusStarted:
		res.Status = protocol.StatusSucceeded
	}

	s.logger.Debug("shim exited",
		slog.Int("exit_code", code),
		slog.String("status", string(res.Status)),
		log.Duration("duration", res.Duration.Milliseconds()))
	return res, nil
}

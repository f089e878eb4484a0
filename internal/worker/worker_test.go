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
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/durable"
	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"github.com/tombee/taskshim/pkg/task"
)

type fakeClient struct {
	client.Client
	closed bool
}

func (c *fakeClient) Close() { c.closed = true }

type fakeWorker struct {
	sdkworker.Worker

	mu         sync.Mutex
	workflows  []string
	activities []string
	ran        bool
}

func (w *fakeWorker) RegisterWorkflowWithOptions(_ interface{}, opts workflow.RegisterOptions) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workflows = append(w.workflows, opts.Name)
}

func (w *fakeWorker) RegisterActivity(interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activities = append(w.activities, "")
}

func (w *fakeWorker) RegisterActivityWithOptions(_ interface{}, opts activity.RegisterOptions) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activities = append(w.activities, opts.Name)
}

func (w *fakeWorker) Run(interrupt <-chan interface{}) error {
	w.mu.Lock()
	w.ran = true
	w.mu.Unlock()
	<-interrupt
	return nil
}

func greet(ctx workflow.Context, r *durable.Reporter, params task.Values) (any, error) {
	r.AppendOutput(ctx, params["name"], "names")
	return "hi", nil
}

func lookup(ctx context.Context, id string) (string, error) { return id, nil }

func TestNew_RequiresWorkflow(t *testing.T) {
	_, err := New(Registration{}, Options{})
	var verr *shimerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "workflow", verr.Field)
}

func TestNew_RejectsNilActivity(t *testing.T) {
	_, err := New(Registration{Workflow: greet, Activities: []Activity{{Name: "x"}}}, Options{})
	var verr *shimerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "activities[0]", verr.Field)
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(Registration{Workflow: greet}, Options{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTaskQueue, w.Registration().TaskQueue)
	assert.Equal(t, config.DefaultTemporalAddress, w.opts.Temporal.Address)
	assert.Equal(t, config.DefaultNamespace, w.opts.Temporal.Namespace)

	w, err = New(Registration{Workflow: greet}, Options{Temporal: config.TemporalConfig{TaskQueue: "rev-1"}})
	require.NoError(t, err)
	assert.Equal(t, "rev-1", w.Registration().TaskQueue)
}

func TestNew_CopiesRegistration(t *testing.T) {
	acts := []Activity{{Name: "Lookup", Func: lookup}}
	w, err := New(Registration{Workflow: greet, Activities: acts}, Options{})
	require.NoError(t, err)

	acts[0].Name = "Changed"
	assert.Equal(t, "Lookup", w.Registration().Activities[0].Name)

	reg := w.Registration()
	reg.Activities[0].Name = "Mutated"
	assert.Equal(t, "Lookup", w.Registration().Activities[0].Name)
}

func TestRun_DialFailure(t *testing.T) {
	factoryCalled := false
	w, err := New(Registration{Workflow: greet}, Options{
		Temporal: config.TemporalConfig{Address: "temporal:7233", Namespace: "ns"},
		Dial: func(client.Options) (client.Client, error) {
			return nil, errors.New("connection refused")
		},
		NewWorker: func(client.Client, string, sdkworker.Options) sdkworker.Worker {
			factoryCalled = true
			return &fakeWorker{}
		},
	})
	require.NoError(t, err)

	err = w.Run(context.Background())
	var eerr *shimerrors.EngineError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "temporal:7233", eerr.Address)
	assert.Equal(t, "ns", eerr.Namespace)
	assert.False(t, factoryCalled)
}

func TestRun_RegistersAndStopsOnCancel(t *testing.T) {
	fc := &fakeClient{}
	fw := &fakeWorker{}
	var dialed client.Options
	var queue string
	var workerOpts sdkworker.Options

	w, err := New(Registration{
		TaskQueue: "rev-7",
		Workflow:  greet,
		Activities: []Activity{
			{Name: "Lookup", Func: lookup},
			{Func: lookup},
		},
	}, Options{
		Temporal: config.TemporalConfig{Address: "host:1", Namespace: "default", ShutdownTimeout: time.Second},
		Stdout:   &bytes.Buffer{},
		Dial: func(opts client.Options) (client.Client, error) {
			dialed = opts
			return fc, nil
		},
		NewWorker: func(c client.Client, q string, opts sdkworker.Options) sdkworker.Worker {
			queue = q
			workerOpts = opts
			return fw
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		return fw.ran
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	assert.Equal(t, "host:1", dialed.HostPort)
	assert.Equal(t, "default", dialed.Namespace)
	assert.NotNil(t, dialed.Logger)
	assert.Equal(t, "rev-7", queue)
	assert.Equal(t, time.Second, workerOpts.WorkerStopTimeout)
	require.Len(t, workerOpts.Interceptors, 1)
	assert.IsType(t, &durable.ActivityInterceptor{}, workerOpts.Interceptors[0])

	assert.Equal(t, []string{durable.WorkflowName}, fw.workflows)
	assert.Equal(t, []string{"Lookup", ""}, fw.activities)
	assert.True(t, fc.closed)
}

func TestReplay_RequiresWorkflow(t *testing.T) {
	err := Replay(Registration{}, "history.json", nil)
	assert.Error(t, err)
}

func TestReplay_MissingHistory(t *testing.T) {
	err := Replay(Registration{Workflow: greet}, t.TempDir()+"/missing.json", nil)
	assert.Error(t, err)
}

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Info(_ durable.RunIdentity, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, msg)
}

func TestReplay_CompletedHistory(t *testing.T) {
	var calls int
	counting := func(ctx workflow.Context, r *durable.Reporter, params task.Values) (any, error) {
		calls++
		return greet(ctx, r, params)
	}
	sink := &recordingSink{}

	err := replay(Registration{Workflow: counting}, "testdata/greet_history.json", sink, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sink.lines, "sink lines must not be re-emitted while replaying")
	assert.NoError(t, Replay(Registration{Workflow: greet}, "testdata/greet_history.json", nil))
}

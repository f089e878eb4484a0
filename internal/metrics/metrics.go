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

// Package metrics holds the prometheus collectors for task invocations and
// durable activity execution.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	invocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskshim_invocations_total",
			Help: "Total single-shot task invocations by outcome and error type",
		},
		[]string{"outcome", "error_type"},
	)

	envelopes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskshim_protocol_envelopes_total",
			Help: "Total protocol envelopes written by kind",
		},
		[]string{"kind"},
	)

	activityExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskshim_activity_executions_total",
			Help: "Total activity attempts by activity type and outcome",
		},
		[]string{"activity_type", "outcome"},
	)

	workflowRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskshim_workflow_runs_total",
			Help: "Total workflow wrapper executions by outcome, excluding replays",
		},
		[]string{"outcome"},
	)
)

// RecordInvocation counts a single-shot invocation. errorType is empty on success.
func RecordInvocation(errorType string) {
	outcome := OutcomeSuccess
	if errorType != "" {
		outcome = OutcomeError
	}
	invocations.WithLabelValues(outcome, errorType).Inc()
}

// RecordEnvelope counts a protocol envelope by kind name.
func RecordEnvelope(kind string) {
	envelopes.WithLabelValues(kind).Inc()
}

// RecordActivity counts one activity attempt.
func RecordActivity(activityType string, err error) {
	activityExecutions.WithLabelValues(activityType, outcomeOf(err)).Inc()
}

// RecordWorkflow counts one workflow wrapper execution.
func RecordWorkflow(err error) {
	workflowRuns.WithLabelValues(outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Server exposes the default registry on /metrics.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server bound to addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

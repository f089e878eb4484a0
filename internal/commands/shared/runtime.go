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
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/taskshim/internal/config"
	"github.com/tombee/taskshim/internal/log"
	"github.com/tombee/taskshim/internal/tracing"
)

// Runtime is the configuration, logger and telemetry shared by commands.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *tracing.Provider
}

// Bootstrap loads configuration from --config or AP_CONFIG and the
// environment, then builds the logger and telemetry provider.
func Bootstrap(ctx context.Context) (*Runtime, error) {
	cfg, err := config.Load(config.ResolvePath(GetConfigPath()))
	if err != nil {
		return nil, NewInvalidTaskError("", err)
	}

	logCfg := log.FromEnv().Merge(cfg.Log.Level, cfg.Log.Format, cfg.Log.AddSource)
	if GetVerbose() {
		logCfg.Level = "debug"
	}
	logger := log.New(logCfg)

	v, _, _ := GetVersion()
	// Commands serve no /metrics listener; each gets a private registry.
	tp, err := tracing.NewProvider(ctx, cfg.Tracing, v, tracing.Options{Registerer: prometheus.NewRegistry()})
	if err != nil {
		return nil, err
	}

	return &Runtime{Config: cfg, Logger: logger, Telemetry: tp}, nil
}

// Close flushes and shuts down telemetry.
func (r *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Telemetry.Shutdown(ctx); err != nil {
		r.Logger.Debug("telemetry shutdown failed", log.Error(err))
	}
}

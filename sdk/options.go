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

package sdk

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/taskshim/internal/worker"
)

// Option is a functional option for Run.
type Option func(*runner) error

// WithStdout sets the protocol output stream. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(r *runner) error {
		if w == nil {
			return fmt.Errorf("stdout cannot be nil")
		}
		r.stdout = w
		return nil
	}
}

// WithStderr sets the stream for task error details. Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(r *runner) error {
		if w == nil {
			return fmt.Errorf("stderr cannot be nil")
		}
		r.stderr = w
		return nil
	}
}

// WithLogger overrides the logger built from configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(r *runner) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		r.logger = logger
		return nil
	}
}

// WithConfigPath loads configuration from path instead of AP_CONFIG.
func WithConfigPath(path string) Option {
	return func(r *runner) error {
		r.configPath = path
		return nil
	}
}

// WithRegisterer sets where latency histograms are registered. Without it a
// private registry is used unless the worker serves /metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *runner) error {
		r.registerer = reg
		return nil
	}
}

// withDialer replaces the Temporal client constructor.
func withDialer(d worker.Dialer) Option {
	return func(r *runner) error {
		r.dial = d
		return nil
	}
}

// withFactory replaces the Temporal worker constructor.
func withFactory(f worker.Factory) Option {
	return func(r *runner) error {
		r.newWorker = f
		return nil
	}
}

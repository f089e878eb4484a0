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

package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/taskshim/internal/config"
)

func newTestProvider(t *testing.T, cfg config.TracingConfig, opts Options) *Provider {
	t.Helper()
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	provider, err := NewProvider(context.Background(), cfg, "1.0.0", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestProvider_BasicSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := newTestProvider(t, config.Default().Tracing, Options{
		SpanOptions: []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exporter)},
	})

	_, span := provider.Tracer("test").Start(context.Background(), "task.invoke")
	span.End()
	require.NoError(t, provider.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "task.invoke", spans[0].Name)
}

func TestProvider_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Tracing
	cfg.Stdout = true
	provider := newTestProvider(t, cfg, Options{Stderr: &buf})

	_, span := provider.Tracer("test").Start(context.Background(), "console-span")
	span.End()
	require.NoError(t, provider.ForceFlush(context.Background()))

	assert.Contains(t, buf.String(), "console-span")
}

func TestProvider_Collector(t *testing.T) {
	reg := prometheus.NewRegistry()
	provider := newTestProvider(t, config.Default().Tracing, Options{Registerer: reg})

	provider.Collector().RecordInvoke(context.Background(), "success", 20*time.Millisecond)
	provider.Collector().RecordActivity(context.Background(), "greet", "error", time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "taskshim_invoke_duration")
	assert.Contains(t, joined, "taskshim_activity_duration")
}

func TestNoopCollector(t *testing.T) {
	c := NoopCollector()
	require.NotNil(t, c)
	c.RecordInvoke(context.Background(), "success", time.Millisecond)
}

func TestTrimScheme(t *testing.T) {
	assert.Equal(t, "collector:4317", trimScheme("http://collector:4317"))
	assert.Equal(t, "collector:4317", trimScheme("collector:4317"))
}

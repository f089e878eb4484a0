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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Collector records latency histograms through the otel meter.
type Collector struct {
	invokeDuration   metric.Float64Histogram
	activityDuration metric.Float64Histogram
}

// NewCollector creates the instruments on meterProvider.
func NewCollector(meterProvider metric.MeterProvider) (*Collector, error) {
	meter := meterProvider.Meter(InstrumentationName)

	c := &Collector{}
	var err error

	c.invokeDuration, err = meter.Float64Histogram(
		"taskshim_invoke_duration_seconds",
		metric.WithDescription("Duration of single-shot task invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	c.activityDuration, err = meter.Float64Histogram(
		"taskshim_activity_duration_seconds",
		metric.WithDescription("Duration of activity attempts"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// NoopCollector returns a collector whose instruments discard measurements.
func NoopCollector() *Collector {
	c, _ := NewCollector(noop.NewMeterProvider())
	return c
}

// RecordInvoke records one invocation.
func (c *Collector) RecordInvoke(ctx context.Context, outcome string, d time.Duration) {
	c.invokeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordActivity records one activity attempt.
func (c *Collector) RecordActivity(ctx context.Context, activityType, outcome string, d time.Duration) {
	c.activityDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("activity_type", activityType),
		attribute.String("outcome", outcome),
	))
}

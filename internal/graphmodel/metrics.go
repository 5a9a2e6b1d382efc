// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphmodel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("naviscope.graphmodel")
	meter  = otel.Meter("naviscope.graphmodel")
)

var (
	queryLatency metric.Float64Histogram
	sealTotal    metric.Int64Counter
	sealLatency  metric.Float64Histogram

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		queryLatency, _ = meter.Float64Histogram(
			"graphmodel_query_duration_seconds",
			metric.WithDescription("Duration of Immutable graph read operations"),
			metric.WithUnit("s"),
		)
		sealTotal, _ = meter.Int64Counter(
			"graphmodel_seal_total",
			metric.WithDescription("Total number of Builder.seal calls"),
		)
		sealLatency, _ = meter.Float64Histogram(
			"graphmodel_seal_duration_seconds",
			metric.WithDescription("Duration of Builder.seal calls"),
			metric.WithUnit("s"),
		)
	})
}

// startQuerySpan begins a span for a single read operation on an Immutable graph.
func startQuerySpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "graphmodel."+op, trace.WithAttributes(attribute.String("op", op)))
}

// recordQuery records latency for a completed read operation.
func recordQuery(ctx context.Context, op string, dur time.Duration) {
	initMetrics()
	if queryLatency != nil {
		queryLatency.Record(ctx, dur.Seconds(), metric.WithAttributes(attribute.String("op", op)))
	}
}

// recordSeal records latency/count for a completed seal().
func recordSeal(ctx context.Context, dur time.Duration, version uint32) {
	initMetrics()
	attrs := metric.WithAttributes(attribute.Int64("version", int64(version)))
	if sealTotal != nil {
		sealTotal.Add(ctx, 1, attrs)
	}
	if sealLatency != nil {
		sealLatency.Record(ctx, dur.Seconds(), attrs)
	}
}

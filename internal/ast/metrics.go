// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

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
	tracer = otel.Tracer("naviscope.ast")
	meter  = otel.Meter("naviscope.ast")
)

var (
	parseLatency     metric.Float64Histogram
	parseTotal       metric.Int64Counter
	symbolsExtracted metric.Int64Histogram

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		parseLatency, _ = meter.Float64Histogram(
			"ast_parse_duration_seconds",
			metric.WithDescription("Duration of AST parsing operations"),
			metric.WithUnit("s"),
		)
		parseTotal, _ = meter.Int64Counter(
			"ast_parse_total",
			metric.WithDescription("Total number of parse operations, by language and outcome"),
		)
		symbolsExtracted, _ = meter.Int64Histogram(
			"ast_symbols_extracted",
			metric.WithDescription("Number of symbols extracted per parse"),
		)
	})
}

// startParseSpan begins a trace span for a single-file parse.
func startParseSpan(ctx context.Context, language, filePath string, contentLen int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("content_bytes", contentLen),
		),
	)
}

// recordParseMetrics records latency/outcome counters for a completed parse.
func recordParseMetrics(ctx context.Context, language string, dur time.Duration, symbolCount int, ok bool) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("ok", ok),
	)
	if parseLatency != nil {
		parseLatency.Record(ctx, dur.Seconds(), attrs)
	}
	if parseTotal != nil {
		parseTotal.Add(ctx, 1, attrs)
	}
	if symbolsExtracted != nil {
		symbolsExtracted.Record(ctx, int64(symbolCount), metric.WithAttributes(attribute.String("language", language)))
	}
}

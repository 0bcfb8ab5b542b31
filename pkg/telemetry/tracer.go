// Package telemetry provides OpenTelemetry observability for Muster
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer for Muster
var tracer = otel.Tracer("muster")

// Span names for Muster operations
const (
	// Sync spans
	SpanSyncSheet = "muster.sync.sheet"

	// Notification spans
	SpanNotifyDispatch = "muster.notify.dispatch"

	// Escalation spans
	SpanShameSweep  = "muster.shame.sweep"
	SpanShameFanout = "muster.shame.fanout"

	// Directory spans
	SpanDirectoryRefresh = "muster.directory.refresh"
)

// StartSheetSpan starts a span for one sheet's reconciliation pass
func StartSheetSpan(ctx context.Context, sheetID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(KeySheetID, sheetID))
	return tracer.Start(ctx, SpanSyncSheet, trace.WithAttributes(attrs...))
}

// StartSpan starts a span with the given name and attributes
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records an error on a span and marks the span failed
func RecordError(span trace.Span, err error, category string) {
	if err == nil {
		return
	}
	attrs := []attribute.KeyValue{}
	if category != "" {
		attrs = append(attrs, attribute.String(KeyErrorCategory, category))
	}
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

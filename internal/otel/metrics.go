package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "dock-tabs"

// Metrics holds all OTEL metric instruments for dock-tabs.
// All counters are cumulative (monotonic) and safe for concurrent use.
// Every Record method is a no-op on a nil *Metrics.
type Metrics struct {
	// Session lifecycle (partitioned by session.kind)
	SessionsOpened metric.Int64Counter
	SessionsClosed metric.Int64Counter

	// Inbound frames (partitioned by session.kind + frame.type)
	FramesReceived metric.Int64Counter

	// Log lines that never reached the buffer (partitioned by reason: paused, blank)
	LogEntriesDropped metric.Int64Counter

	// Exec input frames sent upstream, and sends refused while disconnected
	ExecInputSent     metric.Int64Counter
	ExecInputRejected metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- Session lifecycle ---

	m.SessionsOpened, err = meter.Int64Counter("sessions.opened",
		metric.WithDescription("Number of log and terminal sessions created"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	m.SessionsClosed, err = meter.Int64Counter("sessions.closed",
		metric.WithDescription("Number of sessions released by close, close-all, or shutdown"),
		metric.WithUnit("{session}"))
	if err != nil {
		return nil, err
	}

	// --- Streaming ---

	m.FramesReceived, err = meter.Int64Counter("frames.received",
		metric.WithDescription("Inbound streaming frames by session kind and decoded frame type"),
		metric.WithUnit("{frame}"))
	if err != nil {
		return nil, err
	}

	m.LogEntriesDropped, err = meter.Int64Counter("log.entries.dropped",
		metric.WithDescription("Log lines not appended (stream paused or blank content)"))
	if err != nil {
		return nil, err
	}

	// --- Exec input ---

	m.ExecInputSent, err = meter.Int64Counter("exec.input.sent",
		metric.WithDescription("Input frames sent to a remote shell"))
	if err != nil {
		return nil, err
	}

	m.ExecInputRejected, err = meter.Int64Counter("exec.input.rejected",
		metric.WithDescription("Input refused locally because the shell connection was not open"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func kindAttr(kind string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("session.kind", kind))
}

// RecordSessionOpened records a new session of the given kind.
func (m *Metrics) RecordSessionOpened(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SessionsOpened.Add(ctx, 1, kindAttr(kind))
}

// RecordSessionClosed records a released session of the given kind.
func (m *Metrics) RecordSessionClosed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SessionsClosed.Add(ctx, 1, kindAttr(kind))
}

// RecordFrame records one inbound frame.
func (m *Metrics) RecordFrame(ctx context.Context, kind, frameType string) {
	if m == nil {
		return
	}
	m.FramesReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("session.kind", kind),
		attribute.String("frame.type", frameType),
	))
}

// RecordLogDropped records a log line that was not appended.
func (m *Metrics) RecordLogDropped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.LogEntriesDropped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordInputSent records an input frame sent to a shell.
func (m *Metrics) RecordInputSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.ExecInputSent.Add(ctx, 1)
}

// RecordInputRejected records a send attempted while disconnected.
func (m *Metrics) RecordInputRejected(ctx context.Context) {
	if m == nil {
		return
	}
	m.ExecInputRejected.Add(ctx, 1)
}

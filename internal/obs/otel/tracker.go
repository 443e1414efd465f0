package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// MessageTracker records message-pipeline metrics using OpenTelemetry. All
// record methods are nil-receiver safe so callers never branch on metrics
// being enabled.
type MessageTracker struct {
	inboundCount  metric.Int64Counter
	outboundCount metric.Int64Counter
	parsedCount   metric.Int64Counter
	sendDuration  metric.Float64Histogram
	sendErrors    metric.Int64Counter
}

// NewMessageTracker creates a new MessageTracker with the provided meter.
func NewMessageTracker(meter metric.Meter) (*MessageTracker, error) {
	mt := &MessageTracker{}

	var err error

	mt.inboundCount, err = meter.Int64Counter(
		"bot.message.inbound",
		metric.WithDescription("Number of inbound user messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mt.outboundCount, err = meter.Int64Counter(
		"bot.message.outbound",
		metric.WithDescription("Number of outbound sends"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mt.parsedCount, err = meter.Int64Counter(
		"bot.command.parsed",
		metric.WithDescription("Number of parsed commands by intent"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	mt.sendDuration, err = meter.Float64Histogram(
		"bot.send.duration",
		metric.WithDescription("Outbound send duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	mt.sendErrors, err = meter.Int64Counter(
		"bot.send.errors",
		metric.WithDescription("Number of failed outbound sends"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return mt, nil
}

// RecordInbound counts one inbound message on a channel.
func (mt *MessageTracker) RecordInbound(ctx context.Context, channel string) {
	if mt == nil {
		return
	}
	mt.inboundCount.Add(ctx, 1, metric.WithAttributes(AttrChannel.String(channel)))
}

// RecordParsed counts one classified command.
func (mt *MessageTracker) RecordParsed(ctx context.Context, intent, method string) {
	if mt == nil {
		return
	}
	mt.parsedCount.Add(ctx, 1, metric.WithAttributes(
		AttrIntent.String(intent),
		AttrParseMethod.String(method),
	))
}

// RecordSend counts one outbound send and its latency.
func (mt *MessageTracker) RecordSend(ctx context.Context, kind, status string, latencyMs float64) {
	if mt == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrOutboundKind.String(kind),
		AttrSendStatus.String(status),
	)
	mt.outboundCount.Add(ctx, 1, attrs)
	if latencyMs > 0 {
		mt.sendDuration.Record(ctx, latencyMs, attrs)
	}
	if status != "success" {
		mt.sendErrors.Add(ctx, 1, attrs)
	}
}

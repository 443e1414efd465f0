package otel

import "go.opentelemetry.io/otel/attribute"

// Metric attributes used to annotate bot metrics with consistent labels.

var (
	// AttrChannel identifies the chat channel (e.g., "discord", "webhook")
	AttrChannel = attribute.Key("bot.channel")

	// AttrIntent identifies the parsed intent of an inbound message
	AttrIntent = attribute.Key("bot.intent")

	// AttrParseMethod identifies how the command was classified (rule_based, ai_command)
	AttrParseMethod = attribute.Key("bot.parse.method")

	// AttrSendStatus indicates the outcome of an outbound send (success, failure, timeout)
	AttrSendStatus = attribute.Key("bot.send.status")

	// AttrOutboundKind distinguishes pipeline replies from unrelated notifications
	AttrOutboundKind = attribute.Key("bot.outbound.kind")
)

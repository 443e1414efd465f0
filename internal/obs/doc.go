// Package obs wires the bot's observability: logrus logging with optional
// file rotation, and OpenTelemetry metrics for message traffic. Metrics are
// off by default and enabled through configuration; the rest of the code
// only ever sees a nil-safe tracker.
package obs

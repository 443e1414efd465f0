package otel

import "time"

// Config holds the configuration for the OTel meter setup.
type Config struct {
	// Enabled enables or disables metric tracking
	Enabled bool

	// StdoutEnabled writes periodic metric snapshots to stdout
	StdoutEnabled bool

	// OTLPEndpoint is the host:port of an OTLP/HTTP collector. Empty
	// disables the OTLP exporter.
	OTLPEndpoint string

	// ExportInterval is the time between exports. Default: 10s
	ExportInterval time.Duration

	// ExportTimeout is the timeout for each export. Default: 30s
	ExportTimeout time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		StdoutEnabled:  true,
		ExportInterval: 10 * time.Second,
		ExportTimeout:  30 * time.Second,
	}
}

package exporter

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MultiExporter fans a metric export out to several destinations, e.g.
// stdout for local runs plus an OTLP collector. One destination failing
// does not stop the others; every failure is logged and the first error
// is reported to the periodic reader.
type MultiExporter struct {
	exporters []metric.Exporter
	mu        sync.Mutex
}

// NewMultiExporter creates a new MultiExporter with the provided exporters.
func NewMultiExporter(exporters ...metric.Exporter) *MultiExporter {
	return &MultiExporter{
		exporters: exporters,
	}
}

// Temporality returns the Temporality to use for an instrument kind.
func (m *MultiExporter) Temporality(kind metric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

// Aggregation returns the Aggregation to use for an instrument kind.
func (m *MultiExporter) Aggregation(kind metric.InstrumentKind) metric.Aggregation {
	return metric.DefaultAggregationSelector(kind)
}

// Export exports the resource metrics to all registered exporters.
func (m *MultiExporter) Export(ctx context.Context, res *metricdata.ResourceMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for i, e := range m.exporters {
		if err := e.Export(ctx, res); err != nil {
			logrus.WithError(err).WithField("exporter", i).Warn("metric export failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ForceFlush forces all exporters to flush any pending data.
func (m *MultiExporter) ForceFlush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.exporters {
		if err := e.ForceFlush(ctx); err != nil {
			logrus.WithError(err).Debug("metric flush failed")
		}
	}
	return nil
}

// Shutdown shuts down all exporters.
func (m *MultiExporter) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.exporters {
		if err := e.Shutdown(ctx); err != nil {
			logrus.WithError(err).Debug("metric exporter shutdown failed")
		}
	}
	return nil
}

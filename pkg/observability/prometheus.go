package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TextfileSink collects OTel metrics into a private Prometheus registry and
// writes them in the node_exporter textfile format.
type TextfileSink struct {
	registry *prometheus.Registry
	exporter *promexporter.Exporter
}

// NewTextfileSink creates a sink with its own registry.
func NewTextfileSink() (*TextfileSink, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	return &TextfileSink{registry: registry, exporter: exporter}, nil
}

// Reader returns the metric reader to attach to a MeterProvider.
func (s *TextfileSink) Reader() sdkmetric.Reader {
	return s.exporter
}

// WriteFile atomically writes the current metrics to path.
func (s *TextfileSink) WriteFile(path string) error {
	err := prometheus.WriteToTextfile(path, s.registry)
	if err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}

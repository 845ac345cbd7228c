package report

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	constants "perfreporter/config"
	"perfreporter/internal/metrics"
)

// OTelConfig configures the OTLP/HTTP sink
type OTelConfig struct {
	Endpoint string
	URLPath  string
	Headers  map[string]string
	Insecure bool
	Interval time.Duration // export interval, normally the report interval
	Hostname string
	Version  string

	// InstanceID becomes service.instance.id; empty leaves it out
	InstanceID string
}

// OTelOption customizes an OTelSink
type OTelOption func(*otelOptions)

type otelOptions struct {
	reader sdkmetric.Reader
}

// WithOTelReader replaces the periodic OTLP exporter with reader
func WithOTelReader(reader sdkmetric.Reader) OTelOption {
	return func(o *otelOptions) { o.reader = reader }
}

// OTelSink publishes the latest report tree as observable gauges. The meter
// provider collects on its own schedule and reads whatever tree Report
// stored last.
type OTelSink struct {
	provider *sdkmetric.MeterProvider

	mu     sync.RWMutex
	tree   *Tree
	health HealthFunc
}

// timer statistics exported per timer entry
var timerStats = []struct {
	name string
	get  func(*metrics.TimerStats) float64
}{
	{"mean", func(s *metrics.TimerStats) float64 { return s.Mean }},
	{"min", func(s *metrics.TimerStats) float64 { return s.Min }},
	{"max", func(s *metrics.TimerStats) float64 { return s.Max }},
	{"p50", func(s *metrics.TimerStats) float64 { return s.P50 }},
	{"p75", func(s *metrics.TimerStats) float64 { return s.P75 }},
	{"p95", func(s *metrics.TimerStats) float64 { return s.P95 }},
	{"p99", func(s *metrics.TimerStats) float64 { return s.P99 }},
	{"stddev", func(s *metrics.TimerStats) float64 { return s.StdDev }},
}

// NewOTelSink builds the exporter, meter provider and instruments
func NewOTelSink(ctx context.Context, cfg OTelConfig, opts ...OTelOption) (*OTelSink, error) {
	var o otelOptions
	for _, opt := range opts {
		opt(&o)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(constants.DEFAULT_REPORT_INTERVAL) * time.Second
	}

	reader := o.reader
	if reader == nil {
		urlPath := cfg.URLPath
		if urlPath == "" {
			urlPath = constants.DEFAULT_OTLP_PATH
		}
		exporterOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithURLPath(urlPath),
			// Retry configuration for resilience
			otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
				Enabled:         true,
				InitialInterval: 5 * time.Second,
				MaxInterval:     30 * time.Second,
				MaxElapsedTime:  2 * time.Minute,
			}),
			otlpmetrichttp.WithTimeout(30 * time.Second),
		}
		if len(cfg.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(cfg.Headers))
		}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}

		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	// Not merged with resource.Default(): its schema URL differs from semconv v1.24.0
	attrs := []attribute.KeyValue{
		semconv.ServiceName(constants.SERVICE_NAME),
		semconv.ServiceVersion(version),
		semconv.HostName(hostname),
		attribute.String("os.type", runtime.GOOS),
	}
	if cfg.InstanceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(cfg.InstanceID))
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, attrs...)

	s := &OTelSink{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		),
	}

	meter := s.provider.Meter(constants.INSTRUMENTATION, metric.WithInstrumentationVersion(version))
	if err := s.register(meter); err != nil {
		s.provider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return s, nil
}

func (s *OTelSink) register(meter metric.Meter) error {
	gauge, err := meter.Float64ObservableGauge("perfcounter.value",
		metric.WithDescription("Latest value of a performance counter"),
	)
	if err != nil {
		return err
	}
	timer, err := meter.Float64ObservableGauge("perfcounter.timer",
		metric.WithDescription("Distribution statistics of a sampled duration counter"),
		metric.WithUnit("us"),
	)
	if err != nil {
		return err
	}
	samples, err := meter.Int64ObservableGauge("perfcounter.timer.samples",
		metric.WithDescription("Samples recorded by a duration counter, by outcome"),
	)
	if err != nil {
		return err
	}
	healthy, err := meter.Int64ObservableGauge("perfreporter.healthy",
		metric.WithDescription("1 when discovery passes complete on schedule"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		tree, health := s.current()
		if health != nil {
			v := int64(0)
			if health().Healthy {
				v = 1
			}
			o.ObserveInt64(healthy, v)
		}

		tree.Walk(func(ctx string, m Metric) {
			attrs := metricAttrs(ctx, m)
			if m.Kind != metrics.KindTimer || m.Timer == nil {
				if !math.IsNaN(m.Value) {
					o.ObserveFloat64(gauge, m.Value, metric.WithAttributes(attrs...))
				}
				return
			}

			o.ObserveInt64(samples, int64(m.Timer.Count-m.Timer.Failed),
				metric.WithAttributes(append(attrs, attribute.String("outcome", "ok"))...))
			o.ObserveInt64(samples, int64(m.Timer.Failed),
				metric.WithAttributes(append(attrs, attribute.String("outcome", "failed"))...))
			if m.Timer.Samples == 0 {
				return
			}
			for _, st := range timerStats {
				o.ObserveFloat64(timer, st.get(m.Timer),
					metric.WithAttributes(append(attrs, attribute.String("stat", st.name))...))
			}
		})
		return nil
	}, gauge, timer, samples, healthy)
	return err
}

func metricAttrs(ctx string, m Metric) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m.Tags)+2)
	attrs = append(attrs,
		attribute.String("context", ctx),
		attribute.String("counter", m.Name),
	)
	for _, t := range m.Tags {
		attrs = append(attrs, attribute.String(t.Key, t.Value))
	}
	return attrs
}

func (s *OTelSink) current() (*Tree, HealthFunc) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree, s.health
}

// Report stores tree as the one observed by the next collection
func (s *OTelSink) Report(_ context.Context, tree *Tree, health HealthFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.health = health
	return nil
}

// Flush exports the stored tree immediately
func (s *OTelSink) Flush(ctx context.Context) error {
	return s.provider.ForceFlush(ctx)
}

// Close flushes pending data and shuts the provider down
func (s *OTelSink) Close(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

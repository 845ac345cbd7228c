package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
)

// Health is the liveness of the reporter as a whole, not of any counter
type Health struct {
	Healthy  bool      `json:"healthy"`
	Message  string    `json:"message,omitempty"`
	Passes   uint64    `json:"passes"`
	LastPass time.Time `json:"last_pass"`
}

// HealthFunc returns the current health; sinks call it while reporting
type HealthFunc func() Health

// Sink ships assembled trees somewhere. Report is called once per report
// cycle from a single goroutine; Close flushes and releases resources.
type Sink interface {
	Report(ctx context.Context, tree *Tree, health HealthFunc) error
	Close(ctx context.Context) error
}

// MultiSink reports to every sink; one failing sink does not stop the others
type MultiSink []Sink

func (m MultiSink) Report(ctx context.Context, tree *Tree, health HealthFunc) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, tree, health); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes every metric of a tree as one log line
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a sink writing to log
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Report(_ context.Context, tree *Tree, health HealthFunc) error {
	h := health()
	status := "healthy"
	if !h.Healthy {
		status = "unhealthy: " + h.Message
	}
	s.log.Info("Report %s: %d metrics, %s", tree.Timestamp.Format(time.RFC3339), tree.Len(), status)

	tree.Walk(func(ctx string, m Metric) {
		s.log.Info("  %s", FormatMetric(ctx, m))
	})
	return nil
}

func (s *LogSink) Close(context.Context) error { return nil }

// FormatMetric renders a leaf as context.name{k=v} = value
func FormatMetric(ctx string, m Metric) string {
	var b strings.Builder
	if ctx != "" {
		b.WriteString(ctx)
		b.WriteByte('.')
	}
	b.WriteString(m.Name)
	if len(m.Tags) > 0 {
		b.WriteByte('{')
		for i, t := range m.Tags {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(t.Key)
			b.WriteByte('=')
			b.WriteString(t.Value)
		}
		b.WriteByte('}')
	}

	if m.Kind == metrics.KindTimer && m.Timer != nil {
		t := m.Timer
		fmt.Fprintf(&b, " = timer[count=%d failed=%d mean=%sus p50=%sus p95=%sus p99=%sus]",
			t.Count, t.Failed, formatValue(t.Mean), formatValue(t.P50), formatValue(t.P95), formatValue(t.P99))
		return b.String()
	}
	b.WriteString(" = ")
	b.WriteString(formatValue(m.Value))
	return b.String()
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.3f", v)
}

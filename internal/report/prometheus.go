package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/model"

	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
)

const (
	promValueName   = "perfcounter_value"
	promTimerName   = "perfcounter_timer_microseconds"
	promFailedName  = "perfcounter_timer_failed_total"
	promUpName      = "perfreporter_up"
	promPassesName  = "perfreporter_passes_total"
	promLastPassAge = "perfreporter_last_pass_timestamp_seconds"
)

// PrometheusSink serves the latest report tree on a scrape endpoint. It is an
// unchecked collector: label sets follow whatever the tree carries.
type PrometheusSink struct {
	log      *logger.Logger
	registry *prometheus.Registry
	server   *http.Server

	mu     sync.RWMutex
	tree   *Tree
	health HealthFunc
}

// NewPrometheusSink creates the sink and its registry. Nothing listens until
// Start is called.
func NewPrometheusSink(listen string, log *logger.Logger) *PrometheusSink {
	s := &PrometheusSink{
		log:      log,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		s,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	s.server = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler is the scrape handler
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Start binds the listen address and serves in the background
func (s *PrometheusSink) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.log.Info("Serving Prometheus metrics on %s/metrics", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Prometheus endpoint stopped: %v", err)
		}
	}()
	return nil
}

// Report stores tree as the one served by the next scrape
func (s *PrometheusSink) Report(_ context.Context, tree *Tree, health HealthFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = tree
	s.health = health
	return nil
}

// Close stops the scrape endpoint
func (s *PrometheusSink) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Describe sends nothing, which makes the sink an unchecked collector
func (s *PrometheusSink) Describe(chan<- *prometheus.Desc) {}

// Collect turns the stored tree into const metrics
func (s *PrometheusSink) Collect(ch chan<- prometheus.Metric) {
	s.mu.RLock()
	tree, health := s.tree, s.health
	s.mu.RUnlock()

	if health != nil {
		h := health()
		up := 0.0
		if h.Healthy {
			up = 1
		}
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(promUpName, "1 when discovery passes complete on schedule", nil, nil),
			prometheus.GaugeValue, up)
		ch <- prometheus.MustNewConstMetric(
			prometheus.NewDesc(promPassesName, "Discovery passes completed", nil, nil),
			prometheus.CounterValue, float64(h.Passes))
		if !h.LastPass.IsZero() {
			ch <- prometheus.MustNewConstMetric(
				prometheus.NewDesc(promLastPassAge, "Unix time of the last completed discovery pass", nil, nil),
				prometheus.GaugeValue, float64(h.LastPass.UnixNano())/1e9)
		}
	}
	if tree == nil {
		return
	}

	var gauges, timers []leafAt
	tree.Walk(func(ctx string, m Metric) {
		if m.Kind == metrics.KindTimer && m.Timer != nil {
			timers = append(timers, leafAt{ctx, m})
		} else {
			gauges = append(gauges, leafAt{ctx, m})
		}
	})

	if len(gauges) > 0 {
		labels := labelNames(gauges)
		desc := prometheus.NewDesc(promValueName, "Latest value of a performance counter", labels, nil)
		for _, l := range gauges {
			if math.IsNaN(l.m.Value) {
				continue
			}
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, l.m.Value, labelValues(labels, l)...)
		}
	}

	if len(timers) > 0 {
		labels := labelNames(timers)
		desc := prometheus.NewDesc(promTimerName, "Sampled duration counter in microseconds", labels, nil)
		failed := prometheus.NewDesc(promFailedName, "Failed samples of a duration counter", labels, nil)
		for _, l := range timers {
			st := l.m.Timer
			values := labelValues(labels, l)
			ch <- prometheus.MustNewConstMetric(failed, prometheus.CounterValue, float64(st.Failed), values...)
			if st.Samples == 0 {
				continue
			}
			ch <- prometheus.MustNewConstSummary(desc,
				uint64(st.Samples), st.Mean*float64(st.Samples),
				map[float64]float64{0.5: st.P50, 0.75: st.P75, 0.95: st.P95, 0.99: st.P99},
				values...)
		}
	}
}

type leafAt struct {
	ctx string
	m   Metric
}

// labelNames is context, counter and the sorted union of tag keys. Every
// metric of a family carries all of them, empty when a tag is absent.
func labelNames(leaves []leafAt) []string {
	seen := make(map[string]struct{})
	for _, l := range leaves {
		for _, t := range l.m.Tags {
			seen[promLabel(t.Key)] = struct{}{}
		}
	}
	delete(seen, "context")
	delete(seen, "counter")

	tags := make([]string, 0, len(seen))
	for k := range seen {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return append([]string{"context", "counter"}, tags...)
}

func labelValues(names []string, l leafAt) []string {
	values := make([]string, len(names))
	values[0] = l.ctx
	values[1] = l.m.Name
	for _, t := range l.m.Tags {
		key := promLabel(t.Key)
		for i := 2; i < len(names); i++ {
			if names[i] == key {
				values[i] = t.Value
				break
			}
		}
	}
	return values
}

// promLabel maps a tag key onto a valid legacy label name
func promLabel(key string) string {
	if model.LabelNameRE.MatchString(key) {
		return key
	}
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

package report

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	constants "perfreporter/config"
	"perfreporter/internal/encoding"
	"perfreporter/internal/metrics"
)

// Payload is the CBOR document posted for every report
type Payload struct {
	Host      string          `cbor:"host"`
	Instance  string          `cbor:"instance,omitempty"`
	Timestamp time.Time       `cbor:"timestamp"`
	Health    PayloadHealth   `cbor:"health"`
	Metrics   []PayloadMetric `cbor:"metrics"`
}

type PayloadHealth struct {
	Healthy  bool      `cbor:"healthy"`
	Message  string    `cbor:"message,omitempty"`
	Passes   uint64    `cbor:"passes"`
	LastPass time.Time `cbor:"last_pass"`
}

// PayloadMetric is one flattened leaf. Timer is set for timers only.
type PayloadMetric struct {
	Context string              `cbor:"context"`
	Name    string              `cbor:"name"`
	Kind    string              `cbor:"kind"`
	Tags    map[string]string   `cbor:"tags,omitempty"`
	Value   float64             `cbor:"value"`
	Timer   *metrics.TimerStats `cbor:"timer,omitempty"`
}

// CBORSink posts each report to a collector URL
type CBORSink struct {
	url      string
	headers  map[string]string
	host     string
	instance string
	client   *http.Client
}

// CBOROption customizes a CBORSink
type CBOROption func(*CBORSink)

// WithInstanceID tags every payload with the reporter instance id
func WithInstanceID(id string) CBOROption {
	return func(s *CBORSink) { s.instance = id }
}

// NewCBORSink creates a sink posting to url with the given request timeout
func NewCBORSink(url string, headers map[string]string, timeout time.Duration, opts ...CBOROption) *CBORSink {
	if timeout <= 0 {
		timeout = time.Duration(constants.DEFAULT_SINK_TIMEOUT) * time.Second
	}
	host, _ := os.Hostname()
	s := &CBORSink{
		url:     url,
		headers: headers,
		host:    host,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPayload flattens tree into the wire document
func NewPayload(host string, tree *Tree, health Health) Payload {
	p := Payload{
		Host:      host,
		Timestamp: tree.Timestamp,
		Health: PayloadHealth{
			Healthy:  health.Healthy,
			Message:  health.Message,
			Passes:   health.Passes,
			LastPass: health.LastPass.UTC(),
		},
		Metrics: make([]PayloadMetric, 0, tree.Len()),
	}
	tree.Walk(func(ctx string, m Metric) {
		pm := PayloadMetric{
			Context: ctx,
			Name:    m.Name,
			Kind:    m.Kind.String(),
			Value:   m.Value,
			Timer:   m.Timer,
		}
		if len(m.Tags) > 0 {
			pm.Tags = make(map[string]string, len(m.Tags))
			for _, t := range m.Tags {
				pm.Tags[t.Key] = t.Value
			}
		}
		p.Metrics = append(p.Metrics, pm)
	})
	return p
}

func (s *CBORSink) Report(ctx context.Context, tree *Tree, health HealthFunc) error {
	payload := NewPayload(s.host, tree, health())
	payload.Instance = s.instance

	resp, err := encoding.SendCBORRequest(ctx, s.client, s.url, payload, s.headers)
	if err != nil {
		return fmt.Errorf("failed to post report: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("collector rejected report: %s", resp.Status)
	}
	return nil
}

func (s *CBORSink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

package report

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
)

func scrape(t *testing.T, sink *PrometheusSink) string {
	t.Helper()
	srv := httptest.NewServer(sink.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusSink_Scrape(t *testing.T) {
	sink := NewPrometheusSink("127.0.0.1:0", logger.NewWithWriter(io.Discard))
	require.NoError(t, sink.Report(context.Background(), fullTree(t), healthy))

	body := scrape(t, sink)

	assert.Contains(t, body, "perfreporter_up 1\n")
	assert.Contains(t, body, "perfreporter_passes_total 3\n")
	assert.Contains(t, body, `perfcounter_value{context="memory",counter="available_mbytes",instance=""} 2048`)
	assert.Contains(t, body, `perfcounter_value{context="processor",counter="pct_processor_time",instance="_total"} 12.5`)
	assert.Contains(t, body, `perfcounter_timer_microseconds{context="physicaldisk",counter="avg_disk_sec_write",instance="0_c_",quantile="0.5"} 250000`)
	assert.Contains(t, body, `perfcounter_timer_microseconds_sum{context="physicaldisk",counter="avg_disk_sec_write",instance="1_d_"} 1e+06`)
	assert.Contains(t, body, `perfcounter_timer_microseconds_count{context="physicaldisk",counter="avg_disk_sec_write",instance="1_d_"} 2`)
	assert.Contains(t, body, `perfcounter_timer_failed_total{context="physicaldisk",counter="avg_disk_sec_write",instance="0_c_"} 0`)
	assert.Contains(t, body, "go_goroutines")
}

func TestPrometheusSink_Collect(t *testing.T) {
	sink := NewPrometheusSink("127.0.0.1:0", logger.NewWithWriter(io.Discard))
	assert.Equal(t, 0, testutil.CollectAndCount(sink))

	require.NoError(t, sink.Report(context.Background(), fullTree(t), healthy))
	assert.Equal(t, 2, testutil.CollectAndCount(sink, promValueName))
	assert.Equal(t, 2, testutil.CollectAndCount(sink, promTimerName))
	assert.Equal(t, 1, testutil.CollectAndCount(sink, promUpName))
}

func TestPrometheusSink_SkipsNaN(t *testing.T) {
	sink := NewPrometheusSink("127.0.0.1:0", logger.NewWithWriter(io.Discard))
	tree := &Tree{Root: Node{Children: []Node{{
		Context: "memory",
		Metrics: []Metric{
			{Name: "ok", Value: 1},
			{Name: "broken", Value: math.NaN()},
		},
	}}}}
	require.NoError(t, sink.Report(context.Background(), tree, healthy))

	assert.Equal(t, 1, testutil.CollectAndCount(sink, promValueName))
}

func TestPrometheusSink_InvalidTagKeys(t *testing.T) {
	sink := NewPrometheusSink("127.0.0.1:0", logger.NewWithWriter(io.Discard))
	tree := &Tree{Root: Node{Children: []Node{{
		Context: "x",
		Metrics: []Metric{{Name: "y", Value: 1, Tags: []metrics.Tag{{Key: "9-lives", Value: "v"}}}},
	}}}}
	require.NoError(t, sink.Report(context.Background(), tree, healthy))

	assert.Contains(t, scrape(t, sink), `perfcounter_value{_9_lives="v",context="x",counter="y"} 1`)
}

func TestPrometheusSink_StartClose(t *testing.T) {
	sink := NewPrometheusSink("127.0.0.1:0", logger.NewWithWriter(io.Discard))
	require.NoError(t, sink.Start())
	assert.NoError(t, sink.Close(context.Background()))
}

func TestPromLabel(t *testing.T) {
	tests := map[string]string{
		"instance": "instance",
		"9-lives":  "_9_lives",
		"a.b":      "a_b",
		"":         "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, promLabel(in), in)
	}
}

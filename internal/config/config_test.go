package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "counters:\n  - '\\Memory\\Available MBytes'\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.SampleInterval)
	assert.Equal(t, 10*time.Second, cfg.ReportInterval)
	assert.Equal(t, 1028, cfg.TimerWindow)
	assert.Equal(t, "auto", cfg.Source)
	assert.Equal(t, "/v1/metrics", cfg.Sinks.OTLP.URLPath)
	assert.Equal(t, []string{`\Memory\Available MBytes`}, cfg.Counters)
	assert.False(t, cfg.Sinks.OTLP.Enabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfig(t, `
definition_files:
  - counters.txt
sample_interval: 500ms
report_interval: 30s
timer_window: 256
source: host
synthetic: true
log_level: debug
sinks:
  log: true
  otlp:
    endpoint: collector:4318
    insecure: true
    headers:
      authorization: Bearer abc
  prometheus:
    listen: ":9999"
  cbor:
    url: http://collector/ingest
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"counters.txt"}, cfg.DefinitionFiles)
	assert.Equal(t, 500*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, 30*time.Second, cfg.ReportInterval)
	assert.Equal(t, 256, cfg.TimerWindow)
	assert.Equal(t, "host", cfg.Source)
	assert.True(t, cfg.Synthetic)
	assert.True(t, cfg.Sinks.Log)
	assert.True(t, cfg.Sinks.OTLP.Enabled())
	assert.True(t, cfg.Sinks.OTLP.Insecure)
	assert.Equal(t, "Bearer abc", cfg.Sinks.OTLP.Headers["authorization"])
	assert.True(t, cfg.Sinks.Prometheus.Enabled())
	assert.True(t, cfg.Sinks.CBOR.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Sinks.CBOR.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Counters:       []string{`\System\Processes`},
			SampleInterval: time.Second,
			ReportInterval: 10 * time.Second,
			TimerWindow:    10,
			Source:         "auto",
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.SampleInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.SampleInterval = 20 * time.Second
	assert.Error(t, cfg.Validate(), "sample interval must be shorter than report interval")

	cfg = base()
	cfg.Source = "wmi"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Counters = nil
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.TimerWindow = 0
	assert.Error(t, cfg.Validate())
}

package constants

// Service identity
const (
	SERVICE_NAME        = "perfreporter"
	SERVICE_DESCRIPTION = "Performance counter reporter - discovers OS counters and ships them to a collector"
	INSTRUMENTATION     = "perfreporter/counters"
)

// Default scheduling configuration
const (
	DEFAULT_SAMPLE_INTERVAL = 1  // seconds, timer-backed counters
	DEFAULT_REPORT_INTERVAL = 10 // seconds, discovery + report cycle
	DEFAULT_TIMER_WINDOW    = 1028
)

// Timer samples are recorded in microseconds
const MICROSECONDS_PER_SECOND = 1000000.0

// Counter sources
const (
	SOURCE_AUTO = "auto" // pdh on windows, host elsewhere
	SOURCE_PDH  = "pdh"
	SOURCE_HOST = "host"
)

// Sink defaults
const (
	DEFAULT_OTLP_PATH         = "/v1/metrics"
	DEFAULT_PROMETHEUS_LISTEN = ":9464"
	DEFAULT_SINK_TIMEOUT      = 10 // seconds
)

// File paths
const (
	CONFIG_DIR_NAME = "/.perfreporter"
	CONFIG_ENV      = "PERFREPORTER"
	LOG_FILE        = "/tmp/perfreporter.log"
)

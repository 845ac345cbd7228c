package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	constants "perfreporter/config"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Pattern sources: files with one counter path per line, and inline paths
	DefinitionFiles []string `mapstructure:"definition_files"`
	Counters        []string `mapstructure:"counters"`

	SampleInterval time.Duration `mapstructure:"sample_interval"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
	TimerWindow    int           `mapstructure:"timer_window"`

	Source    string `mapstructure:"source"`
	Synthetic bool   `mapstructure:"synthetic"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	Sinks SinksConfig `mapstructure:"sinks"`
}

// SinksConfig selects where assembled reports are delivered
type SinksConfig struct {
	Log        bool             `mapstructure:"log"`
	OTLP       OTLPConfig       `mapstructure:"otlp"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	CBOR       CBORConfig       `mapstructure:"cbor"`
}

// OTLPConfig configures the OTLP/HTTP metrics exporter
type OTLPConfig struct {
	Endpoint string            `mapstructure:"endpoint"`
	URLPath  string            `mapstructure:"url_path"`
	Headers  map[string]string `mapstructure:"headers"`
	Insecure bool              `mapstructure:"insecure"`
}

// PrometheusConfig configures the scrape endpoint
type PrometheusConfig struct {
	Listen string `mapstructure:"listen"`
}

// CBORConfig configures the CBOR-over-HTTP collector sink
type CBORConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// Enabled reports whether an OTLP endpoint is configured
func (c OTLPConfig) Enabled() bool { return c.Endpoint != "" }

// Enabled reports whether the scrape endpoint is configured
func (c PrometheusConfig) Enabled() bool { return c.Listen != "" }

// Enabled reports whether a CBOR collector URL is configured
func (c CBORConfig) Enabled() bool { return c.URL != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("sample_interval", time.Duration(constants.DEFAULT_SAMPLE_INTERVAL)*time.Second)
	v.SetDefault("report_interval", time.Duration(constants.DEFAULT_REPORT_INTERVAL)*time.Second)
	v.SetDefault("timer_window", constants.DEFAULT_TIMER_WINDOW)
	v.SetDefault("source", constants.SOURCE_AUTO)
	v.SetDefault("synthetic", false)
	v.SetDefault("log_file", constants.LOG_FILE)
	v.SetDefault("log_level", "info")
	v.SetDefault("sinks.log", false)
	v.SetDefault("sinks.otlp.url_path", constants.DEFAULT_OTLP_PATH)
	v.SetDefault("sinks.cbor.timeout", time.Duration(constants.DEFAULT_SINK_TIMEOUT)*time.Second)
}

// LoadConfig loads configuration from file and environment.
// An empty path searches $HOME/.perfreporter and the working directory.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.CONFIG_ENV)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME" + constants.CONFIG_DIR_NAME)
		v.AddConfigPath(".")

		// A missing config file is fine, everything has a default
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the scheduler depends on
func (cfg *Config) Validate() error {
	if cfg.SampleInterval <= 0 {
		return fmt.Errorf("sample_interval must be positive, got %s", cfg.SampleInterval)
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report_interval must be positive, got %s", cfg.ReportInterval)
	}
	if cfg.SampleInterval >= cfg.ReportInterval {
		return fmt.Errorf("sample_interval (%s) must be shorter than report_interval (%s)",
			cfg.SampleInterval, cfg.ReportInterval)
	}
	if cfg.TimerWindow <= 0 {
		return fmt.Errorf("timer_window must be positive, got %d", cfg.TimerWindow)
	}
	switch cfg.Source {
	case constants.SOURCE_AUTO, constants.SOURCE_PDH, constants.SOURCE_HOST:
	default:
		return fmt.Errorf("unknown counter source %q", cfg.Source)
	}
	if len(cfg.DefinitionFiles) == 0 && len(cfg.Counters) == 0 {
		return errors.New("no counters configured: set definition_files or counters")
	}
	return nil
}

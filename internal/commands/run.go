package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"perfreporter/internal/config"
	"perfreporter/internal/counters"
	"perfreporter/internal/logger"
	"perfreporter/internal/process"
	"perfreporter/internal/report"
	"perfreporter/internal/scheduler"
	"perfreporter/internal/service"
)

// NewRunCmd creates the run command
// It samples timer counters on the fast interval and runs a discovery and
// report pass on the slow one until it receives SIGINT or SIGTERM.
func NewRunCmd() *cobra.Command {
	var asService bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover counters and report them until stopped",
		Long: `Run the reporter in the foreground.

Counter patterns come from the definition files and inline counters of the
configuration. Definition files are re-read on every discovery pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer log.Close()

			lock, err := process.Acquire(log)
			if err != nil {
				return err
			}
			defer lock.Release()

			if asService {
				return runService(cfg, log)
			}

			log.EchoTo(os.Stderr)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReporter(ctx, cfg, log)
		},
	}

	cmd.Flags().BoolVar(&asService, "service", false, "Run under the service manager")
	_ = cmd.Flags().MarkHidden("service")

	return cmd
}

// loadRuntime loads and validates the configuration and opens the log file
func loadRuntime() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cfg.LogFile)
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

func runReporter(ctx context.Context, cfg *config.Config, log *logger.Logger) (err error) {
	hostname, _ := os.Hostname()

	defer func() {
		log.Info("=== REPORTER EXITING - PID: %d ===", os.Getpid())
	}()

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			log.Error("=== PANIC on %s: %v ===", hostname, r)
			log.Error("Stack trace:\n%s", string(buf[:n]))
			service.NotifyStopping()
			err = fmt.Errorf("reporter panicked: %v", r)
		}
	}()

	log.Info("=== REPORTER STARTING - PID: %d ===", os.Getpid())

	source, err := counters.NewSource(cfg.Source, cfg.Synthetic)
	if err != nil {
		return err
	}

	// Identifies this process in every report, so restarts are visible downstream
	instanceID := uuid.NewString()

	sink, err := buildSinks(ctx, cfg, hostname, instanceID, log)
	if err != nil {
		return err
	}

	sched := scheduler.New(source, sink, log, scheduler.Config{
		SampleInterval: cfg.SampleInterval,
		ReportInterval: cfg.ReportInterval,
		TimerWindow:    cfg.TimerWindow,
		Patterns: func() []string {
			return counters.LoadPatterns(cfg.DefinitionFiles, cfg.Counters, log)
		},
	})

	log.Info("Reporter initialized:")
	log.Info("  Host: %s", hostname)
	log.Info("  Instance: %s", instanceID)
	log.Info("  Source: %s", cfg.Source)
	log.Info("  Definition files: %d, inline counters: %d", len(cfg.DefinitionFiles), len(cfg.Counters))
	log.Info("  Sinks: %d", len(sink))

	service.NotifyReady()
	service.NotifyStatus("Reporting performance counters")

	watchdogCtx, stopWatchdog := context.WithCancel(ctx)
	defer stopWatchdog()
	go watchdog(watchdogCtx, sched, cfg.ReportInterval, log)

	err = sched.Run(ctx)
	service.NotifyStopping()
	if errors.Is(err, context.Canceled) {
		log.Info("Shutdown requested, reporter stopped")
		return nil
	}
	return err
}

// watchdog pings the service manager while discovery passes keep completing
func watchdog(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := sched.Health()
			if !health.Healthy {
				log.Warning("Health check failed: %s", health.Message)
				continue
			}
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			log.Debug("Health check - passes: %d, goroutines: %d, memory: %.1f MB",
				health.Passes, runtime.NumGoroutine(), float64(memStats.Alloc)/1024/1024)
			service.NotifyWatchdog()
		}
	}
}

// buildSinks creates every configured sink. The log sink is used when it is
// asked for or when nothing else is configured.
func buildSinks(ctx context.Context, cfg *config.Config, hostname, instanceID string, log *logger.Logger) (report.MultiSink, error) {
	var sinks report.MultiSink
	fail := func(err error) (report.MultiSink, error) {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sinks.Close(closeCtx)
		return nil, err
	}

	if cfg.Sinks.OTLP.Enabled() {
		otelSink, err := report.NewOTelSink(ctx, report.OTelConfig{
			Endpoint: cfg.Sinks.OTLP.Endpoint,
			URLPath:  cfg.Sinks.OTLP.URLPath,
			Headers:  cfg.Sinks.OTLP.Headers,
			Insecure: cfg.Sinks.OTLP.Insecure,
			Interval: cfg.ReportInterval,
			Hostname: hostname,
			Version:  currentVersion(),

			InstanceID: instanceID,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create OTLP sink: %w", err))
		}
		log.Info("  OTLP: %s%s", cfg.Sinks.OTLP.Endpoint, cfg.Sinks.OTLP.URLPath)
		sinks = append(sinks, otelSink)
	}

	if cfg.Sinks.Prometheus.Enabled() {
		promSink := report.NewPrometheusSink(cfg.Sinks.Prometheus.Listen, log)
		if err := promSink.Start(); err != nil {
			return fail(err)
		}
		sinks = append(sinks, promSink)
	}

	if cfg.Sinks.CBOR.Enabled() {
		log.Info("  CBOR collector: %s", cfg.Sinks.CBOR.URL)
		sinks = append(sinks, report.NewCBORSink(cfg.Sinks.CBOR.URL, cfg.Sinks.CBOR.Headers, cfg.Sinks.CBOR.Timeout,
			report.WithInstanceID(instanceID)))
	}

	if cfg.Sinks.Log || len(sinks) == 0 {
		sinks = append(sinks, report.NewLogSink(log))
	}
	return sinks, nil
}

// program adapts the reporter to the service manager's start/stop calls
type program struct {
	cfg *config.Config
	log *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *program) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		p.err = runReporter(ctx, p.cfg, p.log)
	}(p.done)
}

func (p *program) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *program) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	p.err = runReporter(ctx, p.cfg, p.log)
}

func runService(cfg *config.Config, log *logger.Logger) error {
	svc, err := service.New(log)
	if err != nil {
		return err
	}

	p := &program{cfg: cfg, log: log}
	status, err := svc.Run(p)
	if err != nil {
		return fmt.Errorf("%s: %w", status, err)
	}
	return p.err
}

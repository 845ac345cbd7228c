package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	constants "perfreporter/config"
	"perfreporter/internal/counters"
	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
	"perfreporter/internal/report"
)

// staleAfter is how many report intervals may pass without a completed
// discovery pass before the reporter calls itself unhealthy
const staleAfter = 3

// Config holds the scheduling parameters
type Config struct {
	SampleInterval time.Duration
	ReportInterval time.Duration
	TimerWindow    int

	// Patterns returns the counter patterns for a pass. It is called once
	// per discovery pass so edits to definition files are picked up.
	Patterns func() []string
}

type Option func(*Scheduler)

// WithSchedulerClock drives both tasks and the health check from clock
func WithSchedulerClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// Scheduler owns the counter source session, the registry and the sink
type Scheduler struct {
	source counters.Source
	sink   report.Sink
	log    *logger.Logger
	clock  clockwork.Clock
	cfg    Config

	resolver *counters.Resolver
	registry *metrics.Registry

	mu        sync.Mutex
	passes    uint64
	lastPass  time.Time
	lastError error
}

// New wires a scheduler. The source is opened by Run.
func New(source counters.Source, sink report.Sink, log *logger.Logger, cfg Config, opts ...Option) *Scheduler {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = time.Duration(constants.DEFAULT_SAMPLE_INTERVAL) * time.Second
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = time.Duration(constants.DEFAULT_REPORT_INTERVAL) * time.Second
	}
	if cfg.Patterns == nil {
		cfg.Patterns = func() []string { return nil }
	}

	s := &Scheduler{
		source:   source,
		sink:     sink,
		log:      log,
		clock:    clockwork.NewRealClock(),
		cfg:      cfg,
		resolver: counters.NewResolver(source, log),
		registry: metrics.NewRegistry(source, log, metrics.WithTimerWindow(cfg.TimerWindow)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is the registry snapshot of the last discovery pass
func (s *Scheduler) Snapshot() *metrics.Snapshot {
	return s.registry.Snapshot()
}

// Run opens the source and runs both tasks until ctx is done. A source that
// cannot be opened is fatal. On return every reader, the source session and
// the sink are closed.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.source.Open(); err != nil {
		return fmt.Errorf("failed to open counter source: %w", err)
	}
	defer func() {
		if err := s.source.Close(); err != nil {
			s.log.Warning("Failed to close counter source: %v", err)
		}
	}()
	defer s.registry.Close()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DEFAULT_SINK_TIMEOUT)*time.Second)
		defer cancel()
		if err := s.sink.Close(closeCtx); err != nil {
			s.log.Warning("Failed to close sinks: %v", err)
		}
	}()

	fast := NewRepeater(s.cfg.SampleInterval, s.FastSample,
		WithName("fast sample"), WithClock(s.clock), WithLogger(s.log))
	discovery := NewRepeater(s.cfg.ReportInterval, s.DiscoveryAndReport,
		WithName("discovery and report"), WithClock(s.clock), WithLogger(s.log))

	// report once right away instead of waiting a full interval
	discovery.Force()

	s.log.Info("Sampling timers every %s, reporting every %s", s.cfg.SampleInterval, s.cfg.ReportInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fast.Run(gctx) })
	g.Go(func() error { return discovery.Run(gctx) })
	return g.Wait()
}

// FastSample reads every timer entry once. Failed reads are recorded as NaN
// by the entry and logged at debug level.
func (s *Scheduler) FastSample(ctx context.Context) error {
	s.registry.ForEachTimer(func(e *metrics.Entry) {
		if err := e.Sample(); err != nil {
			s.log.Debug("Failed to sample %s: %v", e.Key, err)
		}
	})
	return nil
}

// DiscoveryAndReport resolves the current patterns, reconciles the registry
// and reports the assembled tree
func (s *Scheduler) DiscoveryAndReport(ctx context.Context) error {
	start := s.clock.Now()

	paths := s.resolver.ResolveAll(ctx, s.cfg.Patterns())
	// a pass cut short must not tear down entries it never got to
	if err := ctx.Err(); err != nil {
		return err
	}

	snap, stats := s.registry.Reconcile(slices.Values(paths))
	s.log.Debug("Discovery pass: %d resolved, %d new, %d carried, %d removed, %d dropped, %d conflicts, %d failed (%s)",
		stats.Resolved, stats.Created, stats.Carried, stats.Removed, stats.Dropped, stats.Conflicts, stats.Failed,
		s.clock.Since(start))

	now := s.clock.Now()
	tree := report.Assemble(snap, now)
	s.completePass(now)

	err := s.sink.Report(ctx, tree, s.Health)
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to report: %w", err)
	}
	return nil
}

func (s *Scheduler) completePass(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
	s.lastPass = at
}

// Health reports whether discovery passes complete on schedule
func (s *Scheduler) Health() report.Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := report.Health{Healthy: true, Passes: s.passes, LastPass: s.lastPass}
	switch {
	case s.passes == 0:
		h.Healthy = false
		h.Message = "no discovery pass yet"
	case s.clock.Since(s.lastPass) > staleAfter*s.cfg.ReportInterval:
		h.Healthy = false
		h.Message = fmt.Sprintf("no discovery pass since %s", s.lastPass.UTC().Format(time.RFC3339))
	case s.lastError != nil:
		h.Message = "last report failed: " + s.lastError.Error()
	}
	return h
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"perfreporter/internal/config"
	"perfreporter/internal/counters"
	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
	"perfreporter/internal/report"
	"perfreporter/internal/ui"
)

// NewCountersCmd creates the counters command
// It runs a single discovery pass and prints the resulting report tree.
func NewCountersCmd() *cobra.Command {
	var (
		patterns []string
		samples  int
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Resolve counter patterns once and print what they match",
		Long: `Resolve the configured counter patterns (or the ones given with --pattern)
against this machine and print the metrics a report would contain.

Timer counters are sampled --samples times, one sample interval apart.

Examples:
  perfreporter counters
  perfreporter counters -p '\PhysicalDisk(*)\Avg. Disk sec/Write'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(ConfigPath)
			if err != nil {
				return err
			}

			log := logger.NewWithWriter(os.Stderr)
			if !verbose {
				log.SetLevel(logger.LevelWarning)
			}

			if len(patterns) == 0 {
				patterns = counters.LoadPatterns(cfg.DefinitionFiles, cfg.Counters, log)
			} else {
				patterns = counters.NormalizePatterns(patterns)
			}
			if len(patterns) == 0 {
				return fmt.Errorf("no counters configured: set definition_files or counters, or pass --pattern")
			}

			source, err := counters.NewSource(cfg.Source, cfg.Synthetic)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ui.PrintHeader()
			ui.PrintSection("Discovery")
			tree, stats, err := discoverOnce(ctx, source, patterns, cfg, samples, log)
			ui.PrintSectionEnd()
			if err != nil {
				return err
			}

			ui.PrintSection("Counters")
			fmt.Fprint(ui.Out, ui.RenderTree(tree))
			ui.PrintSectionEnd()

			ui.PrintSection("Pass")
			fmt.Fprint(ui.Out, ui.RenderPassStats(stats))
			ui.PrintSectionEnd()
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "Counter path pattern (repeatable), replaces the configured ones")
	cmd.Flags().IntVar(&samples, "samples", 3, "Timer samples to take before printing")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Log discovery details to stderr")

	return cmd
}

// discoverOnce opens source, reconciles one pass and samples the timers
func discoverOnce(ctx context.Context, source counters.Source, patterns []string, cfg *config.Config, samples int, log *logger.Logger) (*report.Tree, metrics.PassStats, error) {
	if err := source.Open(); err != nil {
		return nil, metrics.PassStats{}, fmt.Errorf("failed to open counter source: %w", err)
	}
	defer source.Close()

	registry := metrics.NewRegistry(source, log, metrics.WithTimerWindow(cfg.TimerWindow))
	defer registry.Close()

	var stats metrics.PassStats
	_, err := ui.WithSpinner(fmt.Sprintf("Resolving %d patterns", len(patterns)), func() (string, error) {
		paths := counters.NewResolver(source, log).ResolveAll(ctx, patterns)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var snap *metrics.Snapshot
		snap, stats = registry.Reconcile(slices.Values(paths))
		return fmt.Sprintf("%d metrics from %d paths", snap.Len(), len(paths)), nil
	})
	if err != nil {
		return nil, stats, err
	}

	if timers := len(registry.Snapshot().Timers()); timers > 0 && samples > 0 {
		_, err = ui.WithSpinner(fmt.Sprintf("Sampling %d timers", timers), func() (string, error) {
			for i := 0; i < samples; i++ {
				if i > 0 {
					select {
					case <-ctx.Done():
						return "", ctx.Err()
					case <-time.After(cfg.SampleInterval):
					}
				}
				registry.ForEachTimer(func(e *metrics.Entry) {
					if err := e.Sample(); err != nil {
						log.Debug("Failed to sample %s: %v", e.Key, err)
					}
				})
			}
			return fmt.Sprintf("%d samples per timer", samples), nil
		})
		if err != nil {
			return nil, stats, err
		}
	}

	return report.Assemble(registry.Snapshot(), time.Now()), stats, nil
}

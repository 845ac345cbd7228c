package counters

import (
	"context"
	"iter"
	"strings"

	"perfreporter/internal/logger"
)

// Resolver turns counter path patterns into resolved, present counter paths.
// It keeps no state between calls besides the source, so Resolve can be
// run again on every discovery pass.
type Resolver struct {
	source Source
	log    *logger.Logger
}

// NewResolver creates a resolver over an open source
func NewResolver(source Source, log *logger.Logger) *Resolver {
	return &Resolver{source: source, log: log}
}

// Resolve lazily expands every pattern and yields each concrete path that
// exists and parses. A pattern that fails to expand is logged and skipped;
// so is a single path that fails validation or parsing. Concrete paths
// reached through several overlapping patterns are yielded once, compared
// case-insensitively. Iteration stops early when ctx is cancelled.
func (r *Resolver) Resolve(ctx context.Context, patterns []string) iter.Seq[Path] {
	return func(yield func(Path) bool) {
		seen := make(map[string]struct{})

		for _, pattern := range patterns {
			if ctx.Err() != nil {
				return
			}

			expanded, err := r.source.ExpandWildcard(pattern)
			if err != nil {
				r.log.Error("Failed to parse: %s (%v)", pattern, err)
				continue
			}
			if len(expanded) == 0 {
				r.log.Debug("Pattern matched no counters: %s", pattern)
				continue
			}

			for _, concrete := range expanded {
				if ctx.Err() != nil {
					return
				}

				key := strings.ToLower(concrete)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				// Checking presence first is cheaper than parsing and drops
				// instances that vanished since expansion (short-lived processes)
				present, err := r.source.Exists(concrete)
				if err != nil {
					r.log.Error("Failed to validate %s: %v", concrete, err)
					continue
				}
				if !present {
					r.log.Debug("Counter vanished before parsing: %s", concrete)
					continue
				}

				path, err := r.source.Parse(concrete)
				if err != nil {
					r.log.Error("Failed to parse path %s: %v", concrete, err)
					continue
				}

				if !yield(path) {
					return
				}
			}
		}
	}
}

// ResolveAll collects Resolve into a slice
func (r *Resolver) ResolveAll(ctx context.Context, patterns []string) []Path {
	var paths []Path
	for p := range r.Resolve(ctx, patterns) {
		paths = append(paths, p)
	}
	return paths
}

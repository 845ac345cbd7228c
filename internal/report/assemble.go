package report

import (
	"math"
	"sort"
	"time"

	"perfreporter/internal/metrics"
)

// Assemble groups the snapshot by context into a tree stamped with now (in
// UTC). Gauges are read here; a failed read reports NaN. Timers export the
// current statistics of their aggregator, with the mean as value.
func Assemble(snap *metrics.Snapshot, now time.Time) *Tree {
	byContext := make(map[string][]Metric)
	for _, e := range snap.Entries() {
		byContext[e.Context] = append(byContext[e.Context], leaf(e))
	}

	contexts := make([]string, 0, len(byContext))
	for ctx := range byContext {
		contexts = append(contexts, ctx)
	}
	sort.Strings(contexts)

	root := Node{Children: make([]Node, 0, len(contexts))}
	for _, ctx := range contexts {
		leaves := byContext[ctx]
		if len(leaves) == 0 {
			continue
		}
		root.Children = append(root.Children, Node{Context: ctx, Metrics: leaves})
	}

	return &Tree{Timestamp: now.UTC(), Root: root}
}

func leaf(e *metrics.Entry) Metric {
	m := Metric{
		Name: e.Name,
		Tags: append([]metrics.Tag(nil), e.Tags...),
		Kind: e.Kind,
	}
	if e.Kind == metrics.KindTimer {
		stats := e.Timer.Stats()
		m.Timer = &stats
		m.Value = stats.Mean
		return m
	}
	v, err := e.Read()
	if err != nil {
		v = math.NaN()
	}
	m.Value = v
	return m
}

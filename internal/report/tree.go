// Package report assembles registry snapshots into metric trees and ships
// them to reporting sinks.
package report

import (
	"time"

	"perfreporter/internal/metrics"
)

// Metric is one leaf of a report tree
type Metric struct {
	Name  string              `json:"name"`
	Tags  []metrics.Tag       `json:"tags,omitempty"`
	Value float64             `json:"value"`
	Kind  metrics.Kind        `json:"kind"`
	Timer *metrics.TimerStats `json:"timer,omitempty"`
}

// Node is a named context holding child contexts and leaf metrics. The root
// node has an empty context.
type Node struct {
	Context  string   `json:"context"`
	Children []Node   `json:"children,omitempty"`
	Metrics  []Metric `json:"metrics,omitempty"`
}

// Tree is the immutable result of one report pass
type Tree struct {
	Timestamp time.Time `json:"timestamp"`
	Root      Node      `json:"root"`
}

// Walk calls fn for every leaf metric, depth first, with the dotted path of
// the contexts above it
func (t *Tree) Walk(fn func(context string, m Metric)) {
	if t == nil {
		return
	}
	walk(t.Root, "", fn)
}

func walk(n Node, prefix string, fn func(string, Metric)) {
	ctx := prefix
	if n.Context != "" {
		if ctx != "" {
			ctx += "."
		}
		ctx += n.Context
	}
	for _, m := range n.Metrics {
		fn(ctx, m)
	}
	for _, child := range n.Children {
		walk(child, ctx, fn)
	}
}

// Len counts the leaf metrics of the tree
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(string, Metric) { n++ })
	return n
}

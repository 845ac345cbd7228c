package report

import (
	"context"
	"io"
	"testing"
	"time"

	"perfreporter/internal/counters"
	"perfreporter/internal/counters/counterstest"
	"perfreporter/internal/logger"
	"perfreporter/internal/metrics"
)

const (
	availableMBytes = `\Memory\Available MBytes`
	processorTime   = `\Processor(_Total)\% Processor Time`
	diskWriteTime   = `\PhysicalDisk(*)\Avg. Disk sec/Write`
	disk0           = `\PhysicalDisk(0 C:)\Avg. Disk sec/Write`
	disk1           = `\PhysicalDisk(1 D:)\Avg. Disk sec/Write`
)

var reportTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

// newSource has one gauge in two contexts and two disk timers
func newSource() *counterstest.Source {
	src := counterstest.New()
	src.Add(availableMBytes, counters.TypeNumberOfItems64, 2048)
	src.Add(processorTime, counters.TypeTimer100NsInverse, 12.5)
	src.Add(disk0, counters.TypeAverageTimer32, 0.25)
	src.Add(disk1, counters.TypeAverageTimer32, 0.5)
	src.Expand(diskWriteTime, disk0, disk1)
	return src
}

// snapshot runs one discovery pass and samples every timer twice
func snapshot(t *testing.T, src *counterstest.Source, patterns ...string) *metrics.Snapshot {
	t.Helper()
	l := logger.NewWithWriter(io.Discard)
	reg := metrics.NewRegistry(src, l)
	t.Cleanup(reg.Close)

	snap, _ := reg.Reconcile(counters.NewResolver(src, l).Resolve(context.Background(), patterns))
	for i := 0; i < 2; i++ {
		reg.ForEachTimer(func(e *metrics.Entry) { e.Sample() })
	}
	return snap
}

func healthy() Health {
	return Health{Healthy: true, Passes: 3, LastPass: reportTime}
}

func fullTree(t *testing.T) *Tree {
	t.Helper()
	snap := snapshot(t, newSource(), availableMBytes, processorTime, diskWriteTime)
	return Assemble(snap, reportTime)
}

package report

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreporter/internal/metrics"
)

func TestAssemble_GroupsByContext(t *testing.T) {
	tree := fullTree(t)

	require.Len(t, tree.Root.Children, 3)
	assert.Equal(t, "", tree.Root.Context)
	assert.Equal(t, "memory", tree.Root.Children[0].Context)
	assert.Equal(t, "physicaldisk", tree.Root.Children[1].Context)
	assert.Equal(t, "processor", tree.Root.Children[2].Context)
	assert.Equal(t, 4, tree.Len())

	mem := tree.Root.Children[0].Metrics
	require.Len(t, mem, 1)
	assert.Equal(t, "available_mbytes", mem[0].Name)
	assert.Equal(t, metrics.KindGauge, mem[0].Kind)
	assert.Equal(t, 2048.0, mem[0].Value)
	assert.Nil(t, mem[0].Timer)

	cpu := tree.Root.Children[2].Metrics
	require.Len(t, cpu, 1)
	assert.Equal(t, "pct_processor_time", cpu[0].Name)
	assert.Equal(t, []metrics.Tag{{Key: "instance", Value: "_total"}}, cpu[0].Tags)
}

func TestAssemble_Timers(t *testing.T) {
	tree := fullTree(t)

	disks := tree.Root.Children[1].Metrics
	require.Len(t, disks, 2)

	assert.Equal(t, "avg_disk_sec_write", disks[0].Name)
	assert.Equal(t, []metrics.Tag{{Key: "instance", Value: "0_c_"}}, disks[0].Tags)
	assert.Equal(t, []metrics.Tag{{Key: "instance", Value: "1_d_"}}, disks[1].Tags)

	for i, want := range []float64{250000, 500000} {
		m := disks[i]
		assert.Equal(t, metrics.KindTimer, m.Kind)
		require.NotNil(t, m.Timer)
		assert.Equal(t, uint64(2), m.Timer.Count)
		assert.Equal(t, 2, m.Timer.Samples)
		assert.Equal(t, want, m.Timer.Mean)
		assert.Equal(t, want, m.Value)
	}
}

func TestAssemble_TimestampIsUTC(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2024, 3, 1, 15, 30, 0, 0, zone)

	tree := Assemble(snapshot(t, newSource(), availableMBytes), local)

	assert.Equal(t, time.UTC, tree.Timestamp.Location())
	assert.True(t, tree.Timestamp.Equal(reportTime))
}

func TestAssemble_GaugeReadErrorIsNaN(t *testing.T) {
	src := newSource()
	snap := snapshot(t, src, availableMBytes, processorTime)
	src.SetReadError(availableMBytes, errors.New("counter went away"))

	tree := Assemble(snap, reportTime)

	require.Len(t, tree.Root.Children, 2)
	assert.True(t, math.IsNaN(tree.Root.Children[0].Metrics[0].Value))
	assert.Equal(t, 12.5, tree.Root.Children[1].Metrics[0].Value)
}

func TestAssemble_TimerWithoutSamples(t *testing.T) {
	src := newSource()
	snap := snapshot(t, src, disk0)
	src.SetReadError(disk0, errors.New("no data"))
	for _, e := range snap.Timers() {
		e.Sample()
	}

	tree := Assemble(snap, reportTime)

	m := tree.Root.Children[0].Metrics[0]
	require.NotNil(t, m.Timer)
	assert.Equal(t, uint64(3), m.Timer.Count)
	assert.Equal(t, uint64(1), m.Timer.Failed)
	assert.True(t, math.IsNaN(m.Timer.Last))
	assert.Equal(t, 250000.0, m.Value)
}

func TestAssemble_Empty(t *testing.T) {
	tree := Assemble(nil, reportTime)

	assert.Empty(t, tree.Root.Children)
	assert.Equal(t, 0, tree.Len())
	assert.Equal(t, reportTime, tree.Timestamp)
}

func TestTree_WalkPaths(t *testing.T) {
	tree := &Tree{Root: Node{
		Metrics: []Metric{{Name: "top"}},
		Children: []Node{{
			Context:  "a",
			Metrics:  []Metric{{Name: "x"}},
			Children: []Node{{Context: "b", Metrics: []Metric{{Name: "y"}}}},
		}},
	}}

	var got []string
	tree.Walk(func(ctx string, m Metric) { got = append(got, ctx+"|"+m.Name) })

	assert.Equal(t, []string{"|top", "a|x", "a.b|y"}, got)

	var nilTree *Tree
	assert.Equal(t, 0, nilTree.Len())
}

package metrics

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfreporter/internal/counters"
	"perfreporter/internal/counters/counterstest"
	"perfreporter/internal/logger"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type registryFixture struct {
	src      *counterstest.Source
	log      *syncBuffer
	resolver *counters.Resolver
	registry *Registry
}

func newFixture(opts ...Option) *registryFixture {
	f := &registryFixture{src: counterstest.New(), log: &syncBuffer{}}
	l := logger.NewWithWriter(f.log)
	f.resolver = counters.NewResolver(f.src, l)
	f.registry = NewRegistry(f.src, l, opts...)
	return f
}

func (f *registryFixture) pass(patterns ...string) (*Snapshot, PassStats) {
	return f.registry.Reconcile(f.resolver.Resolve(context.Background(), patterns))
}

func countLines(s, substr string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

const (
	availableMBytes = `\Memory\Available MBytes`
	diskWriteTime   = `\PhysicalDisk(*)\Avg. Disk sec/Write`
	disk0           = `\PhysicalDisk(0 C:)\Avg. Disk sec/Write`
	disk1           = `\PhysicalDisk(1 D:)\Avg. Disk sec/Write`
)

func TestReconcile_SingleGauge(t *testing.T) {
	f := newFixture()
	f.src.Add(availableMBytes, counters.TypeNumberOfItems64, 2048)

	snap, stats := f.pass(availableMBytes)

	require.Equal(t, 1, snap.Len())
	e, ok := snap.Get("memory.available_mbytes")
	require.True(t, ok)
	assert.Equal(t, KindGauge, e.Kind)
	assert.Equal(t, "memory", e.Context)
	assert.Equal(t, "available_mbytes", e.Name)
	assert.Empty(t, e.Tags)
	assert.Nil(t, e.Timer)
	assert.Equal(t, PassStats{Resolved: 1, Created: 1}, stats)

	v, err := e.Read()
	require.NoError(t, err)
	assert.Equal(t, 2048.0, v)
	assert.Same(t, snap, f.registry.Snapshot())
}

func TestReconcile_ZeroMatchPattern(t *testing.T) {
	f := newFixture()
	f.src.Expand(`\Process(*)\Working Set`)

	snap, stats := f.pass(`\Process(*)\Working Set`)

	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, PassStats{}, stats)
	assert.NotContains(t, f.log.String(), "ERROR")
}

func TestReconcile_TimerIdentitySurvivesPasses(t *testing.T) {
	f := newFixture()
	f.src.Add(disk0, counters.TypeAverageTimer32, 0.002)
	f.src.Add(disk1, counters.TypeAverageTimer32, 0.004)
	f.src.Expand(diskWriteTime, disk0, disk1)

	first, stats := f.pass(diskWriteTime)
	require.Equal(t, 2, first.Len())
	assert.Equal(t, 2, stats.Created)

	before := make(map[string]*Entry)
	for _, e := range first.Timers() {
		require.NoError(t, e.Sample())
		before[e.Key] = e
	}

	second, stats := f.pass(diskWriteTime)
	assert.Equal(t, PassStats{Resolved: 2, Carried: 2}, stats)
	assert.NotSame(t, first, second)

	for key, old := range before {
		e, ok := second.Get(key)
		require.True(t, ok, key)
		assert.Same(t, old, e)
		assert.Same(t, old.Timer, e.Timer)
		assert.Equal(t, uint64(1), e.Timer.Stats().Count, "samples must not be reset")
	}
	// no reader was reopened
	assert.Equal(t, 1, f.src.LiveReaders(disk0))
	assert.Equal(t, 1, f.src.LiveReaders(disk1))
}

func TestReconcile_VanishedTimerIsTornDown(t *testing.T) {
	f := newFixture()
	f.src.Add(disk0, counters.TypeAverageTimer32, 0.002)
	f.src.Add(disk1, counters.TypeAverageTimer32, 0.004)
	f.src.Expand(diskWriteTime, disk0, disk1)

	first, _ := f.pass(diskWriteTime)
	gone, ok := first.Get("physicaldisk.avg_disk_sec_write.instance=1_d_")
	require.True(t, ok)

	f.src.Remove(disk1)
	second, stats := f.pass(diskWriteTime)

	assert.Equal(t, PassStats{Resolved: 1, Carried: 1, Removed: 1}, stats)
	_, ok = second.Get(gone.Key)
	assert.False(t, ok)
	assert.Equal(t, 0, f.src.LiveReaders(disk1))
	assert.Contains(t, f.log.String(), `ERROR: Counter no longer available: `+disk1)

	// the next fast sample neither visits nor fails on the vanished entry
	var visited []string
	f.registry.ForEachTimer(func(e *Entry) {
		visited = append(visited, e.Key)
		assert.NoError(t, e.Sample())
	})
	assert.Equal(t, []string{"physicaldisk.avg_disk_sec_write.instance=0_c_"}, visited)
	assert.Equal(t, 0, f.src.Reads(disk1))

	// the previous snapshot is untouched by the swap
	assert.Equal(t, 2, first.Len())
}

func TestReconcile_UnsupportedTypeDropped(t *testing.T) {
	f := newFixture()
	base := `\PhysicalDisk(0 C:)\Avg. Disk sec/Write Base`
	f.src.Add(base, counters.TypeAverageBase, 10)

	snap, stats := f.pass(base)

	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, PassStats{Resolved: 1, Dropped: 1}, stats)
	assert.Equal(t, 1, countLines(f.log.String(), "Dropping"))
	assert.Equal(t, 0, f.src.TotalLiveReaders())

	// dropped once, logged once
	_, stats = f.pass(base)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, 1, countLines(f.log.String(), "Dropping"))
}

func TestReconcile_KeyConflictKeepsFirst(t *testing.T) {
	f := newFixture()
	first := `\Process(a b)\Working Set`
	second := `\Process(a_b)\Working Set`
	f.src.Add(first, counters.TypeNumberOfItems64, 1)
	f.src.Add(second, counters.TypeNumberOfItems64, 2)
	f.src.Expand(`\Process(*)\Working Set`, first, second)

	snap, stats := f.pass(`\Process(*)\Working Set`)

	require.Equal(t, 1, snap.Len())
	e, _ := snap.Get("process.working_set.instance=a_b")
	assert.Equal(t, "a b", e.Path.Instance)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, 0, f.src.LiveReaders(second))
	assert.Contains(t, f.log.String(), "WARNING: Counter "+second)
}

func TestReconcile_FailureIsolation(t *testing.T) {
	f := newFixture()
	f.src.Add(`\A\x`, counters.TypeNumberOfItems64, 1)
	f.src.Add(`\B\x`, counters.TypeNumberOfItems64, 1)
	f.src.Add(`\C\x`, counters.TypeNumberOfItems64, 1)
	f.src.FailType(`\B\x`, errors.New("type query failed"))

	snap, stats := f.pass(`\A\x`, `\B\x`, `\C\x`)

	assert.Equal(t, []string{"a.x", "c.x"}, snap.Keys())
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, f.log.String(), "type query failed")
}

func TestReconcile_RetriesFailedPathNextPass(t *testing.T) {
	f := newFixture()
	f.src.Add(`\A\x`, counters.TypeNumberOfItems64, 1)
	f.src.FailType(`\A\x`, errors.New("transient"))

	snap, _ := f.pass(`\A\x`)
	assert.Equal(t, 0, snap.Len())

	f.src.FailType(`\A\x`, nil)
	snap, stats := f.pass(`\A\x`)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 1, stats.Created)
}

func TestEntry_Sample(t *testing.T) {
	f := newFixture()
	f.src.Add(`\System\System Up Time`, counters.TypeElapsedTime, 0.25)

	snap, _ := f.pass(`\System\System Up Time`)
	e, ok := snap.Get("system.system_up_time")
	require.True(t, ok)
	require.Equal(t, KindTimer, e.Kind)

	require.NoError(t, e.Sample())
	assert.Equal(t, 250000.0, e.Timer.Stats().Last)

	boom := errors.New("read failed")
	f.src.SetReadError(`\System\System Up Time`, boom)
	assert.ErrorIs(t, e.Sample(), boom)

	stats := e.Timer.Stats()
	assert.True(t, math.IsNaN(stats.Last))
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, 250000.0, stats.Mean)
}

func TestEntry_SampleGaugeFails(t *testing.T) {
	f := newFixture()
	f.src.Add(availableMBytes, counters.TypeNumberOfItems64, 1)
	snap, _ := f.pass(availableMBytes)

	e, _ := snap.Get("memory.available_mbytes")
	assert.Error(t, e.Sample())
}

func TestRegistry_WithTimerWindow(t *testing.T) {
	f := newFixture(WithTimerWindow(2))
	f.src.Add(`\System\System Up Time`, counters.TypeElapsedTime, 1)

	snap, _ := f.pass(`\System\System Up Time`)
	e, _ := snap.Get("system.system_up_time")
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Sample())
	}
	stats := e.Timer.Stats()
	assert.Equal(t, uint64(5), stats.Count)
	assert.Equal(t, 2, stats.Samples)
}

func TestRegistry_Close(t *testing.T) {
	f := newFixture()
	f.src.Add(availableMBytes, counters.TypeNumberOfItems64, 1)
	f.src.Add(disk0, counters.TypeAverageTimer32, 1)

	f.pass(availableMBytes, disk0)
	require.Equal(t, 2, f.src.TotalLiveReaders())

	f.registry.Close()
	assert.Equal(t, 0, f.src.TotalLiveReaders())
	assert.Equal(t, 0, f.registry.Snapshot().Len())

	// a pass racing with shutdown leaves nothing open behind
	snap, _ := f.pass(availableMBytes, disk0)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, f.src.TotalLiveReaders())

	f.registry.Close()
}

func TestRegistry_SamplingDuringReconcile(t *testing.T) {
	f := newFixture()
	paths := []string{disk0, disk1}
	for _, p := range paths {
		f.src.Add(p, counters.TypeAverageTimer32, 0.001)
	}
	f.src.Expand(diskWriteTime, paths...)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var sampleErrs []error
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			f.registry.ForEachTimer(func(e *Entry) {
				if err := e.Sample(); err != nil {
					sampleErrs = append(sampleErrs, err)
				}
			})
		}
	}()

	for i := 0; i < 50; i++ {
		f.pass(diskWriteTime)
		if i%2 == 0 {
			f.src.Remove(disk1)
		} else {
			f.src.Add(disk1, counters.TypeAverageTimer32, 0.001)
			f.src.Expand(diskWriteTime, paths...)
		}
	}
	close(stop)
	wg.Wait()

	// a removed counter reads ErrGone until the next pass drops it, but a
	// torn-down reader is never read
	for _, err := range sampleErrs {
		assert.ErrorIs(t, err, counterstest.ErrGone)
	}
}

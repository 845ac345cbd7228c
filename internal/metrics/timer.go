package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Timer is the duration aggregator behind TimedValue counters. It keeps the
// most recent samples (microseconds) in a fixed-size ring and computes
// distribution statistics over them on demand.
//
// A failed read is recorded as NaN so the time axis stays consistent; NaN
// samples count towards Failed and are excluded from the statistics.
type Timer struct {
	mu      sync.Mutex
	samples *sampleRing
	count   uint64
	failed  uint64
	now     func() time.Time
}

// sampleRing stores a window of samples using a ring buffer
// for O(1) insert/remove instead of O(n) slice operations
type sampleRing struct {
	points []samplePoint
	max    int // Maximum points to store
	head   int // Index of oldest element
	count  int // Current number of elements
}

type samplePoint struct {
	At    time.Time
	Value float64
}

// TimerStats is a point-in-time view of a Timer
type TimerStats struct {
	Count   uint64    `json:"count"`   // samples ever recorded
	Failed  uint64    `json:"failed"`  // NaN samples ever recorded
	Samples int       `json:"samples"` // valid samples in the window
	Last    float64   `json:"last"`    // newest sample, NaN if it failed
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Mean    float64   `json:"mean"`
	StdDev  float64   `json:"stddev"`
	P50     float64   `json:"p50"`
	P75     float64   `json:"p75"`
	P95     float64   `json:"p95"`
	P99     float64   `json:"p99"`
	Updated time.Time `json:"updated"`
}

// NewTimer creates a timer keeping the last window samples
func NewTimer(window int) *Timer {
	if window <= 0 {
		window = 1
	}
	return &Timer{
		samples: newSampleRing(window),
		now:     time.Now,
	}
}

func newSampleRing(max int) *sampleRing {
	return &sampleRing{
		points: make([]samplePoint, max), // Pre-allocate full size for ring buffer
		max:    max,
	}
}

// Record adds one sample in microseconds
func (t *Timer) Record(us float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count++
	if math.IsNaN(us) {
		t.failed++
	}
	t.samples.add(samplePoint{At: t.now(), Value: us})
}

// RecordFailure records a NaN sample
func (t *Timer) RecordFailure() {
	t.Record(math.NaN())
}

// Stats computes statistics over the current window
func (t *Timer) Stats() TimerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := TimerStats{Count: t.count, Failed: t.failed}
	if t.samples.count == 0 {
		return stats
	}

	newest := t.samples.newest()
	stats.Last = newest.Value
	stats.Updated = newest.At

	values := make([]float64, 0, t.samples.count)
	for _, p := range t.samples.ordered() {
		if !math.IsNaN(p.Value) {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return stats
	}

	// Sort for percentiles
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats.Samples = len(values)
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	stats.Mean = average(values)
	stats.StdDev = stdDev(values)
	stats.P50 = percentile(sorted, 50)
	stats.P75 = percentile(sorted, 75)
	stats.P95 = percentile(sorted, 95)
	stats.P99 = percentile(sorted, 99)
	return stats
}

// add adds a point using ring buffer - O(1) instead of O(n)
func (r *sampleRing) add(point samplePoint) {
	insertIdx := (r.head + r.count) % r.max

	r.points[insertIdx] = point

	if r.count < r.max {
		r.count++
	} else {
		// Buffer is full, move head forward (overwrite oldest)
		r.head = (r.head + 1) % r.max
	}
}

func (r *sampleRing) newest() samplePoint {
	return r.points[(r.head+r.count-1)%r.max]
}

// ordered returns ring buffer points in order (oldest to newest)
func (r *sampleRing) ordered() []samplePoint {
	result := make([]samplePoint, r.count)
	for i := 0; i < r.count; i++ {
		result[i] = r.points[(r.head+i)%r.max]
	}
	return result
}

// Helper functions for statistics

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func percentile(sortedValues []float64, p int) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	index := int(float64(len(sortedValues)-1) * float64(p) / 100.0)
	if index >= len(sortedValues) {
		index = len(sortedValues) - 1
	}
	return sortedValues[index]
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	avg := average(values)
	variance := 0.0

	for _, v := range values {
		diff := v - avg
		variance += diff * diff
	}

	variance /= float64(len(values))
	return math.Sqrt(variance)
}

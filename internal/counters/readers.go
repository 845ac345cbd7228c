package counters

import (
	"sync"
	"time"
)

// rateReader turns a monotonically increasing raw count into a per-second
// rate. Like a freshly opened OS counter, the first read primes the reader
// and returns 0.
type rateReader struct {
	mu     sync.Mutex
	sample func() (float64, error)
	now    func() time.Time
	last   float64
	lastAt time.Time
	primed bool
}

func newRateReader(sample func() (float64, error), now func() time.Time) *rateReader {
	return &rateReader{sample: sample, now: now}
}

func (r *rateReader) Value() (float64, error) {
	v, err := r.sample()
	if err != nil {
		return 0, err
	}
	at := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.primed {
		r.last, r.lastAt, r.primed = v, at, true
		return 0, nil
	}

	rate := 0.0
	elapsed := at.Sub(r.lastAt).Seconds()
	if elapsed > 0 && v >= r.last {
		rate = (v - r.last) / elapsed
	}
	r.last, r.lastAt = v, at
	return rate, nil
}

func (r *rateReader) Close() error { return nil }

// ratioReader reports scale * delta(numerator) / delta(denominator) between
// consecutive reads: busy/total CPU time, or disk time per transfer.
type ratioReader struct {
	mu      sync.Mutex
	sample  func() (num, den float64, err error)
	scale   float64
	lastNum float64
	lastDen float64
	primed  bool
}

func newRatioReader(scale float64, sample func() (num, den float64, err error)) *ratioReader {
	return &ratioReader{sample: sample, scale: scale}
}

func (r *ratioReader) Value() (float64, error) {
	num, den, err := r.sample()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.primed {
		r.lastNum, r.lastDen, r.primed = num, den, true
		return 0, nil
	}

	dNum := num - r.lastNum
	dDen := den - r.lastDen
	r.lastNum, r.lastDen = num, den
	if dDen <= 0 || dNum < 0 {
		return 0, nil
	}
	return r.scale * dNum / dDen, nil
}

func (r *ratioReader) Close() error { return nil }

package counters

import (
	"errors"
	"testing"
	"time"
)

func TestRateReader(t *testing.T) {
	raw := 100.0
	now := time.Unix(1000, 0)
	r := newRateReader(func() (float64, error) { return raw, nil }, func() time.Time { return now })

	v, err := r.Value()
	if err != nil || v != 0 {
		t.Fatalf("first read should prime and return 0, got %v, %v", v, err)
	}

	raw, now = 300, now.Add(2*time.Second)
	if v, _ := r.Value(); v != 100 {
		t.Errorf("expected 100/sec, got %v", v)
	}

	// counter reset
	raw, now = 10, now.Add(time.Second)
	if v, _ := r.Value(); v != 0 {
		t.Errorf("expected 0 after counter reset, got %v", v)
	}
}

func TestRateReader_Error(t *testing.T) {
	boom := errors.New("boom")
	r := newRateReader(func() (float64, error) { return 0, boom }, time.Now)
	if _, err := r.Value(); !errors.Is(err, boom) {
		t.Errorf("expected sample error, got %v", err)
	}
}

func TestRatioReader(t *testing.T) {
	num, den := 10.0, 100.0
	r := newRatioReader(100, func() (float64, float64, error) { return num, den, nil })

	if v, _ := r.Value(); v != 0 {
		t.Fatalf("first read should return 0, got %v", v)
	}

	num, den = 35, 200
	if v, _ := r.Value(); v != 25 {
		t.Errorf("expected 25, got %v", v)
	}

	// no denominator progress
	if v, _ := r.Value(); v != 0 {
		t.Errorf("expected 0 without progress, got %v", v)
	}
}

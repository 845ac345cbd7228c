package metrics

import (
	"errors"

	"perfreporter/internal/counters"
)

// Classification is the semantic kind a native counter type maps to
type Classification int

const (
	// Unsupported counters carry no standalone meaning (denominators of
	// ratio counters) and are dropped.
	Unsupported Classification = iota
	// SimpleValue counters are reported as instantaneous gauges.
	SimpleValue
	// TimedValue counters are sampled into a duration aggregator.
	TimedValue
)

func (c Classification) String() string {
	switch c {
	case Unsupported:
		return "Unsupported"
	case SimpleValue:
		return "SimpleValue"
	case TimedValue:
		return "TimedValue"
	default:
		return "Classification(?)"
	}
}

// ErrUnsupportedType is returned when a counter type is classified Unsupported
var ErrUnsupportedType = errors.New("unsupported counter type")

// classifications lists every type that does not default to SimpleValue.
// Keep it exhaustive over the non-default types; TestClassify_Table walks
// every known type.
var classifications = map[counters.CounterType]Classification{
	counters.TypeAverageBase:      Unsupported,
	counters.TypeCounterMultiBase: Unsupported,
	counters.TypeRawBase:          Unsupported,
	counters.TypeLargeRawBase:     Unsupported,
	counters.TypeSampleBase:       Unsupported,

	counters.TypeAverageTimer32: TimedValue,
	counters.TypeElapsedTime:    TimedValue,
}

// Classify maps a native counter type to its classification. Types that are
// not listed, including ones this build does not know about, are SimpleValue.
func Classify(t counters.CounterType) Classification {
	if c, ok := classifications[t]; ok {
		return c
	}
	return SimpleValue
}

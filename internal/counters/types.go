package counters

import (
	"fmt"
	"sort"
)

// CounterType is the native performance counter type code (the PERF_* values
// reported by the OS in the counter definition).
type CounterType uint32

const (
	TypeNumberOfItemsHEX32       CounterType = 0x00000000 // PERF_COUNTER_RAWCOUNT_HEX
	TypeNumberOfItemsHEX64       CounterType = 0x00000100 // PERF_COUNTER_LARGE_RAWCOUNT_HEX
	TypeText                     CounterType = 0x00000b00 // PERF_COUNTER_TEXT
	TypeNumberOfItems32          CounterType = 0x00010000 // PERF_COUNTER_RAWCOUNT
	TypeNumberOfItems64          CounterType = 0x00010100 // PERF_COUNTER_LARGE_RAWCOUNT
	TypeCounterDelta32           CounterType = 0x00400400 // PERF_COUNTER_DELTA
	TypeCounterDelta64           CounterType = 0x00400500 // PERF_COUNTER_LARGE_DELTA
	TypeSampleCounter            CounterType = 0x00410400 // PERF_SAMPLE_COUNTER
	TypeCountPerTimeInterval32   CounterType = 0x00450400 // PERF_COUNTER_QUEUELEN_TYPE
	TypeCountPerTimeInterval64   CounterType = 0x00450500 // PERF_COUNTER_LARGE_QUEUELEN_TYPE
	Type100NsQueueLen            CounterType = 0x00550500 // PERF_COUNTER_100NS_QUEUELEN_TYPE
	TypeObjTimeQueueLen          CounterType = 0x00650500 // PERF_COUNTER_OBJ_TIME_QUEUELEN_TYPE
	TypeRateOfCountsPerSecond32  CounterType = 0x10410400 // PERF_COUNTER_COUNTER
	TypeRateOfCountsPerSecond64  CounterType = 0x10410500 // PERF_COUNTER_BULK_COUNT
	TypeRawFraction              CounterType = 0x20020400 // PERF_RAW_FRACTION
	TypeLargeRawFraction         CounterType = 0x20020500 // PERF_LARGE_RAW_FRACTION
	TypeCounterTimer             CounterType = 0x20410500 // PERF_COUNTER_TIMER
	TypePrecisionSystemTimer     CounterType = 0x20470500 // PERF_PRECISION_SYSTEM_TIMER
	TypeTimer100Ns               CounterType = 0x20510500 // PERF_100NSEC_TIMER
	TypePrecision100NsTimer      CounterType = 0x20570500 // PERF_PRECISION_100NS_TIMER
	TypeObjTimeTimer             CounterType = 0x20610500 // PERF_OBJ_TIME_TIMER
	TypePrecisionObjectTimer     CounterType = 0x20670500 // PERF_PRECISION_OBJECT_TIMER
	TypeSampleFraction           CounterType = 0x20c20400 // PERF_SAMPLE_FRACTION
	TypeCounterTimerInverse      CounterType = 0x21410500 // PERF_COUNTER_TIMER_INV
	TypeTimer100NsInverse        CounterType = 0x21510500 // PERF_100NSEC_TIMER_INV
	TypeCounterMultiTimer        CounterType = 0x22410500 // PERF_COUNTER_MULTI_TIMER
	TypeCounterMultiTimer100Ns   CounterType = 0x22510500 // PERF_100NSEC_MULTI_TIMER
	TypeCounterMultiTimerInverse CounterType = 0x23410500 // PERF_COUNTER_MULTI_TIMER_INV
	TypeMultiTimer100NsInverse   CounterType = 0x23510500 // PERF_100NSEC_MULTI_TIMER_INV
	TypeAverageTimer32           CounterType = 0x30020400 // PERF_AVERAGE_TIMER
	TypeElapsedTime              CounterType = 0x30240500 // PERF_ELAPSED_TIME
	TypeNoData                   CounterType = 0x40000200 // PERF_COUNTER_NODATA
	TypeAverageCount64           CounterType = 0x40020500 // PERF_AVERAGE_BULK
	TypeSampleBase               CounterType = 0x40030401 // PERF_SAMPLE_BASE
	TypeAverageBase              CounterType = 0x40030402 // PERF_AVERAGE_BASE
	TypeRawBase                  CounterType = 0x40030403 // PERF_RAW_BASE
	TypeLargeRawBase             CounterType = 0x40030500 // PERF_LARGE_RAW_BASE
	TypeCounterMultiBase         CounterType = 0x42030500 // PERF_COUNTER_MULTI_BASE
	TypeHistogram                CounterType = 0x80000000 // PERF_COUNTER_HISTOGRAM_TYPE
)

var counterTypeNames = map[CounterType]string{
	TypeNumberOfItemsHEX32:       "NumberOfItemsHEX32",
	TypeNumberOfItemsHEX64:       "NumberOfItemsHEX64",
	TypeText:                     "Text",
	TypeNumberOfItems32:          "NumberOfItems32",
	TypeNumberOfItems64:          "NumberOfItems64",
	TypeCounterDelta32:           "CounterDelta32",
	TypeCounterDelta64:           "CounterDelta64",
	TypeSampleCounter:            "SampleCounter",
	TypeCountPerTimeInterval32:   "CountPerTimeInterval32",
	TypeCountPerTimeInterval64:   "CountPerTimeInterval64",
	Type100NsQueueLen:            "100NsQueueLen",
	TypeObjTimeQueueLen:          "ObjTimeQueueLen",
	TypeRateOfCountsPerSecond32:  "RateOfCountsPerSecond32",
	TypeRateOfCountsPerSecond64:  "RateOfCountsPerSecond64",
	TypeRawFraction:              "RawFraction",
	TypeLargeRawFraction:         "LargeRawFraction",
	TypeCounterTimer:             "CounterTimer",
	TypePrecisionSystemTimer:     "PrecisionSystemTimer",
	TypeTimer100Ns:               "Timer100Ns",
	TypePrecision100NsTimer:      "Precision100NsTimer",
	TypeObjTimeTimer:             "ObjTimeTimer",
	TypePrecisionObjectTimer:     "PrecisionObjectTimer",
	TypeSampleFraction:           "SampleFraction",
	TypeCounterTimerInverse:      "CounterTimerInverse",
	TypeTimer100NsInverse:        "Timer100NsInverse",
	TypeCounterMultiTimer:        "CounterMultiTimer",
	TypeCounterMultiTimer100Ns:   "CounterMultiTimer100Ns",
	TypeCounterMultiTimerInverse: "CounterMultiTimerInverse",
	TypeMultiTimer100NsInverse:   "CounterMultiTimer100NsInverse",
	TypeAverageTimer32:           "AverageTimer32",
	TypeElapsedTime:              "ElapsedTime",
	TypeNoData:                   "NoData",
	TypeAverageCount64:           "AverageCount64",
	TypeSampleBase:               "SampleBase",
	TypeAverageBase:              "AverageBase",
	TypeRawBase:                  "RawBase",
	TypeLargeRawBase:             "LargeRawBase",
	TypeCounterMultiBase:         "CounterMultiBase",
	TypeHistogram:                "Histogram",
}

func (t CounterType) String() string {
	if name, ok := counterTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CounterType(0x%08x)", uint32(t))
}

// KnownTypes lists every counter type this package has a name for, in
// ascending order
func KnownTypes() []CounterType {
	out := make([]CounterType, 0, len(counterTypeNames))
	for t := range counterTypeNames {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package counters discovers OS performance counters and resolves counter
// path patterns into concrete, currently present counter instances.
package counters

import (
	"fmt"
	"runtime"

	constants "perfreporter/config"
)

// Source is a counter enumeration session.
//
// Open acquires the session and must be paired with Close on every exit
// path. ExpandWildcard, Exists and Parse are the discovery primitives;
// CounterType and OpenReader give the registry what it needs to build a
// metric for a resolved path. A Source is not safe for concurrent discovery
// calls; the scheduler keeps them on one goroutine. Readers it hands out may
// be used from another goroutine.
type Source interface {
	Open() error
	// ExpandWildcard returns the concrete paths matching pattern, in order.
	// A pattern that matches nothing yields an empty slice and no error.
	ExpandWildcard(pattern string) ([]string, error)
	// Exists reports whether a concrete path is currently present. Statuses
	// other than present/not-found are returned as errors.
	Exists(path string) (bool, error)
	Parse(path string) (Path, error)
	CounterType(p Path) (CounterType, error)
	OpenReader(p Path) (Reader, error)
	Close() error
}

// Reader reads the current value of one counter. Value in seconds for
// timer-type counters.
type Reader interface {
	Value() (float64, error)
	Close() error
}

// ReaderFunc adapts a function into a Reader with a no-op Close
type ReaderFunc func() (float64, error)

func (f ReaderFunc) Value() (float64, error) { return f() }

func (f ReaderFunc) Close() error { return nil }

// NewSource builds the counter source selected by kind ("auto", "pdh" or
// "host"), optionally decorated with the synthetic counters. The returned
// source is not yet open.
func NewSource(kind string, synthetic bool) (Source, error) {
	var src Source
	switch kind {
	case constants.SOURCE_AUTO, "":
		if runtime.GOOS == "windows" {
			src = newPDHSource()
		} else {
			src = NewHostSource()
		}
	case constants.SOURCE_PDH:
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("pdh counter source is only available on windows")
		}
		src = newPDHSource()
	case constants.SOURCE_HOST:
		src = NewHostSource()
	default:
		return nil, fmt.Errorf("unknown counter source %q", kind)
	}

	if synthetic {
		src = WithSynthetic(src)
	}
	return src, nil
}

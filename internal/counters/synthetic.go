package counters

import (
	"strings"

	"github.com/shirou/gopsutil/v4/mem"
)

// SyntheticObject is the performance object served by WithSynthetic
const SyntheticObject = "Synthetic"

var availableMBytes = Path{Object: "Memory", Counter: "Available MBytes"}

// syntheticSource adds counters that the OS does not publish itself on top
// of another source. Everything else is delegated.
type syntheticSource struct {
	Source
	counters map[string]syntheticCounter
	order    []string
}

type syntheticCounter struct {
	name string
	kind CounterType
	open func(inner Source) (Reader, error)
}

// WithSynthetic decorates src with the Synthetic object:
//
//	\Synthetic\Used MBytes  total physical memory minus \Memory\Available MBytes
func WithSynthetic(src Source) Source {
	s := &syntheticSource{Source: src, counters: make(map[string]syntheticCounter)}
	s.add(syntheticCounter{name: "Used MBytes", kind: TypeNumberOfItems64, open: openUsedMBytes})
	return s
}

func (s *syntheticSource) add(c syntheticCounter) {
	s.counters[strings.ToLower(c.name)] = c
	s.order = append(s.order, c.name)
}

func (s *syntheticSource) ExpandWildcard(pattern string) ([]string, error) {
	p, err := ParsePath(pattern)
	if err != nil {
		return nil, &ExpansionError{Pattern: pattern, Err: err}
	}
	if !strings.EqualFold(p.Object, SyntheticObject) {
		return s.Source.ExpandWildcard(pattern)
	}
	if p.HasInstance() {
		return nil, nil
	}

	var out []string
	for _, name := range s.order {
		ok, err := globMatch(p.Counter, name)
		if err != nil {
			return nil, &ExpansionError{Pattern: pattern, Err: err}
		}
		if ok {
			out = append(out, Path{Machine: p.Machine, Object: SyntheticObject, Counter: name}.String())
		}
	}
	return out, nil
}

func (s *syntheticSource) Exists(path string) (bool, error) {
	p, err := ParsePath(path)
	if err != nil || !strings.EqualFold(p.Object, SyntheticObject) {
		return s.Source.Exists(path)
	}
	_, ok := s.lookup(p)
	return ok, nil
}

func (s *syntheticSource) CounterType(p Path) (CounterType, error) {
	if !strings.EqualFold(p.Object, SyntheticObject) {
		return s.Source.CounterType(p)
	}
	c, ok := s.lookup(p)
	if !ok {
		return 0, errNotFound
	}
	return c.kind, nil
}

func (s *syntheticSource) OpenReader(p Path) (Reader, error) {
	if !strings.EqualFold(p.Object, SyntheticObject) {
		return s.Source.OpenReader(p)
	}
	c, ok := s.lookup(p)
	if !ok {
		return nil, errNotFound
	}
	return c.open(s.Source)
}

func (s *syntheticSource) lookup(p Path) (syntheticCounter, bool) {
	if p.HasInstance() {
		return syntheticCounter{}, false
	}
	c, ok := s.counters[strings.ToLower(p.Counter)]
	return c, ok
}

// openUsedMBytes reads available memory through the wrapped source so the
// synthetic value agrees with the published counter, falling back to the
// host figure when the source has no such counter.
func openUsedMBytes(inner Source) (Reader, error) {
	available, err := inner.OpenReader(availableMBytes)
	if err != nil {
		available = ReaderFunc(func() (float64, error) {
			v, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return float64(v.Available / mebibyte), nil
		})
	}
	return &usedMBytesReader{available: available}, nil
}

type usedMBytesReader struct {
	available Reader
}

func (r *usedMBytesReader) Value() (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	avail, err := r.available.Value()
	if err != nil {
		return 0, err
	}
	return float64(v.Total/mebibyte) - avail, nil
}

func (r *usedMBytesReader) Close() error {
	return r.available.Close()
}

// Package counterstest provides an in-memory counters.Source for tests.
package counterstest

import (
	"errors"
	"strings"
	"sync"

	"perfreporter/internal/counters"
)

// ErrGone is returned by readers whose counter was removed from the fake
var ErrGone = errors.New("counter is gone")

type fakeCounter struct {
	path   counters.Path
	kind   counters.CounterType
	value  float64
	err    error
	hidden bool
}

// Source is a scripted counters.Source. Concrete paths are registered with
// Add; patterns expand to whatever Expand registered for them, or to the
// pattern itself when it names a registered counter.
type Source struct {
	mu sync.Mutex

	OpenErr error

	counters   map[string]*fakeCounter
	expansions map[string][]string
	expandErrs map[string]error
	existsErrs map[string]error
	parseErrs  map[string]error
	typeErrs   map[string]error

	opened      bool
	closed      int
	liveReaders map[string]int
	reads       map[string]int
}

// New returns an empty fake source
func New() *Source {
	return &Source{
		counters:    make(map[string]*fakeCounter),
		expansions:  make(map[string][]string),
		expandErrs:  make(map[string]error),
		existsErrs:  make(map[string]error),
		parseErrs:   make(map[string]error),
		typeErrs:    make(map[string]error),
		liveReaders: make(map[string]int),
		reads:       make(map[string]int),
	}
}

func key(s string) string { return strings.ToLower(s) }

// Add registers a concrete counter. path must parse with counters.ParsePath.
func (s *Source) Add(path string, kind counters.CounterType, value float64) {
	p, err := counters.ParsePath(path)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key(path)] = &fakeCounter{path: p, kind: kind, value: value}
}

// Remove deletes a counter: it no longer expands, exists or reads
func (s *Source) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key(path))
	for pattern, list := range s.expansions {
		kept := list[:0:0]
		for _, p := range list {
			if !strings.EqualFold(p, path) {
				kept = append(kept, p)
			}
		}
		s.expansions[pattern] = kept
	}
}

// Hide keeps a counter in expansions but makes Exists report it missing,
// like an instance that vanished between expansion and validation
func (s *Source) Hide(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[key(path)]; ok {
		c.hidden = true
	}
}

// Expand scripts the expansion of pattern
func (s *Source) Expand(pattern string, paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expansions[key(pattern)] = append([]string(nil), paths...)
}

// FailExpand makes ExpandWildcard fail for pattern
func (s *Source) FailExpand(pattern string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expandErrs[key(pattern)] = err
}

// FailExists makes Exists fail for path with an unexpected status
func (s *Source) FailExists(path string, code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsErrs[key(path)] = &counters.ValidationError{Path: path, Code: code}
}

// FailParse makes Parse fail for path
func (s *Source) FailParse(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parseErrs[key(path)] = &counters.ParseError{Path: path, Err: err}
}

// FailType makes CounterType fail for path; a nil err clears the failure
func (s *Source) FailType(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.typeErrs, key(path))
		return
	}
	s.typeErrs[key(path)] = err
}

// SetValue changes what readers of path return
func (s *Source) SetValue(path string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[key(path)]; ok {
		c.value, c.err = value, nil
	}
}

// SetReadError makes readers of path fail
func (s *Source) SetReadError(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[key(path)]; ok {
		c.err = err
	}
}

// LiveReaders is the number of open, unclosed readers for path
func (s *Source) LiveReaders(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveReaders[key(path)]
}

// TotalLiveReaders is the number of open readers over all paths
func (s *Source) TotalLiveReaders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.liveReaders {
		n += c
	}
	return n
}

// Reads is how many times any reader of path was read
func (s *Source) Reads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[key(path)]
}

// Closed reports how many times Close was called
func (s *Source) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return &counters.ConnectionError{Err: s.OpenErr}
	}
	s.opened = true
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	s.closed++
	return nil
}

func (s *Source) ExpandWildcard(pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.expandErrs[key(pattern)]; ok {
		return nil, &counters.ExpansionError{Pattern: pattern, Err: err}
	}
	if list, ok := s.expansions[key(pattern)]; ok {
		return append([]string(nil), list...), nil
	}
	if _, ok := s.counters[key(pattern)]; ok {
		return []string{pattern}, nil
	}
	return nil, nil
}

func (s *Source) Exists(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.existsErrs[key(path)]; ok {
		return false, err
	}
	c, ok := s.counters[key(path)]
	return ok && !c.hidden, nil
}

func (s *Source) Parse(path string) (counters.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.parseErrs[key(path)]; ok {
		return counters.Path{}, err
	}
	if c, ok := s.counters[key(path)]; ok {
		return c.path, nil
	}
	return counters.ParsePath(path)
}

func (s *Source) CounterType(p counters.Path) (counters.CounterType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.typeErrs[key(p.String())]; ok {
		return 0, err
	}
	c, ok := s.counters[key(p.String())]
	if !ok {
		return 0, ErrGone
	}
	return c.kind, nil
}

func (s *Source) OpenReader(p counters.Path) (counters.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(p.String())
	if _, ok := s.counters[k]; !ok {
		return nil, ErrGone
	}
	s.liveReaders[k]++
	return &reader{src: s, key: k}, nil
}

type reader struct {
	src    *Source
	key    string
	closed bool
}

func (r *reader) Value() (float64, error) {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()

	if r.closed {
		return 0, errors.New("read after close")
	}
	r.src.reads[r.key]++
	c, ok := r.src.counters[r.key]
	if !ok {
		return 0, ErrGone
	}
	if c.err != nil {
		return 0, c.err
	}
	return c.value, nil
}

func (r *reader) Close() error {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.src.liveReaders[r.key]--
	return nil
}

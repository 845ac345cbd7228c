// Package metrics turns resolved counter paths into live metric entries and
// keeps them reconciled with what the counter source currently exposes.
package metrics

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	constants "perfreporter/config"
	"perfreporter/internal/counters"
	"perfreporter/internal/logger"
)

// Kind is how an entry is reported
type Kind int

const (
	KindGauge Kind = iota
	KindTimer
)

func (k Kind) String() string {
	if k == KindTimer {
		return "timer"
	}
	return "gauge"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Tag is a key=value pair attached to a metric
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entry is one live metric. Timer entries own their aggregator; the pointer
// is carried unchanged across passes while the key keeps resolving.
type Entry struct {
	Key     string
	Context string
	Name    string
	Tags    []Tag
	Kind    Kind
	Path    counters.Path
	Type    counters.CounterType
	Reader  counters.Reader
	Timer   *Timer
}

// Read returns the current raw value of the counter
func (e *Entry) Read() (float64, error) {
	return e.Reader.Value()
}

// Sample reads the counter once into the timer, converting seconds to
// microseconds. A failed read is recorded as NaN and returned.
func (e *Entry) Sample() error {
	if e.Timer == nil {
		return fmt.Errorf("%s is not a timer", e.Key)
	}
	v, err := e.Reader.Value()
	if err != nil {
		e.Timer.RecordFailure()
		return err
	}
	e.Timer.Record(v * constants.MICROSECONDS_PER_SECOND)
	return nil
}

// Snapshot is an immutable key -> entry mapping
type Snapshot struct {
	entries map[string]*Entry
	keys    []string
}

func newSnapshot(entries map[string]*Entry) *Snapshot {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{entries: entries, keys: keys}
}

var emptySnapshot = newSnapshot(map[string]*Entry{})

// Len is the number of entries
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Get looks up an entry by key
func (s *Snapshot) Get(key string) (*Entry, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entries[key]
	return e, ok
}

// Entries returns every entry ordered by key
func (s *Snapshot) Entries() []*Entry {
	if s == nil {
		return nil
	}
	out := make([]*Entry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.entries[k])
	}
	return out
}

// Timers returns the timer entries ordered by key
func (s *Snapshot) Timers() []*Entry {
	if s == nil {
		return nil
	}
	var out []*Entry
	for _, k := range s.keys {
		if e := s.entries[k]; e.Kind == KindTimer {
			out = append(out, e)
		}
	}
	return out
}

// Keys returns the sorted keys
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

// PassStats summarizes one reconciliation pass
type PassStats struct {
	Resolved  int // paths handed to the pass
	Created   int // new entries
	Carried   int // entries reused from the previous snapshot
	Removed   int // previous entries torn down
	Dropped   int // unsupported counter types
	Conflicts int // distinct paths colliding on a key already taken
	Failed    int // paths whose entry could not be built
}

// Option configures a Registry
type Option func(*Registry)

// WithTimerWindow sets how many samples each timer keeps
func WithTimerWindow(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.window = n
		}
	}
}

// Registry holds the current snapshot and reconciles it on every discovery
// pass. Reconcile must be called from a single goroutine; Snapshot and
// ForEachTimer are safe from any goroutine.
type Registry struct {
	source counters.Source
	log    *logger.Logger
	window int

	// dropped remembers unsupported keys so they are logged once
	dropped map[string]struct{}

	mu      sync.RWMutex
	current *Snapshot
	closed  bool
}

// NewRegistry creates an empty registry over an open source
func NewRegistry(source counters.Source, log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		source:  source,
		log:     log,
		window:  constants.DEFAULT_TIMER_WINDOW,
		dropped: make(map[string]struct{}),
		current: emptySnapshot,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current snapshot
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// ForEachTimer calls fn for every timer entry of the current snapshot. The
// snapshot cannot be swapped, nor its readers closed, until fn returns for
// the last entry.
func (r *Registry) ForEachTimer(fn func(*Entry)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.current.Timers() {
		fn(e)
	}
}

// Reconcile runs one pass over the resolved paths: entries whose key is
// still resolved are carried forward untouched, new keys get a fresh entry,
// and entries that were not resolved again are torn down. The new snapshot
// becomes visible in a single swap.
func (r *Registry) Reconcile(paths iter.Seq[counters.Path]) (*Snapshot, PassStats) {
	var stats PassStats

	prev := r.Snapshot()
	next := make(map[string]*Entry)
	dropped := make(map[string]struct{})

	for p := range paths {
		stats.Resolved++
		key := MetricKey(p)

		if taken, ok := next[key]; ok {
			if !strings.EqualFold(taken.Path.String(), p.String()) {
				r.log.Warning("Counter %s maps to %s already used by %s, keeping the first", p, key, taken.Path)
				stats.Conflicts++
			}
			continue
		}
		if _, ok := dropped[key]; ok {
			continue
		}

		if e, ok := prev.Get(key); ok {
			next[key] = e
			stats.Carried++
			continue
		}

		if _, ok := r.dropped[key]; ok {
			dropped[key] = struct{}{}
			stats.Dropped++
			continue
		}

		e, err := r.build(key, p)
		if errors.Is(err, ErrUnsupportedType) {
			r.log.Info("Dropping %s: %v", p, err)
			dropped[key] = struct{}{}
			stats.Dropped++
			continue
		}
		if err != nil {
			r.log.Error("Failed to register %s: %v", p, err)
			stats.Failed++
			continue
		}
		next[key] = e
		stats.Created++
	}

	snap := newSnapshot(next)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropped = dropped
	if r.closed {
		for _, e := range snap.entries {
			if _, reused := prev.entries[e.Key]; !reused {
				r.closeEntry(e)
			}
		}
		return r.current, stats
	}

	old := r.current
	r.current = snap
	// Readers are closed under the write lock so an in-flight fast sample
	// never reads a closed reader.
	for _, key := range old.keys {
		e := old.entries[key]
		if next[key] == e {
			continue
		}
		r.log.Error("Counter no longer available: %s", e.Path)
		r.closeEntry(e)
		stats.Removed++
	}
	return snap, stats
}

// build classifies p and opens its reader
func (r *Registry) build(key string, p counters.Path) (e *Entry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e, err = nil, fmt.Errorf("panic while building entry: %v", rec)
		}
	}()

	typ, err := r.source.CounterType(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read counter type: %w", err)
	}

	class := Classify(typ)
	if class == Unsupported {
		return nil, fmt.Errorf("%w %s", ErrUnsupportedType, typ)
	}

	reader, err := r.source.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}

	e = &Entry{
		Key:     key,
		Context: Context(p),
		Name:    Sanitize(p.Counter),
		Kind:    KindGauge,
		Path:    p,
		Type:    typ,
		Reader:  reader,
	}
	if p.HasInstance() {
		e.Tags = []Tag{{Key: "instance", Value: Sanitize(p.InstanceLabel())}}
	}
	if class == TimedValue {
		e.Kind = KindTimer
		e.Timer = NewTimer(r.window)
	}
	return e, nil
}

func (r *Registry) closeEntry(e *Entry) {
	if err := e.Reader.Close(); err != nil {
		r.log.Warning("Failed to close reader for %s: %v", e.Path, err)
	}
}

// Close tears down every entry. Later passes do not register anything.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.current.Entries() {
		r.closeEntry(e)
	}
	r.current = emptySnapshot
}

// Package scheduler drives the two periodic tasks of the reporter: fast
// sampling of timer counters and the slower discovery and report pass.
package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"

	"perfreporter/internal/logger"
)

// Repeater runs a task every interval on a single goroutine, so executions
// never overlap. Ticks that fire while the task runs are coalesced.
type Repeater struct {
	// interval must be greater than zero; the ticker panics otherwise
	interval time.Duration

	name string
	log  *logger.Logger

	task func(context.Context) error

	cancel  context.CancelFunc
	stopped chan struct{}

	force chan struct{}
	clock clockwork.Clock
}

type RepeaterOption func(r *Repeater)

func WithName(name string) RepeaterOption {
	return func(r *Repeater) {
		r.name = name
	}
}

func WithClock(clock clockwork.Clock) RepeaterOption {
	return func(r *Repeater) {
		r.clock = clock
	}
}

func WithLogger(log *logger.Logger) RepeaterOption {
	return func(r *Repeater) {
		r.log = log
	}
}

type event string

const (
	eventTick  = event("tick")
	eventForce = event("force")
)

// NewRepeater creates a repeater. Nothing runs until Run or Start.
func NewRepeater(interval time.Duration, task func(ctx context.Context) error, opts ...RepeaterOption) *Repeater {
	r := &Repeater{
		interval: interval,
		name:     "repeater",
		task:     task,
		force:    make(chan struct{}, 1),
		clock:    clockwork.NewRealClock(),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Start runs the repeater in the background until Stop
func (r *Repeater) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.stopped = make(chan struct{})
	go func() {
		defer close(r.stopped)
		r.Run(ctx)
	}()
}

// Stop cancels a started repeater and waits for the in-flight execution
func (r *Repeater) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.stopped
}

// Force requests an execution as soon as the current one, if any, finishes
func (r *Repeater) Force() {
	select {
	case r.force <- struct{}{}:
	default:
	}
}

// Run executes the task on every tick or force until ctx is done. Task
// errors are logged and never stop the loop.
func (r *Repeater) Run(ctx context.Context) error {
	tick := r.clock.NewTicker(r.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-tick.Chan():
			r.wakeUp(ctx, eventTick)

		case <-r.force:
			r.wakeUp(ctx, eventForce)
		}
	}
}

func (r *Repeater) wakeUp(ctx context.Context, e event) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("%s panicked on %s: %v\n%s", r.name, e, rec, debug.Stack())
		}
	}()

	if err := r.task(ctx); err != nil {
		if ctx.Err() == nil {
			r.log.Error("%s failed on %s: %v", r.name, e, err)
		}
		return
	}

	// a force that arrived while running is satisfied by this execution
	select {
	case <-r.force:
	default:
	}
}

package scheduler

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"perfreporter/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRepeater_Ticks(t *testing.T) {
	interval := time.Second
	clock := clockwork.NewFakeClock()
	wakeUps := make(chan struct{})

	r := NewRepeater(interval, func(context.Context) error {
		wakeUps <- struct{}{}
		return nil
	}, WithClock(clock))
	r.Start(context.Background())
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(interval)
		select {
		case <-wakeUps:
		case <-ctx.Done():
			t.Fatalf("no wake up for tick %d", i)
		}
	}
}

func TestRepeater_Force(t *testing.T) {
	clock := clockwork.NewFakeClock()
	wakeUps := make(chan struct{}, 1)

	r := NewRepeater(time.Hour, func(context.Context) error {
		wakeUps <- struct{}{}
		return nil
	}, WithClock(clock))
	r.Force()
	r.Start(context.Background())
	defer r.Stop()

	select {
	case <-wakeUps:
	case <-time.After(5 * time.Second):
		t.Fatal("forced execution did not run")
	}
}

func TestRepeater_NoWakeUpsAfterStop(t *testing.T) {
	interval := time.Millisecond
	clock := clockwork.NewFakeClock()
	wakeUpStart := make(chan struct{})
	wakeUpDone := make(chan struct{})

	r := NewRepeater(interval, func(context.Context) error {
		wakeUpStart <- struct{}{}
		<-wakeUpDone
		return nil
	}, WithClock(clock))
	r.Start(context.Background())

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(interval)
	<-wakeUpStart

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	// Stop waits for the in-flight execution
	select {
	case <-stopped:
		t.Fatal("Stop returned while the task was running")
	case <-time.After(20 * time.Millisecond):
	}
	wakeUpDone <- struct{}{}
	<-stopped

	clock.Advance(10 * interval)
	select {
	case <-wakeUpStart:
		t.Fatal("unexpected wake up after stop")
	default:
	}
}

func TestRepeater_ErrorsAndPanicsAreLogged(t *testing.T) {
	var buf syncBuffer
	clock := clockwork.NewFakeClock()
	calls := make(chan int, 3)
	n := 0

	r := NewRepeater(time.Second, func(context.Context) error {
		n++
		calls <- n
		switch n {
		case 1:
			return errors.New("collector down")
		case 2:
			panic("bad counter")
		}
		return nil
	}, WithName("discovery"), WithClock(clock), WithLogger(logger.NewWithWriter(&buf)))
	r.Start(context.Background())
	defer r.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 1; i <= 3; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
		select {
		case got := <-calls:
			assert.Equal(t, i, got)
		case <-ctx.Done():
			t.Fatalf("loop stopped after call %d", i-1)
		}
	}

	require.Eventually(t, func() bool {
		out := buf.String()
		return strings.Contains(out, "ERROR: discovery failed on tick: collector down") &&
			strings.Contains(out, "ERROR: discovery panicked on tick: bad counter")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRepeater_StopWithoutStart(t *testing.T) {
	r := NewRepeater(time.Second, func(context.Context) error { return nil })
	r.Stop()
}

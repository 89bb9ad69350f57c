package render

import (
	"context"
	"errors"
	"time"
)

// Clock is the time source of a Loop.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Frame describes one tick of a Loop.
type Frame struct {
	// Index counts frames from zero.
	Index uint64
	// Time is the time elapsed since the first frame.
	Time time.Duration
	// Delta is the time elapsed since the previous frame, zero for the
	// first.
	Delta time.Duration
}

type listener struct {
	id int
	fn func(Frame) error
}

// Loop drives per-frame listeners. It owns no global state; the
// application creates one and decides how to tick it: Step for a single
// deterministic frame, Run for a fixed-rate loop.
type Loop struct {
	clock     Clock
	interval  time.Duration
	listeners []listener
	nextID    int

	started bool
	start   time.Time
	last    time.Time
	frames  uint64
}

// NewLoop creates a loop ticking at fps frames per second. A nil clock uses
// the wall clock.
func NewLoop(clock Clock, fps int) *Loop {
	if clock == nil {
		clock = SystemClock()
	}
	if fps <= 0 {
		fps = 60
	}
	return &Loop{clock: clock, interval: time.Second / time.Duration(fps)}
}

// Interval returns the time between frames in Run.
func (l *Loop) Interval() time.Duration { return l.interval }

// OnFrame registers fn to run every frame, in registration order. The
// returned function unregisters it.
func (l *Loop) OnFrame(fn func(Frame) error) (remove func()) {
	id := l.nextID
	l.nextID++
	l.listeners = append(l.listeners, listener{id: id, fn: fn})
	return func() {
		for i, ls := range l.listeners {
			if ls.id == id {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of registered listeners.
func (l *Loop) Listeners() int { return len(l.listeners) }

// Step runs one frame. Every listener runs even if an earlier one failed;
// their errors are joined.
func (l *Loop) Step() (Frame, error) {
	now := l.clock.Now()
	if !l.started {
		l.started = true
		l.start = now
		l.last = now
	}
	f := Frame{Index: l.frames, Time: now.Sub(l.start), Delta: now.Sub(l.last)}
	l.last = now
	l.frames++

	var errs []error
	for _, ls := range append([]listener(nil), l.listeners...) {
		if err := ls.fn(f); err != nil {
			errs = append(errs, err)
		}
	}
	return f, errors.Join(errs...)
}

// Run steps the loop at its frame rate until ctx is done or a listener
// fails. It returns ctx.Err() on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	if _, err := l.Step(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := l.Step(); err != nil {
				return err
			}
		}
	}
}

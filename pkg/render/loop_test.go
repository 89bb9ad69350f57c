package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/lumen/pkg/scene"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLoopStep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	loop := NewLoop(clock, 60)

	var frames []Frame
	loop.OnFrame(func(f Frame) error {
		frames = append(frames, f)
		return nil
	})

	_, err := loop.Step()
	require.NoError(t, err)
	clock.advance(16 * time.Millisecond)
	_, err = loop.Step()
	require.NoError(t, err)
	clock.advance(20 * time.Millisecond)
	f, err := loop.Step()
	require.NoError(t, err)

	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Index: 0}, frames[0])
	assert.Equal(t, Frame{Index: 1, Time: 16 * time.Millisecond, Delta: 16 * time.Millisecond}, frames[1])
	assert.Equal(t, Frame{Index: 2, Time: 36 * time.Millisecond, Delta: 20 * time.Millisecond}, f)
}

func TestLoopListenerOrderAndRemoval(t *testing.T) {
	loop := NewLoop(&fakeClock{}, 30)
	var order []string
	loop.OnFrame(func(Frame) error { order = append(order, "a"); return nil })
	remove := loop.OnFrame(func(Frame) error { order = append(order, "b"); return nil })
	loop.OnFrame(func(Frame) error { order = append(order, "c"); return nil })

	_, _ = loop.Step()
	remove()
	_, _ = loop.Step()

	assert.Equal(t, []string{"a", "b", "c", "a", "c"}, order)
	assert.Equal(t, 2, loop.Listeners())
}

func TestLoopJoinsErrors(t *testing.T) {
	loop := NewLoop(&fakeClock{}, 30)
	errA := errors.New("a")
	ran := false
	loop.OnFrame(func(Frame) error { return errA })
	loop.OnFrame(func(Frame) error { ran = true; return nil })

	_, err := loop.Step()
	require.ErrorIs(t, err, errA)
	assert.True(t, ran, "later listeners still run")
}

func TestLoopRunCancel(t *testing.T) {
	loop := NewLoop(nil, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	loop.OnFrame(func(Frame) error {
		n++
		if n == 3 {
			cancel()
		}
		return nil
	})

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, n, 3)
}

func TestLoopRunStopsOnError(t *testing.T) {
	loop := NewLoop(nil, 1000)
	boom := errors.New("boom")
	loop.OnFrame(func(Frame) error { return boom })

	assert.ErrorIs(t, loop.Run(context.Background()), boom)
}

func TestLoopDrivesRenderer(t *testing.T) {
	_, r, _ := setup(t)
	clock := &fakeClock{}
	loop := NewLoop(clock, 60)
	loop.OnFrame(func(f Frame) error { return r.Render(f.Time) })

	clock.advance(time.Second)
	_, err := loop.Step()
	require.NoError(t, err)
	clock.advance(500 * time.Millisecond)
	_, err = loop.Step()
	require.NoError(t, err)

	assert.Equal(t, float32(0.5), r.windowBlock.Float(scene.WindowTime))
}

package game

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop(t *testing.T) {
	l := newLoop(zerolog.Nop(), clockwork.NewFakeClock())
	defer l.stop()

	var got []int
	for i := range 5 {
		require.True(t, l.post(func() { got = append(got, i) }))
	}
	require.True(t, l.post(func() { panic("boom") }))

	require.NoError(t, l.do(context.Background(), func() error { return nil }))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got, "handlers run in order and survive a panic")
}

func TestLoop_Stopped(t *testing.T) {
	l := newLoop(zerolog.Nop(), clockwork.NewFakeClock())
	l.stop()
	l.stop()

	assert.False(t, l.post(func() {}))
	assert.ErrorIs(t, l.do(context.Background(), func() error { return nil }), errClosed)
}

func TestLoop_DoHonorsContext(t *testing.T) {
	l := newLoop(zerolog.Nop(), clockwork.NewFakeClock())
	defer l.stop()

	block := make(chan struct{})
	defer close(block)
	l.post(func() { <-block })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.do(ctx, func() error { return nil }), context.Canceled)
}

func TestLoop_Timer(t *testing.T) {
	clk := clockwork.NewFakeClock()
	l := newLoop(zerolog.Nop(), clk)
	defer l.stop()

	ctx := context.Background()
	var fired []string
	schedule := func(name string) {
		require.NoError(t, l.do(ctx, func() error {
			l.schedule(time.Second, func() { fired = append(fired, name) })
			return nil
		}))
	}

	schedule("replaced")
	schedule("a")
	clk.Advance(500 * time.Millisecond)
	require.NoError(t, l.do(ctx, func() error { return nil }))
	assert.Empty(t, fired)

	clk.Advance(500 * time.Millisecond)
	require.NoError(t, l.do(ctx, func() error { return nil }))
	assert.Equal(t, []string{"a"}, fired, "a due timer runs before work posted after it")

	schedule("cancelled")
	clk.Advance(time.Second)
	require.NoError(t, l.do(ctx, func() error {
		l.cancel()
		return nil
	}))
	assert.Equal(t, []string{"a", "cancelled"}, fired, "the expiry was due before cancel was posted")

	schedule("b")
	require.NoError(t, l.do(ctx, func() error {
		l.cancel()
		return nil
	}))
	clk.Advance(time.Second)
	require.NoError(t, l.do(ctx, func() error { return nil }))
	assert.Equal(t, []string{"a", "cancelled"}, fired)
}

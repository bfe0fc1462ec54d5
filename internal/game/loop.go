package game

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const queueSize = 1024

// loop runs the handlers of one process one at a time, in the order they
// were posted. Transport deliveries, timer expiries and caller actions all
// go through it, so process state needs no locking.
type loop struct {
	log   zerolog.Logger
	clock clockwork.Clock
	queue chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	once sync.Once

	// timer and fire belong to the loop goroutine.
	timer clockwork.Timer
	fire  func()
}

func newLoop(log zerolog.Logger, clk clockwork.Clock) *loop {
	l := &loop{
		log:   log,
		clock: clk,
		queue: make(chan func(), queueSize),
		quit:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.quit:
			return
		case <-l.timerC():
			l.expire()
		case f := <-l.queue:
			// a timer that was due before f was posted runs first
			select {
			case <-l.timerC():
				l.expire()
			default:
			}
			l.call(f)
		}
	}
}

func (l *loop) timerC() <-chan time.Time {
	if l.timer == nil {
		return nil
	}
	return l.timer.Chan()
}

func (l *loop) expire() {
	f := l.fire
	l.timer, l.fire = nil, nil
	l.call(f)
}

// schedule replaces the pending timer with one that runs f after d. Only the
// loop goroutine may call it.
func (l *loop) schedule(d time.Duration, f func()) {
	l.cancel()
	l.timer, l.fire = l.clock.NewTimer(d), f
}

// cancel drops the pending timer. An expiry already due is never run.
func (l *loop) cancel() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer, l.fire = nil, nil
	}
}

func (l *loop) call(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Err(fmt.Errorf("%v, stack: %s", r, debug.Stack())).
				Msg("handler panic")
		}
	}()

	f()
}

// post queues f. It reports false once the loop has stopped.
func (l *loop) post(f func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}

	select {
	case l.queue <- f:
		return true
	case <-l.quit:
		return false
	}
}

// do runs f on the loop and waits for it. It must not be called from inside
// the loop.
func (l *loop) do(ctx context.Context, f func() error) error {
	done := make(chan error, 1)

	if !l.post(func() { done <- f() }) {
		return errClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return errClosed
	}
}

// stop drops queued handlers and waits for the running one to return.
func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
	l.wg.Wait()
}

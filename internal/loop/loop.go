// Package loop provides the single-goroutine event loop on which signing and
// every transfer callback run.
package loop

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Loop runs posted functions one at a time in FIFO order.
type Loop struct {
	mu        sync.Mutex
	queue     []func()
	closed    bool
	wake      chan struct{}
	done      chan struct{}
	cancel    context.CancelFunc
	processed int64
	started   atomic.Bool
}

// New creates a stopped loop. Functions posted before Start are kept.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	go l.run(ctx)

	log.Printf("[loop] started")
}

// Post queues fn. It returns false once Stop has been called.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// run is the loop goroutine.
func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	for {
		if fn, ok := l.next(); ok {
			l.invoke(fn)
			continue
		}

		l.mu.Lock()
		finished := l.closed && len(l.queue) == 0
		l.mu.Unlock()
		if finished {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// invoke runs fn; a panicking callback is logged instead of killing the loop.
func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[loop] callback panicked: %v\n%s", r, debug.Stack())
		}
		atomic.AddInt64(&l.processed, 1)
	}()
	fn()
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Processed returns the number of functions run so far.
func (l *Loop) Processed() int64 {
	return atomic.LoadInt64(&l.processed)
}

// Drain waits until the queue is empty or timeout elapses.
func (l *Loop) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	for l.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if remaining := l.Pending(); remaining > 0 {
		log.Printf("[loop] drain timeout with %d callbacks still queued", remaining)
	}
}

// Stop refuses new work, runs what is already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	if l.started.Load() {
		<-l.done
		l.cancel()
	}

	log.Printf("[loop] stopped after %d callbacks", l.Processed())
}

// Immediate runs posted functions on the caller's goroutine.
type Immediate struct{}

// Post runs fn right away.
func (Immediate) Post(fn func()) bool {
	fn()
	return true
}

package trayitem

import (
	"context"
	"sync"
)

// Dispatcher runs functions on the control thread that owns item state.
type Dispatcher interface {
	// Post queues fn to run after everything already queued. It must not
	// block the caller and must be safe to call from any goroutine.
	Post(fn func())
}

// Loop is a [Dispatcher] that runs posted functions on the goroutine calling
// [Loop.Run], in the order they were posted.
type Loop struct {
	mu    sync.Mutex
	queue []func()

	// wake is signalled when queue becomes non-empty.
	wake chan struct{}
}

// NewLoop returns a new [Loop].
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn. The queue is unbounded, so Post never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run runs posted functions until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fn, ok := l.next()
		if ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// next pops the oldest posted function.
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

// Defer queues fn for the next turn of d. It is used where an action must run
// after the events currently being handled, such as hiding a menu only after
// the clicked entry was activated.
func Defer(d Dispatcher, fn func()) {
	d.Post(fn)
}

package driver

import (
	"context"
	"sync"

	"github.com/robotalks/firmata.go/pkg/firmata"
)

// QueueSize is the capacity of the command queue. Senders block while
// the queue is full.
const QueueSize = 50

// commandQueue is a bounded multi-producer queue. It is closed when the
// last handle referring to it is closed. ch itself is never closed so a
// blocked send never holds the lock; closing signals the consumer to
// drain what is left.
type commandQueue struct {
	ch      chan firmata.Command
	closing chan struct{}
	done    chan struct{}

	lock   sync.Mutex
	refs   int
	closed bool
	once   sync.Once
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		ch:      make(chan firmata.Command, QueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (q *commandQueue) acquire() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return false
	}
	q.refs++
	return true
}

func (q *commandQueue) release() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return
	}
	if q.refs--; q.refs <= 0 {
		q.closed = true
		close(q.closing)
	}
}

func (q *commandQueue) send(ctx context.Context, cmd firmata.Command) error {
	q.lock.Lock()
	closed := q.closed
	q.lock.Unlock()
	if closed {
		return firmata.ErrClosed
	}
	select {
	case <-q.done:
		return firmata.ErrClosed
	case <-q.closing:
		return firmata.ErrClosed
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	case <-q.done:
		return firmata.ErrClosed
	case <-q.closing:
		return firmata.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pending removes the next command without blocking.
func (q *commandQueue) pending() (firmata.Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return nil, false
	}
}

// stop is called by the driver when it no longer consumes the queue.
func (q *commandQueue) stop() {
	q.once.Do(func() { close(q.done) })
}

package serial

import (
	"io"
	"os"
	"sync"
	"time"
)

// Conn adds read deadlines to a port. The port is read by a background
// goroutine, so a Read can give up at the deadline while the port read
// stays pending; the data is kept for the next Read.
type Conn struct {
	Port io.ReadWriteCloser

	chunks  chan chunk
	done    chan struct{}
	pending []byte
	readErr error

	lock      sync.Mutex
	deadline  time.Time
	closeOnce sync.Once
}

type chunk struct {
	data []byte
	err  error
}

const chunkSize = 256

// NewConn wraps port and starts reading from it.
func NewConn(port io.ReadWriteCloser) *Conn {
	c := &Conn{
		Port:   port,
		chunks: make(chan chunk),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	for {
		buf := make([]byte, chunkSize)
		n, err := c.Port.Read(buf)
		if n == 0 && err == nil {
			continue
		}
		select {
		case c.chunks <- chunk{data: buf[:n], err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// SetReadDeadline implements the deadline of net.Conn for reads. A zero
// value disables the deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.lock.Lock()
	c.deadline = t
	c.lock.Unlock()
	return nil
}

// Read returns buffered data first, then waits for the port. It returns
// os.ErrDeadlineExceeded when the deadline passes.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}
		c.lock.Lock()
		deadline := c.deadline
		c.lock.Unlock()
		var timeout <-chan time.Time
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return 0, os.ErrDeadlineExceeded
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case ch := <-c.chunks:
			c.pending, c.readErr = ch.data, ch.err
		case <-timeout:
			return 0, os.ErrDeadlineExceeded
		case <-c.done:
			return 0, os.ErrClosed
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	if n == 0 && c.readErr != nil {
		return 0, c.readErr
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.Port.Write(p)
}

// Close closes the port and releases pending reads.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.Port.Close()
}

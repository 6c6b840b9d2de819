// Package firmatatest provides a fake board for tests of packages built
// on the driver.
package firmatatest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata/driver"
	"github.com/stretchr/testify/require"
)

// Timeout bounds every wait of the helpers.
const Timeout = 2 * time.Second

// HandshakeFrames answers the handshake with firmware "T" 2.5 and 4 pins:
// 0-1 digital (input, output, PWM on 0), 2-3 analog (input, analog).
var HandshakeFrames = []byte{
	0xF0, 0x79, 0x02, 0x05, 'T', 0, 0xF7,
	0xF0, 0x6C,
	0x00, 0x01, 0x01, 0x01, 0x03, 0x08, 0x7F,
	0x00, 0x01, 0x01, 0x01, 0x7F,
	0x00, 0x01, 0x02, 0x0A, 0x7F,
	0x00, 0x01, 0x02, 0x0A, 0x7F,
	0xF7,
	0xF0, 0x6A, 0x7F, 0x7F, 0x00, 0x01, 0xF7,
}

// Conn is the host side of a fake board. Bytes injected by the board are
// read by the host; each host Write is captured in Writes.
type Conn struct {
	*io.PipeReader
	Board  *io.PipeWriter
	Writes chan []byte
}

// NewConn creates a Conn.
func NewConn() *Conn {
	r, w := io.Pipe()
	return &Conn{PipeReader: r, Board: w, Writes: make(chan []byte, 64)}
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	c.Writes <- append([]byte(nil), p...)
	return len(p), nil
}

// Inject sends bytes from the board without blocking the caller.
func (c *Conn) Inject(p ...byte) {
	go c.Board.Write(p)
}

// Expect waits for the next host write and checks it.
func (c *Conn) Expect(t testing.TB, p ...byte) {
	t.Helper()
	select {
	case w := <-c.Writes:
		require.Equal(t, p, w)
	case <-time.After(Timeout):
		t.Fatalf("expect % x: timeout", p)
	}
}

// Board is a running driver over a fake board.
type Board struct {
	Conn   *Conn
	Driver *driver.Driver
	// Stop cancels the driver and waits for Run to return.
	Stop func() error
}

// Start handshakes a driver with the fake board and runs it until the
// test ends.
func Start(t testing.TB) *Board {
	t.Helper()
	b := &Board{Conn: NewConn()}
	b.Driver = driver.New(b.Conn)
	b.Conn.Inject(HandshakeFrames...)
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	require.NoError(t, b.Driver.Handshake(ctx))
	<-b.Conn.Writes

	// keep the driver alive while the test hands out handles.
	keep := b.Driver.Handle()
	runCtx, stop := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- b.Driver.Run(runCtx) }()
	var err error
	stopped := false
	b.Stop = func() error {
		if !stopped {
			stopped = true
			stop()
			err = <-runErr
			keep.Close()
		}
		return err
	}
	t.Cleanup(func() {
		b.Stop()
		b.Conn.Board.Close()
	})
	return b
}

package board

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

// readDeadliner is implemented by transports supporting read deadlines,
// e.g. net.Conn.
type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

// Read waits up to timeout for a frame header, then blocks until the rest
// of the frame arrives, applies the message and returns its kind.
// ErrTimeout is returned if no header is seen in time.
//
// The timeout can only be honored if the transport supports read
// deadlines or returns from Read without data from time to time.
func (b *Board) Read(timeout time.Duration) (firmata.MessageID, error) {
	msg, err := b.readMessage(timeout)
	if err != nil {
		return 0, err
	}
	state, err := b.state.Apply(msg)
	if err != nil {
		return 0, err
	}
	b.state = state
	return msg.ID(), nil
}

// Poll performs n reads. Timeouts are ignored, any other error stops
// polling.
func (b *Board) Poll(n int) error {
	for i := 0; i < n; i++ {
		if _, err := b.Read(b.Timeout); err != nil && !errors.Is(err, firmata.ErrTimeout) {
			return err
		}
	}
	return nil
}

func (b *Board) readMessage(timeout time.Duration) (firmata.Message, error) {
	header, err := b.readHeader(timeout)
	if err != nil {
		return nil, err
	}
	frame := []byte{header}
	if header == firmata.StartSysex {
		frame, err = b.readSysex(frame)
	} else {
		frame = append(frame, 0, 0)
		_, err = io.ReadFull(b.rw, frame[1:])
		if err != nil {
			err = &firmata.IOError{Op: "read", Err: err}
		}
	}
	if err != nil {
		return nil, err
	}
	return firmata.ParseFrame(frame)
}

func (b *Board) readHeader(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := b.rw.(readDeadliner); ok {
		if err := dl.SetReadDeadline(deadline); err != nil {
			return 0, &firmata.IOError{Op: "set deadline", Err: err}
		}
		defer dl.SetReadDeadline(time.Time{})
	}
	for {
		n, err := b.rw.Read(b.hdr[:])
		if err != nil && !os.IsTimeout(err) {
			return 0, &firmata.IOError{Op: "read", Err: err}
		}
		if n == 1 {
			if firmata.IsFrameStart(b.hdr[0]) {
				return b.hdr[0], nil
			}
			glog.V(4).Infof("board: skip byte %#02x", b.hdr[0])
		}
		if !time.Now().Before(deadline) {
			return 0, fmt.Errorf("%w: no frame header within %s", firmata.ErrTimeout, timeout)
		}
	}
}

// readSysex reads up to and including the end sentinel. A frame header
// inside the payload means the end sentinel was lost.
func (b *Board) readSysex(frame []byte) ([]byte, error) {
	for len(frame) < firmata.BufferSize {
		if _, err := io.ReadFull(b.rw, b.hdr[:]); err != nil {
			return nil, &firmata.IOError{Op: "read", Err: err}
		}
		c := b.hdr[0]
		frame = append(frame, c)
		if c == firmata.EndSysex {
			return frame, nil
		}
		if firmata.IsFrameStart(c) {
			return nil, &firmata.ParseError{Context: "unexpected frame header inside system message", Data: frame[1:]}
		}
	}
	return nil, &firmata.ParseError{Context: "system message too long", Data: frame[1:]}
}

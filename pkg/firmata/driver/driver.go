// Package driver is the concurrent Firmata engine.
//
// A Driver exclusively owns the transport and the board state. Any number
// of Handles send commands to it through a bounded queue and observe the
// board through published snapshots.
package driver

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

// Driver runs one board connection.
type Driver struct {
	// MirrorCommands applies pin writes and mode changes to the local
	// state before they are written, without waiting for the device.
	MirrorCommands bool
	// SkipBadFrames makes Run log and skip a malformed frame, a message
	// which can't be applied or a command which can't be encoded.
	// Otherwise Run returns the error.
	SkipBadFrames bool

	rw     io.ReadWriter
	stream *firmata.Stream
	state  firmata.BoardState
	queue  *commandQueue
	cell   *snapshotCell

	in        chan inbound
	quit      chan struct{}
	readOnce  sync.Once
	closeOnce sync.Once
}

type inbound struct {
	msg firmata.Message
	err error
}

// New creates a Driver over an open transport.
func New(rw io.ReadWriter) *Driver {
	return &Driver{
		MirrorCommands: true,
		rw:             rw,
		stream:         firmata.NewStream(rw),
		queue:          newCommandQueue(),
		cell:           newSnapshotCell(),
		in:             make(chan inbound),
		quit:           make(chan struct{}),
	}
}

// Handshake bootstraps the board state and publishes it. It must be
// called before Run. It returns the context error as soon as ctx is done,
// even if the board never answers.
func (d *Driver) Handshake(ctx context.Context) error {
	state, err := firmata.Handshake(ctx, d.rw, inboundReader{ctx: ctx, d: d}, d.state)
	if err != nil {
		return err
	}
	d.state = state
	d.cell.publish(state)
	glog.Infof("driver: %s %s with %d pins", state.FirmwareName, state.FirmwareVersion, len(state.Pins))
	return nil
}

// Handle creates a new Handle. It returns nil if all previous handles
// have been closed.
func (d *Driver) Handle() *Handle {
	if !d.queue.acquire() {
		return nil
	}
	return &Handle{queue: d.queue, cell: d.cell}
}

// Close stops the reader. It doesn't close the transport; a reader
// blocked in the transport returns once the transport is closed. Run
// calls Close on return, so it's only needed when Run is never called,
// e.g. after a failed Handshake.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() { close(d.quit) })
	return nil
}

// Run processes inbound frames and queued commands until the context is
// done, the transport fails or all handles are closed (ErrClosed).
// Commands queued before the last handle was closed are still written.
// Snapshots are no longer published after Run returns.
func (d *Driver) Run(ctx context.Context) error {
	defer d.cell.close()
	defer d.queue.stop()
	defer d.Close()

	in := d.messages()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-in:
			if err := d.handleInbound(msg); err != nil {
				glog.Errorf("driver: %v", err)
				return err
			}
		case cmd := <-d.queue.ch:
			if err := d.handleCommand(cmd); err != nil {
				glog.Errorf("driver: %v", err)
				return err
			}
		case <-d.queue.closing:
			for cmd, ok := d.queue.pending(); ok; cmd, ok = d.queue.pending() {
				if err := d.handleCommand(cmd); err != nil {
					glog.Errorf("driver: %v", err)
					return err
				}
			}
			glog.V(2).Info("driver: all handles closed")
			return firmata.ErrClosed
		}
	}
}

// messages starts the reader on first use. The same reader serves
// Handshake and Run.
func (d *Driver) messages() <-chan inbound {
	d.readOnce.Do(func() { go d.readLoop() })
	return d.in
}

func (d *Driver) readLoop() {
	for {
		msg, err := d.stream.ReadMessage()
		select {
		case d.in <- inbound{msg: msg, err: err}:
		case <-d.quit:
			return
		}
		var ioErr *firmata.IOError
		if !errors.As(err, &ioErr) {
			continue
		}
		// the transport is gone, keep reporting it
		for {
			select {
			case d.in <- inbound{err: err}:
			case <-d.quit:
				return
			}
		}
	}
}

// inboundReader reads from the driver's reader until ctx is done.
type inboundReader struct {
	ctx context.Context
	d   *Driver
}

func (r inboundReader) ReadMessage() (firmata.Message, error) {
	select {
	case in := <-r.d.messages():
		return in.msg, in.err
	case <-r.ctx.Done():
		return nil, r.ctx.Err()
	}
}

func (d *Driver) handleInbound(in inbound) error {
	err := in.err
	if err == nil {
		var state firmata.BoardState
		if state, err = d.state.Apply(in.msg); err == nil {
			glog.V(4).Infof("driver: applied %s message", in.msg.ID())
			d.state = state
			d.cell.publish(state)
			return nil
		}
	}
	var ioErr *firmata.IOError
	if errors.As(err, &ioErr) || !d.SkipBadFrames {
		return err
	}
	glog.Warningf("driver: skip frame: %v", err)
	return nil
}

func (d *Driver) handleCommand(cmd firmata.Command) error {
	if d.MirrorCommands {
		if state, ok := mirror(d.state, cmd); ok {
			d.state = state
			d.cell.publish(state)
		}
	}
	glog.V(4).Infof("driver: write %T", cmd)
	err := firmata.WriteCommands(d.rw, cmd)
	var ioErr *firmata.IOError
	if err == nil || errors.As(err, &ioErr) || !d.SkipBadFrames {
		return err
	}
	glog.Warningf("driver: drop command %T: %v", cmd, err)
	return nil
}

// mirror returns the state expected after the device executes cmd.
func mirror(s firmata.BoardState, cmd firmata.Command) (firmata.BoardState, bool) {
	var index int
	switch c := cmd.(type) {
	case firmata.AnalogWrite:
		index = int(c.Pin)
	case firmata.DigitalWrite:
		index = int(c.Pin)
	case firmata.SetPinMode:
		index = int(c.Pin)
	case firmata.DigitalPort:
		index = int(c.Port) * 8
	default:
		return s, false
	}
	if index >= len(s.Pins) {
		return s, false
	}
	s = s.Clone()
	switch c := cmd.(type) {
	case firmata.AnalogWrite:
		s.Pins[index].Value = c.Value
	case firmata.DigitalWrite:
		s.Pins[index].Value = 0
		if c.Value {
			s.Pins[index].Value = 1
		}
	case firmata.SetPinMode:
		s.Pins[index].Mode = c.Mode
	case firmata.DigitalPort:
		for i := 0; i < 8 && index+i < len(s.Pins); i++ {
			if s.Pins[index+i].Mode == firmata.PinModeOutput {
				s.Pins[index+i].Value = (c.Mask >> uint(i)) & 1
			}
		}
	}
	return s, true
}

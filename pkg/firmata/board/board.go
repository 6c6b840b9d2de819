// Package board is the synchronous Firmata engine.
//
// A Board owns its transport. Every command performs one blocking write
// and inbound frames are consumed only when the caller asks for them via
// Read or Poll.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

// DefaultTimeout is the header poll timeout used by Poll and Bootstrap.
const DefaultTimeout = time.Second

// Board is a blocking Firmata client.
type Board struct {
	// Timeout bounds each header poll made by Poll and Bootstrap.
	Timeout time.Duration

	rw    io.ReadWriter
	state firmata.BoardState
	hdr   [1]byte
}

// New creates a Board over an open transport. Read timeouts need a
// transport which implements SetReadDeadline, like a net.Conn or a
// serial.Conn, or one whose Read returns 0 bytes or a timeout error when
// no data is available. A plain blocking reader makes Read wait for data
// regardless of its timeout.
func New(rw io.ReadWriter) *Board {
	return &Board{Timeout: DefaultTimeout, rw: rw}
}

// Bootstrap runs the handshake and replaces the board state with the
// result. On failure the state is left as it was.
func (b *Board) Bootstrap(ctx context.Context) error {
	state, err := firmata.Handshake(ctx, b.rw, &handshakeReader{ctx: ctx, board: b}, b.state)
	b.state = state
	if err != nil {
		return err
	}
	glog.Infof("board: %s %s with %d pins", state.FirmwareName, state.FirmwareVersion, len(state.Pins))
	return nil
}

// handshakeReader retries header timeouts until the context is done.
type handshakeReader struct {
	ctx   context.Context
	board *Board
}

func (r *handshakeReader) ReadMessage() (firmata.Message, error) {
	for {
		msg, err := r.board.readMessage(r.board.Timeout)
		if !errors.Is(err, firmata.ErrTimeout) {
			return msg, err
		}
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// State returns a snapshot of the board state.
func (b *Board) State() firmata.BoardState {
	return b.state.Clone()
}

// Pins returns a copy of the pin list.
func (b *Board) Pins() []firmata.Pin {
	return b.state.Clone().Pins
}

// FirmwareName returns the name reported by the firmware.
func (b *Board) FirmwareName() string {
	return b.state.FirmwareName
}

// FirmwareVersion returns the version reported by the firmware.
func (b *Board) FirmwareVersion() string {
	return b.state.FirmwareVersion
}

// ProtocolVersion returns the last protocol version received.
func (b *Board) ProtocolVersion() string {
	return b.state.ProtocolVersion
}

// I2CReplies returns the most recent I2C replies, oldest first.
func (b *Board) I2CReplies() []firmata.I2CReply {
	return b.state.Clone().I2CReplies
}

// PhysicalPin returns the pin addressed by id.
func (b *Board) PhysicalPin(id firmata.PinID) (firmata.Pin, error) {
	return b.state.Pin(id)
}

// index resolves id against the known pins.
func (b *Board) index(id firmata.PinID) (uint8, error) {
	index := b.state.Resolve(id)
	if int(index) >= len(b.state.Pins) {
		return 0, fmt.Errorf("%w: pin %s (index %d of %d)", firmata.ErrOutOfRange, id, index, len(b.state.Pins))
	}
	return index, nil
}

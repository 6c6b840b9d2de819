package firmata

import (
	"context"
	"io"

	"github.com/golang/glog"
)

// MessageReader yields decoded inbound messages one at a time.
type MessageReader interface {
	ReadMessage() (Message, error)
}

// Handshake bootstraps the board state. It writes the firmware,
// capability and analog mapping queries in one batch, then reads messages
// until all three responses have arrived, in any order. Other messages
// are skipped. The returned state is built from the responses only;
// prev contributes the protocol version. If the analog mapping refers to a
// pin the capability response doesn't have, ErrState is returned and
// nothing is committed. ctx is checked between messages only, so r must
// return by itself once ctx is done.
func Handshake(ctx context.Context, w io.Writer, r MessageReader, prev BoardState) (BoardState, error) {
	err := WriteCommands(w, ReportFirmwareQuery{}, CapabilityQuery{}, AnalogMappingQuery{})
	if err != nil {
		return prev, err
	}

	var (
		firmware *ReportFirmware
		caps     *CapabilityResponse
		mapping  *AnalogMappingResponse
	)
	for firmware == nil || caps == nil || mapping == nil {
		if err := ctx.Err(); err != nil {
			return prev, err
		}
		msg, err := r.ReadMessage()
		if err != nil {
			return prev, err
		}
		switch m := msg.(type) {
		case ReportFirmware:
			firmware = &m
		case CapabilityResponse:
			caps = &m
		case AnalogMappingResponse:
			mapping = &m
		default:
			glog.V(4).Infof("handshake: skip %s message", msg.ID())
		}
	}

	state := BoardState{
		FirmwareName:    firmware.Name,
		FirmwareVersion: firmware.Version,
		ProtocolVersion: prev.ProtocolVersion,
	}
	if err := state.apply(*caps); err != nil {
		return prev, err
	}
	if err := state.MapAnalogPins(mapping.AnalogPins); err != nil {
		return prev, err
	}
	glog.V(2).Infof("handshake: %s %s, %d pins", state.FirmwareName, state.FirmwareVersion, len(state.Pins))
	return state, nil
}

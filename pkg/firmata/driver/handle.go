package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata"
)

// Handle sends commands to a Driver and observes its state. Handles are
// cheap; use Clone to give one to another goroutine. The driver stops
// once every handle has been closed.
type Handle struct {
	queue *commandQueue
	cell  *snapshotCell

	seen      atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// Clone creates another handle to the same driver. It returns nil if the
// command queue is already closed.
func (h *Handle) Clone() *Handle {
	if h.closed.Load() || !h.queue.acquire() {
		return nil
	}
	return &Handle{queue: h.queue, cell: h.cell}
}

// Close releases the handle. Closing the last handle closes the command
// queue.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.queue.release()
	})
	return nil
}

// Done is closed when the driver stops.
func (h *Handle) Done() <-chan struct{} {
	return h.queue.done
}

// State returns the latest published snapshot.
func (h *Handle) State() firmata.BoardState {
	state, _, _, _ := h.cell.load()
	return state.Clone()
}

// Changed waits for a snapshot newer than the last one returned to this
// handle and returns it. Intermediate snapshots may be skipped. Once the
// driver has stopped and the final snapshot was returned, ErrClosed is
// returned along with it.
func (h *Handle) Changed(ctx context.Context) (firmata.BoardState, error) {
	for {
		state, version, changed, closed := h.cell.load()
		if version > h.seen.Load() {
			h.seen.Store(version)
			return state.Clone(), nil
		}
		if closed {
			return state.Clone(), firmata.ErrClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state.Clone(), ctx.Err()
		}
	}
}

// Send enqueues commands in order. A command which can't be encoded is
// rejected before anything is enqueued. Send blocks while the queue is
// full.
func (h *Handle) Send(ctx context.Context, cmds ...firmata.Command) error {
	if h.closed.Load() {
		return firmata.ErrClosed
	}
	for _, cmd := range cmds {
		if _, err := firmata.Encode(cmd); err != nil {
			return err
		}
	}
	for _, cmd := range cmds {
		if err := h.queue.send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// resolve maps id to a physical pin using the last published analog
// offset. Before the pins are known, the index is not checked.
func (h *Handle) resolve(id firmata.PinID) (uint8, error) {
	state, _, _, _ := h.cell.load()
	index := state.Resolve(id)
	if state.Initialized() && int(index) >= len(state.Pins) {
		return 0, fmt.Errorf("%w: pin %s (index %d of %d)", firmata.ErrOutOfRange, id, index, len(state.Pins))
	}
	return index, nil
}

// SetPinMode changes the mode of a pin.
func (h *Handle) SetPinMode(ctx context.Context, id firmata.PinID, mode firmata.PinMode) error {
	index, err := h.resolve(id)
	if err != nil {
		return err
	}
	return h.Send(ctx, firmata.SetPinMode{Pin: index, Mode: mode})
}

// DigitalWrite sets the level of a single pin. Analog ids are rejected.
func (h *Handle) DigitalWrite(ctx context.Context, id firmata.PinID, level bool) error {
	if id.Kind == firmata.PinKindAnalog {
		return fmt.Errorf("%w: digital write on analog pin %s", firmata.ErrWrongType, id)
	}
	index, err := h.resolve(id)
	if err != nil {
		return err
	}
	return h.Send(ctx, firmata.DigitalWrite{Pin: index, Value: level})
}

// WritePort sets the output levels of the 8 pins of a port.
func (h *Handle) WritePort(ctx context.Context, port uint8, mask uint16) error {
	return h.Send(ctx, firmata.DigitalPort{Port: port, Mask: mask})
}

// AnalogWrite writes a value to a pin (PWM, servo).
func (h *Handle) AnalogWrite(ctx context.Context, id firmata.PinID, value uint16) error {
	index, err := h.resolve(id)
	if err != nil {
		return err
	}
	return h.Send(ctx, firmata.AnalogWrite{Pin: index, Value: value})
}

// ReportDigital toggles digital reporting. Analog ids are rejected.
func (h *Handle) ReportDigital(ctx context.Context, id firmata.PinID, enable bool) error {
	if id.Kind == firmata.PinKindAnalog {
		return fmt.Errorf("%w: report digital on analog pin %s", firmata.ErrWrongType, id)
	}
	return h.Send(ctx, firmata.ReportDigital{Pin: id.Index, Enable: enable})
}

// ReportAnalog toggles reporting of an analog channel. Digital ids are
// rejected.
func (h *Handle) ReportAnalog(ctx context.Context, id firmata.PinID, enable bool) error {
	if id.Kind == firmata.PinKindDigital {
		return fmt.Errorf("%w: report analog on digital pin %s", firmata.ErrWrongType, id)
	}
	return h.Send(ctx, firmata.ReportAnalog{Pin: id.Index, Enable: enable})
}

// SamplingInterval sets the reporting interval of the firmware.
func (h *Handle) SamplingInterval(ctx context.Context, interval time.Duration) error {
	return h.Send(ctx, firmata.SamplingInterval{Interval: interval})
}

// StringWrite sends text to the firmware.
func (h *Handle) StringWrite(ctx context.Context, text string) error {
	return h.Send(ctx, firmata.StringWrite{Text: text})
}

// QueryFirmware asks for the firmware name and version.
func (h *Handle) QueryFirmware(ctx context.Context) error {
	return h.Send(ctx, firmata.ReportFirmwareQuery{})
}

// QueryCapabilities asks for the modes of every pin. The response
// replaces the pin list.
func (h *Handle) QueryCapabilities(ctx context.Context) error {
	return h.Send(ctx, firmata.CapabilityQuery{})
}

// QueryAnalogMapping asks which pins are analog.
func (h *Handle) QueryAnalogMapping(ctx context.Context) error {
	return h.Send(ctx, firmata.AnalogMappingQuery{})
}

// I2CConfig sets the delay between I2C write and read.
func (h *Handle) I2CConfig(ctx context.Context, delay uint16) error {
	return h.Send(ctx, firmata.I2CConfig{Delay: delay})
}

// I2CRead requests size bytes from an I2C device. Replies appear in
// BoardState.I2CReplies.
func (h *Handle) I2CRead(ctx context.Context, addr uint8, size uint16) error {
	return h.Send(ctx, firmata.I2CRead{Address: addr, Size: size})
}

// I2CWrite writes data to an I2C device.
func (h *Handle) I2CWrite(ctx context.Context, addr uint8, data []byte) error {
	return h.Send(ctx, firmata.I2CWrite{Address: addr, Data: data})
}

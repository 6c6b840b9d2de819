package board

import (
	"fmt"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata"
)

func (b *Board) send(cmds ...firmata.Command) error {
	return firmata.WriteCommands(b.rw, cmds...)
}

func (b *Board) write(frame []byte) error {
	if _, err := b.rw.Write(frame); err != nil {
		return &firmata.IOError{Op: "write", Err: err}
	}
	return nil
}

// QueryFirmware asks for the firmware name and version.
func (b *Board) QueryFirmware() error {
	return b.send(firmata.ReportFirmwareQuery{})
}

// QueryCapabilities asks for the modes of every pin.
func (b *Board) QueryCapabilities() error {
	return b.send(firmata.CapabilityQuery{})
}

// QueryAnalogMapping asks which pins are analog.
func (b *Board) QueryAnalogMapping() error {
	return b.send(firmata.AnalogMappingQuery{})
}

// I2CConfig sets the delay between I2C write and read.
func (b *Board) I2CConfig(delay uint16) error {
	return b.send(firmata.I2CConfig{Delay: delay})
}

// I2CRead requests size bytes from an I2C device. The reply is
// collected by Read into I2CReplies.
func (b *Board) I2CRead(addr uint8, size uint16) error {
	return b.send(firmata.I2CRead{Address: addr, Size: size})
}

// I2CWrite writes data to an I2C device.
func (b *Board) I2CWrite(addr uint8, data []byte) error {
	return b.send(firmata.I2CWrite{Address: addr, Data: data})
}

// ReportDigital toggles digital reporting. Analog ids are rejected.
func (b *Board) ReportDigital(id firmata.PinID, enable bool) error {
	if id.Kind == firmata.PinKindAnalog {
		return fmt.Errorf("%w: report digital on analog pin %s", firmata.ErrWrongType, id)
	}
	return b.send(firmata.ReportDigital{Pin: id.Index, Enable: enable})
}

// ReportAnalog toggles reporting of an analog channel. Digital ids are
// rejected, raw ids are taken as channel numbers.
func (b *Board) ReportAnalog(id firmata.PinID, enable bool) error {
	if id.Kind == firmata.PinKindDigital {
		return fmt.Errorf("%w: report analog on digital pin %s", firmata.ErrWrongType, id)
	}
	return b.send(firmata.ReportAnalog{Pin: id.Index, Enable: enable})
}

// AnalogWrite writes value to a pin and records it locally.
func (b *Board) AnalogWrite(id firmata.PinID, value uint16) error {
	index, err := b.index(id)
	if err != nil {
		return err
	}
	frame, err := firmata.Encode(firmata.AnalogWrite{Pin: index, Value: value})
	if err != nil {
		return err
	}
	b.state.Pins[index].Value = value
	return b.write(frame)
}

// DigitalWrite sets the level of a pin and sends the levels of its whole
// port, taken from local state. Analog ids are rejected.
func (b *Board) DigitalWrite(id firmata.PinID, level bool) error {
	if id.Kind == firmata.PinKindAnalog {
		return fmt.Errorf("%w: digital write on analog pin %s", firmata.ErrWrongType, id)
	}
	index, err := b.index(id)
	if err != nil {
		return err
	}
	port, bit := index/8, index%8
	var mask uint16
	for i := uint8(0); i < 8; i++ {
		if n := int(port)*8 + int(i); n < len(b.state.Pins) && b.state.Pins[n].Value != 0 {
			mask |= 1 << i
		}
	}
	var value uint16
	if level {
		value = 1
		mask |= 1 << bit
	} else {
		mask &^= 1 << bit
	}
	frame, err := firmata.Encode(firmata.DigitalPort{Port: port, Mask: mask})
	if err != nil {
		return err
	}
	b.state.Pins[index].Value = value
	return b.write(frame)
}

// StringWrite sends text to the firmware.
func (b *Board) StringWrite(text string) error {
	return b.send(firmata.StringWrite{Text: text})
}

// SetPinMode changes the mode of a pin and records it locally.
func (b *Board) SetPinMode(id firmata.PinID, mode firmata.PinMode) error {
	index, err := b.index(id)
	if err != nil {
		return err
	}
	b.state.Pins[index].Mode = mode
	return b.send(firmata.SetPinMode{Pin: index, Mode: mode})
}

// SamplingInterval sets the reporting interval of the firmware.
func (b *Board) SamplingInterval(interval time.Duration) error {
	return b.send(firmata.SamplingInterval{Interval: interval})
}

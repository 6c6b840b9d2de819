package firmata

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Command is an outbound message.
type Command interface {
	// AppendTo appends the wire encoding of the command to dst.
	AppendTo(dst []byte) ([]byte, error)
}

// Encode returns the wire encoding of cmd.
func Encode(cmd Command) ([]byte, error) {
	return cmd.AppendTo(nil)
}

// WriteCommands encodes all commands and writes them in a single Write.
func WriteCommands(w io.Writer, cmds ...Command) error {
	var buf []byte
	for _, cmd := range cmds {
		var err error
		if buf, err = cmd.AppendTo(buf); err != nil {
			return err
		}
	}
	if _, err := w.Write(buf); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

func appendU16(dst []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(dst, v)
}

func checkNibble(what string, v uint8) error {
	if v > 0x0F {
		return fmt.Errorf("%w: %s %d exceeds 15", ErrOutOfRange, what, v)
	}
	return nil
}

// AnalogMappingQuery asks which pins are analog.
type AnalogMappingQuery struct{}

// AppendTo implements Command.
func (AnalogMappingQuery) AppendTo(dst []byte) ([]byte, error) {
	return append(dst, startSysex, analogMappingQuery, endSysex), nil
}

// CapabilityQuery asks for the modes supported by every pin.
type CapabilityQuery struct{}

// AppendTo implements Command.
func (CapabilityQuery) AppendTo(dst []byte) ([]byte, error) {
	return append(dst, startSysex, capabilityQuery, endSysex), nil
}

// ReportFirmwareQuery asks for the firmware name and version.
type ReportFirmwareQuery struct{}

// AppendTo implements Command.
func (ReportFirmwareQuery) AppendTo(dst []byte) ([]byte, error) {
	return append(dst, startSysex, reportFirmware, endSysex), nil
}

// I2CConfig configures the delay between I2C write and read.
type I2CConfig struct {
	Delay uint16
}

// AppendTo implements Command.
func (c I2CConfig) AppendTo(dst []byte) ([]byte, error) {
	dst = append(dst, startSysex, i2cConfig)
	return append(appendU16(dst, c.Delay), endSysex), nil
}

// I2CRead requests Size bytes from the device at Address.
type I2CRead struct {
	Address uint8
	Size    uint16
}

// AppendTo implements Command.
func (c I2CRead) AppendTo(dst []byte) ([]byte, error) {
	dst = append(dst, startSysex, i2cRequest, c.Address, i2cModeRead<<3)
	return append(appendU16(dst, c.Size), endSysex), nil
}

// I2CWrite writes Data to the device at Address. Each byte is sent as a
// 7-bit LSB/MSB pair.
type I2CWrite struct {
	Address uint8
	Data    []byte
}

// AppendTo implements Command.
func (c I2CWrite) AppendTo(dst []byte) ([]byte, error) {
	dst = append(dst, startSysex, i2cRequest, c.Address, i2cModeWrite<<3)
	for _, b := range c.Data {
		dst = append(dst, b&0x7F, b>>7)
	}
	return append(dst, endSysex), nil
}

// ReportDigital toggles reporting of a digital pin group.
type ReportDigital struct {
	Pin    uint8
	Enable bool
}

// AppendTo implements Command.
func (c ReportDigital) AppendTo(dst []byte) ([]byte, error) {
	if err := checkNibble("report digital pin", c.Pin); err != nil {
		return dst, err
	}
	return append(dst, reportDigital|c.Pin, boolByte(c.Enable)), nil
}

// ReportAnalog toggles reporting of an analog pin. The header carries
// the pin index plus one.
type ReportAnalog struct {
	Pin    uint8
	Enable bool
}

// AppendTo implements Command.
func (c ReportAnalog) AppendTo(dst []byte) ([]byte, error) {
	if c.Pin >= 0x0F {
		return dst, fmt.Errorf("%w: report analog pin %d exceeds 14", ErrOutOfRange, c.Pin)
	}
	return append(dst, reportAnalog|(c.Pin+1), boolByte(c.Enable)), nil
}

// AnalogWrite writes a 16-bit value to a pin (PWM, servo). Pin must be
// at most 15 and the value is sent as two little-endian bytes.
type AnalogWrite struct {
	Pin   uint8
	Value uint16
}

// AppendTo implements Command.
func (c AnalogWrite) AppendTo(dst []byte) ([]byte, error) {
	if err := checkNibble("analog write pin", c.Pin); err != nil {
		return dst, err
	}
	return appendU16(append(dst, analogMessage|c.Pin), c.Value), nil
}

// DigitalWrite sets a single digital output pin.
type DigitalWrite struct {
	Pin   uint8
	Value bool
}

// AppendTo implements Command.
func (c DigitalWrite) AppendTo(dst []byte) ([]byte, error) {
	return append(dst, setDigitalPin, c.Pin, boolByte(c.Value)), nil
}

// DigitalPort writes the output bits of the 8 pins of a port.
type DigitalPort struct {
	Port uint8
	Mask uint16
}

// AppendTo implements Command.
func (c DigitalPort) AppendTo(dst []byte) ([]byte, error) {
	if err := checkNibble("digital port", c.Port); err != nil {
		return dst, err
	}
	return appendU16(append(dst, digitalMessage|c.Port), c.Mask), nil
}

// StringWrite sends text to the firmware, each byte as a little-endian
// 16-bit value. Only ASCII survives: a byte >= 0x80 is sent with bit 7
// set inside the system message.
type StringWrite struct {
	Text string
}

// AppendTo implements Command.
func (c StringWrite) AppendTo(dst []byte) ([]byte, error) {
	dst = append(dst, startSysex, stringData)
	for i := 0; i < len(c.Text); i++ {
		dst = appendU16(dst, uint16(c.Text[i]))
	}
	return append(dst, endSysex), nil
}

// SetPinMode changes the mode of a pin.
type SetPinMode struct {
	Pin  uint8
	Mode PinMode
}

// AppendTo implements Command.
func (c SetPinMode) AppendTo(dst []byte) ([]byte, error) {
	return append(dst, setPinMode, c.Pin, byte(c.Mode)), nil
}

// SamplingInterval sets the reporting interval of the firmware. The
// interval is sent in milliseconds, saturated to 16 bits.
type SamplingInterval struct {
	Interval time.Duration
}

// AppendTo implements Command.
func (c SamplingInterval) AppendTo(dst []byte) ([]byte, error) {
	ms := c.Interval.Milliseconds()
	if ms < 0 {
		ms = 0
	} else if ms > 0xFFFF {
		ms = 0xFFFF
	}
	dst = append(dst, startSysex, samplingInterval)
	return append(appendU16(dst, uint16(ms)), endSysex), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

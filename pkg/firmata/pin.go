package firmata

import (
	"fmt"
	"strconv"
	"strings"
)

// PinKind tells how a PinID index is interpreted.
type PinKind byte

// Pin kinds.
const (
	PinKindRaw PinKind = iota
	PinKindDigital
	PinKindAnalog
)

// PinID addresses a pin either by physical index or by analog channel.
type PinID struct {
	Kind  PinKind
	Index uint8
}

// Analog addresses the n-th analog channel.
func Analog(n uint8) PinID { return PinID{Kind: PinKindAnalog, Index: n} }

// Digital addresses a digital pin.
func Digital(n uint8) PinID { return PinID{Kind: PinKindDigital, Index: n} }

// Raw addresses a physical pin index.
func Raw(n uint8) PinID { return PinID{Kind: PinKindRaw, Index: n} }

// String formats the id the way ParsePinID accepts it.
func (p PinID) String() string {
	switch p.Kind {
	case PinKindAnalog:
		return "A" + strconv.Itoa(int(p.Index))
	case PinKindDigital:
		return "D" + strconv.Itoa(int(p.Index))
	default:
		return strconv.Itoa(int(p.Index))
	}
}

// ParsePinID parses "A0" (analog), "D13" (digital) or "13" (raw).
func ParsePinID(s string) (PinID, error) {
	s = strings.TrimSpace(s)
	kind := PinKindRaw
	if len(s) > 0 {
		switch s[0] {
		case 'A', 'a':
			kind, s = PinKindAnalog, s[1:]
		case 'D', 'd':
			kind, s = PinKindDigital, s[1:]
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return PinID{}, fmt.Errorf("%w: invalid pin %q", ErrConversion, s)
	}
	return PinID{Kind: kind, Index: uint8(n)}, nil
}

// PinMode is the capability/mode code of a pin.
type PinMode byte

// Pin modes with their wire codes.
const (
	PinModeInput   PinMode = 0x00
	PinModeOutput  PinMode = 0x01
	PinModeAnalog  PinMode = 0x02
	PinModePWM     PinMode = 0x03
	PinModeServo   PinMode = 0x04
	PinModeI2C     PinMode = 0x06
	PinModeOneWire PinMode = 0x07
	PinModeStepper PinMode = 0x08
	PinModeEncoder PinMode = 0x09
	PinModeSerial  PinMode = 0x0A
	PinModePullup  PinMode = 0x0B
)

var pinModeNames = map[PinMode]string{
	PinModeInput:   "input",
	PinModeOutput:  "output",
	PinModeAnalog:  "analog",
	PinModePWM:     "pwm",
	PinModeServo:   "servo",
	PinModeI2C:     "i2c",
	PinModeOneWire: "onewire",
	PinModeStepper: "stepper",
	PinModeEncoder: "encoder",
	PinModeSerial:  "serial",
	PinModePullup:  "pullup",
}

// PinModeFromCode converts a wire code. Unknown codes are a ParseError.
func PinModeFromCode(code byte) (PinMode, error) {
	m := PinMode(code)
	if _, ok := pinModeNames[m]; !ok {
		return 0, parseError("unknown pin mode", []byte{code})
	}
	return m, nil
}

// ParsePinMode parses a mode name (case insensitive).
func ParsePinMode(s string) (PinMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range pinModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pin mode %q", ErrConversion, s)
}

func (m PinMode) String() string {
	if name, ok := pinModeNames[m]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(m)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (m PinMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PinMode) UnmarshalText(text []byte) error {
	mode, err := ParsePinMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Mode is one capability a physical pin supports.
type Mode struct {
	Mode       PinMode `json:"mode"`
	Resolution uint8   `json:"resolution"`
}

// Pin is the state of one physical pin.
type Pin struct {
	// Modes are in the order reported by the capability response.
	Modes  []Mode  `json:"modes"`
	Analog bool    `json:"analog"`
	Value  uint16  `json:"value"`
	Mode   PinMode `json:"current_mode"`
}

// Supports tells whether the pin reported the given mode.
func (p Pin) Supports(mode PinMode) bool {
	for _, m := range p.Modes {
		if m.Mode == mode {
			return true
		}
	}
	return false
}

func (p Pin) clone() Pin {
	if p.Modes != nil {
		p.Modes = append([]Mode(nil), p.Modes...)
	}
	return p
}

// PinStates is the list of physical pins indexed by pin number.
type PinStates struct {
	Pins           []Pin `json:"pins"`
	AnalogPinStart uint8 `json:"analog_pin_start"`
}

// Resolve maps a PinID to a physical pin index.
func (s PinStates) Resolve(id PinID) uint8 {
	if id.Kind == PinKindAnalog {
		return id.Index + s.AnalogPinStart
	}
	return id.Index
}

// Pin returns the physical pin addressed by id.
func (s PinStates) Pin(id PinID) (Pin, error) {
	index := int(s.Resolve(id))
	if index >= len(s.Pins) {
		return Pin{}, fmt.Errorf("%w: pin %s (index %d of %d)", ErrOutOfRange, id, index, len(s.Pins))
	}
	return s.Pins[index].clone(), nil
}

// MapAnalogPins flags each listed index as analog. An index beyond the
// pin list violates the state invariant and nothing is changed.
func (s *PinStates) MapAnalogPins(indices []int) error {
	for _, index := range indices {
		if index < 0 || index >= len(s.Pins) {
			return fmt.Errorf("%w: analog pin %d beyond %d pins", ErrState, index, len(s.Pins))
		}
	}
	for n, index := range indices {
		s.Pins[index].Analog = true
		if n == 0 || uint8(index) < s.AnalogPinStart {
			s.AnalogPinStart = uint8(index)
		}
	}
	return nil
}

func (s PinStates) clone() PinStates {
	if s.Pins != nil {
		pins := make([]Pin, len(s.Pins))
		for n, pin := range s.Pins {
			pins[n] = pin.clone()
		}
		s.Pins = pins
	}
	return s
}

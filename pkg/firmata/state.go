package firmata

import "fmt"

// MaxI2CReplies bounds the I2C reply log kept in BoardState.
const MaxI2CReplies = 64

// BoardState is everything known about a board.
// A BoardState is treated as a value: Apply returns a new state and
// leaves the receiver untouched.
type BoardState struct {
	PinStates
	FirmwareName    string     `json:"firmware_name"`
	FirmwareVersion string     `json:"firmware_version"`
	ProtocolVersion string     `json:"protocol_version"`
	I2CReplies      []I2CReply `json:"i2c_replies,omitempty"`
}

// Clone returns a deep copy.
func (s BoardState) Clone() BoardState {
	s.PinStates = s.PinStates.clone()
	if s.I2CReplies != nil {
		replies := make([]I2CReply, len(s.I2CReplies))
		for n, r := range s.I2CReplies {
			r.Data = append([]byte(nil), r.Data...)
			replies[n] = r
		}
		s.I2CReplies = replies
	}
	return s
}

// Initialized tells whether the pin list is known.
func (s BoardState) Initialized() bool {
	return len(s.Pins) > 0
}

// Apply returns the state after msg. On error the returned state is the
// unchanged receiver.
func (s BoardState) Apply(msg Message) (BoardState, error) {
	next := s.Clone()
	if err := next.apply(msg); err != nil {
		return s, err
	}
	return next, nil
}

func (s *BoardState) apply(msg Message) error {
	switch m := msg.(type) {
	case AnalogMessage:
		index := int(s.Resolve(m.Pin))
		if index >= len(s.Pins) || !s.Pins[index].Analog {
			return fmt.Errorf("%w: analog message for pin %s (index %d) which is not an analog pin", ErrUninitialized, m.Pin, index)
		}
		s.Pins[index].Value = m.Value
	case DigitalMessage:
		if !s.Initialized() {
			return fmt.Errorf("%w: digital message arrived before pins were known", ErrUninitialized)
		}
		for i := 0; i < 8; i++ {
			index := 8*int(m.Port) + i
			if index < len(s.Pins) && s.Pins[index].Mode == PinModeInput {
				s.Pins[index].Value = (m.Value >> uint(i)) & 1
			}
		}
	case AnalogMappingResponse:
		if !s.Initialized() {
			return fmt.Errorf("%w: analog mapping arrived before pins were known", ErrUninitialized)
		}
		return s.MapAnalogPins(m.AnalogPins)
	case CapabilityResponse:
		pins := make([]Pin, len(m.Pins))
		for n, pin := range m.Pins {
			pins[n] = pin.clone()
		}
		s.PinStates = PinStates{Pins: pins}
	case ReportFirmware:
		s.FirmwareName, s.FirmwareVersion = m.Name, m.Version
	case I2CReply:
		m.Data = append([]byte(nil), m.Data...)
		s.I2CReplies = append(s.I2CReplies, m)
		if over := len(s.I2CReplies) - MaxI2CReplies; over > 0 {
			s.I2CReplies = append([]I2CReply(nil), s.I2CReplies[over:]...)
		}
	case ProtocolVersionMessage:
		s.ProtocolVersion = m.Version
	default:
		return fmt.Errorf("%w: unsupported message %T", ErrConversion, msg)
	}
	return nil
}

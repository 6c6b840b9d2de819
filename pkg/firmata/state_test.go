package firmata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func inputPins(n int) []Pin {
	pins := make([]Pin, n)
	for i := range pins {
		pins[i] = Pin{Modes: []Mode{{PinModeInput, 1}, {PinModeOutput, 1}}, Mode: PinModeInput}
	}
	return pins
}

func initializedState(t *testing.T, n int, analog ...int) BoardState {
	s, err := BoardState{}.Apply(CapabilityResponse{Pins: inputPins(n)})
	require.NoError(t, err)
	s, err = s.Apply(AnalogMappingResponse{AnalogPins: analog})
	require.NoError(t, err)
	return s
}

func TestApplyDigital(t *testing.T) {
	s := initializedState(t, 8)
	s.Pins[1].Mode = PinModeOutput
	s.Pins[1].Value = 1

	next, err := s.Apply(DigitalMessage{Port: 0, Value: 0b0000_0101})
	require.NoError(t, err)
	values := make([]uint16, len(next.Pins))
	for n, pin := range next.Pins {
		values[n] = pin.Value
	}
	require.Equal(t, []uint16{1, 1, 1, 0, 0, 0, 0, 0}, values)
	require.Zero(t, s.Pins[0].Value, "receiver must not change")
}

func TestApplyDigitalIgnoresMissingPins(t *testing.T) {
	s := initializedState(t, 10)
	next, err := s.Apply(DigitalMessage{Port: 1, Value: 0xFF})
	require.NoError(t, err)
	require.EqualValues(t, 1, next.Pins[8].Value)
	require.EqualValues(t, 1, next.Pins[9].Value)
}

func TestApplyAnalog(t *testing.T) {
	s := initializedState(t, 6, 4, 5)
	require.EqualValues(t, 4, s.AnalogPinStart)

	next, err := s.Apply(AnalogMessage{Pin: Analog(1), Value: 700})
	require.NoError(t, err)
	require.EqualValues(t, 700, next.Pins[5].Value)

	_, err = s.Apply(AnalogMessage{Pin: Analog(2), Value: 1})
	require.True(t, errors.Is(err, ErrUninitialized))
}

func TestApplyUninitialized(t *testing.T) {
	for _, msg := range []Message{
		AnalogMessage{Pin: Analog(0)},
		DigitalMessage{},
		AnalogMappingResponse{AnalogPins: []int{0}},
	} {
		s, err := BoardState{}.Apply(msg)
		require.Truef(t, errors.Is(err, ErrUninitialized), "%s: %v", msg.ID(), err)
		require.False(t, s.Initialized())
	}
}

func TestAnalogMappingIdempotent(t *testing.T) {
	s := initializedState(t, 6, 2, 3)
	again, err := s.Apply(AnalogMappingResponse{AnalogPins: []int{2, 3}})
	require.NoError(t, err)
	require.Equal(t, s, again)
}

func TestAnalogMappingOutOfRange(t *testing.T) {
	s := initializedState(t, 4)
	next, err := s.Apply(AnalogMappingResponse{AnalogPins: []int{1, 4}})
	require.True(t, errors.Is(err, ErrState))
	require.False(t, next.Pins[1].Analog)
}

func TestCapabilityReplacesPins(t *testing.T) {
	s := initializedState(t, 6, 5)
	next, err := s.Apply(CapabilityResponse{Pins: inputPins(3)})
	require.NoError(t, err)
	require.Len(t, next.Pins, 3)
	require.Zero(t, next.AnalogPinStart)
	for _, pin := range next.Pins {
		require.False(t, pin.Analog)
	}
}

func TestApplyIdentity(t *testing.T) {
	s, err := BoardState{}.Apply(ReportFirmware{Name: "StandardFirmata", Version: "2.5"})
	require.NoError(t, err)
	s, err = s.Apply(ProtocolVersionMessage{Version: "2.5"})
	require.NoError(t, err)
	require.Equal(t, "StandardFirmata", s.FirmwareName)
	require.Equal(t, "2.5", s.FirmwareVersion)
	require.Equal(t, "2.5", s.ProtocolVersion)
}

func TestI2CRepliesBounded(t *testing.T) {
	s := BoardState{}
	var err error
	for n := 0; n < MaxI2CReplies+3; n++ {
		s, err = s.Apply(I2CReply{Address: n, Data: []byte{byte(n)}})
		require.NoError(t, err)
	}
	require.Len(t, s.I2CReplies, MaxI2CReplies)
	require.Equal(t, 3, s.I2CReplies[0].Address)
	require.Equal(t, MaxI2CReplies+2, s.I2CReplies[MaxI2CReplies-1].Address)
}

func TestCloneIsDeep(t *testing.T) {
	s := initializedState(t, 2, 1)
	s.I2CReplies = []I2CReply{{Data: []byte{1}}}
	c := s.Clone()
	c.Pins[0].Modes[0].Resolution = 9
	c.I2CReplies[0].Data[0] = 2
	require.EqualValues(t, 1, s.Pins[0].Modes[0].Resolution)
	require.EqualValues(t, 1, s.I2CReplies[0].Data[0])
}

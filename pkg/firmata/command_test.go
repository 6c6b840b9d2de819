package firmata

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name   string
		cmd    Command
		expect []byte
	}{
		{"analog mapping query", AnalogMappingQuery{}, []byte{0xF0, 0x69, 0xF7}},
		{"capability query", CapabilityQuery{}, []byte{0xF0, 0x6B, 0xF7}},
		{"firmware query", ReportFirmwareQuery{}, []byte{0xF0, 0x79, 0xF7}},
		{"pin mode", SetPinMode{Pin: 9, Mode: PinModeOutput}, []byte{0xF4, 0x09, 0x01}},
		{"analog write", AnalogWrite{Pin: 3, Value: 512}, []byte{0xE3, 0x00, 0x02}},
		{"analog write max pin", AnalogWrite{Pin: 15, Value: 0xABCD}, []byte{0xEF, 0xCD, 0xAB}},
		{"report digital", ReportDigital{Pin: 2, Enable: true}, []byte{0xD2, 0x01}},
		{"report digital off", ReportDigital{Pin: 2}, []byte{0xD2, 0x00}},
		{"report analog", ReportAnalog{Pin: 0, Enable: true}, []byte{0xC1, 0x01}},
		{"digital port", DigitalPort{Port: 1, Mask: 0x0105}, []byte{0x91, 0x05, 0x01}},
		{"digital write", DigitalWrite{Pin: 13, Value: true}, []byte{0xF5, 0x0D, 0x01}},
		{"string", StringWrite{Text: "hi"}, []byte{0xF0, 0x71, 'h', 0, 'i', 0, 0xF7}},
		{"empty string", StringWrite{}, []byte{0xF0, 0x71, 0xF7}},
		{"sampling interval", SamplingInterval{Interval: 300 * time.Millisecond}, []byte{0xF0, 0x7A, 0x2C, 0x01, 0xF7}},
		{"sampling interval saturates", SamplingInterval{Interval: time.Hour}, []byte{0xF0, 0x7A, 0xFF, 0xFF, 0xF7}},
		{"i2c config", I2CConfig{Delay: 0x1234}, []byte{0xF0, 0x78, 0x34, 0x12, 0xF7}},
		{"i2c read", I2CRead{Address: 0x48, Size: 2}, []byte{0xF0, 0x76, 0x48, 0x08, 0x02, 0x00, 0xF7}},
		{"i2c write", I2CWrite{Address: 0x48, Data: []byte{0x01, 0xFF}}, []byte{0xF0, 0x76, 0x48, 0x00, 0x01, 0x00, 0x7F, 0x01, 0xF7}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Encode(tc.cmd)
			require.NoError(t, err)
			require.Equal(t, tc.expect, out)
		})
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	for _, cmd := range []Command{
		AnalogWrite{Pin: 16},
		DigitalPort{Port: 16},
		ReportDigital{Pin: 16},
		ReportAnalog{Pin: 15},
	} {
		_, err := Encode(cmd)
		require.Truef(t, errors.Is(err, ErrOutOfRange), "%T: %v", cmd, err)
	}
}

func TestWriteCommandsBatches(t *testing.T) {
	var w countingWriter
	err := WriteCommands(&w, ReportFirmwareQuery{}, CapabilityQuery{}, AnalogMappingQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, w.writes)
	require.Equal(t, []byte{0xF0, 0x79, 0xF7, 0xF0, 0x6B, 0xF7, 0xF0, 0x69, 0xF7}, w.Bytes())
}

func TestWriteCommandsIOError(t *testing.T) {
	err := WriteCommands(failingWriter{}, CapabilityQuery{})
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, errBroken, ioErr.Err)
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

var errBroken = errors.New("broken pipe")

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errBroken
}

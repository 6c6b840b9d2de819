package firmata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ParseFrame decodes one complete frame, header byte included.
func ParseFrame(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrOutOfRange)
	}
	h := frame[0]
	if h == startSysex {
		if len(frame) < 2 || frame[len(frame)-1] != endSysex {
			return nil, parseError("unterminated system message", frame)
		}
		return parseSysex(frame[1 : len(frame)-1])
	}
	if !IsFrameStart(h) {
		return nil, fmt.Errorf("%w: byte %#02x is not a message header", ErrConversion, h)
	}
	if len(frame) != 3 {
		return nil, fmt.Errorf("%w: %d byte frame for header %#02x", ErrConversion, len(frame), h)
	}
	switch {
	case h == protocolVersion:
		return ProtocolVersionMessage{Version: formatVersion(frame[1], frame[2])}, nil
	case isAnalogHeader(h):
		return AnalogMessage{Pin: Analog(h & 0x0F), Value: binary.LittleEndian.Uint16(frame[1:])}, nil
	default:
		return DigitalMessage{Port: h & 0x0F, Value: binary.LittleEndian.Uint16(frame[1:])}, nil
	}
}

// parseSysex dispatches on the sub-command byte of a sysex payload.
func parseSysex(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty system message", ErrOutOfRange)
	}
	body := payload[1:]
	switch payload[0] {
	case analogMappingResponse:
		return parseAnalogMapping(body), nil
	case capabilityResponse:
		return parseCapabilities(body)
	case reportFirmware:
		return parseReportFirmware(body)
	case i2cReply:
		return parseI2CReply(body)
	}
	return nil, parseError("unexpected system message", payload)
}

// Firmware and protocol versions are rendered as octal digit pairs.
func formatVersion(major, minor byte) string {
	return fmt.Sprintf("%o.%o", major, minor)
}

func parseAnalogMapping(body []byte) AnalogMappingResponse {
	var msg AnalogMappingResponse
	for index, b := range body {
		if b != recordEnd {
			msg.AnalogPins = append(msg.AnalogPins, index)
		}
	}
	return msg
}

func parseCapabilities(body []byte) (CapabilityResponse, error) {
	var msg CapabilityResponse
	last := 0
	for n, b := range body {
		if b != recordEnd {
			continue
		}
		pin, err := parsePinRecord(body[last:n])
		if err != nil {
			return CapabilityResponse{}, err
		}
		msg.Pins = append(msg.Pins, pin)
		last = n + 1
	}
	return msg, nil
}

func parsePinRecord(record []byte) (Pin, error) {
	pin := Pin{Mode: PinModeInput}
	if len(record)%2 != 0 {
		return pin, fmt.Errorf("%w: odd pin record length %d", ErrConversion, len(record))
	}
	for n := 0; n < len(record); n += 2 {
		mode, err := PinModeFromCode(record[n])
		if err != nil {
			return pin, err
		}
		pin.Modes = append(pin.Modes, Mode{Mode: mode, Resolution: record[n+1]})
	}
	return pin, nil
}

func parseReportFirmware(body []byte) (ReportFirmware, error) {
	if len(body) < 2 {
		return ReportFirmware{}, fmt.Errorf("%w: firmware report of %d bytes", ErrConversion, len(body))
	}
	name := body[2:]
	if !utf8.Valid(name) {
		return ReportFirmware{}, fmt.Errorf("%w: firmware name [% x]", ErrInvalidUTF8, name)
	}
	return ReportFirmware{
		Version: formatVersion(body[0], body[1]),
		Name:    string(bytes.ReplaceAll(name, []byte{0}, nil)),
	}, nil
}

func parseI2CReply(body []byte) (I2CReply, error) {
	if len(body) < 4 {
		return I2CReply{}, fmt.Errorf("%w: i2c reply of %d bytes", ErrConversion, len(body))
	}
	reply := I2CReply{
		Address:  int(body[0]) | int(body[1])<<7,
		Register: int(body[2]) | int(body[3])<<7,
	}
	for n := 4; n+2 <= len(body) && body[n] != endSysex; n += 2 {
		reply.Data = append(reply.Data, body[n]|body[n+1]<<7)
	}
	return reply, nil
}

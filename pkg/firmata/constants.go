package firmata

// Header bytes.
const (
	startSysex      byte = 0xF0
	endSysex        byte = 0xF7
	analogMessage   byte = 0xE0 // low nibble is the pin
	digitalMessage  byte = 0x90 // low nibble is the port
	protocolVersion byte = 0xF9
	reportAnalog    byte = 0xC0
	reportDigital   byte = 0xD0
	setPinMode      byte = 0xF4
	setDigitalPin   byte = 0xF5
)

// StartSysex and EndSysex delimit a system message.
const (
	StartSysex = startSysex
	EndSysex   = endSysex
)

// Sysex commands.
const (
	encoderData           byte = 0x61
	analogMappingQuery    byte = 0x69
	analogMappingResponse byte = 0x6A
	capabilityQuery       byte = 0x6B
	capabilityResponse    byte = 0x6C
	pinStateQuery         byte = 0x6D
	pinStateResponse      byte = 0x6E
	extendedAnalog        byte = 0x6F
	servoConfig           byte = 0x70
	stringData            byte = 0x71
	stepperData           byte = 0x72
	onewireData           byte = 0x73
	shiftData             byte = 0x75
	i2cRequest            byte = 0x76
	i2cReply              byte = 0x77
	i2cConfig             byte = 0x78
	reportFirmware        byte = 0x79
	samplingInterval      byte = 0x7A
	schedulerData         byte = 0x7B
	sysexNonRealtime      byte = 0x7E
	sysexRealtime         byte = 0x7F
)

const (
	i2cModeWrite byte = 0x00
	i2cModeRead  byte = 0x01
)

// recordEnd separates pin records in a capability response and marks
// "not analog" in an analog mapping response.
const recordEnd byte = 0x7F

func isAnalogHeader(b byte) bool {
	return b&0xF0 == analogMessage
}

func isDigitalHeader(b byte) bool {
	return b&0xF0 == digitalMessage
}

// IsFrameStart tells whether b begins a frame.
func IsFrameStart(b byte) bool {
	return b == startSysex || b == protocolVersion || isAnalogHeader(b) || isDigitalHeader(b)
}

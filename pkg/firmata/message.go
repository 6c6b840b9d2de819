package firmata

// MessageID identifies the kind of an inbound message.
type MessageID int

// Inbound message kinds.
const (
	MsgAnalog MessageID = iota + 1
	MsgDigital
	MsgProtocolVersion
	MsgAnalogMapping
	MsgCapability
	MsgI2CReply
	MsgReportFirmware
)

var messageIDNames = map[MessageID]string{
	MsgAnalog:          "analog",
	MsgDigital:         "digital",
	MsgProtocolVersion: "protocol-version",
	MsgAnalogMapping:   "analog-mapping",
	MsgCapability:      "capability",
	MsgI2CReply:        "i2c-reply",
	MsgReportFirmware:  "report-firmware",
}

func (id MessageID) String() string {
	if name, ok := messageIDNames[id]; ok {
		return name
	}
	return "unknown"
}

// Message is a decoded inbound frame.
type Message interface {
	ID() MessageID
}

// SystemMessage is a Message delimited as a sysex frame.
type SystemMessage interface {
	Message
	systemMessage()
}

// AnalogMessage reports the value of an analog channel.
type AnalogMessage struct {
	Pin   PinID
	Value uint16
}

// ID implements Message.
func (AnalogMessage) ID() MessageID { return MsgAnalog }

// DigitalMessage reports the input bits of 8 pins of a port.
type DigitalMessage struct {
	Port  uint8
	Value uint16
}

// ID implements Message.
func (DigitalMessage) ID() MessageID { return MsgDigital }

// ProtocolVersionMessage reports the protocol version of the firmware.
type ProtocolVersionMessage struct {
	Version string
}

// ID implements Message.
func (ProtocolVersionMessage) ID() MessageID { return MsgProtocolVersion }

// AnalogMappingResponse lists the physical pins supporting analog input,
// in ascending order.
type AnalogMappingResponse struct {
	AnalogPins []int
}

// ID implements Message.
func (AnalogMappingResponse) ID() MessageID { return MsgAnalogMapping }
func (AnalogMappingResponse) systemMessage() {}

// CapabilityResponse lists every physical pin with its supported modes.
type CapabilityResponse struct {
	Pins []Pin
}

// ID implements Message.
func (CapabilityResponse) ID() MessageID { return MsgCapability }
func (CapabilityResponse) systemMessage() {}

// ReportFirmware carries the firmware identity.
type ReportFirmware struct {
	Name    string
	Version string
}

// ID implements Message.
func (ReportFirmware) ID() MessageID { return MsgReportFirmware }
func (ReportFirmware) systemMessage() {}

// I2CReply is the data returned by an I2C read request.
type I2CReply struct {
	Address  int    `json:"address"`
	Register int    `json:"register"`
	Data     []byte `json:"data"`
}

// ID implements Message.
func (I2CReply) ID() MessageID { return MsgI2CReply }
func (I2CReply) systemMessage() {}

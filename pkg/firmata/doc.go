// Package firmata provides the protocol engine of a Firmata host client.
package firmata

// Firmata is spoken between firmware running on a microcontroller and a
// host over any duplex byte stream (serial port, socket, tunnel).
// The stream has no inherent message boundaries; frames are delimited by
// their header byte:
//
//   - system (sysex) messages run from 0xF0 to the next 0xF7;
//   - analog/digital messages carry a pin/port in the low nibble of the
//     header and are followed by exactly two bytes;
//   - the protocol version message is 0xF9 followed by two bytes.
//
// This package is transport agnostic. Command values encode themselves
// (AppendTo), Decoder extracts frames from a growable buffer, and
// BoardState.Apply is the pure transition function for inbound messages.
// The engines driving a transport live in the board (blocking) and
// driver (concurrent) sub-packages.

// Package serial opens serial ports, the usual transport to a Firmata board.
package serial

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang/glog"
	bugst "go.bug.st/serial.v1"
)

// DefaultBaudRate is the baud rate of StandardFirmata.
const DefaultBaudRate = 57600

// DefaultMode returns 57600 8N1.
func DefaultMode() *bugst.Mode {
	return &bugst.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
}

var parities = map[string]bugst.Parity{
	"none":  bugst.NoParity,
	"odd":   bugst.OddParity,
	"even":  bugst.EvenParity,
	"mark":  bugst.MarkParity,
	"space": bugst.SpaceParity,
}

var stopBits = map[string]bugst.StopBits{
	"1":   bugst.OneStopBit,
	"1.5": bugst.OnePointFiveStopBits,
	"2":   bugst.TwoStopBits,
}

// ModeFromQuery overrides DefaultMode with the query parameters
// baud, databits, parity and stopbits.
func ModeFromQuery(q url.Values) (*bugst.Mode, error) {
	mode := DefaultMode()
	if val := q.Get("baud"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", val)
		}
		mode.BaudRate = n
	}
	if val := q.Get("databits"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 5 || n > 8 {
			return nil, fmt.Errorf("invalid data bits %q", val)
		}
		mode.DataBits = n
	}
	if val := q.Get("parity"); val != "" {
		p, ok := parities[strings.ToLower(val)]
		if !ok {
			return nil, fmt.Errorf("invalid parity %q", val)
		}
		mode.Parity = p
	}
	if val := q.Get("stopbits"); val != "" {
		s, ok := stopBits[val]
		if !ok {
			return nil, fmt.Errorf("invalid stop bits %q", val)
		}
		mode.StopBits = s
	}
	return mode, nil
}

// Open opens a serial port. If mode is nil, DefaultMode is used. The port
// is wrapped in a Conn so reads honor deadlines.
func Open(name string, mode *bugst.Mode) (*Conn, error) {
	if mode == nil {
		mode = DefaultMode()
	}
	port, err := bugst.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	glog.V(2).Infof("serial: opened %s at %d baud", name, mode.BaudRate)
	return NewConn(port), nil
}

// FromURL opens the port named by the URL path, e.g.
// serial:///dev/ttyACM0?baud=57600. The path may also be given as the
// opaque part (serial:COM3).
func FromURL(u *url.URL) (*Conn, error) {
	name := u.Path
	if name == "" {
		name = u.Opaque
	}
	if name == "" {
		return nil, fmt.Errorf("missing serial port name in %q", u.String())
	}
	mode, err := ModeFromQuery(u.Query())
	if err != nil {
		return nil, err
	}
	return Open(name, mode)
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}

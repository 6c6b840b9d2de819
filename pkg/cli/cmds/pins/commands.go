package pins

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/firmata.go/pkg/cli/sh"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
)

func parsePin(c *ishell.Context) (firmata.PinID, bool) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("PIN required"))
		return firmata.PinID{}, false
	}
	id, err := firmata.ParsePinID(c.Args[0])
	if err != nil {
		c.Err(err)
		return id, false
	}
	return id, true
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "high":
		return true, nil
	case "off", "low":
		return false, nil
	}
	return strconv.ParseBool(s)
}

var (
	// PinsCmd lists all pins.
	PinsCmd = ishell.Cmd{
		Name:    "pins",
		Aliases: []string{"ls"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			state := sh.HandleFrom(c).State()
			sh.Output(c, state.PinStates, func() { sh.PrintPins(c, state) })
		}),
	}

	// PinCmd shows a single pin.
	PinCmd = ishell.Cmd{
		Name:    "pin",
		Aliases: []string{"p"},
		Help:    "PIN (e.g. 13, D13, A0)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, ok := parsePin(c)
			if !ok {
				return
			}
			state := sh.HandleFrom(c).State()
			pin, err := state.Pin(id)
			if err != nil {
				c.Err(err)
				return
			}
			index := int(state.Resolve(id))
			sh.Output(c, pin, func() { c.Println(sh.FormatPin(index, pin, state.AnalogPinStart)) })
		}),
	}

	// ModeCmd changes the mode of a pin.
	ModeCmd = ishell.Cmd{
		Name:    "mode",
		Aliases: []string{"m"},
		Help:    "PIN MODE (input, output, analog, pwm, servo, i2c, pullup...)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, ok := parsePin(c)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("MODE required"))
				return
			}
			mode, err := firmata.ParsePinMode(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.SetPinMode(ctx, id, mode)
			})
		}),
	}

	// DigitalCmd sets the level of a digital output.
	DigitalCmd = ishell.Cmd{
		Name:    "digital",
		Aliases: []string{"dw"},
		Help:    "PIN on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, ok := parsePin(c)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("LEVEL required"))
				return
			}
			level, err := parseSwitch(c.Args[1])
			if err != nil {
				c.Err(fmt.Errorf("Invalid LEVEL: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.DigitalWrite(ctx, id, level)
			})
		}),
	}

	// PortCmd writes the output bits of a port.
	PortCmd = ishell.Cmd{
		Name: "port",
		Help: "PORT MASK",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("PORT and MASK required"))
				return
			}
			port, err := strconv.ParseUint(c.Args[0], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("Invalid PORT: %v", err))
				return
			}
			mask, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(fmt.Errorf("Invalid MASK: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.WritePort(ctx, uint8(port), uint16(mask))
			})
		}),
	}

	// AnalogCmd writes a PWM or servo value.
	AnalogCmd = ishell.Cmd{
		Name:    "analog",
		Aliases: []string{"aw"},
		Help:    "PIN VALUE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, ok := parsePin(c)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("VALUE required"))
				return
			}
			val, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(fmt.Errorf("Invalid VALUE: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.AnalogWrite(ctx, id, uint16(val))
			})
		}),
	}

	// ReportCmd toggles reporting, analog for A pins, digital otherwise.
	ReportCmd = ishell.Cmd{
		Name:    "report",
		Aliases: []string{"r"},
		Help:    "PIN on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, ok := parsePin(c)
			if !ok {
				return
			}
			enable := true
			if len(c.Args) > 1 {
				var err error
				if enable, err = parseSwitch(c.Args[1]); err != nil {
					c.Err(fmt.Errorf("Invalid switch: %v", err))
					return
				}
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				if id.Kind == firmata.PinKindAnalog {
					return h.ReportAnalog(ctx, id, enable)
				}
				return h.ReportDigital(ctx, id, enable)
			})
		}),
	}

	// SamplingCmd sets the sampling interval.
	SamplingCmd = ishell.Cmd{
		Name: "sampling",
		Help: "INTERVAL (e.g. 100ms)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("INTERVAL required"))
				return
			}
			interval, err := time.ParseDuration(c.Args[0])
			if err != nil {
				c.Err(fmt.Errorf("Invalid INTERVAL: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.SamplingInterval(ctx, interval)
			})
		}),
	}

	// StringCmd sends a string to the firmware.
	StringCmd = ishell.Cmd{
		Name: "string",
		Help: "TEXT...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			text := strings.Join(c.Args, " ")
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.StringWrite(ctx, text)
			})
		}),
	}

	// QueryCmd re-queries the firmware, capabilities or analog mapping.
	QueryCmd = ishell.Cmd{
		Name:    "query",
		Aliases: []string{"q"},
		Help:    "firmware|capabilities|analog-mapping",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("WHAT required"))
				return
			}
			var fn func(*driver.Handle, context.Context) error
			switch c.Args[0] {
			case "firmware", "fw":
				fn = (*driver.Handle).QueryFirmware
			case "capabilities", "caps":
				fn = (*driver.Handle).QueryCapabilities
			case "analog-mapping", "mapping":
				fn = (*driver.Handle).QueryAnalogMapping
			default:
				c.Err(fmt.Errorf("unknown query %q", c.Args[0]))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return fn(h, ctx)
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&PinsCmd,
		&PinCmd,
		&ModeCmd,
		&DigitalCmd,
		&PortCmd,
		&AnalogCmd,
		&ReportCmd,
		&SamplingCmd,
		&StringCmd,
		&QueryCmd,
	)
}

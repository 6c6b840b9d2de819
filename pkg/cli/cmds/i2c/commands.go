package i2c

import (
	"context"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/firmata.go/pkg/cli/sh"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
)

func parseAddr(c *ishell.Context) (uint8, bool) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("ADDR required"))
		return 0, false
	}
	addr, err := strconv.ParseUint(c.Args[0], 0, 7)
	if err != nil {
		c.Err(fmt.Errorf("Invalid ADDR: %v", err))
		return 0, false
	}
	return uint8(addr), true
}

var (
	// ConfigCmd sets the I2C read delay.
	ConfigCmd = ishell.Cmd{
		Name: "i2c.config",
		Help: "DELAY(us)",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var delay uint64
			if len(c.Args) > 0 {
				var err error
				if delay, err = strconv.ParseUint(c.Args[0], 0, 16); err != nil {
					c.Err(fmt.Errorf("Invalid DELAY: %v", err))
					return
				}
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.I2CConfig(ctx, uint16(delay))
			})
		}),
	}

	// ReadCmd requests bytes from a device. The reply shows up in
	// i2c.replies.
	ReadCmd = ishell.Cmd{
		Name:    "i2c.read",
		Aliases: []string{"i2cr"},
		Help:    "ADDR SIZE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			addr, ok := parseAddr(c)
			if !ok {
				return
			}
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("SIZE required"))
				return
			}
			size, err := strconv.ParseUint(c.Args[1], 0, 16)
			if err != nil {
				c.Err(fmt.Errorf("Invalid SIZE: %v", err))
				return
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.I2CRead(ctx, addr, uint16(size))
			})
		}),
	}

	// WriteCmd writes bytes to a device.
	WriteCmd = ishell.Cmd{
		Name:    "i2c.write",
		Aliases: []string{"i2cw"},
		Help:    "ADDR BYTE...",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			addr, ok := parseAddr(c)
			if !ok {
				return
			}
			data := make([]byte, 0, len(c.Args))
			for _, arg := range c.Args[1:] {
				b, err := strconv.ParseUint(arg, 0, 8)
				if err != nil {
					c.Err(fmt.Errorf("Invalid BYTE %q: %v", arg, err))
					return
				}
				data = append(data, byte(b))
			}
			sh.DoCommand(c, func(ctx context.Context, h *driver.Handle) error {
				return h.I2CWrite(ctx, addr, data)
			})
		}),
	}

	// RepliesCmd prints the received I2C replies.
	RepliesCmd = ishell.Cmd{
		Name: "i2c.replies",
		Help: "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			replies := sh.HandleFrom(c).State().I2CReplies
			if replies == nil {
				replies = []firmata.I2CReply{}
			}
			sh.Output(c, replies, func() {
				for _, r := range replies {
					c.Printf("0x%02x reg 0x%02x: % x\n", r.Address, r.Register, r.Data)
				}
			})
		}),
	}
)

func init() {
	sh.AddCmds(
		&ConfigCmd,
		&ReadCmd,
		&WriteCmd,
		&RepliesCmd,
	)
}

package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/env"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	// CommandTimeout bounds sending a command.
	CommandTimeout time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is a running driver attached to the shell.
type Conn struct {
	Name   string
	Handle *driver.Handle

	stop func()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&InfoCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive:    !evalOnly,
		OutputJSON:     outputJSON,
		CommandTimeout: time.Second,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// HandleFrom gets the handle of the attached driver.
func HandleFrom(c *ishell.Context) *driver.Handle {
	if conn := ShellFrom(c).Conn; conn != nil {
		return conn.Handle
	}
	return nil
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// DoCommand sends a command through the handle and prints OK.
func DoCommand(c *ishell.Context, fn func(ctx context.Context, h *driver.Handle) error) error {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.CommandTimeout)
	defer cancel()
	if err := fn(ctx, s.Conn.Handle); err != nil {
		c.Err(err)
		return err
	}
	if s.OutputJSON {
		c.Println(`{"ok":true}`)
	} else {
		c.Println("OK")
	}
	return nil
}

// Output prints v as JSON when -json is set, otherwise calls text.
func Output(c *ishell.Context, v interface{}, text func()) {
	if !ShellFrom(c).OutputJSON {
		text()
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// SetOut redirects the output of commands.
func (s *Shell) SetOut(w io.Writer) *Shell {
	s.Shell.SetOut(w)
	return s
}

// Attach makes the shell send commands through h. stop is called on
// Disconnect and may be nil.
func (s *Shell) Attach(name string, h *driver.Handle, stop func()) {
	s.Disconnect()
	s.Conn = &Conn{Name: name, Handle: h, stop: stop}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
}

// Connect opens the board at url, handshakes and runs the driver in the
// background.
func (s *Shell) Connect(url string) error {
	conf := *s.Config
	conf.URL = url
	d, closer, err := conf.Connect(context.Background())
	if err != nil {
		return err
	}
	h := d.Handle()
	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		err := d.Run(ctx)
		closer.Close()
		if err != nil && err != context.Canceled {
			glog.Errorf("%s: %v", url, err)
		}
		runErr <- err
	}()
	s.Attach(url, h, func() {
		cancel()
		<-runErr
	})
	return nil
}

// Disconnect stops the attached driver.
func (s *Shell) Disconnect() {
	if conn := s.Conn; conn != nil {
		s.Conn = nil
		conn.Handle.Close()
		if conn.stop != nil {
			conn.stop()
		}
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.URL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.URL)
		}
		if err := s.Connect(s.Config.URL); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.URL, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a board.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.Config.URL
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := s.Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current board.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// InfoCmd prints the firmware identity.
	InfoCmd = ishell.Cmd{
		Name: "info",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			state := HandleFrom(c).State()
			info := struct {
				Firmware        string `json:"firmware"`
				FirmwareVersion string `json:"firmware_version"`
				ProtocolVersion string `json:"protocol_version"`
				Pins            int    `json:"pins"`
				AnalogPinStart  uint8  `json:"analog_pin_start"`
			}{state.FirmwareName, state.FirmwareVersion, state.ProtocolVersion, len(state.Pins), state.AnalogPinStart}
			Output(c, info, func() {
				c.Printf("%s %s (protocol %s), %d pins, analog from %d\n",
					info.Firmware, info.FirmwareVersion, info.ProtocolVersion, info.Pins, info.AnalogPinStart)
			})
		}),
	}

	// WatchCmd prints snapshots as they change. The optional argument
	// limits the number of snapshots, or the duration, e.g. "5" or "3s".
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[COUNT|DURATION]",
		Func: MustBeConnected(func(c *ishell.Context) {
			count, timeout := -1, time.Duration(0)
			if len(c.Args) > 0 {
				var err error
				if timeout, err = time.ParseDuration(c.Args[0]); err != nil {
					if _, serr := fmt.Sscanf(c.Args[0], "%d", &count); serr != nil {
						c.Err(fmt.Errorf("Invalid COUNT or DURATION: %v", c.Args[0]))
						return
					}
				}
			}
			h := HandleFrom(c).Clone()
			if h == nil {
				c.Err(fmt.Errorf("disconnected"))
				return
			}
			defer h.Close()
			ctx := context.Background()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			for n := 0; count < 0 || n < count; n++ {
				state, err := h.Changed(ctx)
				if err != nil {
					if ctx.Err() == nil {
						c.Err(err)
					}
					return
				}
				Output(c, state, func() { PrintPins(c, state) })
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

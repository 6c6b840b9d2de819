// Package env provides the common configuration of the firmata tools:
// defaults, environment variables, command line flags and an optional
// TOML file.
package env

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
	"github.com/robotalks/firmata.go/pkg/transport"
)

// Config is the configuration shared by the firmata tools.
type Config struct {
	// URL locates the board, see transport.Open.
	URL string `toml:"url"`
	// Timeout bounds opening the transport and the handshake.
	Timeout time.Duration `toml:"timeout"`
	// Listen is the address of the HTTP API. Empty disables it.
	Listen string `toml:"listen"`
	// MQTTURL is the broker snapshots are published to. Empty disables
	// publishing. e.g. mqtt://host:port/topic-prefix/
	MQTTURL string `toml:"mqtt_url"`
	// BoardID names the board in MQTT topics.
	BoardID string `toml:"board_id"`
	// SkipBadFrames makes the driver log and skip malformed frames
	// instead of stopping.
	SkipBadFrames bool `toml:"skip_bad_frames"`
	// NoMirror disables optimistic mirroring of commands.
	NoMirror bool `toml:"no_mirror"`
}

// DefaultURL is the default board URL.
const DefaultURL = "serial:///dev/ttyACM0"

var (
	defaultConfig = Config{
		URL:     DefaultURL,
		Timeout: 10 * time.Second,
	}
	configFile string
)

func init() {
	defaultConfig.BoardID = MachineID()
	if err := defaultConfig.FromEnv(os.LookupEnv); err != nil {
		glog.Warningf("env: %v", err)
	}
}

// FromEnv overrides the fields from FIRMATA_* variables.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if val, ok := lookup("FIRMATA_URL"); ok && val != "" {
		c.URL = val
	}
	if val, ok := lookup("FIRMATA_TIMEOUT"); ok && val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("FIRMATA_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if val, ok := lookup("FIRMATA_LISTEN"); ok {
		c.Listen = val
	}
	if val, ok := lookup("FIRMATA_MQTT_URL"); ok {
		c.MQTTURL = val
	}
	if val, ok := lookup("FIRMATA_BOARD_ID"); ok && val != "" {
		c.BoardID = val
	}
	return nil
}

// SetupFlags sets command line flags for the transport.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "TOML config file")
	flag.StringVar(&defaultConfig.URL, "url", defaultConfig.URL, "Board URL (serial, tcp, ws, mqtt)")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Connect and handshake timeout")
	flag.BoolVar(&defaultConfig.SkipBadFrames, "skip-bad-frames", defaultConfig.SkipBadFrames, "Skip malformed frames instead of stopping")
	flag.BoolVar(&defaultConfig.NoMirror, "no-mirror", defaultConfig.NoMirror, "Don't mirror commands into the local state")
}

// SetupServiceFlags sets the flags of the daemon in addition to SetupFlags.
func SetupServiceFlags() {
	SetupFlags()
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "HTTP API listen address")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL for state publishing")
	flag.StringVar(&defaultConfig.BoardID, "id", defaultConfig.BoardID, "Board ID")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations. When -config
// was specified, the file overrides the defaults.
func NewConfig() *Config {
	conf := defaultConfig
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			log.Fatalln(err)
		}
	}
	return &conf
}

// LoadFile overrides the fields present in a TOML file.
func (c *Config) LoadFile(fn string) error {
	if _, err := toml.DecodeFile(fn, c); err != nil {
		return fmt.Errorf("load config %s: %w", fn, err)
	}
	return nil
}

// Open opens the transport to the board.
func (c *Config) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("board URL must be specified")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return transport.Open(ctx, c.URL)
}

// Connect opens the transport and performs the handshake. The returned
// driver is ready to Run and the transport is closed when the driver
// handshake fails.
func (c *Config) Connect(ctx context.Context) (*driver.Driver, io.Closer, error) {
	rwc, err := c.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	d := driver.New(rwc)
	d.SkipBadFrames = c.SkipBadFrames
	d.MirrorCommands = !c.NoMirror
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if err := d.Handshake(ctx); err != nil {
		d.Close()
		rwc.Close()
		return nil, nil, fmt.Errorf("handshake %s: %w", c.URL, err)
	}
	return d, rwc, nil
}

// MustConnect is Connect and fails on error.
func (c *Config) MustConnect(ctx context.Context) (*driver.Driver, io.Closer) {
	d, closer, err := c.Connect(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return d, closer
}

// Package transport opens the duplex byte stream to a board from a URL.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/golang/glog"
	"github.com/robotalks/firmata.go/pkg/transport/mqtt"
	"github.com/robotalks/firmata.go/pkg/transport/serial"
	"github.com/robotalks/firmata.go/pkg/transport/websocket"
)

// Open opens a transport. Supported URLs:
//
//	/dev/ttyACM0, serial:///dev/ttyACM0?baud=57600  serial port
//	tcp://host:3030                                 raw TCP (e.g. a WiFi firmware)
//	ws://host/path, wss://host/path                 websocket bridge
//	mqtt://broker:1883/prefix/?board=uno            MQTT bridge
func Open(ctx context.Context, rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transport URL %q: %w", rawURL, err)
	}
	var rwc io.ReadWriteCloser
	switch strings.ToLower(u.Scheme) {
	case "", "serial", "file":
		rwc, err = serial.FromURL(u)
	case "tcp":
		var d net.Dialer
		rwc, err = d.DialContext(ctx, "tcp", u.Host)
	case "ws", "wss":
		rwc, err = websocket.Dial(ctx, rawURL)
	case "mqtt", "mqtts":
		rwc, err = mqtt.Dial(ctx, rawURL)
	default:
		return nil, fmt.Errorf("unknown transport URL scheme: %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	glog.Infof("transport: opened %s", rawURL)
	return rwc, nil
}

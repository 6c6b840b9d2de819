// Package websocket tunnels the byte stream of a board over a websocket,
// e.g. to a serial bridge running next to the board.
package websocket

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// DefaultOrigin is sent when the URL has no origin query parameter.
const DefaultOrigin = "http://localhost/"

// Dial connects to a ws:// or wss:// URL. Writes are sent as binary
// frames; reads return frame payloads as a continuous stream.
func Dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := u.Query().Get("origin")
	if origin == "" {
		origin = DefaultOrigin
	}
	q := u.Query()
	q.Del("origin")
	u.RawQuery = q.Encode()

	config, err := websocket.NewConfig(u.String(), origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	config.Dialer = dialer
	conn, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	glog.V(2).Infof("websocket: connected to %s", u)
	return conn, nil
}

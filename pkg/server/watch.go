package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

const writeWait = 5 * time.Second

// watch streams snapshots as JSON text messages: the current one first,
// then each change. The connection is closed normally when the driver
// stops.
func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	h := s.Handle.Clone()
	if h == nil {
		writeError(w, firmata.ErrClosed)
		return
	}
	defer h.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("server: websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()
	glog.V(2).Infof("server: watcher %s connected", conn.RemoteAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// reading processes control frames and detects the peer leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		state, err := h.Changed(ctx)
		if err != nil && !errors.Is(err, firmata.ErrClosed) {
			break
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if werr := conn.WriteJSON(state); werr != nil {
			glog.V(2).Infof("server: watcher %s: %v", conn.RemoteAddr(), werr)
			break
		}
		if err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "driver stopped"),
				time.Now().Add(writeWait))
			break
		}
	}
	glog.V(2).Infof("server: watcher %s disconnected", conn.RemoteAddr())
}

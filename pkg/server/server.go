// Package server exposes a board over HTTP: JSON snapshots, pin commands
// and a websocket stream of state changes.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/driver"
	"github.com/robotalks/firmata.go/pkg/framework"
)

// Server serves the HTTP API of one board.
type Server struct {
	Handle *driver.Handle
	Addr   string

	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates a Server sending commands through h.
func New(h *driver.Handle) *Server {
	s := &Server{
		Handle: h,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	r := s.router
	r.HandleFunc("/state", s.getState).Methods("GET", "HEAD")
	r.HandleFunc("/pins/{pin}", s.getPin).Methods("GET", "HEAD")
	r.HandleFunc("/pins/{pin}/mode", s.setMode).Methods("PUT")
	r.HandleFunc("/pins/{pin}/digital", s.digitalWrite).Methods("PUT")
	r.HandleFunc("/pins/{pin}/analog", s.analogWrite).Methods("PUT")
	r.HandleFunc("/pins/{pin}/report", s.report).Methods("PUT")
	r.HandleFunc("/ports/{port:[0-9]+}", s.writePort).Methods("PUT")
	r.HandleFunc("/string", s.stringWrite).Methods("POST")
	r.HandleFunc("/sampling", s.sampling).Methods("POST")
	r.HandleFunc("/query/{what}", s.query).Methods("POST")
	r.HandleFunc("/i2c/config", s.i2cConfig).Methods("POST")
	r.HandleFunc("/i2c/read", s.i2cRead).Methods("POST")
	r.HandleFunc("/i2c/write", s.i2cWrite).Methods("POST")
	r.HandleFunc("/ws", s.watch).Methods("GET")
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(sw, r)
	glog.V(2).Infof("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "http"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	glog.Infof("server: listening on %s", ln.Addr())
	srv := &http.Server{Handler: s}
	return framework.RunWithContextCancel(ctx, func() {
		srv.Close()
	}, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack is required by the websocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("server: encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, firmata.ErrOutOfRange),
		errors.Is(err, firmata.ErrConversion),
		errors.Is(err, firmata.ErrWrongType),
		errors.Is(err, firmata.ErrNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, firmata.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func done(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

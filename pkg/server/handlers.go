package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

// PinResponse is the body of GET /pins/{pin}.
type PinResponse struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	firmata.Pin
}

// ModeRequest is the body of PUT /pins/{pin}/mode.
type ModeRequest struct {
	Mode firmata.PinMode `json:"mode"`
}

// ValueRequest is the body of PUT /pins/{pin}/digital, /pins/{pin}/analog
// and /ports/{port}.
type ValueRequest struct {
	Value json.RawMessage `json:"value"`
}

// ReportRequest is the body of PUT /pins/{pin}/report.
type ReportRequest struct {
	Enable bool `json:"enable"`
}

// StringRequest is the body of POST /string.
type StringRequest struct {
	Text string `json:"text"`
}

// SamplingRequest is the body of POST /sampling, e.g. {"interval":"100ms"}.
type SamplingRequest struct {
	Interval string `json:"interval"`
}

// I2CRequest is the body of the /i2c endpoints.
type I2CRequest struct {
	Address uint8  `json:"address"`
	Size    uint16 `json:"size,omitempty"`
	Delay   uint16 `json:"delay,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", firmata.ErrConversion, err)
	}
	return nil
}

func pinID(r *http.Request) (firmata.PinID, error) {
	return firmata.ParsePinID(mux.Vars(r)["pin"])
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Handle.State())
}

func (s *Server) getPin(w http.ResponseWriter, r *http.Request) {
	id, err := pinID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state := s.Handle.State()
	pin, err := state.Pin(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, PinResponse{ID: id.String(), Index: int(state.Resolve(id)), Pin: pin})
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	id, err := pinID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		err = s.Handle.SetPinMode(r.Context(), id, req.Mode)
	}
	done(w, err)
}

// parseLevel accepts 0/1 or true/false.
func parseLevel(v json.RawMessage) (bool, error) {
	level, err := strconv.ParseBool(string(v))
	if err != nil {
		return false, fmt.Errorf("%w: invalid level %q", firmata.ErrConversion, v)
	}
	return level, nil
}

func parseUint16(v json.RawMessage) (uint16, error) {
	n, err := strconv.ParseUint(string(v), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid value %q", firmata.ErrConversion, v)
	}
	return uint16(n), nil
}

func (s *Server) digitalWrite(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	var level bool
	id, err := pinID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		level, err = parseLevel(req.Value)
	}
	if err == nil {
		err = s.Handle.DigitalWrite(r.Context(), id, level)
	}
	done(w, err)
}

func (s *Server) analogWrite(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	var value uint16
	id, err := pinID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		value, err = parseUint16(req.Value)
	}
	if err == nil {
		err = s.Handle.AnalogWrite(r.Context(), id, value)
	}
	done(w, err)
}

func (s *Server) writePort(w http.ResponseWriter, r *http.Request) {
	var req ValueRequest
	var mask uint16
	port, err := strconv.ParseUint(mux.Vars(r)["port"], 10, 8)
	if err != nil {
		err = fmt.Errorf("%w: invalid port", firmata.ErrConversion)
	}
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		mask, err = parseUint16(req.Value)
	}
	if err == nil {
		err = s.Handle.WritePort(r.Context(), uint8(port), mask)
	}
	done(w, err)
}

// report toggles analog reporting for "A" ids and digital reporting
// otherwise.
func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	id, err := pinID(r)
	if err == nil {
		err = decode(r, &req)
	}
	if err == nil {
		if id.Kind == firmata.PinKindAnalog {
			err = s.Handle.ReportAnalog(r.Context(), id, req.Enable)
		} else {
			err = s.Handle.ReportDigital(r.Context(), id, req.Enable)
		}
	}
	done(w, err)
}

func (s *Server) stringWrite(w http.ResponseWriter, r *http.Request) {
	var req StringRequest
	err := decode(r, &req)
	if err == nil {
		err = s.Handle.StringWrite(r.Context(), req.Text)
	}
	done(w, err)
}

func (s *Server) sampling(w http.ResponseWriter, r *http.Request) {
	var req SamplingRequest
	var interval time.Duration
	err := decode(r, &req)
	if err == nil {
		if interval, err = time.ParseDuration(req.Interval); err != nil {
			err = fmt.Errorf("%w: %v", firmata.ErrConversion, err)
		}
	}
	if err == nil {
		err = s.Handle.SamplingInterval(r.Context(), interval)
	}
	done(w, err)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var err error
	switch what := mux.Vars(r)["what"]; what {
	case "firmware":
		err = s.Handle.QueryFirmware(r.Context())
	case "capabilities":
		err = s.Handle.QueryCapabilities(r.Context())
	case "analog-mapping":
		err = s.Handle.QueryAnalogMapping(r.Context())
	default:
		err = fmt.Errorf("%w: unknown query %q", firmata.ErrNotFound, what)
	}
	done(w, err)
}

func (s *Server) i2cConfig(w http.ResponseWriter, r *http.Request) {
	var req I2CRequest
	err := decode(r, &req)
	if err == nil {
		err = s.Handle.I2CConfig(r.Context(), req.Delay)
	}
	done(w, err)
}

func (s *Server) i2cRead(w http.ResponseWriter, r *http.Request) {
	var req I2CRequest
	err := decode(r, &req)
	if err == nil {
		err = s.Handle.I2CRead(r.Context(), req.Address, req.Size)
	}
	done(w, err)
}

func (s *Server) i2cWrite(w http.ResponseWriter, r *http.Request) {
	var req I2CRequest
	err := decode(r, &req)
	if err == nil {
		err = s.Handle.I2CWrite(r.Context(), req.Address, req.Data)
	}
	done(w, err)
}

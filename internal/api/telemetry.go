package api

import (
	"net/http"
	"time"

	"flightlogger/pkg/flight"
	"flightlogger/pkg/sim"
)

// SessionView is the read side of the flight engine.
type SessionView interface {
	Snapshot() flight.Session
	Report() (flight.Report, bool)
	LastTelemetry() (sim.Telemetry, time.Time, bool)
}

// ConnCounter reports how many bridge clients are connected.
type ConnCounter interface {
	Connected() int
}

// SessionResponse is the body of GET /api/session.
type SessionResponse struct {
	Session flight.Session `json:"session"`
	Report  *flight.Report `json:"report,omitempty"`
}

// SessionHandler serves the live session.
type SessionHandler struct {
	view SessionView
}

func NewSessionHandler(v SessionView) *SessionHandler {
	return &SessionHandler{view: v}
}

func (h *SessionHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Session: h.view.Snapshot()}
	if rep, ok := h.view.Report(); ok {
		resp.Report = &rep
	}
	writeJSON(w, http.StatusOK, resp)
}

// TelemetryResponse is the body of GET /api/telemetry.
type TelemetryResponse struct {
	Available  bool           `json:"available"`
	Telemetry  *sim.Telemetry `json:"telemetry,omitempty"`
	ReceivedAt *time.Time     `json:"received_at,omitempty"`
	AGLFeet    float64        `json:"agl_ft"`
	Clients    int            `json:"bridge_clients"`
}

// TelemetryHandler serves the last sample the engine evaluated.
type TelemetryHandler struct {
	view  SessionView
	conns ConnCounter
}

// NewTelemetryHandler creates the handler. conns may be nil.
func NewTelemetryHandler(v SessionView, conns ConnCounter) *TelemetryHandler {
	return &TelemetryHandler{view: v, conns: conns}
}

func (h *TelemetryHandler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var resp TelemetryResponse
	if h.conns != nil {
		resp.Clients = h.conns.Connected()
	}
	if tel, at, ok := h.view.LastTelemetry(); ok {
		resp.Available = true
		resp.Telemetry = &tel
		resp.ReceivedAt = &at
		resp.AGLFeet = tel.AltitudeAGL()
	}
	writeJSON(w, http.StatusOK, resp)
}

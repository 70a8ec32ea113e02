package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightlogger/pkg/airport"
	"flightlogger/pkg/flight"
	"flightlogger/pkg/sim"
	"flightlogger/pkg/sim/bridge"
	"flightlogger/pkg/tracker"
	"flightlogger/pkg/version"
)

type fakeView struct {
	session flight.Session
	report  *flight.Report
	tel     sim.Telemetry
	telAt   time.Time
}

func (f *fakeView) Snapshot() flight.Session { return f.session }

func (f *fakeView) Report() (flight.Report, bool) {
	if f.report == nil {
		return flight.Report{}, false
	}
	return *f.report, true
}

func (f *fakeView) LastTelemetry() (sim.Telemetry, time.Time, bool) {
	return f.tel, f.telAt, !f.telAt.IsZero()
}

type fixedConns int

func (c fixedConns) Connected() int { return int(c) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	r := NewRouter(&Handlers{})

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = get(t, r, "/api/version")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, version.Version, body["version"])
}

func TestSession(t *testing.T) {
	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	view := &fakeView{session: flight.Session{
		ID:           "abc",
		Phase:        flight.PhaseAirborne,
		StartedAt:    started,
		Departure:    airport.Airport{ICAO: "RCTP", Lat: 25.0797, Lon: 121.2342, Kind: airport.KindResolved},
		Arrival:      airport.Unresolved,
		Pilot:        "Maverick",
		AircraftType: "A320",
	}}
	r := NewRouter(&Handlers{Session: NewSessionHandler(view)})

	rec := get(t, r, "/api/session")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	session := body["session"].(map[string]any)
	assert.Equal(t, "airborne", session["phase"])
	assert.Equal(t, "RCTP", session["departure"].(map[string]any)["icao"])
	assert.Equal(t, "unresolved", session["arrival"].(map[string]any)["kind"])
	assert.NotContains(t, session, "grounded_at")
	assert.NotContains(t, body, "report")

	view.session.Phase = flight.PhaseReported
	view.report = &flight.Report{SessionID: "abc", ArrivalICAO: airport.CrashICAO, LandingQuality: flight.QualityCrash}

	rec = get(t, r, "/api/session")
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Report)
	assert.Equal(t, flight.QualityCrash, resp.Report.LandingQuality)
	assert.Equal(t, "Crash", resp.Report.ArrivalICAO)
}

func TestTelemetry(t *testing.T) {
	view := &fakeView{}
	r := NewRouter(&Handlers{Telemetry: NewTelemetryHandler(view, fixedConns(2))})

	rec := get(t, r, "/api/telemetry")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["available"])
	assert.Equal(t, 2.0, body["bridge_clients"])
	assert.NotContains(t, body, "telemetry")

	view.tel = sim.Telemetry{Latitude: 25.08, AltitudeMSL: 130.48, TerrainAltitude: 100, VerticalSpeed: 900}
	view.telAt = time.Date(2026, 10, 19, 8, 0, 1, 0, time.UTC)

	rec = get(t, r, "/api/telemetry")
	var resp TelemetryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Available)
	require.NotNil(t, resp.Telemetry)
	assert.Equal(t, 900.0, resp.Telemetry.VerticalSpeed)
	assert.InDelta(t, 100.0, resp.AGLFeet, 0.01)
	assert.True(t, view.telAt.Equal(*resp.ReceivedAt))
}

func TestOptionalRoutes(t *testing.T) {
	r := NewRouter(&Handlers{})

	for _, path := range []string{"/api/session", "/api/telemetry", "/ws/telemetry", "/api/shutdown", "/api/stats"} {
		assert.Equal(t, http.StatusNotFound, get(t, r, path).Code, path)
	}
}

func TestShutdown(t *testing.T) {
	var called atomic.Bool
	r := NewRouter(&Handlers{Shutdown: func() { called.Store(true) }})

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, r, "/api/shutdown").Code)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/shutdown", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Eventually(t, called.Load, time.Second, 10*time.Millisecond)
}

func TestBridgeRoute(t *testing.T) {
	b := bridge.New(time.Minute)
	srv := httptest.NewServer(NewRouter(&Handlers{Bridge: b}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/telemetry"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(sim.Telemetry{Latitude: 35.55, Longitude: 139.78, IsOnGround: true}))

	require.Eventually(t, func() bool {
		tel, err := b.Sample(context.Background())
		return err == nil && tel.Latitude == 35.55
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLatestLog(t *testing.T) {
	r := NewRouter(&Handlers{})

	rec := get(t, r, "/api/log/latest?all=1")
	require.Equal(t, http.StatusOK, rec.Code)
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Contains(t, body, "log")
	assert.Contains(t, body, "lines")
}

func TestStats(t *testing.T) {
	tr := tracker.New()
	tr.TrackAPISuccess("discord")
	tr.TrackCacheHit("airports")
	r := NewRouter(&Handlers{Stats: tr})

	rec := get(t, r, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Providers map[string]tracker.ProviderStats `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Providers["discord"].APISuccess)
	assert.Equal(t, int64(1), body.Providers["airports"].CacheHits)
}

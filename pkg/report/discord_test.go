package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightlogger/pkg/flight"
	"flightlogger/pkg/request"
)

var (
	takeoff = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	landing = takeoff.Add(2*time.Hour + 55*time.Minute)
)

func sampleReport() flight.Report {
	return flight.Report{
		SessionID:         "abc",
		Pilot:             "EVA123",
		AircraftType:      "A321",
		DepartureICAO:     "RCTP",
		ArrivalICAO:       "RJTT",
		DepartureTimezone: "Asia/Taipei",
		ArrivalTimezone:   "Asia/Tokyo",
		TakeoffAt:         takeoff,
		LandingAt:         landing,
		DurationMinutes:   175,
		VerticalSpeedFPM:  -142.7,
		GForce:            1.37,
		GroundSpeedKnots:  131.4,
		TrueAirSpeedKnots: 133.1,
		LandingQuality:    flight.QualityHard,
	}
}

func TestBuildMessage(t *testing.T) {
	r := sampleReport()
	msg := BuildMessage(&r, landing)

	require.Len(t, msg.Embeds, 1)
	e := msg.Embeds[0]
	assert.Equal(t, embedTitle, e.Title)
	assert.Equal(t, ColorHard, e.Color)
	assert.Equal(t, embedFooter, e.Footer.Text)
	assert.Equal(t, "2026-05-04T12:25:00Z", e.Timestamp)

	require.Len(t, e.Fields, 6)
	assert.Equal(t, "**Pilot**: EVA123\n**Aircraft**: A321", e.Fields[0].Value)
	assert.False(t, e.Fields[0].Inline)
	assert.Equal(t, "**Departure**: RCTP\n**Arrival**: RJTT", e.Fields[1].Value)
	assert.Equal(t, "**Flight Time**: 175 mins", e.Fields[2].Value)
	assert.Equal(t, "**V/S**: -142.7 fpm\n**G-Force**: 1.37\n**TAS**: 133.1 kts\n**GS**: 131.4 kts", e.Fields[3].Value)
	assert.Equal(t, "**HARD**", e.Fields[4].Value)
	assert.Equal(t, "**Takeoff**: 04 May 2026 17:30 CST\n**Landing**: 04 May 2026 21:25 JST", e.Fields[5].Value)
}

func TestColor(t *testing.T) {
	assert.Equal(t, ColorButter, Color(flight.QualityButter))
	assert.Equal(t, ColorHard, Color(flight.QualityHard))
	assert.Equal(t, ColorCrash, Color(flight.QualityCrash))
	assert.Equal(t, ColorDefault, Color(""))
}

func TestFormatLocal(t *testing.T) {
	tests := []struct {
		name string
		tz   string
		want string
	}{
		{"Known zone", "Asia/Taipei", "04 May 2026 17:30 CST"},
		{"Empty zone", "", "04 May 2026 09:30 UTC"},
		{"Unknown zone", "Mars/Olympus_Mons", "04 May 2026 09:30 UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLocal(takeoff, tt.tz))
		})
	}
}

func TestDiscord_Deliver(t *testing.T) {
	var got Message
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer svr.Close()

	d := NewDiscord(request.New(request.Options{}), svr.URL)
	d.now = func() time.Time { return landing }

	r := sampleReport()
	r.LandingQuality = flight.QualityCrash
	r.ArrivalICAO = "Crash"
	r.ArrivalTimezone = ""
	require.NoError(t, d.Deliver(context.Background(), r))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, ColorCrash, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Fields[1].Value, "**Arrival**: Crash")
	assert.Contains(t, got.Embeds[0].Fields[5].Value, "**Landing**: 04 May 2026 12:25 UTC")
}

func TestDiscord_DeliverFailure(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Webhook","code":10015}`))
	}))
	defer svr.Close()

	d := NewDiscord(request.New(request.Options{}), svr.URL)
	err := d.Deliver(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "Unknown Webhook")
}

func TestDiscord_NoWebhook(t *testing.T) {
	d := NewDiscord(request.New(request.Options{}), "  ")
	assert.ErrorIs(t, d.Deliver(context.Background(), sampleReport()), ErrNoWebhook)
}

package flight

import (
	"math"
	"time"

	"flightlogger/pkg/airport"
	"flightlogger/pkg/sim"
)

// StandardGravity converts raw vertical acceleration to g.
const StandardGravity = 9.80665

// Session is the live state of one flight, owned by the Engine.
type Session struct {
	ID           string          `json:"id"`
	Phase        Phase           `json:"phase"`
	StartedAt    time.Time       `json:"started_at,omitzero"`
	GroundedAt   time.Time       `json:"grounded_at,omitzero"`
	Departure    airport.Airport `json:"departure"`
	Arrival      airport.Airport `json:"arrival"`
	Pilot        string          `json:"pilot"`
	AircraftType string          `json:"aircraft_type"`
}

// Report is the terminal output of a completed session. It is produced exactly once.
type Report struct {
	SessionID         string    `json:"session_id"`
	Pilot             string    `json:"pilot"`
	AircraftType      string    `json:"aircraft_type"`
	DepartureICAO     string    `json:"departure_icao"`
	ArrivalICAO       string    `json:"arrival_icao"`
	DepartureTimezone string    `json:"departure_tz,omitempty"`
	ArrivalTimezone   string    `json:"arrival_tz,omitempty"`
	TakeoffAt         time.Time `json:"takeoff_at"`
	LandingAt         time.Time `json:"landing_at"`
	DurationMinutes   int       `json:"duration_minutes"`
	VerticalSpeedFPM  float64   `json:"vertical_speed_fpm"`
	GForce            float64   `json:"g_force"`
	GroundSpeedKnots  float64   `json:"ground_speed_kts"`
	TrueAirSpeedKnots float64   `json:"true_airspeed_kts"`
	LandingQuality    Quality   `json:"landing_quality"`
}

// NewReport assembles the report of a grounded session from the sample that grounded it.
func NewReport(s *Session, tel *sim.Telemetry, quality Quality) Report {
	return Report{
		SessionID:         s.ID,
		Pilot:             s.Pilot,
		AircraftType:      s.AircraftType,
		DepartureICAO:     s.Departure.Code(),
		ArrivalICAO:       s.Arrival.Code(),
		DepartureTimezone: s.Departure.Timezone,
		ArrivalTimezone:   s.Arrival.Timezone,
		TakeoffAt:         s.StartedAt,
		LandingAt:         s.GroundedAt,
		DurationMinutes:   durationMinutes(s.StartedAt, s.GroundedAt),
		VerticalSpeedFPM:  roundTo(tel.VerticalSpeed, 1),
		GForce:            roundTo(tel.AccelZ/StandardGravity, 2),
		GroundSpeedKnots:  roundTo(tel.GroundSpeed, 1),
		TrueAirSpeedKnots: roundTo(tel.TrueAirSpeed, 1),
		LandingQuality:    quality,
	}
}

func durationMinutes(from, to time.Time) int {
	ms := to.Sub(from).Milliseconds()
	return int(math.Round(float64(ms) / 60000))
}

// roundTo rounds to the given decimal places. Non-finite input becomes 0 so
// the report stays encodable.
func roundTo(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

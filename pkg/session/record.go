// Package session persists the in-progress flight so it survives a restart.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"flightlogger/pkg/airport"
)

const (
	// Key is the fixed state key the record is stored under.
	Key = "flight_session"
	// CurrentVersion is the schema version written by Save.
	CurrentVersion = 2
)

var (
	ErrUnsupportedVersion = errors.New("unsupported session record version")
	ErrNotInFlight        = errors.New("session record is not in flight")
	ErrAlreadyLanded      = errors.New("session record already has ground contact")
	ErrNoStartTime        = errors.New("session record has no start time")
	ErrStale              = errors.New("session record is too old")
	ErrFutureStart        = errors.New("session record starts in the future")
)

// Record is the persisted projection of an airborne flight session.
type Record struct {
	Version       int             `json:"version"`
	ID            string          `json:"id"`
	FlightStarted bool            `json:"flight_started"`
	GroundContact bool            `json:"ground_contact"`
	StartedAt     time.Time       `json:"started_at"`
	Departure     airport.Airport `json:"departure"`
	Pilot         string          `json:"pilot"`
	AircraftType  string          `json:"aircraft_type"`
	SavedAt       time.Time       `json:"saved_at"`
}

// legacyRecord is the unversioned blob written by the browser logger script.
type legacyRecord struct {
	FlightStarted      bool     `json:"flightStarted"`
	FlightStartTime    *float64 `json:"flightStartTime"` // epoch millis
	DepartureICAO      string   `json:"departureICAO"`
	Callsign           string   `json:"callsign"`
	Aircraft           string   `json:"aircraft"`
	FirstGroundContact bool     `json:"firstGroundContact"`
	DepartureAirport   *struct {
		ICAO string   `json:"icao"`
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
		TZ   *string  `json:"tz"`
	} `json:"departureAirportData"`
	Timestamp *float64 `json:"timestamp"` // epoch millis
}

// Decode parses a stored blob, upgrading the legacy format. It does not
// apply the resumability rules; see Validate.
func Decode(data []byte) (*Record, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}

	if _, ok := probe["version"]; ok {
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse session record: %w", err)
		}
		if rec.Version != CurrentVersion {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
		}
		return &rec, nil
	}

	if _, ok := probe["flightStarted"]; ok {
		var legacy legacyRecord
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("failed to parse legacy session record: %w", err)
		}
		return upgradeLegacy(&legacy), nil
	}

	return nil, fmt.Errorf("%w: no version tag", ErrUnsupportedVersion)
}

func upgradeLegacy(l *legacyRecord) *Record {
	rec := &Record{
		Version:       CurrentVersion,
		ID:            uuid.NewString(),
		FlightStarted: l.FlightStarted,
		GroundContact: l.FirstGroundContact,
		Departure:     legacyDeparture(l),
		Pilot:         l.Callsign,
		AircraftType:  l.Aircraft,
	}
	if l.FlightStartTime != nil && *l.FlightStartTime > 0 {
		rec.StartedAt = fromMillis(*l.FlightStartTime)
	}
	if l.Timestamp != nil && *l.Timestamp > 0 {
		rec.SavedAt = fromMillis(*l.Timestamp)
	}
	return rec
}

func legacyDeparture(l *legacyRecord) airport.Airport {
	icao := strings.TrimSpace(l.DepartureICAO)
	if icao == "" || icao == airport.UnknownICAO {
		return airport.Unresolved
	}
	d := l.DepartureAirport
	if d == nil || d.ICAO != icao || d.Lat == nil || d.Lon == nil {
		// The pilot typed the code in.
		return airport.Manual(icao)
	}
	a := airport.Airport{ICAO: icao, Lat: *d.Lat, Lon: *d.Lon, Kind: airport.KindResolved}
	if d.TZ != nil {
		a.Timezone = *d.TZ
	}
	return a
}

func fromMillis(ms float64) time.Time {
	sec, frac := math.Modf(ms / 1000)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC().Round(time.Millisecond)
}

// Validate applies the resumability rules. A zero maxAge disables the age check.
func (r *Record) Validate(now time.Time, maxAge time.Duration) error {
	switch {
	case !r.FlightStarted:
		return ErrNotInFlight
	case r.GroundContact:
		return ErrAlreadyLanded
	case r.StartedAt.IsZero():
		return ErrNoStartTime
	case r.StartedAt.After(now):
		return fmt.Errorf("%w: %s", ErrFutureStart, r.StartedAt.Format(time.RFC3339))
	case maxAge > 0 && !r.SavedAt.IsZero() && now.Sub(r.SavedAt) > maxAge:
		return fmt.Errorf("%w: saved %s ago", ErrStale, now.Sub(r.SavedAt).Round(time.Second))
	}
	return nil
}

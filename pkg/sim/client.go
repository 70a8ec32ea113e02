// Package sim provides simulator telemetry types and sources.
package sim

import (
	"context"
	"errors"

	"flightlogger/pkg/geo"
)

var (
	// ErrUnavailable is returned when no telemetry can be sampled right now.
	// Callers treat it as a transient gap, not a failure.
	ErrUnavailable = errors.New("telemetry unavailable")
)

// Source is a pull-based telemetry provider. Sample must not block.
type Source interface {
	Sample(ctx context.Context) (Telemetry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Telemetry, error)

// Sample implements Source.
func (f SourceFunc) Sample(ctx context.Context) (Telemetry, error) {
	return f(ctx)
}

// Telemetry represents a snapshot of aircraft state.
type Telemetry struct {
	Latitude        float64 `json:"lat"`          // Degrees
	Longitude       float64 `json:"lon"`          // Degrees
	AltitudeMSL     float64 `json:"altitude_m"`   // Meters MSL
	TerrainAltitude float64 `json:"terrain_m"`    // Meters MSL of the ground below
	IsOnGround      bool    `json:"on_ground"`    // Gear/ground contact
	VerticalSpeed   float64 `json:"vs_fpm"`       // Feet per minute
	GroundSpeed     float64 `json:"gs_kts"`       // Knots
	TrueAirSpeed    float64 `json:"tas_kts"`      // Knots
	AccelZ          float64 `json:"accel_z_mps2"` // Raw vertical acceleration, m/s^2
}

// AltitudeAGL returns the height above the terrain in feet.
func (t *Telemetry) AltitudeAGL() float64 {
	return (t.AltitudeMSL - t.TerrainAltitude) * geo.FeetPerMeter
}

// Position returns the aircraft position.
func (t *Telemetry) Position() geo.Point {
	return geo.Point{Lat: t.Latitude, Lon: t.Longitude}
}

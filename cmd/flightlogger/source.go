package main

import (
	"fmt"
	"log/slog"
	"time"

	"flightlogger/pkg/config"
	"flightlogger/pkg/sim"
	"flightlogger/pkg/sim/bridge"
	"flightlogger/pkg/sim/mocksim"
)

// telemetrySource is the engine's sim.Source plus what main needs to wire
// and release it.
type telemetrySource struct {
	sim.Source
	bridge *bridge.Bridge
	close  func() error
}

func (s *telemetrySource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func initSource(cfg *config.Config) (*telemetrySource, error) {
	switch cfg.Sim.Provider {
	case "mock":
		slog.Info("Sim Source: Mock")
		m := cfg.Sim.Mock
		client := mocksim.NewClient(mocksim.Config{
			StartLat:       m.StartLat,
			StartLon:       m.StartLon,
			FieldElevation: float64(m.FieldElevation),
			Heading:        m.StartHeading,
			CruiseAltitude: m.CruiseAltFt,
			TouchdownVS:    m.TouchdownVSFPM,
			DurationParked: time.Duration(m.DurationParked),
			DurationTaxi:   time.Duration(m.DurationTaxi),
			DurationHold:   time.Duration(m.DurationHold),
			DurationCruise: time.Duration(m.DurationCruise),
		})
		return &telemetrySource{Source: client, close: client.Close}, nil
	case "bridge":
		b := bridge.New(time.Duration(cfg.Sim.StaleAfter))
		slog.Info("Sim Source: Bridge", "endpoint", "ws://"+cfg.Server.Address+"/ws/telemetry")
		return &telemetrySource{Source: b, bridge: b}, nil
	default:
		return nil, fmt.Errorf("unknown sim provider %q", cfg.Sim.Provider)
	}
}

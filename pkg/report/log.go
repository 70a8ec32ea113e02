package report

import (
	"context"
	"log/slog"

	"flightlogger/pkg/flight"
)

// Log writes reports to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log sink. A nil logger uses slog.Default at delivery time.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Deliver implements flight.Sink.
func (l *Log) Deliver(ctx context.Context, r flight.Report) error {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Flight report",
		slog.String("id", r.SessionID),
		slog.String("pilot", r.Pilot),
		slog.String("aircraft", r.AircraftType),
		slog.String("departure", r.DepartureICAO),
		slog.String("arrival", r.ArrivalICAO),
		slog.Time("takeoff", r.TakeoffAt),
		slog.Time("landing", r.LandingAt),
		slog.Int("duration_min", r.DurationMinutes),
		slog.Float64("vs_fpm", r.VerticalSpeedFPM),
		slog.Float64("g", r.GForce),
		slog.Float64("gs_kts", r.GroundSpeedKnots),
		slog.Float64("tas_kts", r.TrueAirSpeedKnots),
		slog.String("quality", string(r.LandingQuality)),
	)
	return nil
}

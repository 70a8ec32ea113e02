package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"flightlogger/pkg/airport"
	"flightlogger/pkg/geo"
	"flightlogger/pkg/session"
	"flightlogger/pkg/sim"
)

// DefaultInterval is the polling cadence of Run.
const DefaultInterval = time.Second

// DefaultName fills an empty pilot or aircraft string.
const DefaultName = "Unknown"

// ErrInFlight is returned when starting a session while one is airborne.
var ErrInFlight = errors.New("a flight is in progress")

// Locator resolves a position to the nearest known airport.
type Locator interface {
	Nearest(lat, lon float64) airport.Airport
}

// SessionStore persists the airborne session for resumption.
type SessionStore interface {
	Save(ctx context.Context, rec *session.Record) error
	Load(ctx context.Context) (*session.Record, bool)
	Clear(ctx context.Context) error
}

// Sink delivers a finished report.
type Sink interface {
	Deliver(ctx context.Context, r Report) error
}

// Leg names the end of the flight being resolved.
type Leg string

const (
	LegDeparture Leg = "departure"
	LegArrival   Leg = "arrival"
)

// ManualFunc asks for an ICAO code when no airport is within the geofence.
// An empty answer leaves the airport unresolved.
type ManualFunc func(ctx context.Context, leg Leg, pos geo.Point) string

// Options configures an Engine. Source is required; the rest are optional.
type Options struct {
	Source     sim.Source
	Airports   Locator
	Sessions   SessionStore
	Sink       Sink
	Manual     ManualFunc
	Observer   func(t *sim.Telemetry)
	Thresholds Thresholds
	Interval   time.Duration
	Now        func() time.Time
}

// Engine is the flight phase state machine. Ticks run sequentially on the
// caller's goroutine; the mutex only guards snapshot reads.
type Engine struct {
	source   sim.Source
	airports Locator
	sessions SessionStore
	sink     Sink
	manual   ManualFunc
	observer func(t *sim.Telemetry)
	th       Thresholds
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	session  Session
	last     sim.Telemetry
	lastAt   time.Time
	reported *Report

	deliveries sync.WaitGroup
}

// New creates an idle engine.
func New(opts Options) *Engine {
	e := &Engine{
		source:   opts.Source,
		airports: opts.Airports,
		sessions: opts.Sessions,
		sink:     opts.Sink,
		manual:   opts.Manual,
		observer: opts.Observer,
		th:       opts.Thresholds.withDefaults(),
		interval: opts.Interval,
		now:      opts.Now,
	}
	if e.interval <= 0 {
		e.interval = DefaultInterval
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.session = newSession("", "")
	return e
}

func newSession(pilot, aircraft string) Session {
	return Session{
		ID:           uuid.NewString(),
		Phase:        PhaseIdle,
		Departure:    airport.Unresolved,
		Arrival:      airport.Unresolved,
		Pilot:        orDefault(pilot),
		AircraftType: orDefault(aircraft),
	}
}

func orDefault(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultName
	}
	return s
}

// Start begins a new idle session. A finished session is replaced; an
// airborne one is not.
func (e *Engine) Start(pilot, aircraft string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Phase == PhaseAirborne {
		return ErrInFlight
	}
	e.session = newSession(pilot, aircraft)
	e.reported = nil
	slog.Info("Flight session started", "id", e.session.ID, "pilot", e.session.Pilot, "aircraft", e.session.AircraftType)
	return nil
}

// Resume restores a persisted airborne session. It reports false, leaving
// the engine idle, when there is nothing resumable.
func (e *Engine) Resume(ctx context.Context) bool {
	if e.sessions == nil {
		return false
	}

	e.mu.RLock()
	phase := e.session.Phase
	e.mu.RUnlock()
	if phase == PhaseAirborne {
		return false
	}

	rec, ok := e.sessions.Load(ctx)
	if !ok {
		return false
	}

	s := newSession(rec.Pilot, rec.AircraftType)
	if rec.ID != "" {
		s.ID = rec.ID
	}
	s.Phase = PhaseAirborne
	s.StartedAt = rec.StartedAt
	s.Departure = rec.Departure

	e.mu.Lock()
	e.session = s
	e.reported = nil
	e.mu.Unlock()

	slog.Info("Flight session resumed", "id", s.ID, "departure", s.Departure.Code(), "started_at", s.StartedAt)
	return true
}

// Run polls the telemetry source until the session is reported or ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if e.Phase() == PhaseReported {
		return nil
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.Info("Flight engine started", "interval", e.interval, "phase", e.Phase())

	for {
		select {
		case <-ctx.Done():
			slog.Info("Flight engine stopped", "phase", e.Phase())
			return ctx.Err()
		case <-ticker.C:
			if e.Tick(ctx) == PhaseReported {
				return nil
			}
		}
	}
}

// Tick evaluates the state machine against one fresh sample and returns the
// resulting phase. Unavailable telemetry is a no-op.
func (e *Engine) Tick(ctx context.Context) Phase {
	phase := e.Phase()
	if phase == PhaseReported {
		return phase
	}

	tel, err := e.source.Sample(ctx)
	if err != nil {
		if !errors.Is(err, sim.ErrUnavailable) {
			slog.Debug("Failed to read telemetry", "error", err)
		}
		return phase
	}

	now := e.now()
	e.mu.Lock()
	e.last = tel
	e.lastAt = now
	e.mu.Unlock()
	if e.observer != nil {
		e.observer(&tel)
	}

	switch phase {
	case PhaseIdle:
		e.checkTakeoff(ctx, &tel, now)
	case PhaseAirborne:
		e.checkLanding(ctx, &tel, now)
	}
	return e.Phase()
}

func (e *Engine) checkTakeoff(ctx context.Context, t *sim.Telemetry, now time.Time) {
	if t.IsOnGround || !(t.AltitudeAGL() > e.th.TakeoffAGL) {
		return
	}

	dep := e.resolve(ctx, LegDeparture, t.Position())

	e.mu.Lock()
	e.session.Phase = PhaseAirborne
	e.session.StartedAt = now
	e.session.Departure = dep
	s := e.session
	e.mu.Unlock()

	slog.Info("Takeoff detected", "id", s.ID, "departure", dep.Code(), "agl_ft", fmt.Sprintf("%.0f", t.AltitudeAGL()))
	e.persist(ctx, &s)
}

func (e *Engine) checkLanding(ctx context.Context, t *sim.Telemetry, now time.Time) {
	if !t.IsOnGround {
		return
	}

	e.mu.RLock()
	started := e.session.StartedAt
	e.mu.RUnlock()

	if started.IsZero() {
		slog.Warn("Ground contact without a takeoff time, skipping")
		return
	}
	if now.Sub(started) < e.th.LandingDebounce {
		return
	}

	quality := e.th.Classify(t.VerticalSpeed)
	arrival := airport.Crash
	if quality != QualityCrash {
		arrival = e.resolve(ctx, LegArrival, t.Position())
	}

	e.mu.Lock()
	e.session.Arrival = arrival
	e.session.GroundedAt = now
	e.session.Phase = PhaseReported
	s := e.session
	r := NewReport(&s, t, quality)
	e.reported = &r
	e.mu.Unlock()

	slog.Info("Landing detected",
		"id", s.ID,
		"arrival", arrival.Code(),
		"quality", quality,
		"vs_fpm", r.VerticalSpeedFPM,
		"g", r.GForce,
		"duration_min", r.DurationMinutes,
	)

	e.dispatch(ctx, r)
	if e.sessions != nil {
		if err := e.sessions.Clear(ctx); err != nil {
			slog.Warn("Failed to clear persisted session", "error", err)
		}
	}
}

// resolve looks the position up in the index, then asks the manual hook.
func (e *Engine) resolve(ctx context.Context, leg Leg, pos geo.Point) airport.Airport {
	if e.airports != nil {
		if a := e.airports.Nearest(pos.Lat, pos.Lon); a.Resolved() {
			return a
		}
	}
	if e.manual != nil {
		if a := airport.Manual(e.manual(ctx, leg, pos)); a.Kind == airport.KindManual {
			slog.Info("Airport entered manually", "leg", leg, "icao", a.ICAO)
			return a
		}
	}
	return airport.Unresolved
}

func (e *Engine) persist(ctx context.Context, s *Session) {
	if e.sessions == nil {
		return
	}
	rec := &session.Record{
		ID:            s.ID,
		FlightStarted: true,
		StartedAt:     s.StartedAt,
		Departure:     s.Departure,
		Pilot:         s.Pilot,
		AircraftType:  s.AircraftType,
	}
	if err := e.sessions.Save(ctx, rec); err != nil {
		slog.Warn("Failed to persist session", "error", err)
	}
}

// dispatch hands the report to the sink without waiting for the outcome.
func (e *Engine) dispatch(ctx context.Context, r Report) {
	if e.sink == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.deliveries.Add(1)
	go func() {
		defer e.deliveries.Done()
		if err := e.sink.Deliver(ctx, r); err != nil {
			slog.Error("Failed to deliver flight report", "id", r.SessionID, "error", err)
			return
		}
		slog.Info("Flight report delivered", "id", r.SessionID)
	}()
}

// Wait blocks until all dispatched reports have been delivered or failed.
func (e *Engine) Wait() {
	e.deliveries.Wait()
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Phase
}

// Snapshot returns a copy of the live session.
func (e *Engine) Snapshot() Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session
}

// Report returns the report of the current session once it has been produced.
func (e *Engine) Report() (Report, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.reported == nil {
		return Report{}, false
	}
	return *e.reported, true
}

// LastTelemetry returns the most recent sample seen by the engine.
func (e *Engine) LastTelemetry() (sim.Telemetry, time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.lastAt, !e.lastAt.IsZero()
}

// Package mocksim simulates a complete short flight for development without a simulator.
package mocksim

import (
	"context"
	"math"
	"sync"
	"time"

	"flightlogger/pkg/geo"
	"flightlogger/pkg/sim"
)

const (
	StageParked   = "PARKED"
	StageTaxiing  = "TAXIING"
	StageHolding  = "HOLDING"
	StageAirborne = "AIRBORNE"
	StageLanded   = "LANDED"

	tickRateMs = 100

	gravity       = 9.80665
	taxiSpeed     = 15.0
	airborneSpeed = 140.0
	// touchdown vertical speed stays visible this long so a 1 Hz poller catches it
	touchdownHold = 2 * time.Second
)

// Config holds timing and profile configuration for the mock simulation.
type Config struct {
	StartLat       float64
	StartLon       float64
	FieldElevation float64 // meters
	Heading        float64
	CruiseAltitude float64 // feet AGL
	TouchdownVS    float64 // fpm, negative
	DurationParked time.Duration
	DurationTaxi   time.Duration
	DurationHold   time.Duration
	DurationCruise time.Duration
}

type scenarioStep struct {
	Type     string
	Target   float64 // feet MSL, for CLIMB
	Rate     float64 // fpm
	Duration float64 // seconds, for WAIT
}

// MockClient implements sim.Source.
type MockClient struct {
	mu          sync.Mutex
	tel         sim.Telemetry
	state       string
	stateStart  time.Time
	config      Config
	stopCh      chan struct{}
	wg          sync.WaitGroup
	scenario    []scenarioStep
	scenarioIdx int
	stepStart   time.Time
	altFt       float64
	groundFt    float64
}

// NewClient creates a new mock simulator client and starts its physics loop.
func NewClient(cfg Config) *MockClient {
	m := newClient(cfg, time.Now())
	m.wg.Add(1)
	go m.physicsLoop()
	return m
}

func newClient(cfg Config, now time.Time) *MockClient {
	if cfg.CruiseAltitude <= 0 {
		cfg.CruiseAltitude = 3000
	}
	if cfg.TouchdownVS >= 0 {
		cfg.TouchdownVS = -150
	}
	groundFt := cfg.FieldElevation * geo.FeetPerMeter
	m := &MockClient{
		config:     cfg,
		stopCh:     make(chan struct{}),
		state:      StageParked,
		stateStart: now,
		altFt:      groundFt,
		groundFt:   groundFt,
		tel: sim.Telemetry{
			Latitude:   cfg.StartLat,
			Longitude:  cfg.StartLon,
			IsOnGround: true,
			AccelZ:     gravity,
		},
	}
	m.publish()
	return m
}

// Sample returns the current state of the simulated aircraft.
func (m *MockClient) Sample(ctx context.Context) (sim.Telemetry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tel, nil
}

// Stage returns the current mock flight stage.
func (m *MockClient) Stage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close stops the physics loop and releases resources.
func (m *MockClient) Close() error {
	close(m.stopCh)
	m.wg.Wait()
	return nil
}

func (m *MockClient) physicsLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(time.Duration(tickRateMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case now := <-ticker.C:
			m.update(now, float64(tickRateMs)/1000.0)
		}
	}
}

func (m *MockClient) update(now time.Time, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stateDuration := now.Sub(m.stateStart)

	switch m.state {
	case StageParked:
		m.tel.GroundSpeed = 0
		if stateDuration >= m.config.DurationParked {
			m.setState(StageTaxiing, now)
		}

	case StageTaxiing:
		m.tel.GroundSpeed = taxiSpeed
		m.move(dt)
		if stateDuration >= m.config.DurationTaxi {
			m.setState(StageHolding, now)
		}

	case StageHolding:
		m.tel.GroundSpeed = 0
		if stateDuration >= m.config.DurationHold {
			m.setState(StageAirborne, now)
			m.initScenario()
		}

	case StageAirborne:
		m.tel.GroundSpeed = airborneSpeed
		m.tel.AccelZ = gravity
		m.move(dt)
		m.updateScenario(dt, now)
		if m.altFt <= m.groundFt {
			m.touchdown(now)
		}

	case StageLanded:
		m.tel.GroundSpeed = math.Max(0, m.tel.GroundSpeed-5*dt)
		m.move(dt)
		if stateDuration >= touchdownHold {
			m.tel.VerticalSpeed = 0
			m.tel.AccelZ = gravity
		}
	}

	m.publish()
}

func (m *MockClient) setState(s string, now time.Time) {
	m.state = s
	m.stateStart = now
}

func (m *MockClient) touchdown(now time.Time) {
	m.altFt = m.groundFt
	m.tel.VerticalSpeed = m.config.TouchdownVS
	// Harder arrivals load the gear more; capped at 4 g.
	m.tel.AccelZ = gravity * (1 + math.Min(math.Abs(m.config.TouchdownVS)/400, 3))
	m.setState(StageLanded, now)
}

func (m *MockClient) move(dt float64) {
	distMeters := m.tel.GroundSpeed * 0.514444 * dt // knots to m/s
	if distMeters <= 0 {
		return
	}
	next := geo.DestinationPoint(m.tel.Position(), distMeters, m.config.Heading)
	m.tel.Latitude = next.Lat
	m.tel.Longitude = next.Lon
}

// publish derives the externally visible telemetry from the internal state.
func (m *MockClient) publish() {
	m.tel.AltitudeMSL = m.altFt / geo.FeetPerMeter
	m.tel.TerrainAltitude = m.groundFt / geo.FeetPerMeter
	m.tel.IsOnGround = m.state != StageAirborne
	if m.tel.IsOnGround {
		m.tel.TrueAirSpeed = m.tel.GroundSpeed
	} else {
		m.tel.TrueAirSpeed = m.tel.GroundSpeed + 2
	}
}

func (m *MockClient) initScenario() {
	cruise := m.groundFt + m.config.CruiseAltitude
	m.scenario = []scenarioStep{
		{Type: "CLIMB", Target: cruise, Rate: 1500.0},
		{Type: "WAIT", Duration: m.config.DurationCruise.Seconds()},
	}
	// Descent and final approach only apply when they are below the cruise level.
	if descent := m.groundFt + 1000.0; cruise > descent {
		m.scenario = append(m.scenario, scenarioStep{Type: "CLIMB", Target: descent, Rate: -1000.0})
	}
	if final := m.groundFt + 50.0; cruise > final {
		m.scenario = append(m.scenario, scenarioStep{Type: "CLIMB", Target: final, Rate: -600.0})
	}
	m.scenario = append(m.scenario, scenarioStep{Type: "CLIMB", Target: m.groundFt, Rate: m.config.TouchdownVS})
	m.scenarioIdx = 0
	m.stepStart = time.Time{}
}

func (m *MockClient) updateScenario(dt float64, now time.Time) {
	if m.scenarioIdx >= len(m.scenario) {
		return
	}

	step := m.scenario[m.scenarioIdx]

	switch step.Type {
	case "WAIT":
		m.tel.VerticalSpeed = 0
		if m.stepStart.IsZero() {
			m.stepStart = now
		}
		if now.Sub(m.stepStart).Seconds() >= step.Duration {
			m.scenarioIdx++
			m.stepStart = time.Time{}
		}
	case "CLIMB":
		delta := (step.Rate / 60.0) * dt
		m.tel.VerticalSpeed = step.Rate

		reached := false
		if step.Rate > 0 {
			reached = m.altFt+delta >= step.Target
		} else {
			reached = m.altFt+delta <= step.Target
		}

		if reached {
			m.altFt = step.Target
			m.scenarioIdx++
			return
		}
		m.altFt += delta
	}
}

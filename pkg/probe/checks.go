package probe

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAirports means the airport reference data is empty.
var ErrNoAirports = errors.New("no airports loaded, arrivals will need manual entry")

// Pinger is satisfied by the state store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter is satisfied by the airport index.
type Counter interface {
	Len() int
}

// Database is a critical probe: without the state store sessions cannot be
// persisted or resumed.
func Database(p Pinger) Probe {
	return Probe{
		Name:     "Database",
		Critical: true,
		Check: func(ctx context.Context) error {
			if err := p.Ping(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			return nil
		},
	}
}

// Airports warns when the index is empty. Flights still log, with manual or
// unresolved airports.
func Airports(c Counter) Probe {
	return Probe{
		Name: "Airport Data",
		Check: func(ctx context.Context) error {
			if c.Len() == 0 {
				return ErrNoAirports
			}
			return nil
		},
	}
}

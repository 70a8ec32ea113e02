// Package airport holds airport reference data and the nearest-airport index.
package airport

import (
	"fmt"
	"strings"
)

// Kind tells how an Airport value was obtained.
type Kind int

const (
	// KindUnresolved is the zero value: no airport within the geofence.
	KindUnresolved Kind = iota
	// KindResolved is an airport found in the reference data.
	KindResolved
	// KindManual is an identity supplied by the manual resolution hook.
	KindManual
	// KindCrash marks the arrival of a crashed flight.
	KindCrash
)

var kindNames = map[Kind]string{
	KindUnresolved: "unresolved",
	KindResolved:   "resolved",
	KindManual:     "manual",
	KindCrash:      "crash",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown airport kind %q", s)
}

// Sentinel identifiers.
const (
	UnknownICAO = "UNKNOWN"
	CrashICAO   = "Crash"
)

// Airport is an immutable airport record. Identity is ICAO.
type Airport struct {
	ICAO     string  `json:"icao"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"tz,omitempty"`
	Kind     Kind    `json:"kind"`
}

// Unresolved is returned when no airport lies within the geofence.
var Unresolved = Airport{ICAO: UnknownICAO, Kind: KindUnresolved}

// Crash replaces the arrival airport of a crashed flight.
var Crash = Airport{ICAO: CrashICAO, Kind: KindCrash}

// Manual wraps an identity typed in by the pilot. An empty code stays unresolved.
func Manual(icao string) Airport {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if icao == "" {
		return Unresolved
	}
	return Airport{ICAO: icao, Kind: KindManual}
}

// Resolved reports whether the airport came from the reference data.
func (a Airport) Resolved() bool {
	return a.Kind == KindResolved
}

// Code returns the ICAO code, or the unresolved sentinel for an empty value.
func (a Airport) Code() string {
	if a.ICAO == "" {
		return UnknownICAO
	}
	return a.ICAO
}

func (a Airport) String() string {
	return fmt.Sprintf("%s (%s)", a.Code(), a.Kind)
}

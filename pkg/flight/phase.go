// Package flight detects takeoff and landing from telemetry and produces flight reports.
package flight

import (
	"fmt"
	"time"
)

// Phase is the lifecycle stage of a flight session. It only advances.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAirborne
	PhaseReported
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAirborne:
		return "airborne"
	case PhaseReported:
		return "reported"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Quality grades a landing by vertical speed at ground contact.
type Quality string

const (
	QualityButter Quality = "BUTTER"
	QualityHard   Quality = "HARD"
	QualityCrash  Quality = "CRASH"
)

// Thresholds tune phase transitions and landing classification.
type Thresholds struct {
	TakeoffAGL      float64       // feet; strictly above this counts as airborne
	LandingDebounce time.Duration // minimum time airborne before ground contact counts
	Butter          float64       // fpm; vertical speed above this is BUTTER
	Crash           float64       // fpm; vertical speed at or below this is CRASH
}

// DefaultThresholds returns the values the logger has always flown with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TakeoffAGL:      100,
		LandingDebounce: time.Second,
		Butter:          -60,
		Crash:           -800,
	}
}

// withDefaults returns DefaultThresholds for the zero value. A partially set
// struct is used as is, so an explicit zero debounce or threshold holds.
func (th Thresholds) withDefaults() Thresholds {
	if th == (Thresholds{}) {
		return DefaultThresholds()
	}
	return th
}

// Classify grades a touchdown vertical speed. The partition is total: NaN is a crash.
func (th Thresholds) Classify(vsFPM float64) Quality {
	switch {
	case vsFPM > th.Butter:
		return QualityButter
	case vsFPM > th.Crash:
		return QualityHard
	default:
		return QualityCrash
	}
}

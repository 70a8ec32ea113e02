package flight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		vs   float64
		want Quality
	}{
		{0, QualityButter},
		{-40, QualityButter},
		{-59.99, QualityButter},
		{-60, QualityHard},
		{-300, QualityHard},
		{-799.99, QualityHard},
		{-800, QualityCrash},
		{-1200, QualityCrash},
		{math.Inf(-1), QualityCrash},
		{math.NaN(), QualityCrash},
		{math.Inf(1), QualityButter},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Classify(tt.vs), "vs=%v", tt.vs)
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	th := Thresholds{Butter: -100, Crash: -600}
	assert.Equal(t, QualityButter, th.Classify(-80))
	assert.Equal(t, QualityHard, th.Classify(-600+0.1))
	assert.Equal(t, QualityCrash, th.Classify(-600))
}

func TestThresholdsWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), Thresholds{}.withDefaults())

	// Explicit zeros survive once any field is set.
	th := Thresholds{TakeoffAGL: 250, LandingDebounce: 0, Butter: 0, Crash: -800}
	assert.Equal(t, th, th.withDefaults())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "airborne", PhaseAirborne.String())
	assert.Equal(t, "reported", PhaseReported.String())
	assert.Equal(t, "phase(9)", Phase(9).String())

	b, err := PhaseAirborne.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "airborne", string(b))
}

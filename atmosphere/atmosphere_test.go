package atmosphere

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkvert/model"
)

func icao(t *testing.T) *StandardAtmosphere {
	t.Helper()
	a, err := New(model.ReferenceParams{SurfacePressure: 101325})
	require.NoError(t, err)
	return a
}

func TestPressure_ICAOReferenceValues(t *testing.T) {
	a := icao(t)

	p, err := a.Pressure(0)
	require.NoError(t, err)
	assert.Equal(t, 101325.0, p)

	p, err = a.Pressure(11000)
	require.NoError(t, err)
	assert.InDelta(t, 22632, p, 2)

	p, err = a.Pressure(20000)
	require.NoError(t, err)
	assert.InDelta(t, 5474.9, p, 1)

	z, err := a.Altitude(1000)
	require.NoError(t, err)
	assert.InDelta(t, 31055, z, 50)

	temp, err := a.Temperature(15000)
	require.NoError(t, err)
	assert.InDelta(t, 216.65, temp, 1e-9)
}

func TestRoundTrip(t *testing.T) {
	a := icao(t)
	for z := MinAltitude; z <= MaxAltitude; z += 137.5 {
		p, err := a.Pressure(z)
		require.NoError(t, err)
		back, err := a.Altitude(p)
		require.NoError(t, err)
		assert.InDelta(t, z, back, 1e-6*math.Max(1, math.Abs(z)), "z=%g", z)
	}
}

func TestBandBoundariesAreContinuous(t *testing.T) {
	a := icao(t)
	const eps = 1e-3
	for _, b := range bands[1:] {
		below, err := a.Pressure(b.z - eps)
		require.NoError(t, err)
		at, err := a.Pressure(b.z)
		require.NoError(t, err)
		above, err := a.Pressure(b.z + eps)
		require.NoError(t, err)

		assert.InDelta(t, at, below, 1e-5*at, "pressure jump at %g m", b.z)
		assert.InDelta(t, at, above, 1e-5*at, "pressure jump at %g m", b.z)

		dBelow := (at - below) / eps
		dAbove := (above - at) / eps
		assert.InDelta(t, dBelow, dAbove, 1e-3*math.Abs(dBelow), "dp/dz jump at %g m", b.z)
	}
}

func TestPressureDecreasesWithHeight(t *testing.T) {
	a := icao(t)
	prev := math.Inf(1)
	for z := MinAltitude; z <= MaxAltitude; z += 250 {
		p, err := a.Pressure(z)
		require.NoError(t, err)
		assert.Less(t, p, prev)
		prev = p
	}
}

func TestOutOfRange(t *testing.T) {
	a := icao(t)

	_, err := a.Pressure(MaxAltitude + 1)
	var domErr *model.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, "altitude", domErr.Quantity)

	_, err = a.Temperature(MinAltitude - 1)
	require.ErrorAs(t, err, &domErr)

	pMin, pMax := a.PressureRange()
	_, err = a.Altitude(pMin / 2)
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, "pressure", domErr.Quantity)

	_, err = a.Altitude(pMax * 1.01)
	require.ErrorAs(t, err, &domErr)

	_, err = a.Altitude(math.NaN())
	require.ErrorAs(t, err, &domErr)
}

func TestSurfaceTemperatureFromReferenceAnchor(t *testing.T) {
	a := icao(t)
	p200, err := a.Pressure(200)
	require.NoError(t, err)

	derived, err := New(model.ReferenceParams{
		SurfacePressure:   101325,
		ReferencePressure: p200,
		ReferenceAltitude: 200,
	})
	require.NoError(t, err)
	assert.InDelta(t, T0, derived.SurfaceTemperature(), 1e-6)

	warm, err := New(model.ReferenceParams{SurfacePressure: 101325, ReferencePressure: p200 + 20})
	require.NoError(t, err)
	assert.Greater(t, warm.SurfaceTemperature(), T0)
}

func TestNew_InvalidAnchors(t *testing.T) {
	tests := []struct {
		name string
		ref  model.ReferenceParams
	}{
		{"no surface pressure", model.ReferenceParams{}},
		{"reference above surface pressure", model.ReferenceParams{SurfacePressure: 101325, ReferencePressure: 102000}},
		{"implausible temperature", model.ReferenceParams{SurfacePressure: 101325, ReferencePressure: 101320}},
		{"reference altitude in stratosphere", model.ReferenceParams{SurfacePressure: 101325, ReferencePressure: 9000, ReferenceAltitude: 16000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.ref)
			var cfgErr *model.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

package atmosphere

import (
	"math"

	log "github.com/sirupsen/logrus"

	"mkvert/model"
)

const (
	G0 = 9.80665  // m/s2
	Rd = 287.0528 // J/(kg K), dry air

	// ICAO 海平面温度
	T0 = 288.15

	MinAltitude = -5000.0
	MaxAltitude = 84852.0

	defaultReferenceAltitude = 200.0
)

// 分层递减率, base altitude (m) and lapse rate (K/m) of each band.
var bands = [...]struct {
	z     float64
	lapse float64
}{
	{0, -0.0065},
	{11000, 0},
	{20000, 0.001},
	{32000, 0.0028},
	{47000, 0},
	{51000, -0.0028},
	{71000, -0.002},
}

type layer struct {
	z, t, p float64 // base altitude, temperature, pressure
	lapse   float64
}

// StandardAtmosphere is the layered reference profile anchored on the
// surface pressure. It holds no mutable state and is safe to share.
type StandardAtmosphere struct {
	layers []layer
	pMin   float64 // pressure at MaxAltitude
	pMax   float64 // pressure at MinAltitude
}

func New(ref model.ReferenceParams) (*StandardAtmosphere, error) {
	if ref.SurfacePressure <= 0 {
		return nil, model.NewConfigError("reference.SurfacePressure", "must be positive, got %g", ref.SurfacePressure)
	}
	t0 := T0
	if ref.ReferencePressure > 0 {
		var err error
		t0, err = surfaceTemperature(ref)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"ReferencePressure": ref.ReferencePressure,
			"SurfaceTemp":       t0,
		}).Debug("surface temperature derived from reference anchor")
	}
	return newWithSurface(ref.SurfacePressure, t0), nil
}

// surfaceTemperature solves p_ref = ps (1 + L z_ref / T0)^(-g/(R L)) for T0.
func surfaceTemperature(ref model.ReferenceParams) (float64, error) {
	z := ref.ReferenceAltitude
	if z == 0 {
		z = defaultReferenceAltitude
	}
	if z <= 0 || z >= bands[1].z {
		return 0, model.NewConfigError("reference.ReferenceAltitude", "must lie in (0, %g), got %g", bands[1].z, z)
	}
	if ref.ReferencePressure >= ref.SurfacePressure {
		return 0, model.NewConfigError("reference.ReferencePressure",
			"%g Pa at %g m is not below the surface pressure %g Pa", ref.ReferencePressure, z, ref.SurfacePressure)
	}
	l := bands[0].lapse
	ratio := math.Pow(ref.ReferencePressure/ref.SurfacePressure, -Rd*l/G0)
	t0 := l * z / (ratio - 1)
	if t0 < 200 || t0 > 330 {
		return 0, model.NewConfigError("reference.ReferencePressure",
			"implies a surface temperature of %.2f K", t0)
	}
	return t0, nil
}

func newWithSurface(ps, t0 float64) *StandardAtmosphere {
	a := &StandardAtmosphere{layers: make([]layer, len(bands))}
	a.layers[0] = layer{z: 0, t: t0, p: ps, lapse: bands[0].lapse}
	for i := 1; i < len(bands); i++ {
		prev := a.layers[i-1]
		dz := bands[i].z - prev.z
		a.layers[i] = layer{
			z:     bands[i].z,
			t:     prev.t + prev.lapse*dz,
			p:     prev.pressure(bands[i].z),
			lapse: bands[i].lapse,
		}
	}
	a.pMin = a.layers[len(a.layers)-1].pressure(MaxAltitude)
	a.pMax = a.layers[0].pressure(MinAltitude)
	return a
}

func (l layer) temperature(z float64) float64 {
	return l.t + l.lapse*(z-l.z)
}

// 气压高度公式
func (l layer) pressure(z float64) float64 {
	if l.lapse == 0 {
		return l.p * math.Exp(-G0*(z-l.z)/(Rd*l.t))
	}
	return l.p * math.Pow(l.temperature(z)/l.t, -G0/(Rd*l.lapse))
}

func (l layer) altitude(p float64) float64 {
	if l.lapse == 0 {
		return l.z - Rd*l.t/G0*math.Log(p/l.p)
	}
	t := l.t * math.Pow(p/l.p, -Rd*l.lapse/G0)
	return l.z + (t-l.t)/l.lapse
}

func (a *StandardAtmosphere) layerAt(z float64) layer {
	for i := len(a.layers) - 1; i > 0; i-- {
		if z >= a.layers[i].z {
			return a.layers[i]
		}
	}
	return a.layers[0]
}

func (a *StandardAtmosphere) layerOf(p float64) layer {
	for i := len(a.layers) - 1; i > 0; i-- {
		if p <= a.layers[i].p {
			return a.layers[i]
		}
	}
	return a.layers[0]
}

func (a *StandardAtmosphere) checkAltitude(z float64) error {
	if math.IsNaN(z) || z < MinAltitude || z > MaxAltitude {
		return &model.DomainError{Quantity: "altitude", Value: z, Min: MinAltitude, Max: MaxAltitude}
	}
	return nil
}

// Pressure returns the pressure (Pa) at altitude z (m).
func (a *StandardAtmosphere) Pressure(z float64) (float64, error) {
	if err := a.checkAltitude(z); err != nil {
		return 0, err
	}
	return a.layerAt(z).pressure(z), nil
}

// Altitude returns the altitude (m) at which the pressure equals p (Pa).
func (a *StandardAtmosphere) Altitude(p float64) (float64, error) {
	if math.IsNaN(p) || p < a.pMin || p > a.pMax {
		return 0, &model.DomainError{Quantity: "pressure", Value: p, Min: a.pMin, Max: a.pMax}
	}
	return a.layerOf(p).altitude(p), nil
}

// Temperature returns the temperature (K) at altitude z (m).
func (a *StandardAtmosphere) Temperature(z float64) (float64, error) {
	if err := a.checkAltitude(z); err != nil {
		return 0, err
	}
	return a.layerAt(z).temperature(z), nil
}

// 表面温度
func (a *StandardAtmosphere) SurfaceTemperature() float64 {
	return a.layers[0].t
}

// PressureRange returns the pressures at the top and the bottom of the
// supported altitude range.
func (a *StandardAtmosphere) PressureRange() (float64, float64) {
	return a.pMin, a.pMax
}

package calculator

import (
	"fmt"

	"mkvert/model"
)

// Atmosphere is the reference pressure/altitude relation.
type Atmosphere interface {
	Pressure(z float64) (float64, error)
	Altitude(p float64) (float64, error)
	Temperature(z float64) (float64, error)
}

// Evaluate computes pressures, altitudes and thicknesses of levels at the
// surface pressure ps. It does not modify its arguments.
func Evaluate(levels *model.Levels, ps float64, rule FullLevelRule, atm Atmosphere) (*model.Profile, error) {
	n := levels.Len()
	if n < 1 {
		return nil, fmt.Errorf("evaluate: %d half-levels, need at least 2", n+1)
	}
	prof := &model.Profile{
		SurfacePressure:   ps,
		HalfPressure:      make([]float64, n+1),
		FullPressure:      make([]float64, n),
		HalfAltitude:      make([]float64, n+1),
		FullAltitude:      make([]float64, n),
		Thickness:         make([]float64, n),
		PressureThickness: make([]float64, n),
	}

	var err error
	for k := 0; k <= n; k++ {
		prof.HalfPressure[k] = levels.HalfPressure(k, ps)
		if prof.HalfAltitude[k], err = atm.Altitude(prof.HalfPressure[k]); err != nil {
			return nil, fmt.Errorf("half-level %d: %w", k, err)
		}
	}
	for k := 0; k < n; k++ {
		prof.FullPressure[k] = rule.FullPressure(prof.HalfPressure[k], prof.HalfPressure[k+1])
		if prof.FullAltitude[k], err = atm.Altitude(prof.FullPressure[k]); err != nil {
			return nil, fmt.Errorf("full level %d: %w", k, err)
		}
		prof.Thickness[k] = prof.HalfAltitude[k] - prof.HalfAltitude[k+1]
		prof.PressureThickness[k] = prof.HalfPressure[k+1] - prof.HalfPressure[k]
	}
	return prof, nil
}

package calculator

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"mkvert/atmosphere"
	"mkvert/config"
	"mkvert/model"
	"mkvert/partition"
)

// anchorAgreement is how far apart, in metres, a configured bottom pressure
// and bottom altitude may place the lowest full level.
const anchorAgreement = 1.0

// ResolveAnchors completes the bottom anchors of ref: the lowest full-level
// pressure and altitude are derived from each other through atm.
func ResolveAnchors(ref model.ReferenceParams, atm Atmosphere) (model.ReferenceParams, error) {
	if ref.TopPressure <= 0 || ref.TopPressure >= ref.SurfacePressure {
		return ref, model.NewConfigError("reference.TopPressure",
			"must lie in (0, %g), got %g", ref.SurfacePressure, ref.TopPressure)
	}
	switch {
	case ref.BottomAltitude > 0 && ref.BottomPressure > 0:
		z, err := atm.Altitude(ref.BottomPressure)
		if err != nil {
			return ref, model.NewConfigError("reference.BottomPressure", "%v", err)
		}
		if math.Abs(z-ref.BottomAltitude) > anchorAgreement {
			return ref, model.NewConfigError("reference.BottomPressure",
				"%g Pa lies at %.2f m, BottomAltitude is %g m", ref.BottomPressure, z, ref.BottomAltitude)
		}
	case ref.BottomAltitude > 0:
		p, err := atm.Pressure(ref.BottomAltitude)
		if err != nil {
			return ref, model.NewConfigError("reference.BottomAltitude", "%v", err)
		}
		ref.BottomPressure = p
	case ref.BottomPressure > 0:
		z, err := atm.Altitude(ref.BottomPressure)
		if err != nil {
			return ref, model.NewConfigError("reference.BottomPressure", "%v", err)
		}
		if z <= 0 {
			return ref, model.NewConfigError("reference.BottomPressure",
				"%g Pa is not above the surface at %g Pa", ref.BottomPressure, ref.SurfacePressure)
		}
		ref.BottomAltitude = z
	default:
		return ref, model.NewConfigError("reference.BottomAltitude", "one of BottomAltitude or BottomPressure is required")
	}
	return ref, nil
}

// Build runs the whole chain for one configuration: standard atmosphere,
// anchors, domain partition, then the coefficient solve.
func Build(cfg *config.Config) (*Result, error) {
	atm, err := atmosphere.New(cfg.Reference)
	if err != nil {
		return nil, err
	}
	ref, err := ResolveAnchors(cfg.Reference, atm)
	if err != nil {
		return nil, err
	}
	top, err := atm.Altitude(ref.TopPressure)
	if err != nil {
		return nil, fmt.Errorf("column top: %w", err)
	}

	// the lowest full level sits halfway up the lowest layer
	part, err := partition.Build(cfg.Domains, cfg.Levels, 2*ref.BottomAltitude, top)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"source":  cfg.Source,
		"levels":  cfg.Levels,
		"domains": len(cfg.Domains),
		"top":     top,
		"bottom":  ref.BottomAltitude,
	}).Info("column partitioned")

	res, err := NewSolver(ref, cfg.Solver, atm).Solve(part.Altitudes)
	if err != nil {
		return nil, err
	}
	res.Partition = part
	return res, nil
}

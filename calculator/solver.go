package calculator

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"mkvert/atmosphere"
	"mkvert/deque"
	"mkvert/model"
	"mkvert/partition"
)

const historySize = 16

// 半层所在区域
type region uint8

const (
	regionTop      region = iota // A = ZP1, B = 0
	regionPressure               // B = 0
	regionHybrid
	regionSigma   // A = 0
	regionSurface // A = 0, B = 1
)

// levelState is the working value of one half-level during the iteration.
type levelState struct {
	region   region
	target   float64 // altitude the half-level (or, for the anchor, its full level) must reach
	pressure float64 // pressure at the standard surface pressure
	residual float64 // altitude minus target
	anchor   bool    // residual taken on the full level below
}

// Result is a converged coefficient table. Profile is evaluated at the
// standard surface pressure, History holds the largest residual of the last
// iterations, oldest first. Partition is only set by Build.
type Result struct {
	Levels     *model.Levels
	Profile    *model.Profile
	Iterations int
	Residual   float64
	History    []float64
	Rule       FullLevelRule
	Reference  model.ReferenceParams
	Partition  *partition.Partition
}

// Solver derives hybrid coefficients reproducing target half-level
// altitudes. A Solver holds no per-solve state and may be reused.
type Solver struct {
	ref    model.ReferenceParams
	params model.SolverParams
	rule   FullLevelRule
	atm    Atmosphere
}

func NewSolver(ref model.ReferenceParams, params model.SolverParams, atm Atmosphere) *Solver {
	return &Solver{
		ref:    ref,
		params: params,
		rule:   RuleOf(params.ArithmeticMean),
		atm:    atm,
	}
}

func (s *Solver) Rule() FullLevelRule {
	return s.rule
}

// Evaluate computes the profile of levels with the solver's full-level rule.
func (s *Solver) Evaluate(levels *model.Levels, ps float64) (*model.Profile, error) {
	return Evaluate(levels, ps, s.rule, s.atm)
}

func (s *Solver) check(n int) error {
	p := s.params
	switch {
	case p.Hybridicity > -1:
		return model.NewConfigError("solver.Hybridicity", "must be <= -1, got %g", p.Hybridicity)
	case p.PressureLevels < 1:
		return model.NewConfigError("dimensions.PressureLevels", "must be positive, got %d", p.PressureLevels)
	case p.SigmaLevels < 1:
		return model.NewConfigError("dimensions.SigmaLevels", "must be positive, got %d", p.SigmaLevels)
	case p.PressureLevels+p.SigmaLevels >= n:
		return model.NewConfigError("dimensions.Levels",
			"%d pure-pressure and %d pure-sigma levels leave no hybrid level out of %d", p.PressureLevels, p.SigmaLevels, n)
	case p.Tolerance <= 0:
		return model.NewConfigError("solver.Tolerance", "must be positive, got %g", p.Tolerance)
	case p.MaxIterations < 1:
		return model.NewConfigError("solver.MaxIterations", "must be positive, got %d", p.MaxIterations)
	case p.Relaxation <= 0 || p.Relaxation > 1:
		return model.NewConfigError("solver.Relaxation", "must lie in (0, 1], got %g", p.Relaxation)
	case p.SurfacePressureMargin < model.MinSurfacePressureMargin || p.SurfacePressureMargin >= 1:
		return model.NewConfigError("solver.SurfacePressureMargin",
			"must lie in [%g, 1), got %g", model.MinSurfacePressureMargin, p.SurfacePressureMargin)
	case s.ref.TopPressure <= 0 || s.ref.TopPressure >= s.ref.SurfacePressure:
		return model.NewConfigError("reference.TopPressure",
			"must lie in (0, %g), got %g", s.ref.SurfacePressure, s.ref.TopPressure)
	case s.ref.BottomAltitude <= 0:
		return model.NewConfigError("reference.BottomAltitude", "must be positive, got %g", s.ref.BottomAltitude)
	}
	return nil
}

// Solve takes the target half-level altitudes ordered bottom to top, as
// produced by the partition, and returns the coefficient table.
func (s *Solver) Solve(altitudes []float64) (*Result, error) {
	n := len(altitudes) - 1
	if err := s.check(n); err != nil {
		return nil, err
	}
	arena, err := s.newArena(altitudes)
	if err != nil {
		return nil, err
	}
	levels := s.initialise(arena)

	history := deque.NewArrDeque(historySize)
	var (
		prof  *model.Profile
		worst int
		res   float64
	)
	for it := 1; it <= s.params.MaxIterations; it++ {
		if prof, err = s.Evaluate(levels, s.ref.SurfacePressure); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}
		worst, res = s.residuals(arena, prof)
		history.Push(res)
		log.WithFields(log.Fields{
			"iteration": it,
			"residual":  res,
			"level":     worst,
		}).Debug("altitude residual")

		// the first pass still carries the index-based B and is never accepted
		if it > 1 && res < s.params.Tolerance {
			if err := s.verify(levels, it, res); err != nil {
				return nil, err
			}
			log.WithFields(log.Fields{
				"levels":      n,
				"iterations":  it,
				"residual":    res,
				"hybridicity": s.params.Hybridicity,
				"rule":        s.rule.String(),
			}).Info("hybrid coefficients converged")
			return &Result{
				Levels:     levels,
				Profile:    prof,
				Iterations: it,
				Residual:   res,
				History:    history.Slice(),
				Rule:       s.rule,
				Reference:  s.ref,
			}, nil
		}

		if err := s.correct(arena, prof); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", it, err)
		}
		levels = s.reshape(arena)
	}

	err = &model.ConvergenceError{
		Iterations: s.params.MaxIterations,
		Level:      worst,
		Residual:   res,
		Reason:     "iteration budget exhausted",
	}
	log.WithFields(log.Fields{
		"history": history.Slice(),
	}).WithError(err).Error("hybrid coefficient solve failed")
	return nil, err
}

// sigmaTop is the highest half-level with A = 0.
func (s *Solver) sigmaTop(n int) int {
	return n - s.params.SigmaLevels
}

func (s *Solver) newArena(altitudes []float64) ([]levelState, error) {
	n := len(altitudes) - 1
	np, st := s.params.PressureLevels, s.sigmaTop(n)
	arena := make([]levelState, n+1)
	for k := range arena {
		l := &arena[k]
		l.target = altitudes[n-k]
		switch {
		case k == 0:
			l.region = regionTop
		case k <= np:
			l.region = regionPressure
		case k < st:
			l.region = regionHybrid
		case k < n:
			l.region = regionSigma
		default:
			l.region = regionSurface
		}
	}

	var err error
	for k := 1; k < n; k++ {
		if arena[k].pressure, err = s.atm.Pressure(arena[k].target); err != nil {
			return nil, fmt.Errorf("target of half-level %d: %w", k, err)
		}
	}
	arena[0].pressure = s.ref.TopPressure
	arena[n].pressure = s.ref.SurfacePressure

	if arena[0].target, err = s.atm.Altitude(s.ref.TopPressure); err != nil {
		return nil, fmt.Errorf("top pressure: %w", err)
	}
	arena[n-1].anchor = true
	arena[n-1].target = s.ref.BottomAltitude
	return arena, nil
}

// initialise sets B from the hybridicity function of the level index and A
// as its complement to the target pressure.
func (s *Solver) initialise(arena []levelState) *model.Levels {
	n := len(arena) - 1
	np, st := s.params.PressureLevels, s.sigmaTop(n)
	ps := s.ref.SurfacePressure
	bt := arena[st].pressure / ps

	levels := model.NewLevels(n)
	for k, l := range arena {
		switch l.region {
		case regionTop:
			levels.A[k], levels.B[k] = s.ref.TopPressure, 0
		case regionPressure:
			levels.A[k], levels.B[k] = l.pressure, 0
		case regionHybrid:
			x := float64(k-np) / float64(st-np)
			levels.B[k] = bt * Hybridicity(x, s.params.Hybridicity)
			levels.A[k] = l.pressure - levels.B[k]*ps
		case regionSigma:
			levels.A[k], levels.B[k] = 0, l.pressure/ps
		case regionSurface:
			levels.A[k], levels.B[k] = 0, 1
		}
	}
	return levels
}

// residuals fills the per-level altitude residuals and returns the index and
// magnitude of the largest one.
func (s *Solver) residuals(arena []levelState, prof *model.Profile) (int, float64) {
	n := len(arena) - 1
	abs := make([]float64, n+1)
	for k := 1; k < n; k++ {
		l := &arena[k]
		if l.anchor {
			l.residual = prof.FullAltitude[k] - l.target
		} else {
			l.residual = prof.HalfAltitude[k] - l.target
		}
		abs[k] = math.Abs(l.residual)
	}
	worst := floats.MaxIdx(abs)
	return worst, abs[worst]
}

// correct moves each adjustable half-level pressure by a damped Newton step
// on its altitude residual, dp = w r g p / (R T).
func (s *Solver) correct(arena []levelState, prof *model.Profile) error {
	n := len(arena) - 1
	for k := 1; k < n; k++ {
		l := &arena[k]
		p, z, gain := prof.HalfPressure[k], prof.HalfAltitude[k], 1.0
		if l.anchor {
			// d p_full / d p_half is 1/2 for the mean, close to it for the exact rule
			p, z, gain = prof.FullPressure[k], prof.FullAltitude[k], 2.0
		}
		t, err := s.atm.Temperature(z)
		if err != nil {
			return fmt.Errorf("half-level %d: %w", k, err)
		}
		dp := s.params.Relaxation * l.residual * atmosphere.G0 * p / (atmosphere.Rd * t) * gain
		l.pressure = prof.HalfPressure[k] + dp
	}
	return nil
}

// reshape rebuilds the table from the arena pressures: B across the hybrid
// band follows the hybridicity function of the normalised pressure, A keeps
// the pressure at the standard surface pressure unchanged.
func (s *Solver) reshape(arena []levelState) *model.Levels {
	n := len(arena) - 1
	np, st := s.params.PressureLevels, s.sigmaTop(n)
	ps := s.ref.SurfacePressure
	etaP := arena[np].pressure / ps
	etaS := arena[st].pressure / ps

	levels := model.NewLevels(n)
	for k, l := range arena {
		switch l.region {
		case regionTop:
			levels.A[k], levels.B[k] = s.ref.TopPressure, 0
		case regionPressure:
			levels.A[k], levels.B[k] = l.pressure, 0
		case regionHybrid:
			x := (l.pressure/ps - etaP) / (etaS - etaP)
			levels.B[k] = etaS * Hybridicity(x, s.params.Hybridicity)
			levels.A[k] = l.pressure - levels.B[k]*ps
		case regionSigma:
			levels.A[k], levels.B[k] = 0, l.pressure/ps
		case regionSurface:
			levels.A[k], levels.B[k] = 0, 1
		}
	}
	return levels
}

// verify enforces the post-conditions of a converged table.
func (s *Solver) verify(levels *model.Levels, it int, res float64) error {
	n := levels.Len()
	fail := func(k int, format string, args ...interface{}) error {
		return &model.ConvergenceError{Iterations: it, Level: k, Residual: res, Reason: fmt.Sprintf(format, args...)}
	}
	if levels.B[0] != 0 || levels.A[0] != s.ref.TopPressure {
		return fail(0, "top half-level is (A=%g, B=%g), want (%g, 0)", levels.A[0], levels.B[0], s.ref.TopPressure)
	}
	if levels.B[n] != 1 || levels.A[n] != 0 {
		return fail(n, "surface half-level is (A=%g, B=%g), want (0, 1)", levels.A[n], levels.B[n])
	}
	for k := 0; k <= n; k++ {
		if levels.B[k] < 0 || levels.B[k] > 1 {
			return fail(k, "B=%g outside [0, 1]", levels.B[k])
		}
		if k > 0 && levels.B[k] < levels.B[k-1] {
			return fail(k, "B decreases downward (%g above %g)", levels.B[k-1], levels.B[k])
		}
	}
	m := s.params.SurfacePressureMargin
	for _, ps := range []float64{s.ref.SurfacePressure * (1 - m), s.ref.SurfacePressure, s.ref.SurfacePressure * (1 + m)} {
		for k := 1; k <= n; k++ {
			if levels.HalfPressure(k, ps) <= levels.HalfPressure(k-1, ps) {
				return fail(k, "pressure does not increase downward at surface pressure %g Pa", ps)
			}
		}
	}
	return nil
}
